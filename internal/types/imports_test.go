package types

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestProcessRequestValidate(t *testing.T) {
	valid := ProcessRequest{ImportID: uuid.New().String()}
	assert.NoError(t, valid.Validate())

	missing := ProcessRequest{}
	assert.Error(t, missing.Validate())

	malformed := ProcessRequest{ImportID: "not-a-uuid"}
	assert.Error(t, malformed.Validate())
}
