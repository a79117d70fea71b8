package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClaims struct {
	callerID uuid.UUID
}

func (c *stubClaims) GetCallerID() uuid.UUID { return c.callerID }

type stubValidator struct {
	callerID uuid.UUID
	err      error
	seen     string
}

func (v *stubValidator) ValidateToken(tokenString string) (CallerIDGetter, error) {
	v.seen = tokenString
	if v.err != nil {
		return nil, v.err
	}
	return &stubClaims{callerID: v.callerID}, nil
}

func runAuth(t *testing.T, validator TokenValidator, authHeader string) (*httptest.ResponseRecorder, uuid.UUID, bool) {
	t.Helper()

	var gotCaller uuid.UUID
	var handlerRan bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerRan = true
		id, err := GetCallerID(r)
		require.NoError(t, err)
		gotCaller = id
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/imports/process", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	Auth(validator)(next).ServeHTTP(w, req)
	return w, gotCaller, handlerRan
}

func TestAuthResolvesCaller(t *testing.T) {
	callerID := uuid.New()
	validator := &stubValidator{callerID: callerID}

	w, gotCaller, handlerRan := runAuth(t, validator, "Bearer good-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, handlerRan)
	assert.Equal(t, callerID, gotCaller)
	assert.Equal(t, "good-token", validator.seen)
}

func TestAuthCaseInsensitiveBearer(t *testing.T) {
	validator := &stubValidator{callerID: uuid.New()}
	w, _, handlerRan := runAuth(t, validator, "bearer token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, handlerRan)
}

func TestAuthRejections(t *testing.T) {
	cases := []struct {
		name   string
		header string
		err    error
	}{
		{"missing header", "", nil},
		{"wrong scheme", "Basic dXNlcjpwYXNz", nil},
		{"empty token", "Bearer ", nil},
		{"invalid token", "Bearer bad", errors.New("token expired")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _, handlerRan := runAuth(t, &stubValidator{err: tc.err}, tc.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.False(t, handlerRan, "handler must not run without a resolved caller")
		})
	}
}

func TestGetCallerIDMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/imports", nil)
	_, err := GetCallerID(req)
	assert.Error(t, err)
}
