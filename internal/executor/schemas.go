package executor

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/archive-importer/internal/pipeline"
)

// Result schemas for the stages whose payloads the coordinator inspects. A
// worker can return a well-formed success envelope with a malformed result
// object; validating here turns that into a stage failure with a field-level
// diagnostic instead of a silently zeroed guard check. Stages without a
// schema accept any object.
var resultSchemaSources = map[pipeline.Stage]string{
	pipeline.StageExtracting: `{
		"type": "object",
		"required": ["files_found"],
		"properties": {
			"files_found": {"type": "integer", "minimum": 0}
		}
	}`,
	pipeline.StageParsing: `{
		"type": "object",
		"required": ["conversations_created"],
		"properties": {
			"conversations_created": {"type": "integer", "minimum": 0}
		}
	}`,
}

type resultSchemas struct {
	compiled map[pipeline.Stage]*gojsonschema.Schema
}

func loadResultSchemas() (*resultSchemas, error) {
	compiled := make(map[pipeline.Stage]*gojsonschema.Schema, len(resultSchemaSources))
	for stage, source := range resultSchemaSources {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
		if err != nil {
			return nil, fmt.Errorf("compiling %s result schema: %w", stage, err)
		}
		compiled[stage] = schema
	}
	return &resultSchemas{compiled: compiled}, nil
}

// validate checks a stage's result payload against its schema, if one exists.
func (s *resultSchemas) validate(stage pipeline.Stage, payload []byte) error {
	schema, ok := s.compiled[stage]
	if !ok {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("result is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("result failed schema validation: %s", strings.Join(msgs, "; "))
}
