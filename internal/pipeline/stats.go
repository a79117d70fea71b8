package pipeline

import (
	"encoding/json"
	"strconv"
)

// statsPendingKey holds the review queue count written at finalization. It
// lives beside the per-stage keys in the same stats object.
const statsPendingKey = "pending_review_items"

// Stats is the accumulated per-stage result map persisted on the import
// record. Keys are stage names; values are the stage executors' result
// payloads, opaque to the coordinator except for the guarded fields. A
// successful run only ever adds or overwrites keys, never removes them.
type Stats map[string]json.RawMessage

// ExtractResult is the typed view of the extracting stage's payload. Only
// files_found is contractually significant; everything else passes through.
type ExtractResult struct {
	FilesFound int `json:"files_found"`
}

// ParseResult is the typed view of the parsing stage's payload.
type ParseResult struct {
	ConversationsCreated int `json:"conversations_created"`
}

// Clone returns a copy safe to mutate without aliasing the record's map.
func (s Stats) Clone() Stats {
	out := make(Stats, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Set stores a stage's result payload under its stage key.
func (s Stats) Set(stage Stage, payload json.RawMessage) {
	s[string(stage)] = payload
}

// SetPendingReview records the review queue count computed at finalization.
func (s Stats) SetPendingReview(count int) {
	s[statsPendingKey] = json.RawMessage(strconv.Itoa(count))
}

// Extracting decodes the extracting stage's recorded result. ok is false when
// the stage has no recorded result or the payload does not carry a numeric
// files_found field.
func (s Stats) Extracting() (ExtractResult, bool) {
	raw, present := s[string(StageExtracting)]
	if !present {
		return ExtractResult{}, false
	}
	var probe struct {
		FilesFound *int `json:"files_found"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.FilesFound == nil {
		return ExtractResult{}, false
	}
	return ExtractResult{FilesFound: *probe.FilesFound}, true
}

// Parsing decodes the parsing stage's recorded result.
func (s Stats) Parsing() (ParseResult, bool) {
	raw, present := s[string(StageParsing)]
	if !present {
		return ParseResult{}, false
	}
	var probe struct {
		ConversationsCreated *int `json:"conversations_created"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.ConversationsCreated == nil {
		return ParseResult{}, false
	}
	return ParseResult{ConversationsCreated: *probe.ConversationsCreated}, true
}
