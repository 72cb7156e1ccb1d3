package knowledge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnexpectedFormat indicates an annotation payload whose shape is
// neither null, a flat array, nor a {"result": [...]} envelope.
var ErrUnexpectedFormat = errors.New("unexpected annotation format")

// normalizeAnnotations converts the aggregated JSONB payload into one
// canonical slice. Accepted shapes, all observed in the wild:
//
//	null / SQL NULL        -> empty slice
//	[{...}, ...]           -> decoded directly
//	{"result": [{...}]}    -> unwrapped, then decoded
//
// Anything else is an ErrUnexpectedFormat. The returned slice is never
// nil so callers can range and serialize without nil checks.
func normalizeAnnotations(raw []byte) ([]Annotation, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []Annotation{}, nil
	}

	switch raw[0] {
	case '[':
		var anns []Annotation
		if err := json.Unmarshal(raw, &anns); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
		}
		if anns == nil {
			anns = []Annotation{}
		}
		return anns, nil
	case '{':
		var envelope struct {
			Result json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
		}
		if envelope.Result == nil {
			return nil, fmt.Errorf("%w: object without result field", ErrUnexpectedFormat)
		}
		return normalizeAnnotations(envelope.Result)
	default:
		return nil, fmt.Errorf("%w: %.32s", ErrUnexpectedFormat, raw)
	}
}
