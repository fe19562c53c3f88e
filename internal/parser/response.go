package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse is returned when model output is not a JSON object.
var ErrMalformedResponse = errors.New("malformed model response")

// StripCodeFence removes markdown code fences around model output.
func StripCodeFence(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```JSON", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// DecodeObject parses fenced or bare model output into its top-level fields.
// Anything other than a JSON object yields ErrMalformedResponse.
func DecodeObject(text string) (map[string]json.RawMessage, error) {
	body := StripCodeFence(text)
	if body == "" {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedResponse)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: top-level value is null", ErrMalformedResponse)
	}
	return obj, nil
}
