package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when a response contains no JSON object or array.
var ErrNoJSON = errors.New("no JSON value in response")

// ExtractJSON pulls the first top-level JSON object or array out of a model
// response. Responses wrapped in markdown code fences (``` or ```json) and
// prose around the value are tolerated.
func ExtractJSON(s string) (string, error) {
	s = stripFences(s)

	// Prose may contain stray brackets before the real value; try each
	// candidate start until one decodes.
	for start := 0; start < len(s); start++ {
		i := strings.IndexAny(s[start:], "{[")
		if i < 0 {
			break
		}
		start += i
		dec := json.NewDecoder(strings.NewReader(s[start:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			return string(raw), nil
		}
	}
	return "", ErrNoJSON
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the fence line.
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
