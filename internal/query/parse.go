package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"surveyor/internal/question"
)

// reasoningEnd terminates the chain-of-thought preamble some reasoning
// models emit before their structured payload.
const reasoningEnd = "</think>"

// StripReasoning drops everything up to and including the reasoning end
// marker, leaving only the candidate structured output. Content without
// the marker is returned trimmed and otherwise untouched.
func StripReasoning(content string) string {
	if idx := strings.Index(content, reasoningEnd); idx != -1 {
		content = content[idx+len(reasoningEnd):]
	}
	return strings.TrimSpace(content)
}

// ExtractJSON returns the first balanced JSON object in s, skipping any
// prose or markdown fencing around it. Braces inside string literals do
// not count toward nesting. Returns "" when no complete object exists.
func ExtractJSON(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// DecodeStructured parses a completion into the schema's fields. The
// reasoning preamble is stripped and the JSON object located before
// decoding; the returned raw message is the validated object with every
// declared field coerced to its tagged type. All failures are ErrParse.
func DecodeStructured(content string, schema question.Schema) (json.RawMessage, map[string]any, error) {
	candidate := ExtractJSON(StripReasoning(content))
	if candidate == "" {
		return nil, nil, fmt.Errorf("%w: no JSON object in completion", ErrParse)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	fields, err := schema.ValidateMap(decoded)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	normalized, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return normalized, fields, nil
}
