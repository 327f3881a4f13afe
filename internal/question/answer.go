package question

import "encoding/json"

// QueryResponse is the stored outcome of one remote query: the opaque
// provider payload, the parsed structured object when parsing succeeded,
// and the parse/transport bookkeeping. A response with a non-empty Error
// is never reused as a cache hit; the next sweep re-queries it.
type QueryResponse struct {
	Payload        json.RawMessage `json:"payload,omitempty"`
	Structured     json.RawMessage `json:"structured,omitempty"`
	ParsingSuccess bool            `json:"parsing_success"`
	ParsingError   string          `json:"parsing_error,omitempty"`
	RetriesUsed    int             `json:"retries_used"`
	Error          string          `json:"error,omitempty"`
}

// Usable reports whether the response may satisfy a cache lookup.
func (r QueryResponse) Usable() bool { return r.Error == "" }

// Answer is the final per-question result handed to the caller: the
// question's parameters and rendered value, the raw response, and the
// extracted fields. Hits and misses produce the same shape; the caller
// cannot tell cache provenance from an Answer alone.
type Answer struct {
	WordSet       map[string]string `json:"word_set"`
	QuestionValue string            `json:"question_value"`
	Response      QueryResponse     `json:"response"`
	Fields        map[string]any    `json:"fields"`
	Error         string            `json:"error,omitempty"`
}

// OK reports whether the answer resolved without an error.
func (a Answer) OK() bool { return a.Error == "" }
