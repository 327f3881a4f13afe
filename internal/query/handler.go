// Package query turns a prompt plus an expected schema into a validated
// structured result from a remote text-generation provider. It owns the
// retry/backoff policy, reasoning-preamble stripping, JSON extraction,
// and schema validation; caching is the workflow's concern, layered above.
package query

import (
	"context"
	"encoding/json"
	"strings"

	"surveyor/internal/question"
)

// Handler is the remote query boundary. One implementation per provider.
type Handler interface {
	// Provider names the backing service ("sonar", "gemini").
	Provider() string

	// Model returns the model identifier requests are sent to.
	Model() string

	// Query sends prompt, steered by schema, and returns the structured
	// outcome. The error return is reserved for context cancellation and
	// configuration faults (empty prompt, missing key); query failures of
	// every other kind come back inside Result as a normal, inspectable
	// outcome.
	Query(ctx context.Context, prompt string, schema question.Schema) (Result, error)

	// ExtractFields flattens a stored provider payload into named answer
	// fields. Total over any well-formed payload: absent sections become
	// empty collections, never panics or errors.
	ExtractFields(payload json.RawMessage) map[string]any
}

// Result is the outcome of one structured query. Exhausted retries are a
// normal Result carrying the last raw payload and a parsing error, not a
// Go error.
type Result struct {
	RawResponse    json.RawMessage
	Structured     json.RawMessage
	ParsingSuccess bool
	ParsingError   string
	RetriesUsed    int
	InputTokens    int
	OutputTokens   int
}

// BuildPrompt appends schema guidance to the user prompt so the remote
// model sees both the question and the exact output contract, including
// the per-field descriptions.
func BuildPrompt(prompt string, schema question.Schema) string {
	if schema.Empty() {
		return prompt
	}
	js, err := json.MarshalIndent(schema.JSONSchema(), "", "  ")
	if err != nil {
		return prompt
	}
	var b strings.Builder
	b.Grow(len(prompt) + len(js) + 256)
	b.WriteString(prompt)
	b.WriteString("\n\nPlease provide comprehensive information and format your response according to the specified JSON schema structure. ")
	b.WriteString("Pay attention to the field descriptions in the schema to understand what information is expected for each field.\n\nJSON Schema:\n")
	b.Write(js)
	return b.String()
}
