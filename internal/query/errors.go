package query

import "errors"

// Sentinel errors classifying query failures. The retry policy decides
// what to do with a failed attempt via errors.Is against these.
var (
	// ErrClientRequest marks a request the provider rejected as malformed
	// (4xx other than 429). It signals a schema or prompt defect, so
	// retrying cannot help.
	ErrClientRequest = errors.New("client request rejected")

	// ErrTransient marks a failure worth retrying with backoff: timeouts,
	// connection errors, 5xx responses, and 429 rate limiting.
	ErrTransient = errors.New("transient query failure")

	// ErrParse marks a completion that did not decode or validate against
	// the expected schema. A fresh attempt may produce well-formed output.
	ErrParse = errors.New("structured output parse failure")

	// ErrEmptyPrompt is returned when Query is called with a blank prompt.
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrMissingAPIKey is returned when a provider has no credential.
	ErrMissingAPIKey = errors.New("API key not configured")

	// ErrUnknownProvider is returned by the factory for an unrecognized
	// provider name.
	ErrUnknownProvider = errors.New("unknown query provider")
)
