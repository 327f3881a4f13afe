package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"surveyor/internal/logging"
	"surveyor/internal/question"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey      string
	Model       string
	ColdTimeout time.Duration
	WarmTimeout time.Duration
	Retry       RetryPolicy
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:      apiKey,
		Model:       "gemini-2.5-flash",
		ColdTimeout: 60 * time.Second,
		WarmTimeout: 30 * time.Second,
		Retry:       DefaultRetryPolicy(),
	}
}

// GeminiHandler queries the Gemini API through the official SDK. The
// schema is enforced natively via GenerateContentConfig.ResponseSchema,
// so no prompt augmentation is needed.
type GeminiHandler struct {
	client   *genai.Client
	model    string
	retry    RetryPolicy
	timeouts *timeouts
}

// NewGeminiHandler creates a Gemini handler. Zero config fields fall
// back to the defaults.
func NewGeminiHandler(ctx context.Context, config GeminiConfig) (*GeminiHandler, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	def := DefaultGeminiConfig(config.APIKey)
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.ColdTimeout <= 0 {
		config.ColdTimeout = def.ColdTimeout
	}
	if config.WarmTimeout <= 0 {
		config.WarmTimeout = def.WarmTimeout
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: config.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiHandler{
		client:   client,
		model:    config.Model,
		retry:    config.Retry.normalized(),
		timeouts: newTimeouts(config.ColdTimeout, config.WarmTimeout),
	}, nil
}

// Provider returns "gemini".
func (h *GeminiHandler) Provider() string { return "gemini" }

// Model returns the current model.
func (h *GeminiHandler) Model() string { return h.model }

// Query sends the prompt with the schema as a native response constraint
// and parses the completion.
func (h *GeminiHandler) Query(ctx context.Context, prompt string, schema question.Schema) (Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return Result{}, ErrEmptyPrompt
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.1)),
	}
	if !schema.Empty() {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = genaiSchema(schema)
	}

	timeout := h.timeouts.For(schema)
	timer := logging.StartTimer(logging.CategoryAPI, "gemini query")
	defer timer.Stop()

	var res Result
	retries, err := h.retry.Do(ctx, func(attempt int) error {
		aerr := h.attempt(ctx, prompt, schema, config, timeout, &res)
		if aerr != nil {
			logging.APIWarn("gemini attempt %d/%d failed: %v", attempt+1, h.retry.MaxAttempts, aerr)
		}
		return aerr
	})
	res.RetriesUsed = retries
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		logging.APIError("gemini query failed after %d retries: %v", retries, err)
		res.Structured = nil
		res.ParsingSuccess = false
		res.ParsingError = err.Error()
		return res, nil
	}
	logging.APIDebug("gemini query ok: model=%s retries=%d tokens=%d/%d",
		h.model, retries, res.InputTokens, res.OutputTokens)
	return res, nil
}

func (h *GeminiHandler) attempt(ctx context.Context, prompt string, schema question.Schema, config *genai.GenerateContentConfig, timeout time.Duration, res *Result) error {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := h.client.Models.GenerateContent(attemptCtx, h.model, genai.Text(prompt), config)
	if err != nil {
		return classifyGenaiError(err)
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("%w: encode response: %v", ErrParse, err)
	}
	res.RawResponse = raw
	if resp.UsageMetadata != nil {
		res.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		res.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	content := strings.TrimSpace(candidateText(resp))
	if content == "" {
		return fmt.Errorf("%w: empty completion content", ErrParse)
	}
	if schema.Empty() {
		res.ParsingSuccess = true
		return nil
	}
	structured, _, err := DecodeStructured(content, schema)
	if err != nil {
		return err
	}
	res.Structured = structured
	res.ParsingSuccess = true
	return nil
}

// ExtractFields flattens a stored Gemini payload. Gemini carries no
// citation envelope, so the citation keys are present but empty; this
// keeps answer shapes uniform across providers.
func (h *GeminiHandler) ExtractFields(payload json.RawMessage) map[string]any {
	fields := make(map[string]any)

	var resp geminiPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &resp); err != nil {
			logging.APIDebug("extract fields: undecodable payload: %v", err)
		}
	}
	var b strings.Builder
	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			b.WriteString(part.Text)
		}
	}
	if candidate := ExtractJSON(StripReasoning(b.String())); candidate != "" {
		var structured map[string]any
		if err := json.Unmarshal([]byte(candidate), &structured); err == nil {
			for k, v := range structured {
				fields[k] = v
			}
		}
	}

	fields["citations"] = []string{}
	fields["search_results"] = []SearchResult{}
	fields["enriched_citations"] = []EnrichedCitation{}
	return fields
}

// Close releases handler resources. The genai SDK client exposes no
// Close and holds nothing to release, so this always returns nil.
func (h *GeminiHandler) Close() error {
	return nil
}

// geminiPayload is the subset of the SDK response shape ExtractFields
// needs; the SDK marshals with camelCase keys.
type geminiPayload struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// candidateText concatenates the text parts of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// classifyGenaiError maps SDK errors onto the retry taxonomy: 429 and
// 5xx are transient, other API errors are client request defects, and
// anything else (network, timeout) is transient.
func classifyGenaiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return fmt.Errorf("%w: %v", ErrClientRequest, err)
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// genaiSchema renders the tagged schema in the SDK's native form.
func genaiSchema(s question.Schema) *genai.Schema {
	properties := make(map[string]*genai.Schema, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		prop := &genai.Schema{Description: f.Description}
		switch f.Type {
		case question.FieldStringList:
			prop.Type = genai.TypeArray
			prop.Items = &genai.Schema{Type: genai.TypeString}
		case question.FieldInteger:
			prop.Type = genai.TypeInteger
		case question.FieldNumber:
			prop.Type = genai.TypeNumber
		case question.FieldBoolean:
			prop.Type = genai.TypeBoolean
		default:
			prop.Type = genai.TypeString
		}
		properties[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
		Required:   required,
	}
}
