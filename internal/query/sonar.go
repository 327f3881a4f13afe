package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"surveyor/internal/logging"
	"surveyor/internal/question"
)

// SonarConfig holds configuration for the Perplexity Sonar client.
type SonarConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	ColdTimeout time.Duration // first query per schema
	WarmTimeout time.Duration // every query after that
	MinInterval time.Duration // minimum spacing between requests
	Retry       RetryPolicy
}

// DefaultSonarConfig returns sensible defaults.
func DefaultSonarConfig(apiKey string) SonarConfig {
	return SonarConfig{
		APIKey:      apiKey,
		BaseURL:     "https://api.perplexity.ai",
		Model:       "sonar",
		ColdTimeout: 60 * time.Second,
		WarmTimeout: 30 * time.Second,
		MinInterval: 600 * time.Millisecond,
		Retry:       DefaultRetryPolicy(),
	}
}

// SonarHandler queries the Perplexity chat/completions API with native
// structured output (response_format json_schema).
type SonarHandler struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	retry       RetryPolicy
	timeouts    *timeouts
	minInterval time.Duration

	mu          sync.Mutex
	lastRequest time.Time
}

// NewSonarHandler creates a Sonar handler with default config.
func NewSonarHandler(apiKey string) *SonarHandler {
	return NewSonarHandlerWithConfig(DefaultSonarConfig(apiKey))
}

// NewSonarHandlerWithConfig creates a Sonar handler with custom config.
// Zero config fields fall back to the defaults.
func NewSonarHandlerWithConfig(config SonarConfig) *SonarHandler {
	def := DefaultSonarConfig(config.APIKey)
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.ColdTimeout <= 0 {
		config.ColdTimeout = def.ColdTimeout
	}
	if config.WarmTimeout <= 0 {
		config.WarmTimeout = def.WarmTimeout
	}
	return &SonarHandler{
		apiKey:      config.APIKey,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		model:       config.Model,
		httpClient:  &http.Client{},
		retry:       config.Retry.normalized(),
		timeouts:    newTimeouts(config.ColdTimeout, config.WarmTimeout),
		minInterval: config.MinInterval,
	}
}

// Provider returns "sonar".
func (h *SonarHandler) Provider() string { return "sonar" }

// Model returns the current model.
func (h *SonarHandler) Model() string { return h.model }

// SetModel changes the model used for queries.
func (h *SonarHandler) SetModel(model string) { h.model = model }

// sonarRequest is the chat/completions request body.
type sonarRequest struct {
	Model          string          `json:"model"`
	Messages       []sonarMessage  `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type sonarMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaFormat `json:"json_schema"`
}

type jsonSchemaFormat struct {
	Schema map[string]any `json:"schema"`
}

// sonarResponse is the chat/completions response body. Citations and
// search results ride at the top level of the envelope.
type sonarResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Citations     []string       `json:"citations"`
	SearchResults []SearchResult `json:"search_results"`
	Usage         struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Query sends the prompt with schema steering and parses the completion.
func (h *SonarHandler) Query(ctx context.Context, prompt string, schema question.Schema) (Result, error) {
	if h.apiKey == "" {
		return Result{}, ErrMissingAPIKey
	}
	if strings.TrimSpace(prompt) == "" {
		return Result{}, ErrEmptyPrompt
	}

	reqBody := sonarRequest{
		Model:       h.model,
		Messages:    []sonarMessage{{Role: "user", Content: BuildPrompt(prompt, schema)}},
		MaxTokens:   4096,
		Temperature: 0.1, // Low temperature for structured output
	}
	if !schema.Empty() {
		reqBody.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchemaFormat{Schema: schema.JSONSchema()},
		}
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	timeout := h.timeouts.For(schema)
	timer := logging.StartTimer(logging.CategoryAPI, "sonar query")
	defer timer.Stop()

	var res Result
	retries, err := h.retry.Do(ctx, func(attempt int) error {
		aerr := h.attempt(ctx, payload, timeout, schema, &res)
		if aerr != nil {
			logging.APIWarn("sonar attempt %d/%d failed: %v", attempt+1, h.retry.MaxAttempts, aerr)
		}
		return aerr
	})
	res.RetriesUsed = retries
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		logging.APIError("sonar query failed after %d retries: %v", retries, err)
		res.Structured = nil
		res.ParsingSuccess = false
		res.ParsingError = err.Error()
		return res, nil
	}
	logging.APIDebug("sonar query ok: model=%s retries=%d tokens=%d/%d",
		h.model, retries, res.InputTokens, res.OutputTokens)
	return res, nil
}

// attempt posts the request once and fills res on success.
func (h *SonarHandler) attempt(ctx context.Context, payload []byte, timeout time.Duration, schema question.Schema, res *Result) error {
	body, err := h.post(ctx, payload, timeout)
	if err != nil {
		return err
	}

	var sr sonarResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return fmt.Errorf("%w: decode response envelope: %v", ErrParse, err)
	}
	res.RawResponse = body
	res.InputTokens = sr.Usage.PromptTokens
	res.OutputTokens = sr.Usage.CompletionTokens

	if sr.Error != nil {
		return fmt.Errorf("%w: API error: %s", ErrTransient, sr.Error.Message)
	}
	if len(sr.Choices) == 0 {
		return fmt.Errorf("%w: no completion returned", ErrParse)
	}

	content := strings.TrimSpace(sr.Choices[0].Message.Content)
	if content == "" {
		return fmt.Errorf("%w: empty completion content", ErrParse)
	}
	if schema.Empty() {
		// Nothing to validate against; the raw payload is the answer.
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

// post issues one HTTP attempt under its own timeout and classifies the
// outcome: 429 and 5xx are transient, other non-200 statuses are client
// request errors.
func (h *SonarHandler) post(ctx context.Context, payload []byte, timeout time.Duration) ([]byte, error) {
	h.throttle()

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, h.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrClientRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: rate limit exceeded (429)", ErrTransient)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d: %s", ErrTransient, resp.StatusCode, truncate(body, 200))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d: %s", ErrClientRequest, resp.StatusCode, truncate(body, 200))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response body", ErrTransient)
	}
	return body, nil
}

// throttle enforces minimum spacing between requests. The lock is held
// across the sleep so concurrent callers queue up behind it.
func (h *SonarHandler) throttle() {
	if h.minInterval <= 0 {
		return
	}
	h.mu.Lock()
	elapsed := time.Since(h.lastRequest)
	if elapsed < h.minInterval {
		time.Sleep(h.minInterval - elapsed)
	}
	h.lastRequest = time.Now()
	h.mu.Unlock()
}

// ExtractFields flattens a stored Sonar payload: the structured completion
// fields plus citations, search_results, and enriched_citations. The three
// citation keys are always present, empty when the payload has none.
func (h *SonarHandler) ExtractFields(payload json.RawMessage) map[string]any {
	fields := make(map[string]any)

	var sr sonarResponse
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &sr); err != nil {
			logging.APIDebug("extract fields: undecodable payload: %v", err)
		}
	}
	if len(sr.Choices) > 0 {
		if candidate := ExtractJSON(StripReasoning(sr.Choices[0].Message.Content)); candidate != "" {
			var structured map[string]any
			if err := json.Unmarshal([]byte(candidate), &structured); err == nil {
				for k, v := range structured {
					fields[k] = v
				}
			}
		}
	}

	citations := sr.Citations
	if citations == nil {
		citations = []string{}
	}
	results := sr.SearchResults
	if results == nil {
		results = []SearchResult{}
	}
	fields["citations"] = citations
	fields["search_results"] = results
	fields["enriched_citations"] = EnrichCitations(citations, results)
	return fields
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
