package usage

import "time"

// UsageData is the root structure stored in persistence.
type UsageData struct {
	Version   string          `json:"version"`
	Events    []UsageEvent    `json:"events,omitempty"`
	Aggregate AggregatedStats `json:"aggregate"`
}

// UsageEvent represents a single remote query transaction.
type UsageEvent struct {
	Timestamp    time.Time     `json:"timestamp"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	Operation    string        `json:"operation"` // ask, batch
	RunID        string        `json:"run_id"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Duration     time.Duration `json:"duration_ns"`
}

// AggregatedStats holds counters broken down by dimension.
type AggregatedStats struct {
	Total       TokenCounts            `json:"total"`
	ByProvider  map[string]TokenCounts `json:"by_provider"`
	ByModel     map[string]TokenCounts `json:"by_model"`
	ByOperation map[string]TokenCounts `json:"by_operation"`
	ByRun       map[string]TokenCounts `json:"by_run"`
}

// TokenCounts holds input/output sums plus the query count behind them.
type TokenCounts struct {
	Input   int64 `json:"input"`
	Output  int64 `json:"output"`
	Total   int64 `json:"total"`
	Queries int64 `json:"queries"`
}

func (tc *TokenCounts) Add(input, output int) {
	tc.Input += int64(input)
	tc.Output += int64(output)
	tc.Total += int64(input + output)
	tc.Queries++
}
