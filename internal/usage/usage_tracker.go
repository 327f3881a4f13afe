// Package usage records token consumption per remote query and keeps
// aggregated totals across runs in <workspace>/.surveyor/usage.json.
package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Tracker manages token usage recording and persistence.
type Tracker struct {
	mu       sync.Mutex
	data     UsageData
	filePath string
	dirty    bool
}

// NewTracker creates a usage tracker persisted under the workspace.
// Existing data is loaded; a corrupt or missing file starts fresh.
func NewTracker(workspacePath string) (*Tracker, error) {
	dir := filepath.Join(workspacePath, ".surveyor")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .surveyor dir: %w", err)
	}

	t := &Tracker{
		filePath: filepath.Join(dir, "usage.json"),
		data: UsageData{
			Version: "1.0",
			Aggregate: AggregatedStats{
				ByProvider:  make(map[string]TokenCounts),
				ByModel:     make(map[string]TokenCounts),
				ByOperation: make(map[string]TokenCounts),
				ByRun:       make(map[string]TokenCounts),
			},
		},
	}
	_ = t.Load()
	return t, nil
}

// Load reads the usage data from disk.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &t.data); err != nil {
		return err
	}

	// Re-initialize maps if the file was empty or partial.
	if t.data.Aggregate.ByProvider == nil {
		t.data.Aggregate.ByProvider = make(map[string]TokenCounts)
	}
	if t.data.Aggregate.ByModel == nil {
		t.data.Aggregate.ByModel = make(map[string]TokenCounts)
	}
	if t.data.Aggregate.ByOperation == nil {
		t.data.Aggregate.ByOperation = make(map[string]TokenCounts)
	}
	if t.data.Aggregate.ByRun == nil {
		t.data.Aggregate.ByRun = make(map[string]TokenCounts)
	}
	return nil
}

// Save writes the usage data to disk.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked()
}

func (t *Tracker) saveLocked() error {
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(t.filePath, data, 0644)
}

// Track records one query's token usage.
func (t *Tracker) Track(event UsageEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	t.data.Events = append(t.data.Events, event)

	t.data.Aggregate.Total.Add(event.InputTokens, event.OutputTokens)
	addToMap(t.data.Aggregate.ByProvider, event.Provider, event.InputTokens, event.OutputTokens)
	addToMap(t.data.Aggregate.ByModel, event.Model, event.InputTokens, event.OutputTokens)
	addToMap(t.data.Aggregate.ByOperation, event.Operation, event.InputTokens, event.OutputTokens)
	if event.RunID != "" {
		addToMap(t.data.Aggregate.ByRun, event.RunID, event.InputTokens, event.OutputTokens)
	}

	// Debounced auto-save.
	if !t.dirty {
		t.dirty = true
		time.AfterFunc(5*time.Second, func() {
			_ = t.Save()
			t.mu.Lock()
			t.dirty = false
			t.mu.Unlock()
		})
	}
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() AggregatedStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.data.Aggregate
	stats.ByProvider = copyTokenCountsMap(stats.ByProvider)
	stats.ByModel = copyTokenCountsMap(stats.ByModel)
	stats.ByOperation = copyTokenCountsMap(stats.ByOperation)
	stats.ByRun = copyTokenCountsMap(stats.ByRun)
	return stats
}

// RunTotals returns the counts recorded against one run ID.
func (t *Tracker) RunTotals(runID string) TokenCounts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data.Aggregate.ByRun[runID]
}

func copyTokenCountsMap(src map[string]TokenCounts) map[string]TokenCounts {
	if src == nil {
		return nil
	}
	dst := make(map[string]TokenCounts, len(src))
	for key, counts := range src {
		dst[key] = counts
	}
	return dst
}

func addToMap(m map[string]TokenCounts, key string, input, output int) {
	entry := m[key]
	entry.Add(input, output)
	m[key] = entry
}
