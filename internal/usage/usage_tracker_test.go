package usage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestTracker_TrackAggregatesAndPersists(t *testing.T) {
	ws := t.TempDir()
	tracker, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	// Avoid background autosave during the test (debounce uses AfterFunc).
	tracker.dirty = true

	tracker.Track(UsageEvent{Provider: "sonar", Model: "sonar", Operation: "batch", RunID: "run_1", InputTokens: 10, OutputTokens: 5})
	tracker.Track(UsageEvent{Provider: "sonar", Model: "sonar", Operation: "batch", RunID: "run_1", InputTokens: 2, OutputTokens: 3})

	stats := tracker.Stats()
	if stats.Total.Input != 12 || stats.Total.Output != 8 || stats.Total.Total != 20 {
		t.Fatalf("Total=%+v, want input=12 output=8 total=20", stats.Total)
	}
	if stats.Total.Queries != 2 {
		t.Fatalf("Total.Queries=%d, want 2", stats.Total.Queries)
	}
	if got := stats.ByProvider["sonar"]; got.Total != 20 {
		t.Fatalf("ByProvider[sonar]=%+v, want total=20", got)
	}
	if got := stats.ByModel["sonar"]; got.Total != 20 {
		t.Fatalf("ByModel[sonar]=%+v, want total=20", got)
	}
	if got := stats.ByOperation["batch"]; got.Total != 20 {
		t.Fatalf("ByOperation[batch]=%+v, want total=20", got)
	}
	if got := tracker.RunTotals("run_1"); got.Total != 20 || got.Queries != 2 {
		t.Fatalf("RunTotals=%+v, want total=20 queries=2", got)
	}

	if err := tracker.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(ws, ".surveyor", "usage.json"))
	if err != nil {
		t.Fatalf("read usage.json: %v", err)
	}
	var persisted UsageData
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("unmarshal usage.json: %v", err)
	}
	if persisted.Aggregate.Total.Total != 20 {
		t.Fatalf("persisted total=%d, want 20", persisted.Aggregate.Total.Total)
	}
}

func TestTracker_LoadExisting(t *testing.T) {
	ws := t.TempDir()
	first, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	first.dirty = true
	first.Track(UsageEvent{Provider: "gemini", Model: "gemini-2.5-flash", Operation: "ask", InputTokens: 7, OutputTokens: 3})
	if err := first.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker (reload): %v", err)
	}
	stats := second.Stats()
	if stats.Total.Total != 10 {
		t.Fatalf("reloaded total=%d, want 10", stats.Total.Total)
	}
	if got := stats.ByProvider["gemini"]; got.Queries != 1 {
		t.Fatalf("reloaded ByProvider[gemini]=%+v, want queries=1", got)
	}
}
