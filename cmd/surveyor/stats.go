package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"surveyor/cmd/surveyor/ui"
	"surveyor/internal/usage"
)

var (
	statsStorage string
	statsDBPath  string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored answer counts and token usage",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsStorage, "storage", "", "Storage backend: memory or sqlite (default: config)")
	statsCmd.Flags().StringVar(&statsDBPath, "db", "", "SQLite database path (default: config)")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openStore(statsStorage, statsDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		return err
	}

	tracker, err := usage.NewTracker(workspace)
	if err != nil {
		return err
	}
	stats := tracker.Stats()

	lines := []string{
		fmt.Sprintf("%s %s", ui.Label.Render("stored answers:"), ui.Count.Render(fmt.Sprintf("%d", count))),
		fmt.Sprintf("%s %d in / %d out across %d queries",
			ui.Label.Render("tokens:"), stats.Total.Input, stats.Total.Output, stats.Total.Queries),
	}
	if len(stats.ByProvider) > 0 {
		lines = append(lines, ui.Label.Render("by provider:"))
		lines = append(lines, statLines(stats.ByProvider)...)
	}
	if len(stats.ByModel) > 0 {
		lines = append(lines, ui.Label.Render("by model:"))
		lines = append(lines, statLines(stats.ByModel)...)
	}
	fmt.Println(ui.SummaryBox.Render(strings.Join(lines, "\n")))
	return nil
}

func statLines(counts map[string]usage.TokenCounts) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		tc := counts[k]
		lines = append(lines, fmt.Sprintf("  %s: %d in / %d out (%d queries)",
			k, tc.Input, tc.Output, tc.Queries))
	}
	return lines
}
