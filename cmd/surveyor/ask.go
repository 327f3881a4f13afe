package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"surveyor/cmd/surveyor/ui"
	"surveyor/internal/question"
)

var (
	askWords     []string
	askSchema    string
	askOverwrite bool
	askStorage   string
	askDBPath    string
)

var askCmd = &cobra.Command{
	Use:   "ask [template]",
	Short: "Ask a single question, serving it from cache when possible",
	Long: `Renders the template with the --word values and resolves it: a usable
cached answer is served directly, a cached failure is flushed and
re-queried, anything else goes to the provider.

Example:
  surveyor ask "Does {country} have a national cybersecurity strategy?" \
    --word country=France --schema strategy.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringArrayVar(&askWords, "word", nil, "Template parameter as name=value (repeatable)")
	askCmd.Flags().StringVar(&askSchema, "schema", "", "YAML file with the expected answer schema")
	askCmd.Flags().BoolVar(&askOverwrite, "overwrite", false, "Re-query even if a cached answer exists")
	askCmd.Flags().StringVar(&askStorage, "storage", "", "Storage backend: memory or sqlite (default: config)")
	askCmd.Flags().StringVar(&askDBPath, "db", "", "SQLite database path (default: config)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	words, err := parseWordFlags(askWords)
	if err != nil {
		return err
	}
	schema, err := loadSchemaFile(askSchema)
	if err != nil {
		return err
	}
	q, err := question.New(args[0], words, schema)
	if err != nil {
		return err
	}

	w, store, tracker, err := newWorkflow(ctx, askStorage, askDBPath, 1)
	if err != nil {
		return err
	}
	defer store.Close()

	a, err := w.Ask(ctx, q, askOverwrite)
	if err != nil {
		return err
	}
	printAnswer(a)

	if err := tracker.Save(); err != nil {
		logger.Warn("failed to persist usage data", zap.Error(err))
	}
	return nil
}

// parseWordFlags turns repeated name=value pairs into a word set.
func parseWordFlags(pairs []string) (map[string]string, error) {
	words := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid word %q (want name=value)", pair)
		}
		words[name] = value
	}
	return words, nil
}

// loadSchemaFile reads an answer schema definition. An empty path means
// no schema: the provider answers free-form.
func loadSchemaFile(path string) (question.Schema, error) {
	if path == "" {
		return question.Schema{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return question.Schema{}, fmt.Errorf("failed to read schema file: %w", err)
	}
	var s question.Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return question.Schema{}, fmt.Errorf("failed to parse schema file: %w", err)
	}
	if err := s.Validate(); err != nil {
		return question.Schema{}, err
	}
	return s, nil
}

func printAnswer(a question.Answer) {
	fmt.Println(ui.Title.Render(a.QuestionValue))
	if !a.OK() {
		fmt.Printf("  %s %s\n", ui.Fail.Render("error:"), a.Error)
		if a.Response.RetriesUsed > 0 {
			fmt.Printf("  %s %d\n", ui.Label.Render("retries used:"), a.Response.RetriesUsed)
		}
		return
	}
	for _, name := range sortedFieldNames(a.Fields) {
		fmt.Printf("  %s %s\n", ui.Field.Render(name+":"), formatFieldValue(a.Fields[name]))
	}
}

func sortedFieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatFieldValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case bool, int64, float64:
		return fmt.Sprintf("%v", val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
