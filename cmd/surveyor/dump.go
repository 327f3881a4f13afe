package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"surveyor/internal/export"
	"surveyor/internal/question"
)

var (
	dumpWhere   []string
	dumpFormat  string
	dumpOutput  string
	dumpPretty  bool
	dumpStorage string
	dumpDBPath  string
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print stored answers, optionally filtered and exported",
	Long: `Enumerates every stored answer. --where name=value keeps only answers
whose word set contains that parameter with exactly that value; repeat
the flag to require several parameters at once.

Examples:
  surveyor dump --where country=Germany
  surveyor dump --format csv --output answers.csv
  surveyor dump --pretty`,
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringArrayVar(&dumpWhere, "where", nil, "Filter as name=value on word-set parameters (repeatable)")
	dumpCmd.Flags().StringVar(&dumpFormat, "format", "", "Render as csv or json instead of plain text")
	dumpCmd.Flags().StringVar(&dumpOutput, "output", "", "Write the export to this file (default: stdout)")
	dumpCmd.Flags().BoolVar(&dumpPretty, "pretty", false, "Render answers as markdown")
	dumpCmd.Flags().StringVar(&dumpStorage, "storage", "", "Storage backend: memory or sqlite (default: config)")
	dumpCmd.Flags().StringVar(&dumpDBPath, "db", "", "SQLite database path (default: config)")
}

func runDump(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	filters, err := parseWordFlags(dumpWhere)
	if err != nil {
		return err
	}

	w, store, _, err := newWorkflow(ctx, dumpStorage, dumpDBPath, 1)
	if err != nil {
		return err
	}
	defer store.Close()

	answers, err := w.DumpAnswers(ctx, filters)
	if err != nil {
		return err
	}

	format := dumpFormat
	if format == "" && dumpOutput != "" {
		format = "csv"
	}
	if format != "" {
		if dumpOutput != "" {
			if err := exportAnswers(answers, format, dumpOutput); err != nil {
				return err
			}
			fmt.Printf("exported %d answers to %s\n", len(answers), dumpOutput)
			return nil
		}
		return export.Write(os.Stdout, export.BuildTable(answers), format)
	}

	if dumpPretty {
		out, err := renderMarkdown(answers)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}

	for _, a := range answers {
		printAnswer(a)
		fmt.Println()
	}
	fmt.Printf("%d stored answers\n", len(answers))
	return nil
}

func renderMarkdown(answers []question.Answer) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Stored answers (%d)\n\n", len(answers))
	for _, a := range answers {
		fmt.Fprintf(&b, "## %s\n\n", a.QuestionValue)
		if !a.OK() {
			fmt.Fprintf(&b, "**error:** %s\n\n", a.Error)
			continue
		}
		for _, name := range sortedFieldNames(a.Fields) {
			fmt.Fprintf(&b, "- **%s**: %s\n", name, formatFieldValue(a.Fields[name]))
		}
		b.WriteString("\n")
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return "", fmt.Errorf("failed to build markdown renderer: %w", err)
	}
	return renderer.Render(b.String())
}
