package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"surveyor/cmd/surveyor/ui"
	"surveyor/internal/config"
	"surveyor/internal/export"
	"surveyor/internal/question"
	"surveyor/internal/usage"
	"surveyor/internal/workflow"
)

var (
	runWorkers      int
	runOverwrite    bool
	runMaxQuestions int
	runStorageKind  string
	runDBPath       string
	runFormat       string
	runOutput       string
)

var runCmd = &cobra.Command{
	Use:   "run [batch.yaml]",
	Short: "Expand a batch file and answer every question",
	Long: `Loads a batch definition (template, word sets, schema), expands the
cartesian product, and answers every question. Cached answers are
reported first; the rest go to the provider under the worker limit and
stream back in completion order.

Example batch file:

  template: "Does the ministry of {ministry} in {country} handle cybersecurity?"
  word_sets:
    ministry: [Energy, Finance]
    country: [USA, Germany]
  schema:
    name: cyber_scope
    fields:
      - name: has_responsibility
        type: boolean
        description: Whether the ministry holds cybersecurity responsibilities
        required: true`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Concurrent queries (default: config workers)")
	runCmd.Flags().BoolVar(&runOverwrite, "overwrite", false, "Re-query every question, replacing cached answers")
	runCmd.Flags().IntVar(&runMaxQuestions, "max-questions", 0, "Cap the expansion at the first N questions")
	runCmd.Flags().StringVar(&runStorageKind, "storage", "", "Storage backend: memory or sqlite (default: config)")
	runCmd.Flags().StringVar(&runDBPath, "db", "", "SQLite database path (default: config)")
	runCmd.Flags().StringVar(&runFormat, "format", "csv", "Export format: csv or json")
	runCmd.Flags().StringVar(&runOutput, "output", "", "Export the answer table to this file")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown: completed queries stay cached, in-flight ones
	// are dropped, so an interrupted run resumes where it left off.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, abandoning run")
		cancel()
	}()

	batch, err := config.LoadBatch(args[0])
	if err != nil {
		return err
	}
	set, err := batch.QuestionSet()
	if err != nil {
		return err
	}

	w, store, tracker, err := newWorkflow(ctx, runStorageKind, runDBPath, runWorkers)
	if err != nil {
		return err
	}
	defer store.Close()

	maxQuestions := runMaxQuestions
	if maxQuestions <= 0 {
		maxQuestions = cfg.Workflow.MaxQuestions
	}

	start := time.Now()
	run, err := w.AskAll(ctx, set, workflow.Options{
		Overwrite:    runOverwrite,
		MaxQuestions: maxQuestions,
	})
	if err != nil {
		return err
	}
	logger.Debug("run started",
		zap.String("run_id", run.ID),
		zap.Int("total", run.Sweep.Total))

	expanded := fmt.Sprintf("Expanded %d questions:", run.Sweep.Total)
	if total := set.Count(); total > run.Sweep.Total {
		expanded = fmt.Sprintf("Expanded %d of %d questions:", run.Sweep.Total, total)
	}
	fmt.Printf("%s %s cached, %s need querying\n",
		ui.Title.Render(expanded),
		ui.Hit.Render(fmt.Sprintf("%d", run.Sweep.Hits)),
		ui.Miss.Render(fmt.Sprintf("%d", run.Sweep.Misses)))

	answers := make([]question.Answer, 0, run.Sweep.Total)
	failed := 0
	for a := range run.Answers {
		answers = append(answers, a)
		if a.OK() {
			fmt.Printf("[%d/%d] %s %s\n",
				len(answers), run.Sweep.Total, ui.Hit.Render("✓"), a.QuestionValue)
		} else {
			failed++
			fmt.Printf("[%d/%d] %s %s: %s\n",
				len(answers), run.Sweep.Total, ui.Fail.Render("✗"), a.QuestionValue, a.Error)
		}
	}
	if ctx.Err() != nil {
		fmt.Println(ui.Fail.Render("run interrupted; completed answers were kept"))
	}

	printRunSummary(run, len(answers), failed, tracker.RunTotals(run.ID), time.Since(start))

	if err := tracker.Save(); err != nil {
		logger.Warn("failed to persist usage data", zap.Error(err))
	}

	if runOutput != "" {
		if err := exportAnswers(answers, runFormat, runOutput); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", ui.Label.Render("exported:"), runOutput)
	}
	return nil
}

func printRunSummary(run *workflow.Run, answered, failed int, totals usage.TokenCounts, elapsed time.Duration) {
	rate := 0.0
	if answered > 0 {
		rate = float64(answered-failed) / float64(answered) * 100
	}
	lines := []string{
		fmt.Sprintf("%s %s", ui.Label.Render("run:"), run.ID),
		fmt.Sprintf("%s %s of %d planned (%d cached, %d queried)",
			ui.Label.Render("answered:"),
			ui.Count.Render(fmt.Sprintf("%d", answered)),
			run.Sweep.Total, run.Sweep.Hits, run.Sweep.Misses),
		fmt.Sprintf("%s %d (success rate %.0f%%)", ui.Label.Render("failures:"), failed, rate),
		fmt.Sprintf("%s %d in / %d out across %d queries",
			ui.Label.Render("tokens:"), totals.Input, totals.Output, totals.Queries),
		fmt.Sprintf("%s %s", ui.Label.Render("elapsed:"), elapsed.Round(time.Millisecond)),
	}
	fmt.Println(ui.SummaryBox.Render(strings.Join(lines, "\n")))
}

func exportAnswers(answers []question.Answer, format, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := export.Write(f, export.BuildTable(answers), format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
