package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"surveyor/internal/config"
	"surveyor/internal/logging"
	"surveyor/internal/query"
	"surveyor/internal/storage"
	"surveyor/internal/usage"
	"surveyor/internal/workflow"
)

const version = "0.3.0"

var (
	// Global flags
	verbose   bool
	cfgPath   string
	workspace string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "surveyor",
	Short: "surveyor - cache-aware batch research over question templates",
	Long: `surveyor expands a parameterized question template over word lists,
answers every combination through an LLM with schema-constrained output,
and caches each outcome so repeated runs only pay for what is new.

Answers stream back as they settle: cached answers first, fresh ones in
completion order.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to resolve workspace: %w", err)
			}
		}

		path := cfgPath
		if path == "" {
			path = config.DefaultPath(workspace)
		}
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := logging.Initialize(workspace, logging.Settings{
			Debug:      cfg.Logging.Debug,
			Level:      cfg.Logging.Level,
			JSONFormat: cfg.Logging.JSONFormat,
			Categories: cfg.Logging.Categories,
		}); err != nil {
			return err
		}
		logger.Debug("configuration loaded",
			zap.String("path", path),
			zap.String("workspace", workspace))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the surveyor version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("surveyor %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default: <workspace>/.surveyor/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore opens the configured storage backend, honoring per-command
// overrides. Relative sqlite paths resolve against the workspace.
func openStore(kindOverride, pathOverride string) (storage.Storage, error) {
	kind := cfg.Storage.Kind
	if kindOverride != "" {
		kind = kindOverride
	}
	path := cfg.Storage.Path
	if pathOverride != "" {
		path = pathOverride
	}
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(workspace, path)
	}
	return storage.Open(kind, path)
}

// buildHandler constructs the configured query provider.
func buildHandler(ctx context.Context) (query.Handler, error) {
	return query.New(ctx, query.Options{
		Provider:    cfg.Provider.Name,
		APIKey:      cfg.Provider.APIKey,
		Model:       cfg.Provider.Model,
		BaseURL:     cfg.Provider.BaseURL,
		ColdTimeout: cfg.GetColdTimeout(),
		WarmTimeout: cfg.GetWarmTimeout(),
		Retry:       query.RetryPolicy{MaxAttempts: cfg.Provider.MaxRetries},
	})
}

// newWorkflow wires provider, storage, and usage tracking together. The
// caller owns the returned store's Close.
func newWorkflow(ctx context.Context, kindOverride, pathOverride string, workers int) (*workflow.Workflow, storage.Storage, *usage.Tracker, error) {
	handler, err := buildHandler(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := openStore(kindOverride, pathOverride)
	if err != nil {
		return nil, nil, nil, err
	}
	tracker, err := usage.NewTracker(workspace)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	if workers <= 0 {
		workers = cfg.Workflow.Workers
	}
	w := workflow.New(handler, store, workflow.Config{Workers: workers, Tracker: tracker})
	return w, store, tracker, nil
}
