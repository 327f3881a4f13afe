package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	clearYes     bool
	clearStorage string
	clearDBPath  string
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every stored answer",
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm removal of all stored answers")
	clearCmd.Flags().StringVar(&clearStorage, "storage", "", "Storage backend: memory or sqlite (default: config)")
	clearCmd.Flags().StringVar(&clearDBPath, "db", "", "SQLite database path (default: config)")
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		return errors.New("clear removes every stored answer; pass --yes to confirm")
	}

	ctx := context.Background()
	store, err := openStore(clearStorage, clearDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		return err
	}
	if err := store.Clear(ctx); err != nil {
		return err
	}
	fmt.Printf("cleared %d stored answers\n", count)
	return nil
}
