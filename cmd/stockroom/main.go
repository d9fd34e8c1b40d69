// Package main provides the stockroom command-line tool for imports, audit
// queries and schema management.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/JonMunkholm/stockroom/internal/core/entities" // Register all entities
)

var version = "0.1.0-dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	rootCmd := &cobra.Command{
		Use:           "stockroom",
		Short:         "Validated, audited writes for inventory and supplier records",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Environment file to load if present")

	rootCmd.AddCommand(
		newImportCmd(&flags),
		newAuditCmd(&flags),
		newHistoryCmd(&flags),
		newEntitiesCmd(),
		newMigrateCmd(&flags),
	)

	return rootCmd
}
