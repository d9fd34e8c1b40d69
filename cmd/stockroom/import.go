package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/csvrows"
)

type importFlags struct {
	entity  string
	file    string
	actor   string
	mapping string
}

func newImportCmd(root *rootFlags) *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a CSV file as one all-or-nothing batch",
		Long: "Reads a CSV file with a header row and imports it into one entity.\n" +
			"Every row is checked before anything is written; one bad row rejects the file.\n" +
			"Rows whose natural key already exists are skipped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, root, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.entity, "entity", "e", "", "Entity to import into (required)")
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "CSV file to import (required)")
	cmd.Flags().StringVar(&flags.actor, "actor", "", "Actor id recorded in the audit log (required)")
	cmd.Flags().StringVar(&flags.mapping, "mapping", "", "YAML header mapping file (overrides IMPORT_MAPPING_FILE)")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}

func runImport(cmd *cobra.Command, root *rootFlags, flags importFlags) error {
	if _, err := core.Lookup(flags.entity); err != nil {
		return err
	}

	f, err := os.Open(flags.file)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, root, flags.mapping, func(d *deps) error {
		rows, err := csvrows.ReadRows(f, d.cfg.Import.MaxFileSize)
		if err != nil {
			return fmt.Errorf("reading %s: %w", flags.file, err)
		}

		fmt.Fprintf(out, "Importing %d rows from %s into %s...\n", len(rows), flags.file, flags.entity)

		result, err := d.service.BulkImport(ctx, flags.entity, rows, flags.actor)
		if err != nil {
			return errors.New(core.FormatUserError(err))
		}

		if len(result.Errors) > 0 {
			fmt.Fprintf(out, "\nValidation errors (%d):\n", len(result.Errors))
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  %s\n", e.Error())
			}
			fmt.Fprintln(out)
			return result.Err()
		}

		fmt.Fprintf(out, "Imported: %d rows", result.Imported)
		if result.Skipped > 0 {
			fmt.Fprintf(out, ", %d skipped (already exist)", result.Skipped)
		}
		fmt.Fprintln(out)
		if result.BatchID != "" {
			fmt.Fprintf(out, "Batch: %s\n", result.BatchID)
		}
		return nil
	})
}
