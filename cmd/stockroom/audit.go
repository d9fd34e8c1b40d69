package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/stockroom/internal/core"
)

type auditFlags struct {
	workflow string
	action   string
	actor    string
	since    time.Duration
	limit    int
	offset   int
}

func newAuditCmd(root *rootFlags) *cobra.Command {
	var flags auditFlags

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List audit entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, root, flags)
		},
	}

	cmd.Flags().StringVar(&flags.workflow, "workflow", "", "Only entries for this entity")
	cmd.Flags().StringVar(&flags.action, "action", "", "Only this action (create, update, delete)")
	cmd.Flags().StringVar(&flags.actor, "actor", "", "Only entries by this actor")
	cmd.Flags().DurationVar(&flags.since, "since", 0, "Only entries newer than this (e.g. 24h)")
	cmd.Flags().IntVar(&flags.limit, "limit", core.DefaultAuditLimit, "Maximum entries to show")
	cmd.Flags().IntVar(&flags.offset, "offset", 0, "Entries to skip")

	return cmd
}

func runAudit(cmd *cobra.Command, root *rootFlags, flags auditFlags) error {
	filter := core.AuditFilter{
		Workflow: flags.workflow,
		Action:   core.AuditAction(flags.action),
		ActorID:  flags.actor,
		Limit:    flags.limit,
		Offset:   flags.offset,
	}
	if flags.since > 0 {
		filter.From = time.Now().Add(-flags.since)
	}

	ctx := cmd.Context()
	return withDeps(ctx, root, "", func(d *deps) error {
		entries, err := d.service.QueryAudit(ctx, filter)
		if err != nil {
			return err
		}
		return printAudit(cmd.OutOrStdout(), entries)
	})
}

func newHistoryCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "history <entity> <id>",
		Short: "Show every audit entry for one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, root, "", func(d *deps) error {
				entries, err := d.service.RecordHistory(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printAudit(cmd.OutOrStdout(), entries)
			})
		},
	}
}

func printAudit(out io.Writer, entries []core.AuditEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No audit entries found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tWORKFLOW\tRECORD\tACTOR\tBATCH")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format(time.RFC3339), e.Action, e.Workflow, e.RecordID, e.ActorID, e.BatchID)
	}
	return tw.Flush()
}
