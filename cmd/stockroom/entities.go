package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/stockroom/internal/core"
)

func newEntitiesCmd() *cobra.Command {
	var showFields bool

	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List registered entities and their fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, def := range core.All() {
				fmt.Fprintf(tw, "%s\t%s\tkey: %s\n", def.Info.Key, def.Info.Label, def.Info.NaturalKey)
				if !showFields {
					continue
				}
				for _, f := range def.FieldSpecs {
					fmt.Fprintf(tw, "  %s\t%s\t%s\n", f.Name, f.Type, fieldFlags(f))
				}
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&showFields, "fields", false, "Also list each entity's fields")
	return cmd
}

func fieldFlags(f core.FieldSpec) string {
	var flags []string
	if f.Required {
		flags = append(flags, "required")
	}
	if f.Derived {
		flags = append(flags, "derived")
	}
	if len(f.Aliases) > 0 {
		flags = append(flags, "aliases: "+strings.Join(f.Aliases, ", "))
	}
	return strings.Join(flags, "; ")
}
