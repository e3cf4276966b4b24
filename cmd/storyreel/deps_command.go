package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyreel/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check the external binaries used by the configured backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				detail := s.Detail
				if s.Available {
					detail = s.Path
				}
				rows = append(rows, []string{s.Name, s.Command, yesNo(!s.Optional), yesNo(s.Available), detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tableView{
				header: []string{"Dependency", "Command", "Required", "Available", "Detail"},
				rows:   rows,
			})
			return deps.Missing(statuses)
		},
	}
}
