package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"storyreel/internal/job"
	"storyreel/internal/orchestrator"
	"storyreel/internal/services"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			orch, err := ctx.newOrchestrator(orchestrator.Dependencies{})
			if err != nil {
				return err
			}
			status, err := orch.Status(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				if errors.Is(err, services.ErrNotFound) {
					return fmt.Errorf("job %s not found", args[0])
				}
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			printJobSummary(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the status as JSON")
	return cmd
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var stageFilters []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List stored jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			stages := make([]job.Stage, 0, len(stageFilters))
			for _, raw := range stageFilters {
				stage, ok := job.ParseStage(strings.ToLower(strings.TrimSpace(raw)))
				if !ok {
					return fmt.Errorf("unknown stage %q", raw)
				}
				stages = append(stages, stage)
			}
			orch, err := ctx.newOrchestrator(orchestrator.Dependencies{})
			if err != nil {
				return err
			}
			jobs, err := orch.Jobs(cmd.Context(), stages...)
			if err != nil {
				return err
			}
			if jsonOutput {
				statuses := make([]job.Status, 0, len(jobs))
				for _, j := range jobs {
					statuses = append(statuses, j.Status())
				}
				return writeJSON(cmd, statuses)
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, j := range jobs {
				rows = append(rows, []string{
					shortID(j.ID),
					j.Title,
					stageLabel(j.Stage),
					strconv.Itoa(j.Progress) + "%",
					strconv.Itoa(len(j.Errors)),
					formatTime(j.UpdatedAt),
				})
			}
			fmt.Fprintln(out, tableView{
				header: []string{"ID", "Title", "Stage", "Progress", "Errors", "Updated"},
				rows:   rows,
				right:  []int{3, 4},
			})
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&stageFilters, "stage", nil, "Only list jobs in these stages")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print jobs as JSON")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a job that has not finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			orch, err := ctx.newOrchestrator(orchestrator.Dependencies{})
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			if err := orch.Cancel(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s cancelled\n", id)
			return nil
		},
	}
}

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var expired bool

	cmd := &cobra.Command{
		Use:   "cleanup [id]",
		Short: "Remove a job record and its work directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			if expired == (len(args) == 1) {
				return errors.New("specify either a job id or --expired")
			}
			orch, err := ctx.newOrchestrator(orchestrator.Dependencies{})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if expired {
				removed, err := orch.PurgeExpired(cmd.Context())
				fmt.Fprintf(out, "Removed %d expired job(s)\n", removed)
				return err
			}
			id := strings.TrimSpace(args[0])
			if err := orch.Cleanup(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(out, "Removed job %s\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&expired, "expired", false, "Remove every finished job older than pipeline.job_ttl_hours")
	return cmd
}
