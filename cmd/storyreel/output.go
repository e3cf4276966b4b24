package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"storyreel/internal/job"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// printJobSummary renders a job status followed by its scene errors.
func printJobSummary(out io.Writer, status job.Status) {
	fmt.Fprintf(out, "Job %s: %s (%d%%)\n", status.ID, stageLabel(status.Stage), status.Progress)
	if status.Title != "" {
		fmt.Fprintf(out, "Title: %s\n", status.Title)
	}
	if status.OutputPath != "" {
		fmt.Fprintf(out, "Output: %s\n", status.OutputPath)
	}
	if status.ManifestPath != "" {
		fmt.Fprintf(out, "Manifest: %s\n", status.ManifestPath)
	}
	if status.FailureReason != "" {
		fmt.Fprintf(out, "Failure: %s\n", status.FailureReason)
	}
	if len(status.Errors) == 0 {
		return
	}
	rows := make([][]string, 0, len(status.Errors))
	for _, e := range status.Errors {
		rows = append(rows, []string{stageLabel(e.Stage), e.SceneKey, e.Kind, e.Message})
	}
	fmt.Fprintln(out, "Scene errors:")
	fmt.Fprintln(out, tableView{header: []string{"Stage", "Scene", "Kind", "Message"}, rows: rows})
}
