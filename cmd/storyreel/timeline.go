package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"storyreel/internal/assembly"
	"storyreel/internal/textutil"
)

func newTimelineCommand(ctx *commandContext) *cobra.Command {
	var format string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "timeline <script>",
		Short: "Parse a script and print the planned timeline without generating",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			parser, err := parserFor(cfg, format, args[0])
			if err != nil {
				return err
			}
			parsed, err := parser.Parse(string(raw))
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, parsed)
			}

			timeline := assembly.BuildTimeline(parsed.Scenes, nil, nil, nil, "")
			rows := make([][]string, 0, len(timeline.Entries))
			for idx, entry := range timeline.Entries {
				rows = append(rows, []string{
					strconv.Itoa(idx + 1),
					entry.Scene.Key,
					formatClock(entry.Start),
					formatSeconds(entry.Duration),
					textutil.Excerpt(entry.Scene.Narration, 40),
					textutil.Excerpt(entry.Scene.Visuals, 30),
					textutil.Excerpt(entry.Scene.OnScreenText, 24),
				})
			}
			out := cmd.OutOrStdout()
			if parsed.Title != "" {
				fmt.Fprintf(out, "Title: %s\n", parsed.Title)
			}
			fmt.Fprintln(out, tableView{
				header: []string{"#", "Scene", "Start", "Duration", "Narration", "Visuals", "On screen"},
				rows:   rows,
				footer: []string{"", "", "", formatSeconds(timeline.Duration)},
				right:  []int{0, 2, 3},
			})
			fmt.Fprintf(out, "%d scenes, total %s\n", len(timeline.Entries), formatSeconds(timeline.Duration))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Script format: auto, text, or yaml (defaults to file extension)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the parsed script as JSON")
	return cmd
}
