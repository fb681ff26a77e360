package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hyperlearn/internal/app"
	"hyperlearn/internal/domain"
)

var showJSON bool

var tutorialsCmd = &cobra.Command{
	Use:   "tutorials [filter]",
	Short: "List tutorials, optionally filtered by title or tag",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := ""
		if len(args) == 1 {
			filter = args[0]
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			tutorials, err := a.Tutorials(ctx, filter)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tDIFFICULTY\tDURATION\tTAGS")
			for _, t := range tutorials {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Difficulty, t.Duration, strings.Join(t.Tags, ","))
			}
			return w.Flush()
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a tutorial with its starter code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			t, err := a.Tutorial(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if showJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(t)
			}
			fmt.Fprintf(out, "%s (%s, %s)\n\n%s\n\n", t.Title, t.Difficulty, t.Duration, t.Content)
			fmt.Fprintf(out, "Starter code:\n%s\n\nHint: %s\n", t.StarterCode, t.AnswerHint)
			return nil
		})
	},
}

var notesCmd = &cobra.Command{
	Use:   "notes [id] [text]",
	Short: "Show or save notes for a tutorial",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if len(args) == 2 {
				if _, err := a.SaveNotes(ctx, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Notes saved.")
				return nil
			}
			progress, err := a.Progress(ctx, args[0])
			if err != nil {
				return err
			}
			if notes, ok := progress[domain.ProgressNotesField].(string); ok {
				fmt.Fprintln(cmd.OutOrStdout(), notes)
			}
			return nil
		})
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress [id] [field=value...]",
	Short: "Show a tutorial's progress or merge fields into it",
	Long: `Without fields, prints the stored progress. Each field=value pair is merged
into the stored progress; values parse as JSON when they can (true, 3, "x").`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		partial, err := parseFields(args[1:])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			var progress domain.Progress
			if len(partial) > 0 {
				progress, err = a.UpdateProgress(ctx, args[0], partial)
			} else {
				progress, err = a.Progress(ctx, args[0])
			}
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(progress))
			for k := range progress {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%v\n", k, progress[k])
			}
			return nil
		})
	},
}

func parseFields(pairs []string) (domain.Progress, error) {
	out := domain.Progress{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected field=value, got %q", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(tutorialsCmd, showCmd, notesCmd, progressCmd)
}
