package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"hyperlearn/internal/app"
	"hyperlearn/internal/editor"
	"hyperlearn/internal/sandbox"
)

var watchFile string

var watchCmd = &cobra.Command{
	Use:   "watch [tutorial-id]",
	Short: "Edit a tutorial in your own editor and re-run on every save",
	Long: `Selects the tutorial, writes its starter code to --file when the file does not
exist yet, and runs the file again each time it is saved.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			out := cmd.OutOrStdout()
			runs, err := a.Runs(ctx)
			if err != nil {
				return err
			}

			stop, err := a.OnCodeChange(ctx, func(change editor.Change) {
				if change.Reason != editor.ReasonEdit {
					return
				}
				var h sandbox.Handle
				if a.Autorun() {
					h, _ = runs.Current()
				} else {
					var runErr error
					if h, runErr = a.RunCode(ctx); runErr != nil {
						logger.WithError(runErr).Warn("run failed")
						return
					}
				}
				go func() {
					fmt.Fprintf(out, "--- run %s ---\n", h)
					if err := printRun(ctx, runs, h, out); err != nil && !errors.Is(err, sandbox.ErrRunDisposed) && ctx.Err() == nil {
						logger.WithError(err).Warn("print run failed")
					}
				}()
			})
			if err != nil {
				return err
			}
			defer stop()

			t, _, err := a.SelectTutorial(ctx, args[0])
			if err != nil {
				return err
			}
			path := watchFile
			if path == "" {
				path = t.ID + ".html"
			}
			fmt.Fprintf(out, "Watching %s for %q. Press Ctrl+C to stop.\n", path, t.Title)
			return a.WatchFile(ctx, path)
		})
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchFile, "file", "f", "", "file to watch (default <tutorial-id>.html)")
	rootCmd.AddCommand(watchCmd)
}
