package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"hyperlearn/internal/app"
	"hyperlearn/internal/domain"
	"hyperlearn/internal/sandbox"
)

var (
	runFile    string
	runPreview bool
)

var runCmd = &cobra.Command{
	Use:   "run [tutorial-id]",
	Short: "Run a tutorial's starter code or a local document",
	Long: `Runs the starter code of a tutorial, or the document given with --file, in a
fresh sandbox and prints its console output.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 0) == (runFile == "") {
			return fmt.Errorf("pass either a tutorial id or --file")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			document, err := runDocument(ctx, a, args)
			if err != nil {
				return err
			}
			h, err := a.Run(ctx, document)
			if err != nil {
				return err
			}
			runs, err := a.Runs(ctx)
			if err != nil {
				return err
			}
			if err := printRun(ctx, runs, h, cmd.OutOrStdout()); err != nil {
				return err
			}
			if runPreview {
				markup, err := runs.Preview(h)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n--- preview ---\n%s\n", markup)
			}
			return nil
		})
	},
}

func runDocument(ctx context.Context, a *app.App, args []string) (string, error) {
	if runFile != "" {
		data, err := os.ReadFile(runFile)
		if err != nil {
			return "", fmt.Errorf("read document: %w", err)
		}
		return string(data), nil
	}
	t, err := a.Tutorial(ctx, args[0])
	if err != nil {
		return "", err
	}
	return t.StarterCode, nil
}

func formatLine(l domain.RunLine) string {
	if l.Kind == domain.LineLog {
		return l.Text
	}
	return fmt.Sprintf("[%s] %s", l.Kind, l.Text)
}

// printRun streams a run's lines to w until the run finishes or is
// superseded.
func printRun(ctx context.Context, runs sandbox.Runner, h sandbox.Handle, w io.Writer) error {
	var (
		mu   sync.Mutex
		last int
	)
	write := func(l domain.RunLine) {
		mu.Lock()
		defer mu.Unlock()
		if l.Seq <= last {
			return
		}
		last = l.Seq
		fmt.Fprintln(w, formatLine(l))
	}

	cancel, err := runs.Subscribe(h, write)
	if err != nil {
		return err
	}
	defer cancel()

	if err := runs.Wait(ctx, h); err != nil {
		return err
	}
	lines, err := runs.Lines(h)
	if err != nil {
		return err
	}
	for _, l := range lines {
		write(l)
	}
	return nil
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "run this document instead of a tutorial")
	runCmd.Flags().BoolVar(&runPreview, "preview", false, "print the sanitized document after the run")
	rootCmd.AddCommand(runCmd)
}
