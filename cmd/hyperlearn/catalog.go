package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"hyperlearn/internal/app"
	"hyperlearn/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the tutorial catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import [glob]",
	Short: "Replace the catalog with tutorials read from YAML files",
	Long: `Reads every YAML file matching the glob (doublestar syntax, for example
"tutorials/**/*.yaml") and replaces the stored catalog with their tutorials.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tutorials, err := catalog.LoadGlob(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.ImportCatalog(ctx, tutorials); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d tutorials.\n", len(tutorials))
			return nil
		})
	},
}

func init() {
	catalogCmd.AddCommand(catalogImportCmd)
	rootCmd.AddCommand(catalogCmd)
}
