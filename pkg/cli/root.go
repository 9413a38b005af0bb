// Package cli implements the ekaya-canvas command line: SQL generation from
// graph files, read-only validation and join suggestions, all offline.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Version string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ekaya-canvas CLI.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{Version: version}

	cmd := &cobra.Command{
		Use:   "ekaya-canvas",
		Short: "Turn query builder graphs into SQL",
		Long: `Turn visual query builder graphs into SELECT statements.

Graphs are JSON or YAML files with nodes, edges and clauses, the same
payload the canvas posts to /api/generate.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSuggestCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
