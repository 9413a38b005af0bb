package cli

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-canvas/pkg/config"
	"github.com/ekaya-inc/ekaya-canvas/pkg/services"
	sqlguard "github.com/ekaya-inc/ekaya-canvas/pkg/sql"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	File         string
	Limit        int
	RejectUnsafe bool
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate -f <graph.json|graph.yaml>",
		Short: "Generate a SELECT statement from a graph file",
		Long: `Generate the SELECT statement for a query builder graph.

The SQL is printed to stdout and warnings to stderr. Clause values are
interpolated without escaping; use --reject-unsafe to fail on values that
look like SQL injection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "graph file (.json, .yaml, .yml, or - for stdin)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "append LIMIT n when the statement has none")
	cmd.Flags().BoolVar(&opts.RejectUnsafe, "reject-unsafe", false, "fail when a clause value looks like SQL injection")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runGenerate(rootOpts *RootOptions, opts *GenerateOptions, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	graph, err := LoadGraph(opts.File, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
	}
	formatter.VerboseLog("Loaded %d node(s) and %d edge(s) from %s", len(graph.Nodes), len(graph.Edges), opts.File)

	queries := services.NewQueryService(nil, config.QueryConfig{RejectSuspiciousValues: opts.RejectUnsafe}, zap.NewNop())
	result, err := queries.Generate(cmd.Context(), graph)
	if err != nil {
		var suspicious *services.SuspiciousValueError
		if errors.As(err, &suspicious) {
			fields := make([]string, len(suspicious.Findings))
			for i, f := range suspicious.Findings {
				fields[i] = f.Field
			}
			return formatter.Fail(ExitFailure, ErrCodeSuspiciousValue, err.Error(), map[string]any{"fields": fields})
		}
		return formatter.Fail(ExitFailure, ErrCodeInvalidGraph, err.Error(), nil)
	}

	if opts.Limit > 0 {
		result.Query = sqlguard.EnsureRowLimit(result.Query, opts.Limit)
	}

	for _, w := range result.Warnings {
		formatter.Warn("%s", w)
	}
	for _, node := range slices.Sorted(maps.Keys(result.Aliases)) {
		formatter.VerboseLog("alias %s -> %s", node, result.Aliases[node])
	}

	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintln(w, result.Query)
	})
}
