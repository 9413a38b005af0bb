package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
	"github.com/ekaya-inc/ekaya-canvas/pkg/querybuilder"
)

// SuggestResult is the JSON payload of the suggest command.
type SuggestResult struct {
	Suggestions []models.JoinSuggestion `json:"suggestions"`
}

// NewSuggestCommand creates the suggest command.
func NewSuggestCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		schemaFile string
		tables     []string
	)

	cmd := &cobra.Command{
		Use:   "suggest -s <schema.json> [--tables a,b]",
		Short: "Suggest join edges from a saved schema",
		Long: `Suggest join edges between tables using declared foreign keys and
columns named after another table (customer_id -> customers.id).

The schema file is the response of GET /api/connections/{id}/schema.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			schema, err := LoadSchema(schemaFile, cmd.InOrStdin())
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
			}
			formatter.VerboseLog("Loaded %d table(s) and %d relationship(s)", len(schema.Tables), len(schema.Relationships))

			for _, t := range tables {
				if schema.Table(t) == nil {
					return formatter.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("table %q is not in the schema", t), nil)
				}
			}

			suggestions := querybuilder.SuggestJoins(schema, tables)
			if suggestions == nil {
				suggestions = []models.JoinSuggestion{}
			}

			return formatter.Success(SuggestResult{Suggestions: suggestions}, func(w io.Writer) {
				if len(suggestions) == 0 {
					fmt.Fprintln(w, "No joins found")
					return
				}
				for _, s := range suggestions {
					fmt.Fprintf(w, "%s.%s = %s.%s  (%s)\n", s.SourceTable, s.SourceColumn, s.TargetTable, s.TargetColumn, strings.ReplaceAll(s.Origin, "_", " "))
				}
			})
		},
	}

	cmd.Flags().StringVarP(&schemaFile, "schema", "s", "", "schema file (.json, .yaml, or - for stdin)")
	cmd.Flags().StringSliceVar(&tables, "tables", nil, "restrict suggestions to these tables")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}
