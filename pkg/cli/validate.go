package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-canvas/pkg/config"
	"github.com/ekaya-inc/ekaya-canvas/pkg/services"
	sqlguard "github.com/ekaya-inc/ekaya-canvas/pkg/sql"
)

// ValidationResult is the JSON payload of the validate command.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Query   string `json:"query,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate [sql]",
		Short: "Check that a statement passes the read-only guard",
		Long: `Check that a statement would be allowed to execute: a single SELECT
with no DROP, DELETE, INSERT, UPDATE, ALTER, CREATE or TRUNCATE anywhere in
its text. Exits 1 when the statement is rejected.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			statement, err := statementInput(args, file, cmd.InOrStdin())
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeInput, err.Error(), nil)
			}
			return runValidate(cmd.Context(), formatter, statement)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the statement from a file (- for stdin)")

	return cmd
}

func statementInput(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case len(args) == 1 && file != "":
		return "", fmt.Errorf("pass either a statement or --file, not both")
	case len(args) == 1:
		return args[0], nil
	case file != "":
		data, err := readInput(file, stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("no statement given")
	}
}

func runValidate(ctx context.Context, formatter *OutputFormatter, statement string) error {
	queries := services.NewQueryService(nil, config.QueryConfig{}, zap.NewNop())

	normalized, err := queries.Validate(ctx, statement)
	if err != nil {
		code := ErrCodeInvalidQuery
		if errors.Is(err, sqlguard.ErrRejectedStatement) {
			code = ErrCodeRejectedStatement
		}
		if formatter.IsJSON() {
			_ = formatter.Success(ValidationResult{Valid: false, Message: err.Error()}, nil)
			return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", code, err.Error()))
		}
		return formatter.Fail(ExitFailure, code, err.Error(), nil)
	}

	return formatter.Success(ValidationResult{Valid: true, Query: normalized}, func(w io.Writer) {
		fmt.Fprintln(w, "✓ Statement is a read-only SELECT")
		if formatter.Verbose && normalized != strings.TrimSpace(statement) {
			fmt.Fprintln(w, normalized)
		}
	})
}
