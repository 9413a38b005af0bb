package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-canvas/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-canvas/pkg/audit"
	"github.com/ekaya-inc/ekaya-canvas/pkg/config"
	"github.com/ekaya-inc/ekaya-canvas/pkg/logging"
	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
	"github.com/ekaya-inc/ekaya-canvas/pkg/querybuilder"
	sqlguard "github.com/ekaya-inc/ekaya-canvas/pkg/sql"
)

// QueryService turns canvas graphs into SQL and runs SQL against connections.
type QueryService interface {
	// Generate validates the graph and synthesizes its SELECT statement.
	Generate(ctx context.Context, graph models.QueryGraph) (*GenerateResult, error)

	// Validate normalizes a statement and applies the read-only guard.
	Validate(ctx context.Context, sqlQuery string) (string, error)

	// Execute guards, limits and runs a statement on a registered connection.
	Execute(ctx context.Context, connectionID, sqlQuery string, limit int) (*ExecuteResult, error)
}

// GenerateResult is the synthesized statement plus anything the caller should review.
type GenerateResult struct {
	Query    string                `json:"query"`
	Warnings []string              `json:"warnings"`
	Aliases  querybuilder.AliasMap `json:"aliases"`
}

// ExecuteResult is what a caller sees after running a statement.
type ExecuteResult struct {
	Columns   []datasource.ColumnInfo `json:"columns"`
	Rows      []map[string]any        `json:"rows"`
	RowCount  int                     `json:"rowCount"`
	Truncated bool                    `json:"truncated"`
	Query     string                  `json:"query"`
}

// GraphValidationError reports a structurally invalid graph.
type GraphValidationError struct {
	Message string
}

func (e *GraphValidationError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match apperrors.ErrInvalidRequest.
func (e *GraphValidationError) Unwrap() error {
	return apperrors.ErrInvalidRequest
}

// SuspiciousValueError is returned when clause values look like injection
// payloads and rejection is enabled.
type SuspiciousValueError struct {
	Findings []*sqlguard.InjectionFinding
}

func (e *SuspiciousValueError) Error() string {
	f := e.Findings[0]
	msg := fmt.Sprintf("suspicious value in %s", f.Field)
	if len(e.Findings) > 1 {
		msg += fmt.Sprintf(" (and %d more)", len(e.Findings)-1)
	}
	return msg
}

func (e *SuspiciousValueError) Unwrap() error {
	return apperrors.ErrInvalidRequest
}

type queryService struct {
	connections ConnectionService
	cfg         config.QueryConfig
	auditor     *audit.SecurityAuditor
	logger      *zap.Logger
}

// NewQueryService creates a query service. connections may be nil when only
// Generate and Validate are used.
func NewQueryService(connections ConnectionService, cfg config.QueryConfig, logger *zap.Logger) QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultRowLimit <= 0 {
		cfg.DefaultRowLimit = sqlguard.DefaultRowLimit
	}
	if cfg.MaxRows < cfg.DefaultRowLimit {
		cfg.MaxRows = max(cfg.DefaultRowLimit, datasource.MaxQueryLimit)
	}
	return &queryService{
		connections: connections,
		cfg:         cfg,
		auditor:     audit.NewSecurityAuditor(logger),
		logger:      logger.Named("query"),
	}
}

// ValidateGraph applies the structural checks that run before synthesis.
func ValidateGraph(graph models.QueryGraph) error {
	if len(graph.Nodes) == 0 {
		return &GraphValidationError{Message: "At least one table node is required"}
	}
	for i, n := range graph.Nodes {
		if n.ID == "" {
			return &GraphValidationError{Message: fmt.Sprintf("Node at index %d missing id", i)}
		}
	}
	for i, e := range graph.Edges {
		if e.Source == "" || e.Target == "" {
			return &GraphValidationError{Message: fmt.Sprintf("Edge at index %d missing source/target", i)}
		}
	}
	return nil
}

func (s *queryService) Generate(ctx context.Context, graph models.QueryGraph) (*GenerateResult, error) {
	if err := ValidateGraph(graph); err != nil {
		return nil, err
	}

	findings := sqlguard.ScanValues(clauseValues(graph.Clauses))
	for _, f := range findings {
		s.auditor.LogSuspiciousValue(ctx, audit.SuspiciousValueDetails{
			Field:       f.Field,
			Fingerprint: f.Fingerprint,
			Rejected:    s.cfg.RejectSuspiciousValues,
		})
	}
	if len(findings) > 0 && s.cfg.RejectSuspiciousValues {
		return nil, &SuspiciousValueError{Findings: findings}
	}

	result, err := querybuilder.Synthesize(graph)
	if err != nil {
		if errors.Is(err, querybuilder.ErrEmptyGraph) {
			return nil, &GraphValidationError{Message: "At least one table node is required"}
		}
		return nil, err
	}

	warnings := append([]string{}, result.Warnings...)
	for _, f := range findings {
		warnings = append(warnings, fmt.Sprintf("value in %s looks like SQL injection (fingerprint %s); clause values are not escaped", f.Field, f.Fingerprint))
	}

	s.logger.Debug("Generated query",
		zap.Int("nodes", len(graph.Nodes)),
		zap.Int("edges", len(graph.Edges)),
		zap.Int("warnings", len(warnings)))

	return &GenerateResult{
		Query:    result.SQL,
		Warnings: warnings,
		Aliases:  result.Aliases,
	}, nil
}

// clauseValues collects the interpolated operands keyed by their position in the graph.
func clauseValues(clauses models.ClauseSet) map[string]string {
	values := make(map[string]string)
	for i, f := range clauses.Filters {
		if !f.Value.IsBlank() {
			values["filters["+strconv.Itoa(i)+"].value"] = f.Value.String()
		}
	}
	for i, h := range clauses.Having {
		if !h.Value.IsBlank() {
			values["having["+strconv.Itoa(i)+"].value"] = h.Value.String()
		}
	}
	return values
}

func (s *queryService) Validate(ctx context.Context, sqlQuery string) (string, error) {
	normalized, err := sqlguard.Normalize(sqlQuery)
	if err != nil {
		return "", err
	}
	if err := sqlguard.ValidateReadOnly(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// effectiveLimit defaults a non-positive limit and clamps it to MaxRows.
func (s *queryService) effectiveLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultRowLimit
	}
	return min(limit, s.cfg.MaxRows)
}

func (s *queryService) Execute(ctx context.Context, connectionID, sqlQuery string, limit int) (*ExecuteResult, error) {
	if err := sqlguard.ValidateReadOnly(sqlQuery); err != nil {
		s.auditor.LogRejectedStatement(ctx, connectionID, sqlQuery, err.Error())
		return nil, err
	}

	normalized, err := sqlguard.Normalize(sqlQuery)
	if err != nil {
		return nil, err
	}

	if s.connections == nil {
		return nil, apperrors.ErrConnectionNotFound
	}
	adapter, err := s.connections.Open(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	defer adapter.Close()

	limit = s.effectiveLimit(limit)
	limited := adapter.ApplyRowLimit(normalized, limit)

	if s.cfg.StatementTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.StatementTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := adapter.Query(ctx, limited, limit)
	if err != nil {
		s.logger.Error("Query execution failed",
			zap.String("connection_id", connectionID),
			zap.String("query", logging.SanitizeQuery(limited)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("query failed: %w", err)
	}

	s.auditor.LogQueryExecution(ctx, connectionID, result.RowCount, time.Since(start))

	return &ExecuteResult{
		Columns:   result.Columns,
		Rows:      result.Rows,
		RowCount:  result.RowCount,
		Truncated: result.Truncated,
		Query:     limited,
	}, nil
}

var _ QueryService = (*queryService)(nil)
