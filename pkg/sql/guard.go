package sql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultRowLimit is the row cap appended to statements that have none.
const DefaultRowLimit = 100

// ErrRejectedStatement is the sentinel wrapped by every guard rejection.
var ErrRejectedStatement = errors.New("statement rejected")

// DangerousKeywords are refused anywhere in a statement, case-insensitively.
// The match is a plain substring test, so identifiers such as created_at or
// updated_at are refused as well.
var DangerousKeywords = []string{"DROP", "DELETE", "INSERT", "UPDATE", "ALTER", "CREATE", "TRUNCATE"}

// RejectedStatementError explains why a statement may not be executed.
type RejectedStatementError struct {
	Reason  string
	Keyword string
}

func (e *RejectedStatementError) Error() string {
	if e.Keyword != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Keyword)
	}
	return e.Reason
}

// Unwrap lets errors.Is match ErrRejectedStatement.
func (e *RejectedStatementError) Unwrap() error {
	return ErrRejectedStatement
}

// IsReadOnlySelect reports whether the trimmed text starts with SELECT.
func IsReadOnlySelect(text string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(text)), "SELECT")
}

// EnsureRowLimit appends "LIMIT n" on a new line unless the text already
// mentions LIMIT anywhere. A cap of zero or less uses DefaultRowLimit.
func EnsureRowLimit(text string, limit int) string {
	if limit <= 0 {
		limit = DefaultRowLimit
	}
	if strings.Contains(strings.ToUpper(text), "LIMIT") {
		return text
	}
	return text + "\nLIMIT " + strconv.Itoa(limit)
}

// CheckDangerousKeywords returns the first denylisted keyword found in text.
func CheckDangerousKeywords(text string) (string, bool) {
	upper := strings.ToUpper(text)
	for _, kw := range DangerousKeywords {
		if strings.Contains(upper, kw) {
			return kw, true
		}
	}
	return "", false
}

// ValidateReadOnly applies the execution rules: the statement must be a SELECT
// and must not contain a denylisted keyword.
func ValidateReadOnly(text string) error {
	if !IsReadOnlySelect(text) {
		return &RejectedStatementError{Reason: "only SELECT queries are allowed"}
	}
	if kw, found := CheckDangerousKeywords(text); found {
		return &RejectedStatementError{Reason: "query contains forbidden keyword", Keyword: kw}
	}
	return nil
}
