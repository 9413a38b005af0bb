// Package sql holds the checks applied to SQL text before it reaches a user
// database: statement normalization, the read-only guard and injection scanning.
package sql

import (
	"errors"
	"strings"
)

var (
	// ErrMultipleStatements indicates the text contains more than one statement.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
	// ErrEmptyStatement indicates the text is blank after normalization.
	ErrEmptyStatement = errors.New("query is empty")
)

// Normalize trims the statement, strips one trailing semicolon and rejects any
// other semicolon that is not inside a string literal, quoted identifier or comment.
func Normalize(statement string) (string, error) {
	normalized := stripTrailingSemicolon(strings.TrimSpace(statement))
	if normalized == "" {
		return "", ErrEmptyStatement
	}
	if hasSemicolonOutsideStrings(normalized) {
		return "", ErrMultipleStatements
	}
	return normalized, nil
}

// hasSemicolonOutsideStrings scans the text with a small state machine.
func hasSemicolonOutsideStrings(text string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateLineComment
		stateBlockComment
	)

	runes := []rune(text)
	state := stateNormal
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateNormal:
			switch {
			case c == ';':
				return true
			case c == '\'':
				state = stateSingleQuote
			case c == '"':
				state = stateDoubleQuote
			case c == '-' && next == '-':
				state = stateLineComment
				i++
			case c == '/' && next == '*':
				state = stateBlockComment
				i++
			}
		case stateSingleQuote:
			// '' re-enters the literal on the next rune; \' is skipped.
			if c == '\\' {
				i++
			} else if c == '\'' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if c == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}
	return false
}

// stripTrailingSemicolon removes one trailing semicolon and the whitespace around it.
func stripTrailingSemicolon(text string) string {
	text = strings.TrimRight(text, " \t\n\r")
	if strings.HasSuffix(text, ";") {
		text = strings.TrimRight(strings.TrimSuffix(text, ";"), " \t\n\r")
	}
	return text
}
