package sql

import (
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionFinding describes a clause value that looks like a SQL injection payload.
type InjectionFinding struct {
	Field       string // Where the value came from, e.g. "filters[0].value"
	Value       string
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// ScanValue runs libinjection over one interpolated value.
// Returns nil when the value looks clean.
//
//	ScanValue("filters[0].value", "'; DROP TABLE users--")
//	// &InjectionFinding{Field: "filters[0].value", Fingerprint: "s;T(c" (or similar)}
func ScanValue(field, value string) *InjectionFinding {
	if value == "" {
		return nil
	}
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionFinding{
		Field:       field,
		Value:       value,
		Fingerprint: string(fingerprint),
	}
}

// ScanValues scans every value and returns the findings ordered by field.
func ScanValues(values map[string]string) []*InjectionFinding {
	fields := make([]string, 0, len(values))
	for f := range values {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var findings []*InjectionFinding
	for _, f := range fields {
		if finding := ScanValue(f, values[f]); finding != nil {
			findings = append(findings, finding)
		}
	}
	return findings
}
