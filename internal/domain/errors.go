package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalidInput is returned for malformed caller input.
var ErrInvalidInput = errors.New("invalid input")

// ValidationError describes a malformed or missing transaction field.
// In lenient mode the offending record is skipped and the error is
// reported alongside the findings; in strict mode it aborts the run.
type ValidationError struct {
	TransactionID string
	Field         string
	Reason        string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid transaction %s: field %s: %s", e.TransactionID, e.Field, e.Reason)
}

// ConfigurationError describes a misconfigured deployment, such as a
// rule with no base-score mapping. It is always fatal: silently
// defaulting would corrupt severity ranking.
type ConfigurationError struct {
	Rule   Rule
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("configuration error: rule %s: %s: %s", e.Rule, e.Field, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}
