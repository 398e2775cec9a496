// Package domain defines core types, interfaces, and errors for the PII tagging workflow.
package domain

import "fmt"

// ConfigurationError indicates required configuration is missing or invalid.
// It is raised before any remote call is made.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// NotFoundError indicates a ledger record does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// CatalogUnavailableError indicates the table listing for the target schema failed.
type CatalogUnavailableError struct {
	Target Target
	Err    error
}

func (e *CatalogUnavailableError) Error() string {
	return fmt.Sprintf("list tables in %s: %v", e.Target.Qualified(), e.Err)
}

func (e *CatalogUnavailableError) Unwrap() error { return e.Err }

// ClassificationError indicates the classification oracle failed for a table.
// It is fatal to the whole run.
type ClassificationError struct {
	Table TableRef
	Err   error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s: %v", e.Table.Qualified(), e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// DDLExecutionError indicates a tag, policy, role, or grant statement failed.
type DDLExecutionError struct {
	Step      string
	Table     string // empty when the statement is not table-scoped
	Column    string // empty when the statement is not column-scoped
	Statement string
	Err       error
}

func (e *DDLExecutionError) Error() string {
	msg := e.Step
	if e.Table != "" {
		msg += " on " + e.Table
	}
	if e.Column != "" {
		msg += " column " + e.Column
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *DDLExecutionError) Unwrap() error { return e.Err }

// SessionTeardownError indicates releasing the remote session failed.
// It is logged and never replaces the primary outcome of a run.
type SessionTeardownError struct {
	Err error
}

func (e *SessionTeardownError) Error() string {
	return fmt.Sprintf("close session: %v", e.Err)
}

func (e *SessionTeardownError) Unwrap() error { return e.Err }

// ErrConfiguration creates a ConfigurationError with a formatted message.
func ErrConfiguration(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// ErrDDL creates a DDLExecutionError for a statement that is not table-scoped.
func ErrDDL(step, statement string, err error) *DDLExecutionError {
	return &DDLExecutionError{Step: step, Statement: statement, Err: err}
}
