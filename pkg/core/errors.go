package core

import (
	"errors"
	"fmt"
)

// ErrStoreClosed is returned by stores used before Open or after Close.
var ErrStoreClosed = errors.New("database not opened")

// ConfigError reports an invalid or incomplete configuration.
// Configuration errors are fatal and abort a run before any processing.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// NewConfigError creates a ConfigError for the given field.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a failure writing or reading persisted state.
// A run that hits a persistence error fails, and prior state remains valid.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// InputDefect describes a problem with a single source row.
// Defects invalidate the affected field or row, never the whole dataset.
type InputDefect struct {
	Source string `json:"source"`
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

func (d InputDefect) String() string {
	return fmt.Sprintf("%s row %d column %s: %s (%q)", d.Source, d.Row, d.Column, d.Reason, d.Value)
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsPersistenceError reports whether err is or wraps a PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
