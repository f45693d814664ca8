package data

import (
	"errors"
	"fmt"
)

// ErrUnresolved is returned when a reference is read before it was resolved.
var ErrUnresolved = errors.New("reference not resolved")

// SchemaError reports a row that does not match the expected field shape.
type SchemaError struct {
	Table    Table
	RecordID string
	Field    string
	Reason   string
	Err      error
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("schema error in %s", e.Table)
	if e.RecordID != "" {
		msg += " record " + e.RecordID
	}
	if e.Field != "" {
		msg += " field " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// DanglingReferenceError reports a reference to a row that does not exist.
type DanglingReferenceError struct {
	Table Table
	ID    string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("dangling reference: %s has no record %s", e.Table, e.ID)
}

// NotFoundError reports a lookup that matched no record.
type NotFoundError struct {
	Table Table
	Key   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Table, e.Key)
}
