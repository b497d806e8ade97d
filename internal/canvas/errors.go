package canvas

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes rejected canvas operations.
type ErrorCode string

const (
	// CodeUnknownInstance indicates an instance id not present in the registry.
	CodeUnknownInstance ErrorCode = "UNKNOWN_INSTANCE"

	// CodeUnknownConnection indicates a connection id not present in the graph.
	CodeUnknownConnection ErrorCode = "UNKNOWN_CONNECTION"

	// CodeSameInstance indicates a connection between two fields of one instance.
	CodeSameInstance ErrorCode = "SAME_INSTANCE"

	// CodeUnknownColumn indicates a column the instance's relation does not define.
	CodeUnknownColumn ErrorCode = "UNKNOWN_COLUMN"

	// CodeUnknownRelation indicates a relation id absent from the catalog.
	CodeUnknownRelation ErrorCode = "UNKNOWN_RELATION"

	// CodeInvalidJoinKind indicates a join kind outside INNER/LEFT/RIGHT/FULL.
	CodeInvalidJoinKind ErrorCode = "INVALID_JOIN_KIND"

	// CodeDuplicateID indicates a restored design reuses an instance or connection id.
	CodeDuplicateID ErrorCode = "DUPLICATE_ID"
)

// Error is a rejected canvas operation. Canvas state is unchanged.
type Error struct {
	Code         ErrorCode
	Message      string
	InstanceID   string
	ConnectionID string
	Column       string
}

// Sentinels for errors.Is. Matching compares codes only.
var (
	ErrUnknownInstance   = &Error{Code: CodeUnknownInstance}
	ErrUnknownConnection = &Error{Code: CodeUnknownConnection}
	ErrSameInstance      = &Error{Code: CodeSameInstance}
	ErrUnknownColumn     = &Error{Code: CodeUnknownColumn}
	ErrUnknownRelation   = &Error{Code: CodeUnknownRelation}
	ErrInvalidJoinKind   = &Error{Code: CodeInvalidJoinKind}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of a canvas error, or "" for any other error.
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsUnknownInstance returns true if err rejects an unknown instance id.
func IsUnknownInstance(err error) bool { return CodeOf(err) == CodeUnknownInstance }

// IsUnknownConnection returns true if err rejects an unknown connection id.
func IsUnknownConnection(err error) bool { return CodeOf(err) == CodeUnknownConnection }

// IsSameInstance returns true if err rejects a self connection.
func IsSameInstance(err error) bool { return CodeOf(err) == CodeSameInstance }

// IsUnknownColumn returns true if err rejects an unknown column.
func IsUnknownColumn(err error) bool { return CodeOf(err) == CodeUnknownColumn }

// IsUnknownRelation returns true if err rejects an unknown relation id.
func IsUnknownRelation(err error) bool { return CodeOf(err) == CodeUnknownRelation }

func newUnknownInstanceError(instanceID string) *Error {
	return &Error{
		Code:       CodeUnknownInstance,
		Message:    fmt.Sprintf("instance %q is not on the canvas", instanceID),
		InstanceID: instanceID,
	}
}

func newUnknownConnectionError(connectionID string) *Error {
	return &Error{
		Code:         CodeUnknownConnection,
		Message:      fmt.Sprintf("connection %q does not exist", connectionID),
		ConnectionID: connectionID,
	}
}

func newSameInstanceError(instanceID string) *Error {
	return &Error{
		Code:       CodeSameInstance,
		Message:    fmt.Sprintf("cannot connect two fields of instance %q", instanceID),
		InstanceID: instanceID,
	}
}

func newUnknownColumnError(instanceID, relationID, column string) *Error {
	return &Error{
		Code:       CodeUnknownColumn,
		Message:    fmt.Sprintf("relation %q of instance %q has no column %q", relationID, instanceID, column),
		InstanceID: instanceID,
		Column:     column,
	}
}

func newUnknownRelationError(relationID string) *Error {
	return &Error{
		Code:    CodeUnknownRelation,
		Message: fmt.Sprintf("relation %q is not in the catalog", relationID),
	}
}
