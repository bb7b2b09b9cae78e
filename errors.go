package surrealdb

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection matches every *ConnectionError.
	ErrConnection = errors.New("surrealdb: connection failed")
	// ErrAuth matches every *AuthError.
	ErrAuth = errors.New("surrealdb: authentication failed")
	// ErrProtocol matches every *ProtocolError.
	ErrProtocol = errors.New("surrealdb: unexpected reply")
	// ErrStatement matches every *StatementError.
	ErrStatement = errors.New("surrealdb: statement failed")
	// ErrInvalidConfig matches every *ConfigError.
	ErrInvalidConfig = errors.New("surrealdb: invalid config")

	// ErrClosed is returned by every operation on a DB after Close.
	ErrClosed = errors.New("surrealdb: database is closed")
	// ErrNotOpen is returned by a DB that was not created with Open.
	ErrNotOpen = errors.New("surrealdb: database is not open")

	// ErrWrongOutcome is returned when reading the values of a failed
	// outcome, or the message of a successful one.
	ErrWrongOutcome = errors.New("surrealdb: wrong outcome kind")
	// ErrNoValue is returned when a successful outcome carries no value.
	ErrNoValue = errors.New("surrealdb: outcome has no value")
	// ErrNoOutcome is returned when a response has no outcome at the requested index.
	ErrNoOutcome = errors.New("surrealdb: response has no such outcome")
)

// ConnectionError reports that the transport failed: the endpoint could not
// be reached, the socket died, or the caller's context ended first.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("surrealdb: %s: connection failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// AuthError reports that the server rejected credentials or a token.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("surrealdb: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// ProtocolError reports a reply that does not have the shape the operation
// expects, for example a query reply that is not a list of outcomes.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("surrealdb: protocol error: %s: %v", e.Reason, e.Err)
	}
	return "surrealdb: protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// StatementError is the error of one statement of a query. The other
// statements of the same query are unaffected.
type StatementError struct {
	// Index is the position of the statement in the query.
	Index   int
	Message string
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("surrealdb: statement %d: %s", e.Index, e.Message)
}

func (e *StatementError) Is(target error) bool { return target == ErrStatement }

// ConfigError reports a Config that failed validation.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("surrealdb: invalid config: %v", e.Err)
	}
	return fmt.Sprintf("surrealdb: invalid config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// PatchError reports a Modify patch that is not a valid JSON Patch document.
type PatchError struct {
	// Index is the offending operation, or -1 when the document as a whole is invalid.
	Index int
	Err   error
}

func (e *PatchError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("surrealdb: invalid patch: %v", e.Err)
	}
	return fmt.Sprintf("surrealdb: invalid patch operation %d: %v", e.Index, e.Err)
}

func (e *PatchError) Unwrap() error { return e.Err }
