package cmd

import (
	"errors"

	surrealdb "github.com/surrealdb/surrealdriver"
	"github.com/surrealdb/surrealdriver/pkg/connection"
)

// Exit status codes
const (
	// ExitUsage indicates an incorrect command, option, or configuration.
	ExitUsage = 1
	// ExitConnection indicates the server could not be reached or answered
	// with something unreadable.
	ExitConnection = 2
	// ExitStatement indicates a statement or the whole query failed server-side.
	ExitStatement = 3
	// ExitAuth indicates the server rejected the credentials or the token.
	ExitAuth = 4
)

type statusErr struct {
	error
	code int
}

func (e *statusErr) Unwrap() error {
	return e.error
}

func (e *statusErr) ExitStatus() int {
	return e.code
}

func withCode(err error, code int) error {
	return &statusErr{
		error: err,
		code:  code,
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	exitErr := new(statusErr)
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus()
	}

	var rpcErr *connection.RPCError
	switch {
	case errors.Is(err, surrealdb.ErrInvalidConfig):
		return ExitUsage
	case errors.Is(err, surrealdb.ErrAuth):
		return ExitAuth
	case errors.Is(err, surrealdb.ErrStatement), errors.As(err, &rpcErr):
		return ExitStatement
	case errors.Is(err, surrealdb.ErrConnection),
		errors.Is(err, surrealdb.ErrProtocol),
		errors.Is(err, surrealdb.ErrClosed):
		return ExitConnection
	}

	// Anything else comes from cobra's argument handling.
	return ExitUsage
}
