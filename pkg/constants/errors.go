package constants

import "errors"

// Errors
var (
	ErrIDInUse            = errors.New("id already in use")
	ErrNoBaseURL          = errors.New("base url not set")
	ErrNoCodec            = errors.New("codec is not set")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrNotConnected       = errors.New("connection not established")
	ErrInvalidResponse    = errors.New("invalid SurrealDB response")
	ErrUnsupportedScheme  = errors.New("unsupported endpoint scheme")
	ErrUnsupportedEncoder = errors.New("unsupported encoding")
)
