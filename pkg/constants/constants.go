package constants

import "time"

const (
	// RequestIDLength size of id sent on RPC requests
	RequestIDLength = 16
	// CloseMessageCode identifier the message id for a close request
	CloseMessageCode = 1000
	// DefaultCloseTimeout bounds how long Close waits for the close frame to be written
	DefaultCloseTimeout = 5 * time.Second
	// OneSecondToNanoSecond is used by the compact datetime and duration encodings
	OneSecondToNanoSecond = 1_000_000_000
)

const (
	WebsocketScheme       = "ws"
	SecureWebsocketScheme = "wss"
	HTTPScheme            = "http"
	SecureHTTPScheme      = "https"
)

const (
	// EncodingCBOR selects the binary CBOR wire format.
	EncodingCBOR = "cbor"
	// EncodingJSON selects the JSON wire format.
	EncodingJSON = "json"
)

const (
	HeaderNamespace     = "Surreal-NS"
	HeaderDatabase      = "Surreal-DB"
	HeaderAuthorization = "Authorization"
)

const (
	// StatusOK is the per-statement status of a statement that succeeded.
	StatusOK = "OK"
	// StatusErr is the per-statement status of a statement the server rejected.
	StatusErr = "ERR"
)
