package connection

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gorilla "github.com/gorilla/websocket"

	"github.com/surrealdb/surrealdriver/internal/codec"
	"github.com/surrealdb/surrealdriver/pkg/constants"
	"github.com/surrealdb/surrealdriver/pkg/logger"
	"github.com/surrealdb/surrealdriver/pkg/models"
)

type Config struct {
	URL         url.URL
	BaseURL     string
	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler
	Logger      logger.Logger

	// HTTPClient is used by the HTTP engine. It has no timeout unless the caller sets one.
	HTTPClient *http.Client
	// Dialer is used by the WebSocket engine.
	Dialer *gorilla.Dialer
	// Compression enables permessage-deflate on the WebSocket engine.
	Compression bool
}

// NewConfig creates a new Config with the SurrealDB endpoint specified by the URL.
// The URL should be a valid SurrealDB endpoint URL, such as "ws://localhost:8000/rpc" or "http://localhost:8000".
// Both engines default to CBOR.
func NewConfig(u *url.URL) *Config {
	cfg := &Config{
		URL:     *u,
		BaseURL: baseURL(u),
		Logger:  logger.Default(),
	}
	_ = cfg.SetEncoding(constants.EncodingCBOR)

	return cfg
}

// SetEncoding switches the wire format to "cbor" or "json".
//
// JSON is lossy: record ids and tables travel as plain strings, so the server
// binds them as strings, and on the way back only "table:id" strings under the
// keys id, in and out are read as record ids.
func (c *Config) SetEncoding(name string) error {
	switch name {
	case constants.EncodingCBOR:
		c.Marshaler, c.Unmarshaler = models.CborMarshaler{}, models.CborUnmarshaler{}
	case constants.EncodingJSON:
		c.Marshaler, c.Unmarshaler = models.JSONMarshaler{}, models.JSONUnmarshaler{}
	default:
		return fmt.Errorf("%w: %q", constants.ErrUnsupportedEncoder, name)
	}
	return nil
}

// New returns the engine matching the scheme of c.URL.
func New(c *Config) (Connection, error) {
	switch c.URL.Scheme {
	case constants.WebsocketScheme, constants.SecureWebsocketScheme:
		return NewWebSocketConnection(c), nil
	case constants.HTTPScheme, constants.SecureHTTPScheme:
		return NewHTTPConnection(c), nil
	}
	return nil, fmt.Errorf("%w: %q", constants.ErrUnsupportedScheme, c.URL.Scheme)
}

// baseURL strips a trailing /rpc, which both engines append themselves.
func baseURL(u *url.URL) string {
	path := strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/rpc")
	return fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, path)
}
