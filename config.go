package surrealdb

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	gorilla "github.com/gorilla/websocket"

	"github.com/surrealdb/surrealdriver/pkg/logger"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvURL       = "SURREALDB_URL"
	EnvNamespace = "SURREALDB_NS"
	EnvDatabase  = "SURREALDB_DB"
	EnvUser      = "SURREALDB_USER"
	EnvPass      = "SURREALDB_PASS"

	DefaultURL = "ws://localhost:8000"
)

// Config describes how Open reaches the server and the session it starts with.
type Config struct {
	// Endpoint selects the engine by scheme: ws and wss use the WebSocket
	// engine, http and https the HTTP engine.
	Endpoint string `validate:"required,url,surrealscheme"`

	// Namespace and Database are selected with Use right after connecting.
	// They must be set together.
	Namespace string `validate:"required_with=Database"`
	Database  string `validate:"required_with=Namespace"`

	// Auth signs in right after connecting. Token authenticates instead.
	// At most one of them may be set.
	Auth  *Auth  `validate:"excluded_with=Token"`
	Token string `validate:"excluded_with=Auth"`

	// Encoding overrides the wire format: "cbor" (the default) or "json".
	// JSON cannot carry record ids or tables as such; see
	// connection.Config.SetEncoding.
	Encoding string `validate:"omitempty,oneof=cbor json"`

	Logger logger.Logger `validate:"-"`
	// HTTPClient is used by the HTTP engine. The default client has no timeout.
	HTTPClient *http.Client `validate:"-"`
	// Dialer is used by the WebSocket engine.
	Dialer *gorilla.Dialer `validate:"-"`
	// Compression enables permessage-deflate on the WebSocket engine.
	Compression bool
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("surrealscheme", func(fl validator.FieldLevel) bool {
		scheme, _, ok := strings.Cut(fl.Field().String(), "://")
		if !ok {
			return false
		}
		switch strings.ToLower(scheme) {
		case "ws", "wss", "http", "https":
			return true
		}
		return false
	})
	return v
}

// Validate reports the first invalid field as a *ConfigError.
func (c *Config) Validate() error {
	if c == nil {
		return &ConfigError{Err: errors.New("config is nil")}
	}
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ConfigError{Field: fe.Field(), Err: fieldError(fe)}
	}
	return &ConfigError{Err: err}
}

func fieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return errors.New("is required")
	case "url":
		return errors.New("is not a URL")
	case "surrealscheme":
		return errors.New("scheme must be ws, wss, http or https")
	case "required_with":
		return errors.New("must be set together with " + fe.Param())
	case "excluded_with":
		return errors.New("cannot be set together with " + fe.Param())
	case "oneof":
		return errors.New("must be one of: " + fe.Param())
	}
	return errors.New("failed the " + fe.Tag() + " check")
}

// ConfigFromEnv builds a Config from SURREALDB_URL, SURREALDB_NS,
// SURREALDB_DB, SURREALDB_USER and SURREALDB_PASS. The endpoint defaults to
// DefaultURL. Auth is set only when a user is given.
func ConfigFromEnv() *Config {
	cfg := &Config{
		Endpoint:  getEnvOrDefault(EnvURL, DefaultURL),
		Namespace: os.Getenv(EnvNamespace),
		Database:  os.Getenv(EnvDatabase),
	}
	if user := os.Getenv(EnvUser); user != "" {
		cfg.Auth = &Auth{Username: user, Password: os.Getenv(EnvPass)}
	}
	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value
}
