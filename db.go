package surrealdb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/surrealdb/surrealdriver/pkg/connection"
	"github.com/surrealdb/surrealdriver/pkg/constants"
	"github.com/surrealdb/surrealdriver/pkg/logger"
	"github.com/surrealdb/surrealdriver/pkg/models"
)

// DB is a client for one SurrealDB endpoint.
//
// DB is safe for concurrent use. Calls that change the session (Use, SignIn,
// SignUp, Authenticate, Invalidate, Let and Unset) are not serialised
// against each other: when they race, the last one to complete wins.
type DB struct {
	conn   connection.Connection
	logger logger.Logger

	mu      sync.RWMutex
	session Session
	closed  bool
}

// Open validates cfg, connects to cfg.Endpoint and applies the namespace,
// database and credentials cfg names.
func Open(ctx context.Context, cfg *Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	u, err := url.ParseRequestURI(cfg.Endpoint)
	if err != nil {
		return nil, &ConfigError{Field: "Endpoint", Err: err}
	}

	conf := connection.NewConfig(u)
	if cfg.Encoding != "" {
		if err := conf.SetEncoding(cfg.Encoding); err != nil {
			return nil, &ConfigError{Field: "Encoding", Err: err}
		}
	}
	if cfg.Logger != nil {
		conf.Logger = cfg.Logger
	}
	conf.HTTPClient = cfg.HTTPClient
	conf.Dialer = cfg.Dialer
	conf.Compression = cfg.Compression

	conn, err := connection.New(conf)
	if err != nil {
		return nil, &ConfigError{Field: "Endpoint", Err: err}
	}

	db, err := open(ctx, conn, conf.Logger, conf.BaseURL)
	if err != nil {
		return nil, err
	}

	if err := db.init(ctx, cfg); err != nil {
		_ = db.Close(ctx)
		return nil, err
	}
	return db, nil
}

// Connect opens endpoint with no initial session.
func Connect(ctx context.Context, endpoint string) (*DB, error) {
	return Open(ctx, &Config{Endpoint: endpoint})
}

// FromConnection wraps an engine built by the caller. The engine is
// connected before FromConnection returns.
func FromConnection(ctx context.Context, conn connection.Connection) (*DB, error) {
	return open(ctx, conn, logger.Default(), "")
}

func open(ctx context.Context, conn connection.Connection, log logger.Logger, endpoint string) (*DB, error) {
	if err := conn.Connect(ctx); err != nil {
		return nil, &ConnectionError{Op: "open", Err: err}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DB{
		conn:    conn,
		logger:  log,
		session: Session{Endpoint: endpoint, Vars: make(map[string]any)},
	}, nil
}

func (db *DB) init(ctx context.Context, cfg *Config) error {
	if cfg.Namespace != "" || cfg.Database != "" {
		if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
			return err
		}
	}
	switch {
	case cfg.Auth != nil:
		if _, err := db.SignIn(ctx, *cfg.Auth); err != nil {
			return err
		}
	case cfg.Token != "":
		if err := db.Authenticate(ctx, cfg.Token); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the connection. Later calls return nil, and every other
// operation returns ErrClosed.
func (db *DB) Close(ctx context.Context) error {
	if db == nil || db.conn == nil {
		return ErrNotOpen
	}

	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.session = Session{Endpoint: db.session.Endpoint}
	db.mu.Unlock()

	if err := db.conn.Close(ctx); err != nil {
		return &ConnectionError{Op: "close", Err: err}
	}
	return nil
}

func (db *DB) check() error {
	if db == nil || db.conn == nil {
		return ErrNotOpen
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	return nil
}

// wireSession is what the stateless engine replays on every request.
func (db *DB) wireSession() connection.Session {
	db.mu.RLock()
	defer db.mu.RUnlock()

	vars := make(map[string]any, len(db.session.Vars))
	for k, v := range db.session.Vars {
		vars[k] = v
	}
	return connection.Session{
		Namespace: db.session.Namespace,
		Database:  db.session.Database,
		Token:     db.session.Token,
		Vars:      vars,
	}
}

// send issues one RPC call. A server-side rejection of the call is returned
// as the *connection.RPCError the server sent.
func (db *DB) send(ctx context.Context, method connection.RPCFunction, params ...any) (models.Value, error) {
	if err := db.check(); err != nil {
		return models.Value{}, err
	}

	res, err := db.conn.Send(ctx, &connection.Request{
		Method:  method,
		Params:  params,
		Session: db.wireSession(),
	})
	if err != nil {
		return models.Value{}, db.transportError(string(method), err)
	}
	if res.Error != nil {
		return models.Value{}, res.Error
	}
	return res.Result, nil
}

func (db *DB) transportError(op string, err error) error {
	if errors.Is(err, constants.ErrInvalidResponse) {
		return &ProtocolError{Reason: op + ": unreadable reply", Err: err}
	}
	if errors.Is(err, constants.ErrConnectionClosed) && db.check() != nil {
		return ErrClosed
	}
	return &ConnectionError{Op: op, Err: err}
}

// Use selects the namespace and database. Empty names are sent as they are;
// the server decides whether a partial selection is valid.
func (db *DB) Use(ctx context.Context, ns, database string) error {
	if _, err := db.send(ctx, connection.Use, ns, database); err != nil {
		return err
	}

	db.mu.Lock()
	db.session.Namespace, db.session.Database = ns, database
	db.mu.Unlock()

	db.logger.Debug("selected namespace and database", "namespace", ns, "database", database)
	return nil
}

// SignIn signs in with auth and returns the session token.
func (db *DB) SignIn(ctx context.Context, auth Auth) (string, error) {
	return db.signIn(ctx, connection.SignIn, auth)
}

// SignUp creates a record user with auth and returns the session token.
func (db *DB) SignUp(ctx context.Context, auth Auth) (string, error) {
	return db.signIn(ctx, connection.SignUp, auth)
}

func (db *DB) signIn(ctx context.Context, method connection.RPCFunction, auth Auth) (string, error) {
	res, err := db.send(ctx, method, auth)
	if err != nil {
		return "", authError(string(method), err)
	}

	token, err := tokenOf(res)
	if err != nil {
		return "", &ProtocolError{Reason: string(method) + " did not return a token", Err: err}
	}

	db.mu.Lock()
	db.session.Token = token
	db.mu.Unlock()

	db.logger.Debug("signed in", "method", string(method), "user", auth.Username)
	return token, nil
}

// tokenOf accepts both a bare token and a {token, refresh} object.
func tokenOf(v models.Value) (string, error) {
	if field, ok := v.Get("token"); ok {
		v = field
	}
	return v.AsString()
}

func authError(op string, err error) error {
	var rpcErr *connection.RPCError
	if errors.As(err, &rpcErr) {
		return &AuthError{Op: op, Err: rpcErr}
	}
	return err
}

// Authenticate uses token for the rest of the session. The token is not
// checked client-side.
func (db *DB) Authenticate(ctx context.Context, token string) error {
	if _, err := db.send(ctx, connection.Authenticate, token); err != nil {
		return authError(string(connection.Authenticate), err)
	}

	db.mu.Lock()
	db.session.Token = token
	db.mu.Unlock()

	if exp, ok := tokenExpiry(token); ok && exp.Before(time.Now()) {
		db.logger.Warn("authenticated with a token whose exp claim has passed", "exp", exp)
	}
	return nil
}

// Invalidate ends the authenticated session. The local token is cleared even
// when the server call fails.
func (db *DB) Invalidate(ctx context.Context) error {
	_, err := db.send(ctx, connection.Invalidate)

	db.mu.Lock()
	db.session.Token = ""
	db.mu.Unlock()

	if err != nil {
		return authError(string(connection.Invalidate), err)
	}
	return nil
}

// Let binds a session variable usable as $key in later queries. An existing
// variable of the same name is overwritten.
func (db *DB) Let(ctx context.Context, key string, val any) error {
	if _, err := db.send(ctx, connection.Let, key, val); err != nil {
		return err
	}

	db.mu.Lock()
	db.session.Vars[key] = val
	db.mu.Unlock()
	return nil
}

// Unset removes a session variable.
func (db *DB) Unset(ctx context.Context, key string) error {
	if _, err := db.send(ctx, connection.Unset, key); err != nil {
		return err
	}

	db.mu.Lock()
	delete(db.session.Vars, key)
	db.mu.Unlock()
	return nil
}

// Query runs sql with vars bound as parameters. The Response holds one
// outcome per statement; a failed statement does not fail the call.
// A query the server rejects as a whole is returned as a *connection.RPCError.
func (db *DB) Query(ctx context.Context, sql string, vars map[string]any) (*Response, error) {
	res, err := db.send(ctx, connection.Query, sql, vars)
	if err != nil {
		return nil, err
	}
	return parseResponse(res)
}

// Info selects the record of the signed in user.
func (db *DB) Info(ctx context.Context) (*Outcome, error) {
	return db.single(ctx, "SELECT * FROM $auth", nil)
}

// Version returns the server version.
func (db *DB) Version(ctx context.Context) (string, error) {
	res, err := db.send(ctx, connection.Version)
	if err != nil {
		return "", err
	}
	v, err := res.AsString()
	if err != nil {
		return "", &ProtocolError{Reason: "version is not a string", Err: err}
	}
	return v, nil
}

// single runs a one-statement query and returns its only outcome. When the
// statement failed the outcome is returned along with its *StatementError.
func (db *DB) single(ctx context.Context, sql string, vars map[string]any) (*Outcome, error) {
	resp, err := db.Query(ctx, sql, vars)
	if err != nil {
		return nil, err
	}
	if resp.Len() != 1 {
		return nil, &ProtocolError{Reason: fmt.Sprintf("expected 1 outcome, got %d", resp.Len())}
	}
	o, _ := resp.Outcome(0)
	return o, o.Err()
}
