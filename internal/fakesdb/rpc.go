package fakesdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/surrealdb/surrealdriver/internal/codec"
	"github.com/surrealdb/surrealdriver/internal/rand"
	"github.com/surrealdb/surrealdriver/pkg/models"
)

const (
	codeParse          = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServer         = -32000
)

var signingKey = []byte("fakesdb-signing-key")

type request struct {
	ID     any            `json:"id"`
	Method string         `json:"method"`
	Params []models.Value `json:"params"`
}

type response struct {
	ID     any          `json:"id"`
	Error  *Error       `json:"error,omitempty"`
	Result models.Value `json:"result"`
}

type wireCodec struct {
	codec.Marshaler
	codec.Unmarshaler
}

var (
	cborCodec = wireCodec{models.CborMarshaler{}, models.CborUnmarshaler{}}
	jsonCodec = wireCodec{models.JSONMarshaler{}, models.JSONUnmarshaler{}}
)

func invalidParams(method, msg string) *Error {
	return &Error{Code: codeInvalidParams, Message: fmt.Sprintf("%s: invalid params: %s", method, msg)}
}

func param(req *request, i int) models.Value {
	if i < len(req.Params) {
		return req.Params[i]
	}
	return models.NoneValue()
}

// dispatch runs one RPC call against sess. Changes to sess persist only for
// WebSocket sessions; HTTP sessions are rebuilt on every request.
func (s *Server) dispatch(ctx context.Context, sess *Session, req *request, stub *StubResponse) (models.Value, *Error) {
	if stub != nil {
		if stub.Error != nil {
			return models.NoneValue(), stub.Error
		}
		v, err := models.ValueOf(stub.Result)
		if err != nil {
			return models.NoneValue(), &Error{Code: codeServer, Message: err.Error()}
		}
		return v, nil
	}

	switch req.Method {
	case "use":
		return s.handleUse(sess, req)
	case "signin":
		return s.handleSignIn(sess, req)
	case "signup":
		return s.handleSignUp(sess, req)
	case "authenticate":
		return s.handleAuthenticate(sess, req)
	case "invalidate":
		s.mu.Lock()
		sess.Token, sess.Username = "", ""
		s.mu.Unlock()
		return models.NoneValue(), nil
	case "let":
		return s.handleLet(sess, req)
	case "unset":
		return s.handleUnset(sess, req)
	case "info":
		s.mu.RLock()
		defer s.mu.RUnlock()
		return authValue(sess), nil
	case "version":
		return models.StringValue(s.Version), nil
	case "ping":
		return models.NoneValue(), nil
	case "query":
		return s.handleQuery(ctx, sess, req)
	}

	return models.NoneValue(), &Error{Code: codeMethodNotFound, Message: "Method not found: " + req.Method}
}

func (s *Server) handleUse(sess *Session, req *request) (models.Value, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, target := range []*string{&sess.Namespace, &sess.Database} {
		v := param(req, i)
		if v.IsNone() {
			continue
		}
		name, err := v.AsString()
		if err != nil {
			return models.NoneValue(), invalidParams("use", "namespace and database must be strings")
		}
		*target = name
	}
	return models.NoneValue(), nil
}

func credentials(v models.Value) (user, pass string) {
	for _, key := range []string{"user", "username"} {
		if u, ok := v.Get(key); ok {
			user, _ = u.AsString()
			break
		}
	}
	for _, key := range []string{"pass", "password"} {
		if p, ok := v.Get(key); ok {
			pass, _ = p.AsString()
			break
		}
	}
	return user, pass
}

func (s *Server) handleSignIn(sess *Session, req *request) (models.Value, *Error) {
	user, pass := credentials(param(req, 0))
	if user == "" {
		return models.NoneValue(), invalidParams("signin", "signin requires a user")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.users) > 0 {
		if expected, ok := s.users[user]; !ok || expected != pass {
			return models.NoneValue(), &Error{Code: codeServer, Message: "There was a problem with authentication"}
		}
	}

	token, err := s.issueToken(user)
	if err != nil {
		return models.NoneValue(), &Error{Code: codeServer, Message: err.Error()}
	}
	sess.Token, sess.Username = token, user
	return models.StringValue(token), nil
}

func (s *Server) handleSignUp(sess *Session, req *request) (models.Value, *Error) {
	user, pass := credentials(param(req, 0))
	if user == "" || pass == "" {
		return models.NoneValue(), invalidParams("signup", "signup requires a user and a password")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user]; exists {
		return models.NoneValue(), &Error{Code: codeServer, Message: fmt.Sprintf("There was a problem with authentication: user %q already exists", user)}
	}
	s.users[user] = pass

	token, err := s.issueToken(user)
	if err != nil {
		return models.NoneValue(), &Error{Code: codeServer, Message: err.Error()}
	}
	sess.Token, sess.Username = token, user
	return models.StringValue(token), nil
}

func (s *Server) handleAuthenticate(sess *Session, req *request) (models.Value, *Error) {
	token, err := param(req, 0).AsString()
	if err != nil {
		return models.NoneValue(), invalidParams("authenticate", "token must be a string")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, authErr := s.checkToken(token)
	if authErr != nil {
		return models.NoneValue(), authErr
	}
	sess.Token, sess.Username = token, user
	return models.NoneValue(), nil
}

func (s *Server) handleLet(sess *Session, req *request) (models.Value, *Error) {
	key, err := param(req, 0).AsString()
	if err != nil {
		return models.NoneValue(), invalidParams("let", "key must be a string")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess.Vars[strings.TrimPrefix(key, "$")] = param(req, 1)
	return models.NoneValue(), nil
}

func (s *Server) handleUnset(sess *Session, req *request) (models.Value, *Error) {
	key, err := param(req, 0).AsString()
	if err != nil {
		return models.NoneValue(), invalidParams("unset", "key must be a string")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(sess.Vars, strings.TrimPrefix(key, "$"))
	return models.NoneValue(), nil
}

func (s *Server) handleQuery(ctx context.Context, sess *Session, req *request) (models.Value, *Error) {
	sql, err := param(req, 0).AsString()
	if err != nil {
		return models.NoneValue(), invalidParams("query", "query text must be a string")
	}

	s.mu.RLock()
	snapshot := sess.clone()
	s.mu.RUnlock()

	if snapshot.Namespace == "" || snapshot.Database == "" {
		return models.NoneValue(), &Error{Code: codeServer, Message: "Specify a namespace and database to use"}
	}
	if s.RequireAuth && snapshot.Username == "" {
		return models.NoneValue(), &Error{Code: codeServer, Message: "There was a problem with authentication: Not signed in"}
	}

	vars := snapshot.Vars
	if queryVars := param(req, 1); !queryVars.IsNullish() {
		fields, err := queryVars.AsObject()
		if err != nil {
			return models.NoneValue(), invalidParams("query", "variables must be an object")
		}
		for k, v := range fields {
			vars[k] = v
		}
	}
	if _, ok := vars["auth"]; !ok {
		vars["auth"] = authValue(snapshot)
	}

	return s.runQuery(ctx, snapshot, sql, vars)
}

// authValue is the record of the signed in user, or NONE.
func authValue(sess *Session) models.Value {
	if sess.Username == "" {
		return models.NoneValue()
	}
	return models.ObjectValue(map[string]models.Value{
		"id":   models.RecordIDValue(models.NewRecordID("user", sess.Username)),
		"user": models.StringValue(sess.Username),
	})
}

// issueToken must be called with s.mu held.
func (s *Server) issueToken(user string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"ID":  user,
		"jti": rand.NewRequestID(16),
		"iat": now.Unix(),
		"exp": now.Add(s.TokenTTL).Unix(),
	})
	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", err
	}
	s.tokens[signed] = user
	return signed, nil
}

// checkToken must be called with s.mu held.
func (s *Server) checkToken(token string) (string, *Error) {
	user, ok := s.tokens[token]
	if !ok {
		return "", &Error{Code: codeServer, Message: "There was a problem with authentication: unknown token"}
	}
	_, err := jwt.Parse(token, func(*jwt.Token) (any, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", &Error{Code: codeServer, Message: "There was a problem with authentication: " + err.Error()}
	}
	return user, nil
}
