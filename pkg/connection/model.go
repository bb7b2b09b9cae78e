package connection

import (
	"fmt"

	"github.com/surrealdb/surrealdriver/pkg/models"
)

// RPCError is the error member of an RPC reply. The server sends it when it
// rejects a whole request, for example a query that does not parse.
type RPCError struct {
	Code        int    `json:"code"`
	Message     string `json:"message,omitempty"`
	Description string `json:"description,omitempty"`
}

func (r *RPCError) Error() string {
	msg := r.Message
	if r.Description != "" {
		msg = r.Description
	}
	if r.Code != 0 {
		return fmt.Sprintf("rpc error %d: %s", r.Code, msg)
	}
	return "rpc error: " + msg
}

func (r *RPCError) Is(target error) bool {
	if target == nil {
		return r == nil
	}

	_, ok := target.(*RPCError)
	return ok
}

// RPCRequest is the envelope written to the wire.
type RPCRequest struct {
	ID     any    `json:"id"`
	Method string `json:"method,omitempty"`
	Params []any  `json:"params,omitempty"`
}

// RPCResponse is a reply envelope with its result normalised into a models.Value.
type RPCResponse struct {
	// ID is the ID of the request this response corresponds to.
	ID     any          `json:"id"`
	Error  *RPCError    `json:"error,omitempty"`
	Result models.Value `json:"result"`
}

type RPCFunction string

var (
	Use          RPCFunction = "use"
	Info         RPCFunction = "info"
	Version      RPCFunction = "version"
	Ping         RPCFunction = "ping"
	SignUp       RPCFunction = "signup"
	SignIn       RPCFunction = "signin"
	Authenticate RPCFunction = "authenticate"
	Invalidate   RPCFunction = "invalidate"
	Let          RPCFunction = "let"
	Unset        RPCFunction = "unset"
	Query        RPCFunction = "query"
)

// Session is the client-side view of the connection state that the
// stateless engine replays on every request.
type Session struct {
	Namespace string
	Database  string
	Token     string
	Vars      map[string]any
}

// Request is one RPC call.
type Request struct {
	Method  RPCFunction
	Params  []any
	Session Session
}
