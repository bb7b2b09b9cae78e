// Package fakesdb provides a fake SurrealDB server for testing purposes.
// It speaks the SurrealDB RPC protocol over WebSocket (CBOR or JSON frames)
// and over HTTP POST /rpc, keeps records in memory, and includes various
// failure injection capabilities.
//
// The WebSocket side is implemented using the `gws` library.
//
// The fake understands the handful of statements the driver itself issues
// (SELECT/CREATE/UPDATE/DELETE over $thing, RETURN, THROW, SLEEP and simple
// arithmetic over bound variables). Anything else can be handled by a
// StatementHandler or answered by a StubResponse.
//
// To flexibly inject failures, you can configure stub responses
// that match specific RPC methods and parameters, along with failure configurations
// that specify how it fails (e.g., delays, invalid responses, dropped connections).
package fakesdb

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lxzan/gws"

	"github.com/surrealdb/surrealdriver/pkg/models"
)

// cryptoRandInt64 generates a cryptographically secure random int64 in [0, max)
func cryptoRandInt64(rMax int64) int64 {
	if rMax <= 0 {
		return 0
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(rMax))
	return n.Int64()
}

// cryptoRandFloat64 generates a cryptographically secure random float64 in [0.0, 1.0)
func cryptoRandFloat64() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(1<<53))
	return float64(n.Int64()) / float64(1<<53)
}

// FailureType represents the type of failure to inject during request processing
type FailureType string

const (
	// FailureNone indicates no failure injection
	FailureNone FailureType = "none"
	// FailureResponseDelay delays the response
	FailureResponseDelay FailureType = "response_delay"
	// FailureDropResponse never answers the request
	FailureDropResponse FailureType = "drop_response"
	// FailureInvalidResponse sends random binary data instead of valid response
	FailureInvalidResponse FailureType = "invalid_response"
	// FailureUnreadableResult answers with the right request id but a result
	// the client cannot decode
	FailureUnreadableResult FailureType = "unreadable_result"
	// FailureDropConnection immediately closes the underlying network connection
	FailureDropConnection FailureType = "drop_connection"
	// FailureWebSocketClose sends WebSocket close frame with configurable code/reason
	FailureWebSocketClose FailureType = "websocket_close"
)

// RequestMatcher defines criteria for matching incoming RPC requests.
// It can match by method name and optionally by parameter values.
type RequestMatcher struct {
	// Method is the RPC method name to match
	Method string
	// Matcher is an optional function to match based on request parameters.
	// If nil, only the method name is used for matching.
	Matcher func(params []models.Value) bool
}

func (m RequestMatcher) matches(req *request) bool {
	return m.Method == req.Method && (m.Matcher == nil || m.Matcher(req.Params))
}

// StubResponse defines a pre-configured RPC response for matching requests.
// It can return either a successful result or an error, and optionally
// inject failures during processing.
type StubResponse struct {
	// Matcher determines which requests this stub should handle
	Matcher RequestMatcher
	// Result is the successful result to return (mutually exclusive with Error).
	// It is converted with models.ValueOf.
	Result any
	// Error is the error to return (mutually exclusive with Result)
	Error *Error
	// Failures defines failure injection configurations for this response
	Failures []FailureConfig
}

// FailureConfig defines how and when to inject a specific failure type
type FailureConfig struct {
	// Type specifies the type of failure to inject
	Type FailureType
	// Method restricts a global failure to one RPC method. Empty matches all.
	Method string
	// Probability of triggering this failure (0.0 to 1.0)
	Probability float64
	// MinDelay is the minimum delay for delay-based failures
	MinDelay time.Duration
	// MaxDelay is the maximum delay for delay-based failures
	MaxDelay time.Duration
	// CloseCode is the WebSocket close code for FailureWebSocketClose
	CloseCode uint16
	// CloseReason is the WebSocket close reason for FailureWebSocketClose
	CloseReason string
}

// Error is the error member of an RPC reply.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// Session is the state the server keeps for a WebSocket connection, or
// rebuilds from the headers of an HTTP request.
type Session struct {
	Namespace string
	Database  string
	Token     string
	Username  string
	// Vars can be set using `Let` RPC method
	// and unset using `Unset` RPC method
	Vars map[string]models.Value
}

func (s *Session) clone() *Session {
	c := *s
	c.Vars = make(map[string]models.Value, len(s.Vars))
	for k, v := range s.Vars {
		c.Vars[k] = v
	}
	return &c
}

// RecordedRequest is an RPC request as the server received it.
type RecordedRequest struct {
	Transport string
	Method    string
	Params    []models.Value
	Namespace string
	Database  string
	Token     string
}

// Server is a fake SurrealDB server that implements the RPC protocol
// with support for stub responses and failure injection
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	upgrader   *gws.Upgrader

	mu             sync.RWMutex
	stubResponses  []StubResponse
	globalFailures []FailureConfig
	handlers       []statementHandler
	connSessions   map[*gws.Conn]*Session
	users          map[string]string
	tokens         map[string]string
	requests       []RecordedRequest
	store          *store

	// RequireAuth rejects data operations from sessions that are not signed in.
	RequireAuth bool
	// TokenTTL is the lifetime of issued tokens. Defaults to one hour.
	TokenTTL time.Duration
	// Version is returned by the version RPC and the /version endpoint.
	Version string
}

// Handler implements the gws.Event interface for WebSocket connections
type Handler struct {
	server *Server
}

// NewServer creates a new fake SurrealDB server.
// Use "127.0.0.1:0" to bind to a random available port.
func NewServer(addr string) *Server {
	s := &Server{
		addr:         addr,
		connSessions: make(map[*gws.Conn]*Session),
		users:        make(map[string]string),
		tokens:       make(map[string]string),
		store:        newStore(),
		TokenTTL:     time.Hour,
		Version:      "surrealdb-1.0.0",
	}

	s.upgrader = gws.NewUpgrader(&Handler{server: s}, &gws.ServerOption{
		// Replies to pipelined requests may be sent out of order.
		ParallelEnabled: true,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", s.serveRPC)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(s.Version))
	})
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// AddStubResponse adds a stub response configuration to the server.
// Stub responses are matched in the order they were added.
func (s *Server) AddStubResponse(stub StubResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubResponses = append(s.stubResponses, stub)
}

// SetGlobalFailures sets failure configurations that apply to all requests.
// These are checked before stub-specific failures.
func (s *Server) SetGlobalFailures(failures []FailureConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalFailures = failures
}

// AddUser registers credentials accepted by signin. When no user is
// registered, signin accepts any user name.
func (s *Server) AddUser(user, pass string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user] = pass
}

// Requests returns the requests received so far, oldest first.
func (s *Server) Requests() []RecordedRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// Start starts the server and begins accepting HTTP and WebSocket connections.
// Returns an error if the server cannot bind to the specified address.
func (s *Server) Start() error {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts down the server and closes all connections, including
// hijacked WebSocket connections.
func (s *Server) Stop() error {
	err := s.httpServer.Close()

	s.mu.Lock()
	for socket := range s.connSessions {
		_ = socket.NetConn().Close()
	}
	s.mu.Unlock()

	return err
}

// Address returns the actual address the server is listening on.
// This is useful when using "127.0.0.1:0" to get the assigned port.
func (s *Server) Address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the server endpoint for the given scheme, e.g. "ws" or "http".
func (s *Server) URL(scheme string) string {
	return scheme + "://" + s.Address()
}

func (s *Server) record(transport string, req *request, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, RecordedRequest{
		Transport: transport,
		Method:    req.Method,
		Params:    req.Params,
		Namespace: sess.Namespace,
		Database:  sess.Database,
		Token:     sess.Token,
	})
}

// failuresFor returns the failures that fire for req, global ones first,
// and the stub matching req if there is one.
func (s *Server) failuresFor(req *request) ([]FailureConfig, *StubResponse) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fired []FailureConfig
	for _, failure := range s.globalFailures {
		if (failure.Method == "" || failure.Method == req.Method) && shouldTriggerFailure(failure.Probability) {
			fired = append(fired, failure)
		}
	}

	var matched *StubResponse
	for i := range s.stubResponses {
		if s.stubResponses[i].Matcher.matches(req) {
			stub := s.stubResponses[i]
			matched = &stub
			break
		}
	}
	if matched != nil {
		for _, failure := range matched.Failures {
			if shouldTriggerFailure(failure.Probability) {
				fired = append(fired, failure)
			}
		}
	}

	return fired, matched
}

func shouldTriggerFailure(probability float64) bool {
	if probability <= 0 {
		return false
	}
	if probability >= 1 {
		return true
	}
	return cryptoRandFloat64() < probability
}

func randomDuration(dMin, dMax time.Duration) time.Duration {
	if dMin >= dMax {
		return dMin
	}
	return dMin + time.Duration(cryptoRandInt64(int64(dMax-dMin)))
}

// MatchMethod creates a RequestMatcher that matches only by method name
func MatchMethod(method string) RequestMatcher {
	return RequestMatcher{
		Method:  method,
		Matcher: nil,
	}
}

// MatchMethodWithParams creates a RequestMatcher that matches by method name
// and parameter values using a custom matcher function
func MatchMethodWithParams(method string, matcher func(params []models.Value) bool) RequestMatcher {
	return RequestMatcher{
		Method:  method,
		Matcher: matcher,
	}
}

// MatchQuery matches query requests whose text contains fragment.
func MatchQuery(fragment string) RequestMatcher {
	return MatchMethodWithParams("query", func(params []models.Value) bool {
		if len(params) == 0 {
			return false
		}
		sql, err := params[0].AsString()
		return err == nil && strings.Contains(sql, fragment)
	})
}

// SimpleStubResponse creates a basic stub response for a method without failure injection
func SimpleStubResponse(method string, response any) StubResponse {
	return StubResponse{
		Matcher: MatchMethod(method),
		Result:  response,
	}
}

// ErrorStubResponse creates a stub response that returns an RPC error
func ErrorStubResponse(method string, code int, message string) StubResponse {
	return StubResponse{
		Matcher: MatchMethod(method),
		Error: &Error{
			Code:    code,
			Message: message,
		},
	}
}
