package connection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/surrealdb/surrealdriver/internal/rand"
	"github.com/surrealdb/surrealdriver/pkg/constants"
	"github.com/surrealdb/surrealdriver/pkg/models"
)

// HTTPConnection is the stateless engine. Every call is an independent
// POST /rpc carrying the session as headers and bound variables.
type HTTPConnection struct {
	BaseConnection

	httpClient *http.Client
	closed     atomic.Bool
}

func NewHTTPConnection(cfg *Config) *HTTPConnection {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &HTTPConnection{
		BaseConnection: newBaseConnection(cfg),
		httpClient:     client,
	}
}

// Connect checks that the server answers on /health.
func (h *HTTPConnection) Connect(ctx context.Context) error {
	if err := h.preConnectionChecks(); err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/health", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (h *HTTPConnection) Close(ctx context.Context) error {
	if h.closed.CompareAndSwap(false, true) {
		h.httpClient.CloseIdleConnections()
	}
	return nil
}

func (h *HTTPConnection) Stateful() bool {
	return false
}

func (h *HTTPConnection) SetHTTPClient(client *http.Client) *HTTPConnection {
	h.httpClient = client
	return h
}

func (h *HTTPConnection) Send(ctx context.Context, req *Request) (*RPCResponse, error) {
	if h.closed.Load() {
		return nil, constants.ErrConnectionClosed
	}

	switch req.Method {
	case Use, Let, Unset, Authenticate, Invalidate:
		// Session state lives in the caller and travels with every request.
		return &RPCResponse{Result: models.NoneValue()}, nil
	}

	params := req.Params
	if req.Method == Query {
		params = withSessionVars(params, req.Session.Vars)
	}

	rpcReq := &RPCRequest{
		ID:     rand.NewRequestID(constants.RequestIDLength),
		Method: string(req.Method),
		Params: params,
	}

	reqBody, err := h.marshaler.Marshal(rpcReq)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/rpc", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	contentType := h.marshaler.ContentType()
	httpReq.Header.Set("Accept", contentType)
	httpReq.Header.Set("Content-Type", contentType)

	if req.Session.Namespace != "" {
		httpReq.Header.Set(constants.HeaderNamespace, req.Session.Namespace)
	}
	if req.Session.Database != "" {
		httpReq.Header.Set(constants.HeaderDatabase, req.Session.Database)
	}
	if req.Session.Token != "" {
		httpReq.Header.Set(constants.HeaderAuthorization, "Bearer "+req.Session.Token)
	}

	respData, status, err := h.makeRequest(httpReq)
	if err != nil {
		return nil, err
	}

	res, _, err := h.decodeResponse(respData)
	if err != nil {
		if status != http.StatusOK {
			return nil, fmt.Errorf("%w: HTTP %d: %s", constants.ErrInvalidResponse, status, bytes.TrimSpace(respData))
		}
		return nil, err
	}
	return res, nil
}

func (h *HTTPConnection) makeRequest(req *http.Request) ([]byte, int, error) {
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			h.logger.Warn("failed to close response body", "error", err)
		}
	}()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return respBytes, resp.StatusCode, nil
}

// withSessionVars merges the session variables under the query's own. The
// query's own variables win.
func withSessionVars(params []any, sessionVars map[string]any) []any {
	if len(sessionVars) == 0 {
		return params
	}

	merged := make(map[string]any, len(sessionVars))
	for k, v := range sessionVars {
		merged[k] = v
	}

	out := append([]any{}, params...)
	if len(out) < 2 {
		out = append(out, make([]any, 2-len(out))...)
	}
	if vars, ok := out[1].(map[string]any); ok {
		for k, v := range vars {
			merged[k] = v
		}
	}
	out[1] = merged
	return out
}

var _ Connection = (*HTTPConnection)(nil)
