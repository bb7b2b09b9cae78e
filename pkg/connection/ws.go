package connection

import (
	"context"
	"fmt"
	"sync"

	gorilla "github.com/gorilla/websocket"

	"github.com/surrealdb/surrealdriver/internal/rand"
	"github.com/surrealdb/surrealdriver/pkg/constants"
	"github.com/surrealdb/surrealdriver/pkg/models"
)

// DefaultDialer is the default gorilla dialer used by the WebSocketConnection
//
// It uses the default gorilla dialer as of gorilla/websocket v1.5.0 with the following modifications:
// - EnableCompression is set to true
// - Subprotocols is set to ["cbor"]
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
	Subprotocols:      []string{constants.EncodingCBOR},
}

// WebSocketConnection is the stateful engine. Requests are pipelined over one
// socket and matched to replies by their random request ID.
type WebSocketConnection struct {
	BaseConnection

	Conn        *gorilla.Conn
	connLock    sync.Mutex
	dialer      *gorilla.Dialer
	compression bool
	messageType int

	// done is closed when the socket stops delivering replies,
	// either through Close or because the read loop failed.
	done      chan struct{}
	doneOnce  sync.Once
	doneErr   error
	closeOnce sync.Once
	closeErr  error
}

func NewWebSocketConnection(cfg *Config) *WebSocketConnection {
	dialer := cfg.Dialer
	if dialer == nil {
		d := *DefaultDialer
		dialer = &d
	}

	ws := &WebSocketConnection{
		BaseConnection: newBaseConnection(cfg),
		dialer:         dialer,
		compression:    cfg.Compression,
		messageType:    gorilla.BinaryMessage,
		done:           make(chan struct{}),
	}

	if _, isJSON := cfg.Marshaler.(models.JSONMarshaler); isJSON {
		ws.messageType = gorilla.TextMessage
		ws.dialer.Subprotocols = []string{constants.EncodingJSON}
	}

	return ws
}

func (ws *WebSocketConnection) Connect(ctx context.Context) error {
	if err := ws.preConnectionChecks(); err != nil {
		return err
	}

	connection, res, err := ws.dialer.DialContext(ctx, fmt.Sprintf("%s/rpc", ws.baseURL), nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	connection.EnableWriteCompression(ws.compression)
	ws.Conn = connection

	go ws.readLoop()
	return nil
}

func (ws *WebSocketConnection) Stateful() bool {
	return true
}

// Close closes the WebSocket connection and stops listening for incoming messages.
// Calls still waiting for a reply fail with constants.ErrConnectionClosed.
//
// The context bounds how long Close waits for the close frame to be written.
// If the context is canceled, the connection is still closed locally.
// Close is idempotent; later calls return the result of the first.
func (ws *WebSocketConnection) Close(ctx context.Context) error {
	ws.closeOnce.Do(func() {
		ws.shutdown(constants.ErrConnectionClosed)

		if ws.Conn == nil {
			return
		}

		writeErr := make(chan error, 1)
		go func() {
			ws.connLock.Lock()
			defer ws.connLock.Unlock()
			writeErr <- ws.Conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(constants.CloseMessageCode, ""))
		}()

		select {
		case err := <-writeErr:
			if err != nil {
				ws.logger.Warn("failed to write close message", "error", err)
			}
		case <-ctx.Done():
			ws.logger.Warn("close message not sent before deadline", "error", ctx.Err())
		}

		ws.closeErr = ws.Conn.Close()
	})
	return ws.closeErr
}

// Send writes req and waits for the matching reply, for ctx to end, or for
// the socket to die. Cancelling ctx only abandons this call.
func (ws *WebSocketConnection) Send(ctx context.Context, req *Request) (*RPCResponse, error) {
	select {
	case <-ws.done:
		return nil, ws.doneErr
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if ws.Conn == nil {
		return nil, constants.ErrNotConnected
	}

	id := rand.NewRequestID(constants.RequestIDLength)
	request := &RPCRequest{
		ID:     id,
		Method: string(req.Method),
		Params: req.Params,
	}

	responseChan, err := ws.createResponseChannel(id)
	if err != nil {
		return nil, err
	}
	defer ws.removeResponseChannel(id)

	if err := ws.write(request); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-ws.done:
		// A reply may have raced the shutdown.
		select {
		case r := <-responseChan:
			return r.res, r.err
		default:
		}
		return nil, ws.doneErr
	case r := <-responseChan:
		return r.res, r.err
	}
}

func (ws *WebSocketConnection) write(v any) error {
	data, err := ws.marshaler.Marshal(v)
	if err != nil {
		return err
	}

	ws.connLock.Lock()
	defer ws.connLock.Unlock()
	return ws.Conn.WriteMessage(ws.messageType, data)
}

func (ws *WebSocketConnection) readLoop() {
	for {
		_, data, err := ws.Conn.ReadMessage()
		if err != nil {
			ws.handleError(err)
			return
		}
		ws.handleResponse(data)
	}
}

func (ws *WebSocketConnection) handleError(err error) {
	select {
	case <-ws.done:
		// Closed by us; the read error is the expected consequence.
		return
	default:
	}

	if gorilla.IsUnexpectedCloseError(err, gorilla.CloseNormalClosure) {
		ws.logger.Error("websocket closed unexpectedly", "error", err)
	} else {
		ws.logger.Warn("websocket read failed", "error", err)
	}
	ws.shutdown(fmt.Errorf("%w: %w", constants.ErrConnectionClosed, err))
}

func (ws *WebSocketConnection) shutdown(cause error) {
	ws.doneOnce.Do(func() {
		ws.doneErr = cause
		close(ws.done)
	})
}

func (ws *WebSocketConnection) handleResponse(data []byte) {
	res, id, err := ws.decodeResponse(data)
	if id == "" {
		if err != nil {
			ws.logger.Error("dropping unreadable reply", "error", err)
		} else {
			ws.logger.Warn("dropping reply without id")
		}
		return
	}

	responseChan, ok := ws.getResponseChannel(id)
	if !ok {
		ws.logger.Warn("dropping reply for unknown request", "id", id)
		return
	}

	select {
	case responseChan <- reply{res: res, err: err}:
	default:
		ws.logger.Warn("dropping duplicate reply", "id", id)
	}
}

var _ Connection = (*WebSocketConnection)(nil)
