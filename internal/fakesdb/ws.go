package fakesdb

import (
	"context"
	"crypto/rand"
	"log"
	"time"

	"github.com/lxzan/gws"

	"github.com/surrealdb/surrealdriver/pkg/models"
)

func (h *Handler) OnOpen(socket *gws.Conn) {
	h.server.mu.Lock()
	h.server.connSessions[socket] = &Session{Vars: make(map[string]models.Value)}
	h.server.mu.Unlock()
}

func (h *Handler) OnClose(socket *gws.Conn, err error) {
	h.server.mu.Lock()
	delete(h.server.connSessions, socket)
	h.server.mu.Unlock()
}

func (h *Handler) OnPing(socket *gws.Conn, payload []byte) {
	if err := socket.WritePong(payload); err != nil {
		log.Printf("Error writing Pong: %v", err)
	}
}

func (h *Handler) OnPong(socket *gws.Conn, payload []byte) {
}

// OnMessage answers one RPC request. Binary frames are CBOR, text frames JSON,
// and the reply uses the same framing as the request.
func (h *Handler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	opcode := message.Opcode
	wire := cborCodec
	if opcode == gws.OpcodeText {
		wire = jsonCodec
	}

	var req request
	if err := wire.Unmarshal(message.Bytes(), &req); err != nil {
		h.send(socket, opcode, wire, &response{Error: &Error{Code: codeParse, Message: "Parse error"}})
		return
	}

	h.server.mu.RLock()
	sess, ok := h.server.connSessions[socket]
	h.server.mu.RUnlock()
	if !ok {
		return
	}

	h.server.record("ws", &req, sess)

	failures, stub := h.server.failuresFor(&req)
	for _, failure := range failures {
		if stop := h.applyFailure(socket, opcode, wire, failure, &req); stop {
			return
		}
	}

	result, rpcErr := h.server.dispatch(context.Background(), sess, &req, stub)
	h.send(socket, opcode, wire, &response{ID: req.ID, Error: rpcErr, Result: result})
}

// applyFailure reports whether the request must not be answered.
func (h *Handler) applyFailure(socket *gws.Conn, opcode gws.Opcode, wire wireCodec, failure FailureConfig, req *request) bool {
	switch failure.Type {
	case FailureResponseDelay:
		time.Sleep(randomDuration(failure.MinDelay, failure.MaxDelay))
		return false

	case FailureDropResponse:
		return true

	case FailureInvalidResponse:
		data := make([]byte, 100)
		if _, err := rand.Read(data); err != nil {
			log.Printf("Error generating invalid response: %v", err)
		}
		if err := socket.WriteMessage(opcode, data); err != nil {
			log.Printf("Error writing invalid response: %v", err)
		}
		return true

	case FailureUnreadableResult:
		data, err := wire.Marshal(unreadable(req.ID))
		if err != nil {
			log.Printf("Error marshaling unreadable result: %v", err)
			return true
		}
		if err := socket.WriteMessage(opcode, data); err != nil {
			log.Printf("Error writing unreadable result: %v", err)
		}
		return true

	case FailureDropConnection:
		_ = socket.NetConn().Close()
		return true

	case FailureWebSocketClose:
		code := failure.CloseCode
		if code == 0 {
			code = 1001
		}
		reason := failure.CloseReason
		if reason == "" {
			reason = "failure injection"
		}
		socket.WriteClose(code, []byte(reason))
		return true
	}

	return false
}

// unreadable is a reply whose id is intact but whose error member has the
// wrong shape.
func unreadable(id any) map[string]any {
	return map[string]any{"id": id, "error": "unreadable"}
}

func (h *Handler) send(socket *gws.Conn, opcode gws.Opcode, wire wireCodec, resp *response) {
	data, err := wire.Marshal(resp)
	if err != nil {
		data, err = wire.Marshal(&response{ID: resp.ID, Error: &Error{Code: -32603, Message: err.Error()}})
		if err != nil {
			log.Printf("Failed to marshal response: %v", err)
			return
		}
	}
	if err := socket.WriteMessage(opcode, data); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}
