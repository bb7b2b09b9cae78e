package fakesdb

import (
	"crypto/rand"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/surrealdb/surrealdriver/pkg/models"
)

// serveRPC upgrades WebSocket handshakes and otherwise answers a single RPC
// call sent as an HTTP POST. HTTP calls carry their session in headers.
func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		socket, err := s.upgrader.Upgrade(w, r)
		if err != nil {
			log.Printf("Upgrade error: %v", err)
			return
		}
		go socket.ReadLoop()
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	wire := jsonCodec
	if strings.Contains(r.Header.Get("Content-Type"), "cbor") {
		wire = cborCodec
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req request
	if err := wire.Unmarshal(body, &req); err != nil {
		s.writeHTTP(w, wire, http.StatusBadRequest, &response{Error: &Error{Code: codeParse, Message: "Parse error"}})
		return
	}

	sess := &Session{
		Namespace: r.Header.Get("Surreal-NS"),
		Database:  r.Header.Get("Surreal-DB"),
		Token:     strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
		Vars:      make(map[string]models.Value),
	}
	s.record("http", &req, sess)

	if sess.Token != "" {
		s.mu.RLock()
		user, authErr := s.checkToken(sess.Token)
		s.mu.RUnlock()
		if authErr != nil {
			s.writeHTTP(w, wire, http.StatusUnauthorized, &response{ID: req.ID, Error: authErr})
			return
		}
		sess.Username = user
	}

	failures, stub := s.failuresFor(&req)
	for _, failure := range failures {
		switch failure.Type {
		case FailureResponseDelay:
			select {
			case <-time.After(randomDuration(failure.MinDelay, failure.MaxDelay)):
			case <-r.Context().Done():
				return
			}
		case FailureDropResponse, FailureDropConnection, FailureWebSocketClose:
			hijackAndClose(w)
			return
		case FailureInvalidResponse:
			data := make([]byte, 100)
			_, _ = rand.Read(data)
			w.Header().Set("Content-Type", wire.ContentType())
			_, _ = w.Write(data)
			return
		case FailureUnreadableResult:
			data, _ := wire.Marshal(unreadable(req.ID))
			w.Header().Set("Content-Type", wire.ContentType())
			_, _ = w.Write(data)
			return
		}
	}

	result, rpcErr := s.dispatch(r.Context(), sess, &req, stub)
	status := http.StatusOK
	if rpcErr != nil {
		status = http.StatusBadRequest
	}
	s.writeHTTP(w, wire, status, &response{ID: req.ID, Error: rpcErr, Result: result})
}

func (s *Server) writeHTTP(w http.ResponseWriter, wire wireCodec, status int, resp *response) {
	data, err := wire.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", wire.ContentType())
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

func hijackAndClose(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}
