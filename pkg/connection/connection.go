package connection

import (
	"context"
	"fmt"
	"sync"

	"github.com/surrealdb/surrealdriver/internal/codec"
	"github.com/surrealdb/surrealdriver/pkg/constants"
	"github.com/surrealdb/surrealdriver/pkg/logger"
)

// Connection is the raw transport contract shared by the WebSocket and HTTP engines.
//
// Send returns an error only when no reply could be obtained or the reply
// could not be read. A server-side rejection of the request is reported in
// RPCResponse.Error.
type Connection interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	Send(ctx context.Context, req *Request) (*RPCResponse, error)
	// Stateful reports whether the server keeps session state for this
	// connection. A stateless engine needs the session on every Request.
	Stateful() bool
}

// reply is what the read loop hands to a waiting Send.
type reply struct {
	res *RPCResponse
	err error
}

type BaseConnection struct {
	baseURL     string
	marshaler   codec.Marshaler
	unmarshaler codec.Unmarshaler
	logger      logger.Logger

	responseChannels     map[string]chan reply
	responseChannelsLock sync.RWMutex
}

func newBaseConnection(cfg *Config) BaseConnection {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return BaseConnection{
		baseURL:          cfg.BaseURL,
		marshaler:        cfg.Marshaler,
		unmarshaler:      cfg.Unmarshaler,
		logger:           log,
		responseChannels: make(map[string]chan reply),
	}
}

func (bc *BaseConnection) createResponseChannel(id string) (chan reply, error) {
	bc.responseChannelsLock.Lock()
	defer bc.responseChannelsLock.Unlock()

	if _, ok := bc.responseChannels[id]; ok {
		return nil, fmt.Errorf("%w: %v", constants.ErrIDInUse, id)
	}

	// Buffered so the read loop never blocks on a caller that has gone away.
	ch := make(chan reply, 1)
	bc.responseChannels[id] = ch

	return ch, nil
}

func (bc *BaseConnection) removeResponseChannel(id string) {
	bc.responseChannelsLock.Lock()
	defer bc.responseChannelsLock.Unlock()
	delete(bc.responseChannels, id)
}

func (bc *BaseConnection) getResponseChannel(id string) (chan reply, bool) {
	bc.responseChannelsLock.RLock()
	defer bc.responseChannelsLock.RUnlock()
	ch, ok := bc.responseChannels[id]
	return ch, ok
}

// pending is the number of requests still waiting for a reply.
func (bc *BaseConnection) pending() int {
	bc.responseChannelsLock.RLock()
	defer bc.responseChannelsLock.RUnlock()
	return len(bc.responseChannels)
}

func (bc *BaseConnection) preConnectionChecks() error {
	if bc.baseURL == "" {
		return constants.ErrNoBaseURL
	}

	if bc.marshaler == nil || bc.unmarshaler == nil {
		return constants.ErrNoCodec
	}

	return nil
}

// decodeResponse reads a reply envelope. When the envelope is unreadable it
// still tries to recover the request ID, so that the failure reaches the
// caller that is waiting for it.
func (bc *BaseConnection) decodeResponse(data []byte) (res *RPCResponse, id string, err error) {
	res = new(RPCResponse)
	if err := bc.unmarshaler.Unmarshal(data, res); err != nil {
		var probe struct {
			ID any `json:"id"`
		}
		if bc.unmarshaler.Unmarshal(data, &probe) == nil && probe.ID != nil {
			id = fmt.Sprint(probe.ID)
		}
		return nil, id, fmt.Errorf("%w: %w", constants.ErrInvalidResponse, err)
	}
	if res.ID != nil {
		id = fmt.Sprint(res.ID)
	}
	return res, id, nil
}
