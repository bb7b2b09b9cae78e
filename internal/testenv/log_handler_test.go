package testenv

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ExampleNewLogHandler() {
	handler := NewLogHandler()
	logger := slog.New(handler)

	logger.Info("Application started")
	logger.Warn("Cache miss", slog.String("key", "user:123"))
	logger.Error("Database connection failed", slog.Int("retry", 3))

	// Output:
	// [0] INFO: Application started
	// [1] WARN: Cache miss key=user:123
	// [2] ERROR: Database connection failed retry=3
}

func ExampleNewLogHandler_groups() {
	logger := slog.New(NewLogHandler()).With("conn", "ws").WithGroup("rpc")

	logger.Info("sent", slog.String("method", "query"), slog.Group("session", slog.String("ns", "test")))

	// Output:
	// [0] INFO: sent conn=ws, rpc.method=query, rpc.session.ns=test
}

func TestLogHandlerIgnoreDebug(t *testing.T) {
	var buf LogBuffer
	logger := slog.New(NewLogHandler(WithWriter(&buf), WithIgnoreDebug()))

	logger.Debug("hidden")
	logger.Info("shown")
	logger.With("k", 1).Warn("derived handlers share the index")

	assert.Equal(t, "[0] INFO: shown\n[1] WARN: derived handlers share the index k=1\n", buf.String())
}
