package slog_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	rawslog "log/slog"

	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdriver/pkg/logger"
	"github.com/surrealdb/surrealdriver/pkg/logger/slog"
)

type testMethod struct {
	fn    func(msg string, args ...any)
	level rawslog.Level
}

var (
	LogText         = "Test Log Value"
	CustomFieldName = "SomeKey"
	CustomFieldVal  = "SomeVal"
)

type testLogJSON struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	CustomVal string `json:"SomeKey"`
}

func TestLogger(t *testing.T) {
	buffer := bytes.NewBuffer([]byte{})

	// level needs to be set to debug for log all
	handler := rawslog.NewJSONHandler(buffer, &rawslog.HandlerOptions{Level: rawslog.LevelDebug})
	var l logger.Logger = slog.New(handler)

	testMethods := []testMethod{
		{fn: l.Error, level: rawslog.LevelError},
		{fn: l.Warn, level: rawslog.LevelWarn},
		{fn: l.Info, level: rawslog.LevelInfo},
		{fn: l.Debug, level: rawslog.LevelDebug},
	}

	for _, v := range testMethods {
		buffer.Reset()
		t.Run(fmt.Sprintf("testing %s", v.level.String()), func(t *testing.T) {
			checkMethod(t, v.fn, buffer, v.level.String())
		})
	}
}

func checkMethod(t *testing.T, loggerFunc func(msg string, args ...any), buffer *bytes.Buffer, levelStr string) {
	require.Zero(t, buffer.Len())

	loggerFunc(LogText, CustomFieldName, CustomFieldVal)

	var line testLogJSON
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &line))

	require.Equal(t, levelStr, line.Level)
	require.Equal(t, LogText, line.Msg)
	require.Equal(t, CustomFieldVal, line.CustomVal)
}
