// Package logger provides the structured logger used by connections and the
// DB facade. The default implementation writes zerolog JSON lines.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

// Logger is the logging surface the driver depends on.
// Args are alternating key/value pairs, as with log/slog.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

type LogBuild struct {
	writer io.Writer
	path   string
	level  zerolog.Level
}

type LogData struct {
	LogFile *os.File
	Logger  zerolog.Logger
}

func New() *LogBuild {
	return &LogBuild{level: zerolog.InfoLevel}
}

func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

func (build *LogBuild) Level(level zerolog.Level) *LogBuild {
	build.level = level
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)
	writer := build.writer
	if writer == nil {
		writer = os.Stderr
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		writer = zerolog.SyncWriter(logData.LogFile)
	}
	logData.Logger = zerolog.New(writer).Level(build.level).With().Timestamp().Logger()
	return logData, nil
}

// Close releases the log file, if the logger was built with FromPath.
func (l *LogData) Close() error {
	if l.LogFile == nil {
		return nil
	}
	return l.LogFile.Close()
}

func (l *LogData) Error(msg string, args ...any) {
	withFields(l.Logger.Error(), args).Msg(msg)
}

func (l *LogData) Warn(msg string, args ...any) {
	withFields(l.Logger.Warn(), args).Msg(msg)
}

func (l *LogData) Info(msg string, args ...any) {
	withFields(l.Logger.Info(), args).Msg(msg)
}

func (l *LogData) Debug(msg string, args ...any) {
	withFields(l.Logger.Debug(), args).Msg(msg)
}

// FromZerolog wraps an existing zerolog.Logger.
func FromZerolog(zl zerolog.Logger) *LogData {
	return &LogData{Logger: zl}
}

// Nop returns a Logger that discards everything.
func Nop() *LogData {
	return FromZerolog(zerolog.Nop())
}

// Default is the logger used when a Config does not carry one:
// warnings and errors to stderr.
func Default() *LogData {
	return FromZerolog(zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger())
}

func withFields(ev *zerolog.Event, args []any) *zerolog.Event {
	if ev == nil {
		// level disabled
		return ev
	}
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if i+1 == len(args) {
			ev = ev.Interface("!BADKEY", args[i])
			break
		}
		switch v := args[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case string:
			ev = ev.Str(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	return ev
}
