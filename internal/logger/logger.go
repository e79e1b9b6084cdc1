// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides a simple logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
	With(component string) Logger
}

type zeroLogger struct {
	log zerolog.Logger
}

// New creates a console logger for the given component at the given level
// ("debug", "info", "warn", "error"; anything else means info).
func New(component, level string) Logger {
	return NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}, component, level)
}

// NewWithWriter is New with an explicit output.
func NewWithWriter(w io.Writer, component, level string) Logger {
	l := zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("component", component).
		Logger()
	return &zeroLogger{log: l}
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return &zeroLogger{log: zerolog.Nop()}
}

// ParseLevel maps a config string to a zerolog level
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *zeroLogger) Info(format string, args ...interface{}) {
	l.log.Info().Msg(fmt.Sprintf(format, args...))
}

func (l *zeroLogger) Warn(format string, args ...interface{}) {
	l.log.Warn().Msg(fmt.Sprintf(format, args...))
}

func (l *zeroLogger) Error(format string, args ...interface{}) {
	l.log.Error().Msg(fmt.Sprintf(format, args...))
}

func (l *zeroLogger) Debug(format string, args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprintf(format, args...))
}

func (l *zeroLogger) With(component string) Logger {
	return &zeroLogger{log: l.log.With().Str("module", component).Logger()}
}
