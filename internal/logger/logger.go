// Package logger 提供按组件打标签的结构化日志，底层使用 zerolog。
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()
)

// Setup 按配置重建全局 logger。format 为 "json" 时输出 JSON，否则输出控制台格式。
func Setup(level, format string) {
	SetOutput(os.Stderr, format)

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// SetOutput redirects log output. Tests use it to silence or capture logs.
func SetOutput(w io.Writer, format string) {
	var out io.Writer = w
	if strings.ToLower(strings.TrimSpace(format)) != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: w != os.Stderr}
	}

	mu.Lock()
	base = zerolog.New(out).With().Timestamp().Logger()
	mu.Unlock()
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func emit(ev *zerolog.Event, component, message string, fields map[string]interface{}) {
	if component != "" {
		ev = ev.Str("component", component)
	}
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(message)
}

// DebugCF logs at debug level with a component tag and optional fields.
func DebugCF(component, message string, fields map[string]interface{}) {
	l := current()
	emit(l.Debug(), component, message, fields)
}

// InfoCF logs at info level with a component tag and optional fields.
func InfoCF(component, message string, fields map[string]interface{}) {
	l := current()
	emit(l.Info(), component, message, fields)
}

// WarnCF logs at warn level with a component tag and optional fields.
func WarnCF(component, message string, fields map[string]interface{}) {
	l := current()
	emit(l.Warn(), component, message, fields)
}

// ErrorCF logs at error level with a component tag and optional fields.
func ErrorCF(component, message string, fields map[string]interface{}) {
	l := current()
	emit(l.Error(), component, message, fields)
}

// Fatal logs and exits the process.
func Fatal(component, message string, err error) {
	l := current()
	l.Fatal().Str("component", component).Err(err).Msg(message)
}
