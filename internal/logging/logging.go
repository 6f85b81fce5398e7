// Package logging provides a small structured logging abstraction over the
// standard library's log package, adapted from fluxor's pkg/core/logger.go.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"
)

// Logger is a structured logger. The interface allows swapping
// implementations without touching call sites.
type Logger interface {
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	// WithFields returns a logger carrying additional structured fields.
	WithFields(fields map[string]interface{}) Logger
	// WithContext returns a logger annotated with the request ID in ctx, if any.
	WithContext(ctx context.Context) Logger
}

// Config controls logger output.
type Config struct {
	JSONOutput bool
	Level      string // DEBUG, INFO, WARN, ERROR
}

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

type logger struct {
	errorLogger *log.Logger
	warnLogger  *log.Logger
	infoLogger  *log.Logger
	debugLogger *log.Logger
	cfg         Config
	minLevel    int
	fields      map[string]interface{}
}

// New builds a Logger from cfg.
func New(cfg Config) Logger {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	min, ok := levelRank[cfg.Level]
	if !ok {
		min = 1
	}
	return &logger{
		errorLogger: log.New(os.Stderr, "[ERROR] ", log.LstdFlags),
		warnLogger:  log.New(os.Stderr, "[WARN] ", log.LstdFlags),
		infoLogger:  log.New(os.Stdout, "[INFO] ", log.LstdFlags),
		debugLogger: log.New(os.Stdout, "[DEBUG] ", log.LstdFlags),
		cfg:         cfg,
		minLevel:    min,
		fields:      map[string]interface{}{},
	}
}

// Default returns a plain-text, INFO-level logger writing to stdout/stderr.
func Default() Logger {
	return New(Config{Level: "INFO"})
}

type entry struct {
	Timestamp string                 `json:"timestamp,omitempty"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (l *logger) emit(level string, rank int, dest *log.Logger, message string) {
	if rank < l.minLevel {
		return
	}
	if l.cfg.JSONOutput {
		e := entry{Timestamp: time.Now().UTC().Format(time.RFC3339), Level: level, Message: message}
		if len(l.fields) > 0 {
			e.Fields = l.fields
		}
		if data, err := json.Marshal(e); err == nil {
			dest.Output(3, string(data))
			return
		}
	}
	if len(l.fields) > 0 {
		dest.Output(3, fmt.Sprintf("%s %v", message, l.fields))
		return
	}
	dest.Output(3, message)
}

func (l *logger) Error(args ...interface{}) { l.emit("ERROR", 3, l.errorLogger, fmt.Sprint(args...)) }
func (l *logger) Errorf(format string, args ...interface{}) {
	l.emit("ERROR", 3, l.errorLogger, fmt.Sprintf(format, args...))
}
func (l *logger) Warn(args ...interface{}) { l.emit("WARN", 2, l.warnLogger, fmt.Sprint(args...)) }
func (l *logger) Warnf(format string, args ...interface{}) {
	l.emit("WARN", 2, l.warnLogger, fmt.Sprintf(format, args...))
}
func (l *logger) Info(args ...interface{}) { l.emit("INFO", 1, l.infoLogger, fmt.Sprint(args...)) }
func (l *logger) Infof(format string, args ...interface{}) {
	l.emit("INFO", 1, l.infoLogger, fmt.Sprintf(format, args...))
}
func (l *logger) Debug(args ...interface{}) { l.emit("DEBUG", 0, l.debugLogger, fmt.Sprint(args...)) }
func (l *logger) Debugf(format string, args ...interface{}) {
	l.emit("DEBUG", 0, l.debugLogger, fmt.Sprintf(format, args...))
}

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	cp := *l
	cp.fields = merged
	return &cp
}

func (l *logger) WithContext(ctx context.Context) Logger {
	if id := RequestID(ctx); id != "" {
		return l.WithFields(map[string]interface{}{"request_id": id})
	}
	return l
}

type requestIDKey struct{}

// WithRequestID attaches a request ID to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID extracts the request ID attached by WithRequestID, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
