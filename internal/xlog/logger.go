// Package xlog implements the non-blocking log producer described in
// the design notes: the hot path enqueues a small tagged record into an
// SPSC queue; a single background goroutine dequeues, formats, and
// writes. Formatting and any I/O happen off the hot path, mirroring the
// reference logger's lock-free-queue-plus-background-thread design.
package xlog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"lowlatency-exchange/internal/clock"
	"lowlatency-exchange/internal/ringbuf"
	"lowlatency-exchange/internal/spin"
)

// Level mirrors the reference logger's severity levels.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// kind tags which union member a LogMessage holds, avoiding an
// interface{} allocation for the two common cases.
type kind uint8

const (
	kindStatic kind = iota
	kindStaticI64
	kindStaticU64
	kindStaticF64
	kindFormatted
)

// LogMessage is a small tagged union: a static string, optionally with
// one scalar, or — rarely, and only ever constructed off the hot path —
// an already-formatted string.
type LogMessage struct {
	kind      kind
	static    string
	i64       int64
	u64       uint64
	f64       float64
	formatted string
}

// Static builds a zero-allocation message from a string literal.
func Static(msg string) LogMessage { return LogMessage{kind: kindStatic, static: msg} }

// WithI64 builds a message carrying one signed integer, formatted later.
func WithI64(msg string, v int64) LogMessage {
	return LogMessage{kind: kindStaticI64, static: msg, i64: v}
}

// WithU64 builds a message carrying one unsigned integer, formatted later.
func WithU64(msg string, v uint64) LogMessage {
	return LogMessage{kind: kindStaticU64, static: msg, u64: v}
}

// WithF64 builds a message carrying one float, formatted later.
func WithF64(msg string, v float64) LogMessage {
	return LogMessage{kind: kindStaticF64, static: msg, f64: v}
}

// Formatted wraps an already-formatted string. This allocates at the
// call site, so hot-path code should prefer Static/WithI64/WithU64/WithF64.
func Formatted(s string) LogMessage { return LogMessage{kind: kindFormatted, formatted: s} }

func (m LogMessage) render() string {
	switch m.kind {
	case kindStatic:
		return m.static
	case kindStaticI64:
		return fmt.Sprintf("%s: %d", m.static, m.i64)
	case kindStaticU64:
		return fmt.Sprintf("%s: %d", m.static, m.u64)
	case kindStaticF64:
		return fmt.Sprintf("%s: %.6f", m.static, m.f64)
	case kindFormatted:
		return m.formatted
	default:
		return ""
	}
}

// Entry is a single queued log record.
type Entry struct {
	Timestamp clock.Nanos
	Level     Level
	Message   LogMessage
}

const queueCapacity = 4096

// Logger offloads formatting and writing to a single background
// goroutine. The zero value is not usable; construct with New or
// NewFile.
type Logger struct {
	queue    *ringbuf.Queue[Entry]
	sink     *zap.Logger
	minLevel Level
	running  chan struct{}
	flushReq chan struct{}
	flushed  chan struct{}
	closer   func() error
}

// New creates a Logger that writes formatted entries to sink. sink is
// the off-hot-path structured sink — it is only ever touched from the
// background consumer goroutine, never from a hot-path caller.
func New(sink *zap.Logger, minLevel Level) *Logger {
	l := &Logger{
		queue:    ringbuf.New[Entry](queueCapacity),
		sink:     sink,
		minLevel: minLevel,
		running:  make(chan struct{}),
		flushReq: make(chan struct{}, 1),
		flushed:  make(chan struct{}, 1),
	}
	go l.consumeLoop()
	return l
}

// NewFile creates a Logger whose sink is a rotating file, using the
// pack-sourced lumberjack rotation dependency rather than hand-rolled
// log-file rotation.
func NewFile(path string, minLevel Level) *Logger {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(lj), zapcore.DebugLevel)
	sink := zap.New(core)

	l := New(sink, minLevel)
	l.closer = lj.Close
	return l
}

// Log enqueues a tagged entry. If the queue is full, the entry is
// dropped rather than blocking the caller — a deliberate choice for a
// latency-sensitive system, matching the reference logger's policy.
func (l *Logger) Log(level Level, msg LogMessage) {
	if level < l.minLevel {
		return
	}
	l.queue.Push(Entry{Timestamp: clock.Now(), Level: level, Message: msg})
}

// Debug enqueues a static debug message.
func (l *Logger) Debug(msg string) { l.Log(Debug, Static(msg)) }

// Info enqueues a static info message.
func (l *Logger) Info(msg string) { l.Log(Info, Static(msg)) }

// Warn enqueues a static warning message.
func (l *Logger) Warn(msg string) { l.Log(Warn, Static(msg)) }

// ErrorMsg enqueues a static error message (named to avoid shadowing
// the built-in error type at call sites).
func (l *Logger) ErrorMsg(msg string) { l.Log(Error, Static(msg)) }

// InfoI64 enqueues an info message with one signed integer value.
func (l *Logger) InfoI64(msg string, v int64) { l.Log(Info, WithI64(msg, v)) }

// InfoU64 enqueues an info message with one unsigned integer value.
func (l *Logger) InfoU64(msg string, v uint64) { l.Log(Info, WithU64(msg, v)) }

// WarnU64 enqueues a warning message with one unsigned integer value.
func (l *Logger) WarnU64(msg string, v uint64) { l.Log(Warn, WithU64(msg, v)) }

// consumeLoop is the sole consumer goroutine. Idle backoff is
// progressive: spin, then yield, then sleep — grounded directly in the
// reference logger's three-tier backoff.
func (l *Logger) consumeLoop() {
	var backoff spin.Backoff
	for {
		select {
		case <-l.running:
			l.drain()
			return
		default:
		}

		entry, ok := l.queue.Pop()
		if !ok {
			select {
			case <-l.flushReq:
				l.flushed <- struct{}{}
			default:
			}
			backoff.Idle()
			continue
		}
		backoff.Reset()
		l.write(entry)
	}
}

func (l *Logger) drain() {
	for {
		entry, ok := l.queue.Pop()
		if !ok {
			return
		}
		l.write(entry)
	}
}

func (l *Logger) write(entry Entry) {
	msg := entry.Message.render()
	switch entry.Level {
	case Debug:
		l.sink.Debug(msg, zap.Uint64("ts_ns", uint64(entry.Timestamp)))
	case Info:
		l.sink.Info(msg, zap.Uint64("ts_ns", uint64(entry.Timestamp)))
	case Warn:
		l.sink.Warn(msg, zap.Uint64("ts_ns", uint64(entry.Timestamp)))
	case Error:
		l.sink.Error(msg, zap.Uint64("ts_ns", uint64(entry.Timestamp)))
	}
}

// Flush blocks until every entry queued before the call has been
// written.
func (l *Logger) Flush() {
	select {
	case l.flushReq <- struct{}{}:
	default:
	}
	<-l.flushed
}

// Close stops the background goroutine after draining the queue, and
// closes the underlying sink if one was opened by NewFile.
func (l *Logger) Close() error {
	close(l.running)
	_ = l.sink.Sync()
	if l.closer != nil {
		return l.closer()
	}
	return nil
}
