package xlog

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func newTestLogger(t *testing.T, level Level) *Logger {
	t.Helper()
	l := New(zaptest.NewLogger(t), level)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLogAndFlushDoesNotPanic(t *testing.T) {
	l := newTestLogger(t, Debug)
	l.Info("hello")
	l.InfoI64("count", 42)
	l.WarnU64("queue depth", 7)
	l.Flush()
}

func TestBelowMinLevelIsDropped(t *testing.T) {
	l := newTestLogger(t, Warn)
	l.Debug("should not reach the sink")
	l.Info("also should not reach the sink")
	l.Warn("this one should")
	l.Flush()
}

func TestFlushWaitsForBacklog(t *testing.T) {
	l := newTestLogger(t, Debug)
	for i := 0; i < 500; i++ {
		l.InfoI64("burst", int64(i))
	}
	l.Flush()
	if l.queue.Len() != 0 {
		t.Fatalf("expected queue drained after Flush, got len=%d", l.queue.Len())
	}
}

func TestRenderVariants(t *testing.T) {
	cases := []LogMessage{
		Static("plain"),
		WithI64("signed", -5),
		WithU64("unsigned", 5),
		WithF64("float", 1.5),
		Formatted("already formatted"),
	}
	for _, m := range cases {
		if m.render() == "" {
			t.Fatalf("render returned empty string for kind %d", m.kind)
		}
	}
}
