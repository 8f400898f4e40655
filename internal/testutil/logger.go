package testutil

import (
	"fmt"
	"strings"
	"testing"
)

// TestLogger routes log lines to t.Log so they show up only for failing tests.
type TestLogger struct {
	t testing.TB
}

func NewTestLogger(t testing.TB) *TestLogger {
	return &TestLogger{t: t}
}

func (l *TestLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args) }
func (l *TestLogger) Info(msg string, args ...any)  { l.log("INFO", msg, args) }
func (l *TestLogger) Warn(msg string, args ...any)  { l.log("WARN", msg, args) }
func (l *TestLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args) }

func (l *TestLogger) log(level, msg string, args []any) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	l.t.Helper()
	l.t.Log(b.String())
}
