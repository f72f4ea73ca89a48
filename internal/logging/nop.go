package logging

import "github.com/arloliu/worktree/types"

// NopLogger implements a no-op logger that discards all messages.
//
// Used as the default when no logger is injected, so hot paths never
// need nil checks.
type NopLogger struct{}

// Compile-time assertion that NopLogger implements Logger.
var _ types.Logger = (*NopLogger)(nil)

// NewNop creates a new no-op logger.
//
// Returns:
//   - *NopLogger: A new no-op logger instance
func NewNop() *NopLogger {
	return &NopLogger{}
}

// Debug discards the message.
func (l *NopLogger) Debug(_ string, _ ...any) {}

// Info discards the message.
func (l *NopLogger) Info(_ string, _ ...any) {}

// Warn discards the message.
func (l *NopLogger) Warn(_ string, _ ...any) {}

// Error discards the message.
func (l *NopLogger) Error(_ string, _ ...any) {}

// Fatal discards the message and does NOT exit.
//
// A no-op logger must never terminate the process; callers that need
// exit-on-fatal semantics should inject a real logger.
func (l *NopLogger) Fatal(_ string, _ ...any) {}
