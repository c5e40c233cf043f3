// Package notify holds transport-neutral message senders: a structured-log
// sender for development and a fan-out over several senders.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/linnemanlabs/go-core/log"
)

// Sender matches dispatch.Sender.
type Sender interface {
	Send(ctx context.Context, destination, subject, body string) error
}

// LogSender writes each message to the log instead of delivering it.
type LogSender struct {
	logger log.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger log.Logger) *LogSender {
	if logger == nil {
		logger = log.Nop()
	}
	return &LogSender{logger: logger}
}

// Send logs the message and always succeeds.
func (s *LogSender) Send(ctx context.Context, destination, subject, body string) error {
	s.logger.Info(ctx, "notification (log only)",
		"destination", destination,
		"subject", subject,
		"body_bytes", len(body),
	)
	return nil
}

// Named labels a Sender for error reporting.
type Named struct {
	Name   string
	Sender Sender
}

// Multi sends every message through each configured sender. All senders are
// attempted; their errors are joined.
type Multi struct {
	senders []Named
}

// NewMulti creates a fan-out sender.
func NewMulti(senders ...Named) *Multi {
	return &Multi{senders: senders}
}

// Len returns the number of configured senders.
func (m *Multi) Len() int {
	return len(m.senders)
}

// Send implements dispatch.Sender.
func (m *Multi) Send(ctx context.Context, destination, subject, body string) error {
	var errs []error
	for _, s := range m.senders {
		if err := s.Sender.Send(ctx, destination, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
