package dispatch

import (
	"context"
	"fmt"
)

// Sender delivers one message to a destination. Implementations decide the
// transport (email, chat webhook, ...).
type Sender interface {
	Send(ctx context.Context, destination, subject, body string) error
}

// SenderFunc adapts a plain function to Sender.
type SenderFunc func(ctx context.Context, destination, subject, body string) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, destination, subject, body string) error {
	return f(ctx, destination, subject, body)
}

// DeliveryError reports a failed send for one account.
type DeliveryError struct {
	AccountID   string
	Destination string
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver notification for account %s to %s: %v", e.AccountID, e.Destination, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
