package dispatch

import (
	"fmt"

	"github.com/linnemanlabs/recoup/internal/account"
)

// Subject is used for every outstanding-balance notification.
const Subject = "[Action Required] Outstanding Balance Notification"

// Message is a composed notification ready for a Sender.
type Message struct {
	Destination string
	Subject     string
	Body        string
}

// ComposeMessage builds the notification for r from its immutable fields.
func ComposeMessage(r *account.Record) Message {
	return Message{
		Destination: r.ContactAddress,
		Subject:     Subject,
		Body:        composeBody(r),
	}
}

func composeBody(r *account.Record) string {
	return fmt.Sprintf(`Dear %s,

This is a reminder that your account has an outstanding balance of %s, which was due on %s.
A late fee of %s has been applied.

Recommended Action: %s

Please log in to your account to complete the payment or set up a payment plan.

Thank you,
Revenue Recovery Team
`,
		r.Name,
		r.BalanceDue,
		r.DueDateString(),
		r.LateFee,
		r.RecommendedAction.Label(),
	)
}
