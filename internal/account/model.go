package account

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for due dates.
const DateLayout = "2006-01-02"

// lateFeePercent is the share of the balance charged as a late fee.
const lateFeePercent = 5

// Cents is a non-negative monetary amount in minor currency units.
type Cents int64

// String renders the amount as dollars, e.g. "$1234.05".
func (c Cents) String() string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s$%d.%02d", sign, int64(c)/100, int64(c)%100)
}

// LateFee returns round(balance * 5%), rounding half up. Whole units and the
// cents remainder are scaled separately so large balances cannot overflow.
// balance must not be negative.
func LateFee(balance Cents) Cents {
	return balance/100*lateFeePercent + (balance%100*lateFeePercent+50)/100
}

// Action is the collection step recommended for an account.
type Action string

const (
	// ActionSendReminder is recommended for likely payers
	ActionSendReminder Action = "send_reminder"

	// ActionOfferPaymentPlan is recommended for the middle band
	ActionOfferPaymentPlan Action = "offer_payment_plan"

	// ActionEscalate is recommended for unlikely payers
	ActionEscalate Action = "escalate"
)

// Label is the human-readable form used in notification bodies.
func (a Action) Label() string {
	switch a {
	case ActionSendReminder:
		return "Send Reminder"
	case ActionOfferPaymentPlan:
		return "Offer Payment Plan"
	case ActionEscalate:
		return "Escalate"
	default:
		return string(a)
	}
}

// Status tracks whether an account has been contacted.
type Status string

const (
	// StatusUncontacted means no notification has been initiated
	StatusUncontacted Status = "uncontacted"

	// StatusTriggered means a notification was initiated. Terminal.
	StatusTriggered Status = "triggered"
)

// NewAccount is the ingestion tuple supplied by an external producer.
type NewAccount struct {
	Name           string
	ContactAddress string
	BalanceDue     Cents
	DueDate        time.Time
	PaymentScore   int
}

// Validate checks the tuple before it reaches a store.
func (n *NewAccount) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return invalid("name is required")
	}
	if strings.TrimSpace(n.ContactAddress) == "" {
		return invalid("contact address is required")
	}
	if n.BalanceDue < 0 {
		return invalid("balance due %d must not be negative", n.BalanceDue)
	}
	if n.DueDate.IsZero() {
		return invalid("due date is required")
	}
	if n.PaymentScore < MinScore || n.PaymentScore > MaxScore {
		return fmt.Errorf("%w (got %d)", ErrInvalidScore, n.PaymentScore)
	}
	return nil
}

// Record is an unpaid account under triage. Everything except Status and
// TriggeredAt is fixed at insertion.
type Record struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	ContactAddress    string    `json:"contact_address"`
	BalanceDue        Cents     `json:"balance_due"`
	DueDate           time.Time `json:"-"`
	LateFee           Cents     `json:"late_fee"`
	PaymentScore      int       `json:"payment_score"`
	RecommendedAction Action    `json:"recommended_action"`
	Status            Status    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	TriggeredAt       time.Time `json:"triggered_at,omitzero"`
}

// NewRecord validates n and derives the late fee, recommended action and
// initial status. The caller assigns ID and CreatedAt.
func NewRecord(n NewAccount) (*Record, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	action, err := Classify(n.PaymentScore)
	if err != nil {
		return nil, err
	}
	return &Record{
		Name:              strings.TrimSpace(n.Name),
		ContactAddress:    strings.TrimSpace(n.ContactAddress),
		BalanceDue:        n.BalanceDue,
		DueDate:           DateOf(n.DueDate),
		LateFee:           LateFee(n.BalanceDue),
		PaymentScore:      n.PaymentScore,
		RecommendedAction: action,
		Status:            StatusUncontacted,
	}, nil
}

// DueDateString formats the due date as YYYY-MM-DD.
func (r *Record) DueDateString() string {
	return r.DueDate.Format(DateLayout)
}

// Triggered reports whether a notification was already initiated.
func (r *Record) Triggered() bool {
	return r.Status == StatusTriggered
}

// MarshalJSON renders the due date as a calendar date.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	return json.Marshal(struct {
		plain
		DueDate string `json:"due_date"`
	}{plain(r), r.DueDateString()})
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, invalid("due date %q is not YYYY-MM-DD", s)
	}
	return t, nil
}
