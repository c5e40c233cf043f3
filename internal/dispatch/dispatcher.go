package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/recoup/internal/account"
)

const tracerName = "github.com/linnemanlabs/recoup/internal/dispatch"

// Trigger outcomes reported to Hooks.OnTrigger.
const (
	OutcomeTriggered = "triggered"
	OutcomeSkipped   = "skipped"
)

// ReasonAlreadyTriggered is the skip reason for accounts contacted earlier.
const ReasonAlreadyTriggered = "already triggered"

// Hooks observe dispatcher activity. Nil fields are ignored. Callbacks run on
// the goroutine that produced the event and must not block.
type Hooks struct {
	OnTrigger   func(outcome string)
	OnDelivered func(accountID string, durationSeconds float64)
	OnFailed    func(err *DeliveryError, durationSeconds float64)
}

// TriggerResult is the outcome of triggering a single account.
type TriggerResult struct {
	ID        string `json:"id"`
	Triggered bool   `json:"triggered"`
	Skipped   bool   `json:"skipped"`
	Reason    string `json:"reason,omitempty"`
}

// BulkResult is the outcome of TriggerAll.
type BulkResult struct {
	Triggered []string `json:"triggered"`
	Skipped   int      `json:"skipped"`
}

// Dispatcher initiates notifications for accounts.
type Dispatcher struct {
	store    account.Store
	sender   Sender
	logger   log.Logger
	hooks    Hooks
	wg       sync.WaitGroup
	inFlight atomic.Int64

	// IDs this dispatcher has sent for. A store reporting a second
	// transition for one of them has broken MarkTriggered.
	claimed sync.Map
}

// New creates a Dispatcher. store and sender are required.
func New(store account.Store, sender Sender, logger log.Logger, hooks Hooks) *Dispatcher {
	if store == nil {
		panic(xerrors.New("account store is required"))
	}
	if sender == nil {
		panic(xerrors.New("message sender is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Dispatcher{
		store:  store,
		sender: sender,
		logger: logger,
		hooks:  hooks,
	}
}

// TriggerOne initiates a notification for the account with the given ID.
// Already-triggered accounts are skipped without resending. The status flip is
// committed before TriggerOne returns; delivery continues in the background.
func (d *Dispatcher) TriggerOne(ctx context.Context, id string) (*TriggerResult, error) {
	r, err := d.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.trigger(ctx, r)
}

// TriggerAll initiates notifications for every uncontacted account in store
// order. Sends run concurrently and fail independently.
func (d *Dispatcher) TriggerAll(ctx context.Context) (*BulkResult, error) {
	records, err := d.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	res := &BulkResult{Triggered: []string{}}
	for _, r := range records {
		tr, err := d.trigger(ctx, r)
		if errors.Is(err, account.ErrNotFound) {
			// removed by a concurrent reset
			continue
		}
		if err != nil {
			return res, fmt.Errorf("trigger account %s: %w", r.ID, err)
		}
		if tr.Triggered {
			res.Triggered = append(res.Triggered, tr.ID)
		} else {
			res.Skipped++
		}
	}

	d.logger.Info(ctx, "bulk trigger complete",
		"triggered", len(res.Triggered),
		"skipped", res.Skipped,
	)
	return res, nil
}

// Wait blocks until every in-flight send has finished or ctx is done. If ctx
// ends first, the helper goroutine stays parked until the sends finish; callers
// use Wait once during shutdown.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight returns the number of sends currently running.
func (d *Dispatcher) InFlight() int64 {
	return d.inFlight.Load()
}

func (d *Dispatcher) trigger(ctx context.Context, r *account.Record) (*TriggerResult, error) {
	if r.Triggered() {
		d.onTrigger(OutcomeSkipped)
		return &TriggerResult{ID: r.ID, Skipped: true, Reason: ReasonAlreadyTriggered}, nil
	}

	flipped, err := d.store.MarkTriggered(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if !flipped {
		// another caller won the transition and owns the send
		d.onTrigger(OutcomeSkipped)
		return &TriggerResult{ID: r.ID, Skipped: true, Reason: ReasonAlreadyTriggered}, nil
	}
	if _, dup := d.claimed.LoadOrStore(r.ID, struct{}{}); dup {
		err := fmt.Errorf("%w: account %s transitioned twice", account.ErrConcurrencyViolation, r.ID)
		d.logger.Error(ctx, err, "status transition invariant broken, send suppressed", "account_id", r.ID)
		return nil, err
	}
	d.onTrigger(OutcomeTriggered)

	msg := ComposeMessage(r)
	// detach from the caller so a finished request does not cancel delivery
	sendCtx := context.WithoutCancel(ctx)
	d.inFlight.Add(1)
	d.wg.Go(func() {
		defer d.inFlight.Add(-1)
		d.deliver(sendCtx, r, msg)
	})

	return &TriggerResult{ID: r.ID, Triggered: true}, nil
}

func (d *Dispatcher) deliver(ctx context.Context, r *account.Record, msg Message) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "notification.send", trace.WithAttributes(
		attribute.String("recoup.account.id", r.ID),
		attribute.String("recoup.account.action", string(r.RecommendedAction)),
		attribute.Int("recoup.account.score", r.PaymentScore),
	))
	defer span.End()

	L := d.logger.With(
		"account_id", r.ID,
		"action", string(r.RecommendedAction),
		"destination", msg.Destination,
	)

	start := time.Now()
	err := d.send(ctx, msg)
	dur := time.Since(start).Seconds()

	if err != nil {
		derr := &DeliveryError{AccountID: r.ID, Destination: msg.Destination, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		L.Error(ctx, derr, "notification delivery failed", "duration", dur)
		if d.hooks.OnFailed != nil {
			d.hooks.OnFailed(derr, dur)
		}
		return
	}

	L.Info(ctx, "notification delivered", "duration", dur)
	if d.hooks.OnDelivered != nil {
		d.hooks.OnDelivered(r.ID, dur)
	}
}

// send isolates a panicking Sender to the one delivery.
func (d *Dispatcher) send(ctx context.Context, msg Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sender panic: %v", p)
		}
	}()
	return d.sender.Send(ctx, msg.Destination, msg.Subject, msg.Body)
}

func (d *Dispatcher) onTrigger(outcome string) {
	if d.hooks.OnTrigger != nil {
		d.hooks.OnTrigger(outcome)
	}
}
