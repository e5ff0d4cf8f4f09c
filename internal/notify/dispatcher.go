// Package notify fans intake alerts out to the owner's phone and inbox.
// Delivery is strictly best-effort: failures are logged and dropped, never
// retried, and never surfaced to the inbound webhook caller.
package notify

import (
	"context"
	"log"
	"time"

	"github.com/jessewayne86/junk-dispatch/internal/domain"
)

// SMSSender sends a text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// EmailSender sends an email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, text string) error
}

// MetricsSink records notification outcomes. All methods must be
// non-blocking and fire-and-forget.
type MetricsSink interface {
	NotifyOutcome(channel, outcome string)
}

// DrainTimeout is the maximum time to wait for buffered events during
// shutdown.
const DrainTimeout = 30 * time.Second

// Dispatcher consumes notify events and sends them over the configured
// channels. A nil sender or empty destination disables that channel.
type Dispatcher struct {
	sms        SMSSender
	email      EmailSender
	ownerPhone string
	emailTo    string

	metrics      MetricsSink // optional, nil = disabled
	drainTimeout time.Duration
}

func New(sms SMSSender, ownerPhone string, email EmailSender, emailTo string) *Dispatcher {
	return &Dispatcher{
		sms:          sms,
		email:        email,
		ownerPhone:   ownerPhone,
		emailTo:      emailTo,
		drainTimeout: DrainTimeout,
	}
}

// WithMetrics attaches a metrics sink to the dispatcher.
func (d *Dispatcher) WithMetrics(sink MetricsSink) *Dispatcher {
	d.metrics = sink
	return d
}

// WithDrainTimeout overrides the shutdown drain timeout.
func (d *Dispatcher) WithDrainTimeout(timeout time.Duration) *Dispatcher {
	if timeout > 0 {
		d.drainTimeout = timeout
	}
	return d
}

// Run processes events from the channel until ctx is cancelled, then drains
// remaining buffered events with a timeout.
func (d *Dispatcher) Run(ctx context.Context, ch <-chan domain.NotifyEvent) {
	for {
		select {
		case <-ctx.Done():
			d.drain(ch)
			return
		case ev := <-ch:
			d.Dispatch(ctx, ev)
		}
	}
}

// drain processes remaining events in the channel buffer after the shutdown
// signal. Uses a background context since the main context is already
// cancelled.
func (d *Dispatcher) drain(ch <-chan domain.NotifyEvent) {
	drainCtx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("notify: drain timeout, processed %d events", count)
			}
			return
		case ev, ok := <-ch:
			if !ok {
				log.Printf("notify: drain complete, processed %d events", count)
				return
			}
			d.Dispatch(drainCtx, ev)
			count++
		default:
			if count > 0 {
				log.Printf("notify: drain complete, processed %d events", count)
			}
			return
		}
	}
}

// Dispatch sends one event over every configured channel. Errors are logged
// per channel and never propagated.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.NotifyEvent) {
	if d.sms != nil && d.ownerPhone != "" {
		if err := d.sms.SendSMS(ctx, d.ownerPhone, ev.Message); err != nil {
			log.Printf("notify: sms failed event=%s job=%s: %v", ev.ID, ev.JobID, err)
			d.outcome("sms", "failed")
		} else {
			d.outcome("sms", "success")
		}
	}

	if d.email != nil && d.emailTo != "" {
		if err := d.email.SendEmail(ctx, d.emailTo, ev.Subject, ev.Message); err != nil {
			log.Printf("notify: email failed event=%s job=%s: %v", ev.ID, ev.JobID, err)
			d.outcome("email", "failed")
		} else {
			d.outcome("email", "success")
		}
	}
}

func (d *Dispatcher) outcome(channel, outcome string) {
	if d.metrics != nil {
		d.metrics.NotifyOutcome(channel, outcome)
	}
}
