// Package webhook implements the audit event dispatcher delivering core
// events to an admin webhook.
package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avreline/panelcore/internal/config"
	"github.com/avreline/panelcore/internal/models/modelevent"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	colorInfo    = 0x00FFFF
	colorSuccess = 0x00FF99
	colorFailure = 0xFF0000
)

// Dispatcher queues events emitted by the core services and delivers them
// fire-and-forget. A full queue drops the event; a delivery failure is
// logged and never retried.
type Dispatcher struct {
	ctx    context.Context
	log    *zerolog.Logger
	cfg    *config.AuditConfig
	client *resty.Client
	queue  chan modelevent.Event
	wg     *sync.WaitGroup
}

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

// InitDispatcher initializes an audit dispatcher.
func InitDispatcher(ctx context.Context, cfg *config.AuditConfig, log *zerolog.Logger, wg *sync.WaitGroup) *Dispatcher {
	dispatcher := Dispatcher{
		ctx:    ctx,
		log:    log,
		cfg:    cfg,
		client: resty.New().SetTimeout(10 * time.Second),
		queue:  make(chan modelevent.Event, cfg.QueueSize),
		wg:     wg,
	}
	return &dispatcher
}

// Notify enqueues an event for delivery without blocking the caller.
func (d *Dispatcher) Notify(event modelevent.Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	select {
	case d.queue <- event:
	default:
		d.log.Warn().Msg(fmt.Sprintf("audit queue full, dropping event %s (%s)", event.ID, event.Kind))
	}
}

// ListenAndDispatch starts the delivery loop.
func (d *Dispatcher) ListenAndDispatch() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.log.Info().Msg("started listening to audit event queue")
		for {
			select {
			case <-d.ctx.Done():
				d.log.Info().Msg("stopped listening to audit event queue")
				return
			case event := <-d.queue:
				d.deliver(event)
			}
		}
	}()
}

func (d *Dispatcher) deliver(event modelevent.Event) {
	d.log.Info().Msg(fmt.Sprintf("audit event %s (%s) user %v detail %s", event.ID, event.Kind, event.UserID, event.Detail))
	if d.cfg.WebhookURL == "" {
		return
	}
	payload := webhookPayload{Embeds: []embed{{
		Title:       titleFor(event),
		Description: event.Detail,
		Color:       colorFor(event.Kind),
	}}}
	_, err := d.client.R().SetContext(d.ctx).SetBody(payload).Post(d.cfg.WebhookURL)
	if err != nil {
		// swallowed: audit delivery must never affect core operations
		d.log.Error().Err(err).Msg(fmt.Sprintf("audit event %s delivery failed", event.ID))
	}
}

func titleFor(event modelevent.Event) string {
	switch event.Kind {
	case modelevent.KindOrderPlaced:
		return fmt.Sprintf("New Order #%v", event.OrderID)
	case modelevent.KindOrderCompleted:
		return fmt.Sprintf("Order Completed #%v", event.OrderID)
	case modelevent.KindRefundQueued:
		return fmt.Sprintf("Refund Request #%v", event.RefundID)
	case modelevent.KindRefundApproved:
		return fmt.Sprintf("Refund Approved #%v", event.RefundID)
	case modelevent.KindRefundRejected:
		return fmt.Sprintf("Refund Rejected #%v", event.RefundID)
	case modelevent.KindBalanceAdjusted:
		return "Balance Adjusted"
	default:
		return event.Kind
	}
}

func colorFor(kind string) int {
	switch kind {
	case modelevent.KindRefundQueued, modelevent.KindRefundRejected:
		return colorFailure
	case modelevent.KindOrderPlaced, modelevent.KindOrderCompleted, modelevent.KindRefundApproved:
		return colorSuccess
	default:
		return colorInfo
	}
}
