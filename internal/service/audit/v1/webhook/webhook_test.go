package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/avreline/panelcore/internal/config"
	"github.com/avreline/panelcore/internal/logger"
	"github.com/avreline/panelcore/internal/models/modelevent"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyDeliversEmbed(t *testing.T) {
	received := make(chan webhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload webhookPayload
		require.NoError(t, json.Unmarshal(b, &payload))
		received <- payload
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	d := InitDispatcher(ctx, &config.AuditConfig{WebhookURL: srv.URL, QueueSize: 4}, logger.InitLog(), wg)
	d.ListenAndDispatch()

	d.Notify(modelevent.Event{
		Kind:     modelevent.KindRefundApproved,
		UserID:   42,
		RefundID: 7,
		Amount:   decimal.RequireFromString("4.00"),
		Detail:   "user 42 refunded 4.00",
	})

	select {
	case payload := <-received:
		require.Len(t, payload.Embeds, 1)
		assert.Equal(t, "Refund Approved #7", payload.Embeds[0].Title)
		assert.Equal(t, "user 42 refunded 4.00", payload.Embeds[0].Description)
		assert.Equal(t, colorSuccess, payload.Embeds[0].Color)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook delivery timed out")
	}
	cancel()
	wg.Wait()
}

func TestNotifyNeverBlocksOnFullQueue(t *testing.T) {
	// no delivery loop is running, so the queue fills up and overflow drops
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := &sync.WaitGroup{}
	d := InitDispatcher(ctx, &config.AuditConfig{QueueSize: 2}, logger.InitLog(), wg)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Notify(modelevent.Event{Kind: modelevent.KindOrderPlaced, OrderID: int64(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	d := InitDispatcher(ctx, &config.AuditConfig{WebhookURL: srv.URL, QueueSize: 4}, logger.InitLog(), wg)
	d.ListenAndDispatch()

	d.Notify(modelevent.Event{Kind: modelevent.KindOrderPlaced, OrderID: 1})
	time.Sleep(100 * time.Millisecond)
	cancel()
	wg.Wait()
}

func TestTitleFor(t *testing.T) {
	assert.Equal(t, "New Order #3", titleFor(modelevent.Event{Kind: modelevent.KindOrderPlaced, OrderID: 3}))
	assert.Equal(t, "Order Completed #3", titleFor(modelevent.Event{Kind: modelevent.KindOrderCompleted, OrderID: 3}))
	assert.Equal(t, "Refund Request #9", titleFor(modelevent.Event{Kind: modelevent.KindRefundQueued, RefundID: 9}))
	assert.Equal(t, "Balance Adjusted", titleFor(modelevent.Event{Kind: modelevent.KindBalanceAdjusted}))
}
