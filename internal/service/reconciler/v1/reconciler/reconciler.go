// Package reconciler implements the periodic worker that settles in-flight
// orders against provider-reported status.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avreline/panelcore/internal/config"
	"github.com/avreline/panelcore/internal/models/modelevent"
	"github.com/avreline/panelcore/internal/provider/v1"
	"github.com/avreline/panelcore/internal/service/audit/v1"
	storageErrors "github.com/avreline/panelcore/internal/storage/v1/errors"
	"github.com/avreline/panelcore/internal/storage/v1/modelstorage"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// terminalStatuses maps recognized provider vocabulary, matched
// case-insensitively, to the local terminal states. Anything outside this map
// leaves the order in flight for the next cycle.
var terminalStatuses = map[string]string{
	"completed": modelstorage.OrderStatusCompleted,
	"partial":   modelstorage.OrderStatusPartial,
}

// OrderKeeper is the slice of the storage contract the reconciler needs.
type OrderKeeper interface {
	GetInFlightOrders(ctx context.Context) ([]modelstorage.OrderStorageEntry, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
}

// Reconciler defines attributes of a struct available to its methods.
type Reconciler struct {
	storage OrderKeeper
	gateway provider.Gateway
	audit   audit.Notifier
	cfg     *config.ReconcilerConfig
	log     *zerolog.Logger
	busy    int32
}

// InitReconciler initializes a reconciliation worker.
func InitReconciler(st OrderKeeper, gw provider.Gateway, notifier audit.Notifier, cfg *config.ReconcilerConfig, log *zerolog.Logger) *Reconciler {
	return &Reconciler{
		storage: st,
		gateway: gw,
		audit:   notifier,
		cfg:     cfg,
		log:     log,
	}
}

// Run starts the periodic reconciliation loop and blocks until ctx is done.
func (r *Reconciler) Run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.log.Info().Msg(fmt.Sprintf("reconciliation worker started, interval %s", r.cfg.Interval))
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.RunCycle(ctx)
			case <-ctx.Done():
				r.log.Info().Msg("reconciliation worker stopped")
				return
			}
		}
	}()
}

// RunCycle performs one reconciliation pass. A pass still running when the
// next tick fires is not overlapped.
func (r *Reconciler) RunCycle(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&r.busy, 0, 1) {
		r.log.Warn().Msg("previous reconciliation cycle still running, skipping tick")
		return
	}
	defer atomic.StoreInt32(&r.busy, 0)
	orders, err := r.storage.GetInFlightOrders(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("retrieving in-flight orders failed")
		return
	}
	if len(orders) == 0 {
		return
	}
	r.log.Info().Msg(fmt.Sprintf("reconciling %v in-flight orders", len(orders)))
	queue := make(chan modelstorage.OrderStorageEntry)
	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.WorkerNumber; i++ {
		g.Go(func() error {
			for order := range queue {
				// per-order isolation: a failure is logged and retried next
				// cycle, it never aborts the rest of the pass
				r.reconcileOrder(gCtx, order)
			}
			return nil
		})
	}
	for _, order := range orders {
		queue <- order
	}
	close(queue)
	if err := g.Wait(); err != nil {
		r.log.Error().Err(err).Msg("reconciliation cycle failed")
	}
}

func (r *Reconciler) reconcileOrder(ctx context.Context, order modelstorage.OrderStorageEntry) {
	providerStatus, err := r.gateway.Status(ctx, order.ProviderOrderID)
	if err != nil {
		r.log.Error().Err(err).Msg(fmt.Sprintf("status retrieval failed for order %v, left for next cycle", order.ID))
		return
	}
	newStatus, ok := terminalStatuses[strings.ToLower(providerStatus)]
	if !ok {
		return
	}
	err = r.storage.UpdateOrderStatus(ctx, order.ID, newStatus)
	if err != nil {
		var alreadyProcessedError *storageErrors.AlreadyProcessedError
		if errors.As(err, &alreadyProcessedError) {
			// another cycle settled the order first
			return
		}
		r.log.Error().Err(err).Msg(fmt.Sprintf("status update failed for order %v, left for next cycle", order.ID))
		return
	}
	r.audit.Notify(modelevent.Event{
		Kind:    modelevent.KindOrderCompleted,
		UserID:  order.UserID,
		OrderID: order.ID,
		Amount:  order.Price,
		Detail:  fmt.Sprintf("user %v order %v settled as %s, amount spent %s", order.UserID, order.ID, newStatus, order.Price.StringFixed(2)),
	})
}
