// Package processor implements the order placement, balance and refund
// workflows on top of the storage and provider gateway contracts.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avreline/panelcore/internal/models/modelcatalog"
	"github.com/avreline/panelcore/internal/models/modeldto"
	"github.com/avreline/panelcore/internal/models/modelevent"
	"github.com/avreline/panelcore/internal/provider/v1"
	providerErrors "github.com/avreline/panelcore/internal/provider/v1/errors"
	"github.com/avreline/panelcore/internal/service/audit/v1"
	serviceErrors "github.com/avreline/panelcore/internal/service/processor/v1/errors"
	"github.com/avreline/panelcore/internal/storage/v1"
	"github.com/avreline/panelcore/internal/storage/v1/modelstorage"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Processor defines attributes of a struct available to its methods.
type Processor struct {
	storage storage.Storage
	gateway provider.Gateway
	catalog modelcatalog.Catalog
	audit   audit.Notifier
	log     *zerolog.Logger
}

// InitService initializes the main service.
func InitService(st storage.Storage, gw provider.Gateway, catalog modelcatalog.Catalog, notifier audit.Notifier, log *zerolog.Logger) (*Processor, error) {
	if st == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil storage was passed to service initializer"}
	}
	if gw == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil gateway was passed to service initializer"}
	}
	if catalog == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil catalog was passed to service initializer"}
	}
	if notifier == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil notifier was passed to service initializer"}
	}
	processor := &Processor{
		storage: st,
		gateway: gw,
		catalog: catalog,
		audit:   notifier,
		log:     log,
	}
	return processor, nil
}

// PlaceOrder debits the account and submits a fulfillment request. The debit
// precedes the provider call and is never reversed automatically: a failed
// submission leaves the debit in place and enqueues a PENDING refund for
// administrative review.
func (proc *Processor) PlaceOrder(ctx context.Context, userID int64, serviceKey string, link string, quantity int) (*modeldto.OrderResult, error) {
	entry, ok := proc.catalog.Resolve(serviceKey)
	if !ok {
		return nil, &serviceErrors.UnknownServiceError{Key: serviceKey}
	}
	cost := entry.Cost(quantity)
	newBalance, err := proc.storage.Debit(ctx, userID, cost)
	if err != nil {
		return nil, err
	}
	providerOrderID, err := proc.gateway.Submit(ctx, entry.ServiceID, link, quantity)
	if err != nil {
		return nil, proc.queueRefund(ctx, userID, cost, err)
	}
	orderID, err := proc.storage.AddOrder(ctx, modelstorage.OrderStorageEntry{
		UserID:          userID,
		ProviderOrderID: providerOrderID,
		ServiceID:       entry.ServiceID,
		ServiceName:     serviceKey,
		Quantity:        quantity,
		Price:           cost,
		Status:          modelstorage.OrderStatusInProgress,
	})
	if err != nil {
		return nil, err
	}
	proc.audit.Notify(modelevent.Event{
		Kind:    modelevent.KindOrderPlaced,
		UserID:  userID,
		OrderID: orderID,
		Amount:  cost,
		Detail:  fmt.Sprintf("user %v ordered %v %s, cost %s, provider order %v", userID, quantity, serviceKey, cost.StringFixed(2), providerOrderID),
	})
	return &modeldto.OrderResult{
		OrderID:         orderID,
		ProviderOrderID: providerOrderID,
		Service:         serviceKey,
		Quantity:        quantity,
		Cost:            cost,
		Balance:         newBalance,
	}, nil
}

// queueRefund records the compensating refund for a failed submission. No
// order exists at this point, hence order id 0.
func (proc *Processor) queueRefund(ctx context.Context, userID int64, cost decimal.Decimal, cause error) error {
	reason := cause.Error()
	var gatewayError *providerErrors.GatewayError
	if errors.As(cause, &gatewayError) {
		reason = gatewayError.Reason()
	}
	refundID, err := proc.storage.AddRefund(ctx, modelstorage.RefundStorageEntry{
		OrderID: 0,
		UserID:  userID,
		Amount:  cost,
		Reason:  reason,
	})
	if err != nil {
		proc.log.Error().Err(err).Msg(fmt.Sprintf("refund enqueue failed for user %v after submission failure, debit of %s is unreconciled", userID, cost.StringFixed(2)))
		return err
	}
	proc.audit.Notify(modelevent.Event{
		Kind:     modelevent.KindRefundQueued,
		UserID:   userID,
		RefundID: refundID,
		Amount:   cost,
		Detail:   fmt.Sprintf("user %v refund request due to provider failure: %s", userID, reason),
	})
	return &serviceErrors.SubmissionFailedError{RefundID: refundID, Amount: cost, Reason: reason}
}

// GetBalance reports the current balance of a user.
func (proc *Processor) GetBalance(ctx context.Context, userID int64) (*modeldto.Balance, error) {
	currentAmount, err := proc.storage.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &modeldto.Balance{UserID: userID, Current: currentAmount}, nil
}

// AdjustBalance applies a manual credit or debit of unrestricted sign.
func (proc *Processor) AdjustBalance(ctx context.Context, userID int64, delta decimal.Decimal) (*modeldto.Balance, error) {
	newBalance, err := proc.storage.ApplyDelta(ctx, userID, delta)
	if err != nil {
		return nil, err
	}
	proc.audit.Notify(modelevent.Event{
		Kind:   modelevent.KindBalanceAdjusted,
		UserID: userID,
		Amount: delta,
		Detail: fmt.Sprintf("user %v balance adjusted by %s to %s", userID, delta.StringFixed(2), newBalance.StringFixed(2)),
	})
	return &modeldto.Balance{UserID: userID, Current: newBalance}, nil
}

// GetOrders lists the orders of one user for presentation.
func (proc *Processor) GetOrders(ctx context.Context, userID int64) ([]modeldto.Order, error) {
	entries, err := proc.storage.GetOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	orders := make([]modeldto.Order, 0, len(entries))
	for _, entry := range entries {
		orders = append(orders, modeldto.Order{
			ID:              entry.ID,
			ProviderOrderID: entry.ProviderOrderID,
			Service:         entry.ServiceName,
			Quantity:        entry.Quantity,
			Price:           entry.Price,
			Status:          entry.Status,
			CreatedAt:       entry.CreatedAt.Format(time.RFC3339),
		})
	}
	return orders, nil
}

// GetPendingRefunds lists refunds awaiting an administrative decision.
func (proc *Processor) GetPendingRefunds(ctx context.Context) ([]modeldto.Refund, error) {
	entries, err := proc.storage.GetPendingRefunds(ctx)
	if err != nil {
		return nil, err
	}
	refunds := make([]modeldto.Refund, 0, len(entries))
	for _, entry := range entries {
		refunds = append(refunds, newRefundDTO(entry))
	}
	return refunds, nil
}

// ApproveRefund credits the ledger by the refund amount and marks the refund
// APPROVED, exactly once.
func (proc *Processor) ApproveRefund(ctx context.Context, refundID int64) (*modeldto.Refund, error) {
	entry, err := proc.storage.ApproveRefund(ctx, refundID)
	if err != nil {
		return nil, err
	}
	proc.audit.Notify(modelevent.Event{
		Kind:     modelevent.KindRefundApproved,
		UserID:   entry.UserID,
		RefundID: entry.ID,
		Amount:   entry.Amount,
		Detail:   fmt.Sprintf("user %v refunded %s", entry.UserID, entry.Amount.StringFixed(2)),
	})
	refund := newRefundDTO(entry)
	return &refund, nil
}

// RejectRefund marks the refund REJECTED without crediting the ledger.
func (proc *Processor) RejectRefund(ctx context.Context, refundID int64) (*modeldto.Refund, error) {
	entry, err := proc.storage.RejectRefund(ctx, refundID)
	if err != nil {
		return nil, err
	}
	proc.audit.Notify(modelevent.Event{
		Kind:     modelevent.KindRefundRejected,
		UserID:   entry.UserID,
		RefundID: entry.ID,
		Amount:   entry.Amount,
		Detail:   fmt.Sprintf("user %v refund of %s rejected", entry.UserID, entry.Amount.StringFixed(2)),
	})
	refund := newRefundDTO(entry)
	return &refund, nil
}

// RefreshServices triggers a provider catalog listing call.
func (proc *Processor) RefreshServices(ctx context.Context) (json.RawMessage, error) {
	return proc.gateway.Services(ctx)
}

func newRefundDTO(entry modelstorage.RefundStorageEntry) modeldto.Refund {
	return modeldto.Refund{
		ID:        entry.ID,
		OrderID:   entry.OrderID,
		UserID:    entry.UserID,
		Amount:    entry.Amount,
		Reason:    entry.Reason,
		Status:    entry.Status,
		CreatedAt: entry.CreatedAt.Format(time.RFC3339),
	}
}
