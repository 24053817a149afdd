package storage

import (
	"context"

	"github.com/avreline/panelcore/internal/storage/v1/modelstorage"
	"github.com/shopspring/decimal"
)

// Ledger provides atomic balance accounting. GetBalance reports zero for
// unknown users; Debit is the single atomic check-and-debit unit used by
// order placement.
type Ledger interface {
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	ApplyDelta(ctx context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error)
	Debit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
}

// Orders persists order records and their status transitions.
type Orders interface {
	AddOrder(ctx context.Context, order modelstorage.OrderStorageEntry) (int64, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]modelstorage.OrderStorageEntry, error)
	GetInFlightOrders(ctx context.Context) ([]modelstorage.OrderStorageEntry, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
}

// Refunds persists the refund queue and applies the approve/reject
// transitions exactly once.
type Refunds interface {
	AddRefund(ctx context.Context, refund modelstorage.RefundStorageEntry) (int64, error)
	GetPendingRefunds(ctx context.Context) ([]modelstorage.RefundStorageEntry, error)
	ApproveRefund(ctx context.Context, refundID int64) (modelstorage.RefundStorageEntry, error)
	RejectRefund(ctx context.Context, refundID int64) (modelstorage.RefundStorageEntry, error)
}

type Storage interface {
	Ledger
	Orders
	Refunds
}
