// Package modelstorage provides types for persisted rows and their status
// vocabularies.
package modelstorage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses. An order starts IN_PROGRESS and may only move to one of the
// terminal states, written solely by the reconciliation worker.
const (
	OrderStatusInProgress = "IN_PROGRESS"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusPartial    = "PARTIAL"
)

// Refund statuses. A refund is processed at most once.
const (
	RefundStatusPending  = "PENDING"
	RefundStatusApproved = "APPROVED"
	RefundStatusRejected = "REJECTED"
)

type OrderStorageEntry struct {
	ID              int64           `db:"id"`
	UserID          int64           `db:"user_id"`
	ProviderOrderID int64           `db:"provider_order_id"`
	ServiceID       int64           `db:"service_id"`
	ServiceName     string          `db:"service_name"`
	Quantity        int             `db:"quantity"`
	Price           decimal.Decimal `db:"price"`
	Status          string          `db:"status"`
	CreatedAt       time.Time       `db:"created_at"`
}

type RefundStorageEntry struct {
	ID        int64           `db:"id"`
	OrderID   int64           `db:"order_id"`
	UserID    int64           `db:"user_id"`
	Amount    decimal.Decimal `db:"amount"`
	Reason    string          `db:"reason"`
	Status    string          `db:"status"`
	CreatedAt time.Time       `db:"created_at"`
}
