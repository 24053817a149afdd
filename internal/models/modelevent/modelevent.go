// Package modelevent provides types for outbound audit events.
package modelevent

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event kinds emitted by the core services.
const (
	KindOrderPlaced     = "ORDER_PLACED"
	KindRefundQueued    = "REFUND_QUEUED"
	KindOrderCompleted  = "ORDER_COMPLETED"
	KindRefundApproved  = "REFUND_APPROVED"
	KindRefundRejected  = "REFUND_REJECTED"
	KindBalanceAdjusted = "BALANCE_ADJUSTED"
)

// Event carries the fields of one auditable occurrence. Delivery is
// best-effort and must never feed back into the operation that emitted it.
type Event struct {
	ID        string
	Kind      string
	UserID    int64
	OrderID   int64
	RefundID  int64
	Amount    decimal.Decimal
	Detail    string
	CreatedAt time.Time
}
