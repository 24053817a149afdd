package processor

import (
	"context"
	"encoding/json"

	"github.com/avreline/panelcore/internal/models/modeldto"
	"github.com/shopspring/decimal"
)

// Processor exposes the administrative surface of the credit-ledger core.
// Authorization of callers is the responsibility of the surrounding layer.
type Processor interface {
	PlaceOrder(ctx context.Context, userID int64, serviceKey string, link string, quantity int) (*modeldto.OrderResult, error)
	GetBalance(ctx context.Context, userID int64) (*modeldto.Balance, error)
	AdjustBalance(ctx context.Context, userID int64, delta decimal.Decimal) (*modeldto.Balance, error)
	GetOrders(ctx context.Context, userID int64) ([]modeldto.Order, error)
	GetPendingRefunds(ctx context.Context) ([]modeldto.Refund, error)
	ApproveRefund(ctx context.Context, refundID int64) (*modeldto.Refund, error)
	RejectRefund(ctx context.Context, refundID int64) (*modeldto.Refund, error)
	RefreshServices(ctx context.Context) (json.RawMessage, error)
}
