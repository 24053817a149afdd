// Package modeldto provides types for data transfer objects.
package modeldto

import "github.com/shopspring/decimal"

type (
	NewOrder struct {
		UserID   int64  `json:"user_id"`
		Service  string `json:"service"`
		Link     string `json:"link"`
		Quantity int    `json:"quantity"`
	}
	OrderResult struct {
		OrderID         int64           `json:"order_id"`
		ProviderOrderID int64           `json:"provider_order_id"`
		Service         string          `json:"service"`
		Quantity        int             `json:"quantity"`
		Cost            decimal.Decimal `json:"cost"`
		Balance         decimal.Decimal `json:"balance"`
	}
	Order struct {
		ID              int64           `json:"id"`
		ProviderOrderID int64           `json:"provider_order_id"`
		Service         string          `json:"service"`
		Quantity        int             `json:"quantity"`
		Price           decimal.Decimal `json:"price"`
		Status          string          `json:"status"`
		CreatedAt       string          `json:"created_at"`
	}
	Balance struct {
		UserID  int64           `json:"user_id"`
		Current decimal.Decimal `json:"current"`
	}
	BalanceAdjustment struct {
		UserID int64           `json:"user_id"`
		Delta  decimal.Decimal `json:"delta"`
	}
	Refund struct {
		ID        int64           `json:"id"`
		OrderID   int64           `json:"order_id"`
		UserID    int64           `json:"user_id"`
		Amount    decimal.Decimal `json:"amount"`
		Reason    string          `json:"reason"`
		Status    string          `json:"status"`
		CreatedAt string          `json:"created_at"`
	}
)
