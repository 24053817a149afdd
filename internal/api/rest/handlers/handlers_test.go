package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avreline/panelcore/internal/logger"
	"github.com/avreline/panelcore/internal/models/modeldto"
	serviceErrors "github.com/avreline/panelcore/internal/service/processor/v1/errors"
	storageErrors "github.com/avreline/panelcore/internal/storage/v1/errors"
	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProcessor struct {
	placeOrderResult *modeldto.OrderResult
	placeOrderErr    error
	balance          *modeldto.Balance
	balanceErr       error
	refund           *modeldto.Refund
	refundErr        error
}

func (m *mockProcessor) PlaceOrder(_ context.Context, _ int64, _ string, _ string, _ int) (*modeldto.OrderResult, error) {
	return m.placeOrderResult, m.placeOrderErr
}

func (m *mockProcessor) GetBalance(_ context.Context, userID int64) (*modeldto.Balance, error) {
	if m.balance != nil {
		m.balance.UserID = userID
	}
	return m.balance, m.balanceErr
}

func (m *mockProcessor) AdjustBalance(_ context.Context, _ int64, _ decimal.Decimal) (*modeldto.Balance, error) {
	return m.balance, m.balanceErr
}

func (m *mockProcessor) GetOrders(_ context.Context, _ int64) ([]modeldto.Order, error) {
	return nil, nil
}

func (m *mockProcessor) GetPendingRefunds(_ context.Context) ([]modeldto.Refund, error) {
	if m.refund == nil {
		return nil, m.refundErr
	}
	return []modeldto.Refund{*m.refund}, m.refundErr
}

func (m *mockProcessor) ApproveRefund(_ context.Context, _ int64) (*modeldto.Refund, error) {
	return m.refund, m.refundErr
}

func (m *mockProcessor) RejectRefund(_ context.Context, _ int64) (*modeldto.Refund, error) {
	return m.refund, m.refundErr
}

func (m *mockProcessor) RefreshServices(_ context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func newTestRouter(t *testing.T, service *mockProcessor) *chi.Mux {
	t.Helper()
	urlHandler, err := InitHandlers(service, logger.InitLog())
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Post("/api/v1/orders", urlHandler.HandleNewOrder())
	r.Get("/api/v1/users/{userID}/balance", urlHandler.HandleGetBalance())
	r.Post("/api/v1/balance", urlHandler.HandleAdjustBalance())
	r.Get("/api/v1/refunds", urlHandler.HandleGetRefunds())
	r.Post("/api/v1/refunds/{refundID}/approve", urlHandler.HandleApproveRefund())
	r.Post("/api/v1/refunds/{refundID}/reject", urlHandler.HandleRejectRefund())
	return r
}

func doRequest(t *testing.T, r http.Handler, method, path string, body []byte) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Result()
}

func TestHandleNewOrder(t *testing.T) {
	validBody := []byte(`{"user_id": 42, "service": "tiktok views", "link": "https://tiktok.com/@user", "quantity": 1000}`)
	tests := []struct {
		name           string
		service        *mockProcessor
		body           []byte
		wantStatusCode int
	}{
		{
			name: "placed order",
			service: &mockProcessor{placeOrderResult: &modeldto.OrderResult{
				OrderID:         1,
				ProviderOrderID: 555001,
				Cost:            decimal.RequireFromString("4.00"),
				Balance:         decimal.RequireFromString("6.00"),
			}},
			body:           validBody,
			wantStatusCode: http.StatusCreated,
		},
		{
			name:           "unknown service",
			service:        &mockProcessor{placeOrderErr: &serviceErrors.UnknownServiceError{Key: "tiktok views"}},
			body:           validBody,
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "insufficient balance",
			service:        &mockProcessor{placeOrderErr: &storageErrors.InsufficientBalanceError{UserID: 42, Required: decimal.RequireFromString("20.00")}},
			body:           validBody,
			wantStatusCode: http.StatusPaymentRequired,
		},
		{
			name:           "submission failed",
			service:        &mockProcessor{placeOrderErr: &serviceErrors.SubmissionFailedError{RefundID: 7, Amount: decimal.RequireFromString("4.00"), Reason: "panel down"}},
			body:           validBody,
			wantStatusCode: http.StatusBadGateway,
		},
		{
			name:           "malformed body",
			service:        &mockProcessor{},
			body:           []byte(`not json`),
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "non-positive quantity",
			service:        &mockProcessor{},
			body:           []byte(`{"user_id": 42, "service": "tiktok views", "link": "https://tiktok.com/@user", "quantity": 0}`),
			wantStatusCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, tt.service)
			res := doRequest(t, r, http.MethodPost, "/api/v1/orders", tt.body)
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)
		})
	}
}

func TestHandleNewOrderSubmissionFailureBody(t *testing.T) {
	service := &mockProcessor{placeOrderErr: &serviceErrors.SubmissionFailedError{
		RefundID: 7,
		Amount:   decimal.RequireFromString("4.00"),
		Reason:   "panel down",
	}}
	r := newTestRouter(t, service)
	res := doRequest(t, r, http.MethodPost, "/api/v1/orders", []byte(`{"user_id": 42, "service": "tiktok views", "link": "https://x", "quantity": 1000}`))
	defer res.Body.Close()
	require.Equal(t, http.StatusBadGateway, res.StatusCode)
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var refund modeldto.Refund
	require.NoError(t, json.Unmarshal(b, &refund))
	assert.Equal(t, int64(7), refund.ID)
	assert.True(t, refund.Amount.Equal(decimal.RequireFromString("4.00")))
	assert.Equal(t, "panel down", refund.Reason)
}

func TestHandleGetBalance(t *testing.T) {
	service := &mockProcessor{balance: &modeldto.Balance{Current: decimal.RequireFromString("10.00")}}
	r := newTestRouter(t, service)
	res := doRequest(t, r, http.MethodGet, "/api/v1/users/42/balance", nil)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var balance modeldto.Balance
	require.NoError(t, json.Unmarshal(b, &balance))
	assert.Equal(t, int64(42), balance.UserID)
	assert.True(t, balance.Current.Equal(decimal.RequireFromString("10.00")))
}

func TestHandleGetBalanceBadUserID(t *testing.T) {
	r := newTestRouter(t, &mockProcessor{})
	res := doRequest(t, r, http.MethodGet, "/api/v1/users/abc/balance", nil)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHandleAdjustBalance(t *testing.T) {
	service := &mockProcessor{balance: &modeldto.Balance{UserID: 42, Current: decimal.RequireFromString("15.00")}}
	r := newTestRouter(t, service)
	res := doRequest(t, r, http.MethodPost, "/api/v1/balance", []byte(`{"user_id": 42, "delta": "5.00"}`))
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = doRequest(t, r, http.MethodPost, "/api/v1/balance", []byte(`{"user_id": 42, "delta": "0"}`))
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHandleRefundDecisions(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		service        *mockProcessor
		wantStatusCode int
	}{
		{
			name:           "approved",
			path:           "/api/v1/refunds/7/approve",
			service:        &mockProcessor{refund: &modeldto.Refund{ID: 7, Status: "APPROVED"}},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "rejected",
			path:           "/api/v1/refunds/7/reject",
			service:        &mockProcessor{refund: &modeldto.Refund{ID: 7, Status: "REJECTED"}},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "not found",
			path:           "/api/v1/refunds/99/approve",
			service:        &mockProcessor{refundErr: &storageErrors.NotFoundError{}},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "already processed",
			path:           "/api/v1/refunds/7/approve",
			service:        &mockProcessor{refundErr: &storageErrors.AlreadyProcessedError{ID: 7}},
			wantStatusCode: http.StatusConflict,
		},
		{
			name:           "bad refund id",
			path:           "/api/v1/refunds/abc/approve",
			service:        &mockProcessor{},
			wantStatusCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, tt.service)
			res := doRequest(t, r, http.MethodPost, tt.path, nil)
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)
		})
	}
}

func TestHandleGetRefunds(t *testing.T) {
	r := newTestRouter(t, &mockProcessor{refund: &modeldto.Refund{ID: 7, Status: "PENDING"}})
	res := doRequest(t, r, http.MethodGet, "/api/v1/refunds", nil)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	r = newTestRouter(t, &mockProcessor{})
	res = doRequest(t, r, http.MethodGet, "/api/v1/refunds", nil)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}
