// Package handlers provides API endpoint handling functionality.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	handlersErrors "github.com/avreline/panelcore/internal/api/rest/errors"
	"github.com/avreline/panelcore/internal/models/modeldto"
	"github.com/avreline/panelcore/internal/service/processor/v1"
	serviceErrors "github.com/avreline/panelcore/internal/service/processor/v1/errors"
	storageErrors "github.com/avreline/panelcore/internal/storage/v1/errors"
	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
)

const handlerTimeout = 15 * time.Second

// Handler defines attributes of a struct available to its methods.
type Handler struct {
	service processor.Processor
	log     *zerolog.Logger
}

// InitHandlers initializes a handler object.
func InitHandlers(mainService processor.Processor, log *zerolog.Logger) (*Handler, error) {
	if mainService == nil {
		return nil, &handlersErrors.HandlersFoundNilArgument{Msg: "nil processor was passed to handlers initializer"}
	}
	return &Handler{service: mainService, log: log}, nil
}

// HandleNewOrder processes order placement requests.
func (h *Handler) HandleNewOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
		defer cancel()
		b, err := io.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewOrder failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var newOrder modeldto.NewOrder
		err = json.Unmarshal(b, &newOrder)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewOrder failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if newOrder.UserID <= 0 || newOrder.Quantity <= 0 || len(newOrder.Link) == 0 {
			h.log.Error().Msg("HandleNewOrder failed")
			http.Error(w, "user_id, link and a positive quantity are required", http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new order request detected for user %v", newOrder.UserID))
		result, err := h.service.PlaceOrder(ctx, newOrder.UserID, newOrder.Service, newOrder.Link, newOrder.Quantity)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewOrder failed")
			var unknownServiceError *serviceErrors.UnknownServiceError
			var insufficientBalanceError *storageErrors.InsufficientBalanceError
			var submissionFailedError *serviceErrors.SubmissionFailedError
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			if errors.As(err, &unknownServiceError) {
				http.Error(w, err.Error(), http.StatusNotFound)
			} else if errors.As(err, &insufficientBalanceError) {
				http.Error(w, err.Error(), http.StatusPaymentRequired)
			} else if errors.As(err, &submissionFailedError) {
				// the debit stands; tell the caller which refund record tracks it
				resBody, _ := json.Marshal(modeldto.Refund{
					ID:     submissionFailedError.RefundID,
					UserID: newOrder.UserID,
					Amount: submissionFailedError.Amount,
					Reason: submissionFailedError.Reason,
				})
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadGateway)
				w.Write(resBody)
			} else if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		h.respondJSON(w, http.StatusCreated, result)
	}
}

// HandleGetBalance processes balance retrieval requests.
func (h *Handler) HandleGetBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
		defer cancel()
		userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetBalance failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		balance, err := h.service.GetBalance(ctx, userID)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetBalance failed")
			h.respondStorageError(w, err)
			return
		}
		h.respondJSON(w, http.StatusOK, balance)
	}
}

// HandleAdjustBalance processes manual credit/debit requests.
func (h *Handler) HandleAdjustBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
		defer cancel()
		b, err := io.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleAdjustBalance failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var adjustment modeldto.BalanceAdjustment
		err = json.Unmarshal(b, &adjustment)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleAdjustBalance failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if adjustment.UserID <= 0 || adjustment.Delta.IsZero() {
			h.log.Error().Msg("HandleAdjustBalance failed")
			http.Error(w, "user_id and a non-zero delta are required", http.StatusBadRequest)
			return
		}
		balance, err := h.service.AdjustBalance(ctx, adjustment.UserID, adjustment.Delta)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleAdjustBalance failed")
			h.respondStorageError(w, err)
			return
		}
		h.respondJSON(w, http.StatusOK, balance)
	}
}

// HandleGetOrders processes per-user order listing requests.
func (h *Handler) HandleGetOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
		defer cancel()
		userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetOrders failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		orders, err := h.service.GetOrders(ctx, userID)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetOrders failed")
			h.respondStorageError(w, err)
			return
		}
		if len(orders) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.respondJSON(w, http.StatusOK, orders)
	}
}

// HandleGetRefunds processes pending refund listing requests.
func (h *Handler) HandleGetRefunds() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
		defer cancel()
		refunds, err := h.service.GetPendingRefunds(ctx)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetRefunds failed")
			h.respondStorageError(w, err)
			return
		}
		if len(refunds) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.respondJSON(w, http.StatusOK, refunds)
	}
}

// HandleApproveRefund processes refund approval requests.
func (h *Handler) HandleApproveRefund() http.HandlerFunc {
	return h.handleRefundDecision(func(ctx context.Context, refundID int64) (*modeldto.Refund, error) {
		return h.service.ApproveRefund(ctx, refundID)
	}, "HandleApproveRefund")
}

// HandleRejectRefund processes refund rejection requests.
func (h *Handler) HandleRejectRefund() http.HandlerFunc {
	return h.handleRefundDecision(func(ctx context.Context, refundID int64) (*modeldto.Refund, error) {
		return h.service.RejectRefund(ctx, refundID)
	}, "HandleRejectRefund")
}

func (h *Handler) handleRefundDecision(decide func(ctx context.Context, refundID int64) (*modeldto.Refund, error), name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
		defer cancel()
		refundID, err := strconv.ParseInt(chi.URLParam(r, "refundID"), 10, 64)
		if err != nil {
			h.log.Error().Err(err).Msg(fmt.Sprintf("%s failed", name))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		refund, err := decide(ctx, refundID)
		if err != nil {
			h.log.Error().Err(err).Msg(fmt.Sprintf("%s failed", name))
			var notFoundError *storageErrors.NotFoundError
			var alreadyProcessedError *storageErrors.AlreadyProcessedError
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			if errors.As(err, &notFoundError) {
				http.Error(w, err.Error(), http.StatusNotFound)
			} else if errors.As(err, &alreadyProcessedError) {
				http.Error(w, err.Error(), http.StatusConflict)
			} else if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		h.respondJSON(w, http.StatusOK, refund)
	}
}

// HandleRefreshServices triggers a provider service listing call without
// exposing the payload.
func (h *Handler) HandleRefreshServices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
		defer cancel()
		_, err := h.service.RefreshServices(ctx)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleRefreshServices failed")
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	resBody, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Msg("response marshalling failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(resBody)
}

func (h *Handler) respondStorageError(w http.ResponseWriter, err error) {
	var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
	if errors.As(err, &contextTimeoutExceededError) {
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
