// Package rest provides functionality for initializing a server.
package rest

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/avreline/panelcore/internal/api/rest/handlers"
	"github.com/avreline/panelcore/internal/api/rest/middleware"
	"github.com/avreline/panelcore/internal/config"
	"github.com/avreline/panelcore/internal/models/modelcatalog"
	"github.com/avreline/panelcore/internal/provider/v1/client"
	"github.com/avreline/panelcore/internal/service/audit/v1/webhook"
	"github.com/avreline/panelcore/internal/service/processor/v1/processor"
	"github.com/avreline/panelcore/internal/service/reconciler/v1/reconciler"
	"github.com/avreline/panelcore/internal/service/secretary/v1/secretary"
	"github.com/avreline/panelcore/internal/storage/v1/inpsql"
	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
)

// InitServer returns a http.Server object ready to be listening and serving.
func InitServer(ctx context.Context, cfg *config.Config, log *zerolog.Logger, wg *sync.WaitGroup) (server *http.Server, err error) {
	// initialize secretary
	secretaryService, err := secretary.NewSecretaryService(cfg.SecretConfig)
	if err != nil {
		return nil, err
	}

	// initialize token handler
	tokenHandler, err := middleware.NewTokenHandler(secretaryService)
	if err != nil {
		return nil, err
	}

	// initialize storage
	storage, err := inpsql.InitStorage(ctx, cfg.StorageConfig, log)
	if err != nil {
		return nil, err
	}

	// initialize service catalog
	catalog, err := LoadCatalog(cfg.CatalogConfig)
	if err != nil {
		return nil, err
	}

	// initialize provider gateway client
	gatewayClient := client.InitClient(cfg.ProviderConfig, log)

	// initialize audit dispatcher
	auditDispatcher := webhook.InitDispatcher(ctx, cfg.AuditConfig, log, wg)
	auditDispatcher.ListenAndDispatch()

	// initialize main service
	mainService, err := processor.InitService(storage, gatewayClient, catalog, auditDispatcher, log)
	if err != nil {
		return nil, err
	}

	// initialize reconciliation worker
	reconcilerService := reconciler.InitReconciler(storage, gatewayClient, auditDispatcher, cfg.ReconcilerConfig, log)
	reconcilerService.Run(ctx, wg)

	// initialize handlers
	urlHandler, err := handlers.InitHandlers(mainService, log)
	if err != nil {
		return nil, err
	}

	// initialize server and set routing
	r := chi.NewRouter()
	adminGroup := r.Group(nil)
	adminGroup.Use(tokenHandler.TokenHandle)
	adminGroup.Post("/api/v1/orders", urlHandler.HandleNewOrder())
	adminGroup.Get("/api/v1/users/{userID}/orders", urlHandler.HandleGetOrders())
	adminGroup.Get("/api/v1/users/{userID}/balance", urlHandler.HandleGetBalance())
	adminGroup.Post("/api/v1/balance", urlHandler.HandleAdjustBalance())
	adminGroup.Get("/api/v1/refunds", urlHandler.HandleGetRefunds())
	adminGroup.Post("/api/v1/refunds/{refundID}/approve", urlHandler.HandleApproveRefund())
	adminGroup.Post("/api/v1/refunds/{refundID}/reject", urlHandler.HandleRejectRefund())
	adminGroup.Post("/api/v1/services/refresh", urlHandler.HandleRefreshServices())

	srv := &http.Server{
		Addr:         cfg.ServerConfig.ServerAddress,
		Handler:      r,
		IdleTimeout:  60 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return srv, nil
}

// LoadCatalog selects the catalog source: file flag, then environment JSON,
// then the built-in defaults.
func LoadCatalog(cfg *config.CatalogConfig) (modelcatalog.Catalog, error) {
	if cfg.CatalogPath != "" {
		data, err := os.ReadFile(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		return modelcatalog.Parse(data)
	}
	if cfg.CatalogJSON != "" {
		return modelcatalog.Parse([]byte(cfg.CatalogJSON))
	}
	return modelcatalog.Default(), nil
}
