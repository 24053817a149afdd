// Package inpsql provides a PSQL-backed implementation of the ledger, order
// and refund stores.
package inpsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avreline/panelcore/internal/config"
	storageErrors "github.com/avreline/panelcore/internal/storage/v1/errors"
	"github.com/avreline/panelcore/internal/storage/v1/modelstorage"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type Storage struct {
	mu  sync.Mutex
	Cfg *config.StorageConfig
	DB  *sql.DB
	log *zerolog.Logger
}

// InitStorage establishes a PSQL connection and prepares the schema.
func InitStorage(ctx context.Context, cfg *config.StorageConfig, log *zerolog.Logger) (*Storage, error) {
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	st := Storage{
		Cfg: cfg,
		DB:  db,
		log: log,
	}
	err = st.createTables(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	log.Info().Msg("PSQL DB connection was established")
	return &st, nil
}

// GetBalance retrieves the current balance of a user, zero for unknown users.
func (s *Storage) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, "SELECT balance FROM accounts WHERE user_id = $1")
	if err != nil {
		return decimal.Zero, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	chanOk := make(chan decimal.Decimal)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		var balance decimal.Decimal
		err := selectStmt.QueryRowContext(ctx, userID).Scan(&balance)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				// an account is created implicitly on first mutation
				chanOk <- decimal.Zero
				return
			default:
				chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
				return
			}
		}
		chanOk <- balance
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("getting balance failed for user %v", userID))
		return decimal.Zero, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("getting balance failed for user %v", userID))
		return decimal.Zero, methodErr
	case balance := <-chanOk:
		return balance, nil
	}
}

// ApplyDelta atomically creates the account if absent, applies delta and
// returns the resulting balance. It does not enforce non-negativity.
func (s *Storage) ApplyDelta(ctx context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	upsertStmt, err := s.DB.PrepareContext(ctx, "INSERT INTO accounts (user_id, balance) VALUES ($1, $2) ON CONFLICT (user_id) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance RETURNING balance")
	if err != nil {
		return decimal.Zero, &storageErrors.StatementPSQLError{Err: err}
	}
	defer upsertStmt.Close()
	chanOk := make(chan decimal.Decimal)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		var balance decimal.Decimal
		err := upsertStmt.QueryRowContext(ctx, userID, delta).Scan(&balance)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		chanOk <- balance
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("applying delta failed for user %v", userID))
		return decimal.Zero, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("applying delta failed for user %v", userID))
		return decimal.Zero, methodErr
	case balance := <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("applying delta done for user %v", userID))
		return balance, nil
	}
}

// Debit atomically checks sufficiency and subtracts amount from the account
// balance. The check and the subtraction are one SQL statement, so two
// concurrent debits can never both pass the check against a stale balance.
func (s *Storage) Debit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	ensureStmt, err := s.DB.PrepareContext(ctx, "INSERT INTO accounts (user_id, balance) VALUES ($1, 0) ON CONFLICT (user_id) DO NOTHING")
	if err != nil {
		return decimal.Zero, &storageErrors.StatementPSQLError{Err: err}
	}
	defer ensureStmt.Close()
	debitStmt, err := s.DB.PrepareContext(ctx, "UPDATE accounts SET balance = balance - $2 WHERE user_id = $1 AND balance >= $2 RETURNING balance")
	if err != nil {
		return decimal.Zero, &storageErrors.StatementPSQLError{Err: err}
	}
	defer debitStmt.Close()
	chanOk := make(chan decimal.Decimal)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, err := ensureStmt.ExecContext(ctx, userID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		var balance decimal.Decimal
		err = debitStmt.QueryRowContext(ctx, userID, amount).Scan(&balance)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				chanEr <- &storageErrors.InsufficientBalanceError{UserID: userID, Required: amount}
				return
			default:
				chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
				return
			}
		}
		chanOk <- balance
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("debit failed for user %v", userID))
		return decimal.Zero, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("debit failed for user %v", userID))
		return decimal.Zero, methodErr
	case balance := <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("debit of %s done for user %v", amount.StringFixed(2), userID))
		return balance, nil
	}
}

// AddOrder persists a new order record and returns its internal identifier.
func (s *Storage) AddOrder(ctx context.Context, order modelstorage.OrderStorageEntry) (int64, error) {
	insertStmt, err := s.DB.PrepareContext(ctx, "INSERT INTO orders (user_id, provider_order_id, service_id, service_name, quantity, price, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id")
	if err != nil {
		return 0, &storageErrors.StatementPSQLError{Err: err}
	}
	defer insertStmt.Close()
	chanOk := make(chan int64)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		var id int64
		err := insertStmt.QueryRowContext(ctx, order.UserID, order.ProviderOrderID, order.ServiceID, order.ServiceName, order.Quantity, order.Price, order.Status, time.Now()).Scan(&id)
		if err != nil {
			if err, ok := err.(*pgconn.PgError); ok && err.Code == pgerrcode.UniqueViolation {
				chanEr <- &storageErrors.AlreadyExistsError{Err: err, ID: order.ProviderOrderID}
				return
			}
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		chanOk <- id
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("adding order failed for user %v", order.UserID))
		return 0, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("adding order failed for user %v", order.UserID))
		return 0, methodErr
	case id := <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("adding order %v done for user %v", id, order.UserID))
		return id, nil
	}
}

// GetOrdersByUser retrieves all orders of one user.
func (s *Storage) GetOrdersByUser(ctx context.Context, userID int64) ([]modelstorage.OrderStorageEntry, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, "SELECT id, user_id, provider_order_id, service_id, service_name, quantity, price, status, created_at FROM orders WHERE user_id = $1 ORDER BY created_at")
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	return s.queryOrders(ctx, selectStmt, userID)
}

// GetInFlightOrders retrieves all orders still awaiting a terminal provider
// status.
func (s *Storage) GetInFlightOrders(ctx context.Context) ([]modelstorage.OrderStorageEntry, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, "SELECT id, user_id, provider_order_id, service_id, service_name, quantity, price, status, created_at FROM orders WHERE status = $1 ORDER BY created_at")
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	return s.queryOrders(ctx, selectStmt, modelstorage.OrderStatusInProgress)
}

func (s *Storage) queryOrders(ctx context.Context, selectStmt *sql.Stmt, arg interface{}) ([]modelstorage.OrderStorageEntry, error) {
	chanOk := make(chan []modelstorage.OrderStorageEntry)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		rows, err := selectStmt.QueryContext(ctx, arg)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		defer rows.Close()
		var queryOutput []modelstorage.OrderStorageEntry
		for rows.Next() {
			var row modelstorage.OrderStorageEntry
			err = rows.Scan(&row.ID, &row.UserID, &row.ProviderOrderID, &row.ServiceID, &row.ServiceName, &row.Quantity, &row.Price, &row.Status, &row.CreatedAt)
			if err != nil {
				chanEr <- &storageErrors.ScanningPSQLError{Err: err}
				return
			}
			queryOutput = append(queryOutput, row)
		}
		err = rows.Err()
		if err != nil {
			chanEr <- &storageErrors.ScanningPSQLError{Err: err}
			return
		}
		chanOk <- queryOutput
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg("querying orders failed")
		return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg("querying orders failed")
		return nil, methodErr
	case queryOutput := <-chanOk:
		return queryOutput, nil
	}
}

// UpdateOrderStatus transitions an order out of IN_PROGRESS. The status guard
// makes the transition a claim: a second writer observes zero affected rows
// and receives AlreadyProcessedError instead of overwriting a terminal state.
func (s *Storage) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	updateStmt, err := s.DB.PrepareContext(ctx, "UPDATE orders SET status = $2 WHERE id = $1 AND status = $3")
	if err != nil {
		return &storageErrors.StatementPSQLError{Err: err}
	}
	defer updateStmt.Close()
	chanOk := make(chan bool)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		result, err := updateStmt.ExecContext(ctx, orderID, status, modelstorage.OrderStatusInProgress)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		affected, err := result.RowsAffected()
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		if affected == 0 {
			chanEr <- &storageErrors.AlreadyProcessedError{ID: orderID}
			return
		}
		chanOk <- true
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("updating status failed for order %v", orderID))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("updating status failed for order %v", orderID))
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("order %v moved to %s", orderID, status))
		return nil
	}
}

// AddRefund enqueues a pending refund record and returns its identifier.
func (s *Storage) AddRefund(ctx context.Context, refund modelstorage.RefundStorageEntry) (int64, error) {
	insertStmt, err := s.DB.PrepareContext(ctx, "INSERT INTO refunds (order_id, user_id, amount, reason, status, created_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id")
	if err != nil {
		return 0, &storageErrors.StatementPSQLError{Err: err}
	}
	defer insertStmt.Close()
	chanOk := make(chan int64)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		var id int64
		err := insertStmt.QueryRowContext(ctx, refund.OrderID, refund.UserID, refund.Amount, refund.Reason, modelstorage.RefundStatusPending, time.Now()).Scan(&id)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		chanOk <- id
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("adding refund failed for user %v", refund.UserID))
		return 0, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("adding refund failed for user %v", refund.UserID))
		return 0, methodErr
	case id := <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("adding refund %v done for user %v", id, refund.UserID))
		return id, nil
	}
}

// GetPendingRefunds retrieves all refunds awaiting an administrative decision.
func (s *Storage) GetPendingRefunds(ctx context.Context) ([]modelstorage.RefundStorageEntry, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, "SELECT id, order_id, user_id, amount, reason, status, created_at FROM refunds WHERE status = $1 ORDER BY created_at")
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	chanOk := make(chan []modelstorage.RefundStorageEntry)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		rows, err := selectStmt.QueryContext(ctx, modelstorage.RefundStatusPending)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		defer rows.Close()
		var queryOutput []modelstorage.RefundStorageEntry
		for rows.Next() {
			var row modelstorage.RefundStorageEntry
			err = rows.Scan(&row.ID, &row.OrderID, &row.UserID, &row.Amount, &row.Reason, &row.Status, &row.CreatedAt)
			if err != nil {
				chanEr <- &storageErrors.ScanningPSQLError{Err: err}
				return
			}
			queryOutput = append(queryOutput, row)
		}
		err = rows.Err()
		if err != nil {
			chanEr <- &storageErrors.ScanningPSQLError{Err: err}
			return
		}
		chanOk <- queryOutput
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg("querying pending refunds failed")
		return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg("querying pending refunds failed")
		return nil, methodErr
	case queryOutput := <-chanOk:
		return queryOutput, nil
	}
}

// ApproveRefund credits the ledger and marks the refund APPROVED in one
// transaction, so the credit and the status flip are observable only
// together.
func (s *Storage) ApproveRefund(ctx context.Context, refundID int64) (modelstorage.RefundStorageEntry, error) {
	return s.settleRefund(ctx, refundID, modelstorage.RefundStatusApproved)
}

// RejectRefund marks the refund REJECTED without crediting the ledger.
func (s *Storage) RejectRefund(ctx context.Context, refundID int64) (modelstorage.RefundStorageEntry, error) {
	return s.settleRefund(ctx, refundID, modelstorage.RefundStatusRejected)
}

func (s *Storage) settleRefund(ctx context.Context, refundID int64, status string) (modelstorage.RefundStorageEntry, error) {
	chanOk := make(chan modelstorage.RefundStorageEntry)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		defer tx.Rollback()
		var row modelstorage.RefundStorageEntry
		err = tx.QueryRowContext(ctx, "SELECT id, order_id, user_id, amount, reason, status, created_at FROM refunds WHERE id = $1 FOR UPDATE", refundID).Scan(&row.ID, &row.OrderID, &row.UserID, &row.Amount, &row.Reason, &row.Status, &row.CreatedAt)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				chanEr <- &storageErrors.NotFoundError{Err: err}
				return
			default:
				chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
				return
			}
		}
		if row.Status != modelstorage.RefundStatusPending {
			chanEr <- &storageErrors.AlreadyProcessedError{ID: refundID}
			return
		}
		if status == modelstorage.RefundStatusApproved {
			_, err = tx.ExecContext(ctx, "INSERT INTO accounts (user_id, balance) VALUES ($1, $2) ON CONFLICT (user_id) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance", row.UserID, row.Amount)
			if err != nil {
				chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
				return
			}
		}
		_, err = tx.ExecContext(ctx, "UPDATE refunds SET status = $2 WHERE id = $1", refundID, status)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		err = tx.Commit()
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		row.Status = status
		chanOk <- row
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("settling refund %v failed", refundID))
		return modelstorage.RefundStorageEntry{}, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("settling refund %v failed", refundID))
		return modelstorage.RefundStorageEntry{}, methodErr
	case row := <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("refund %v moved to %s", refundID, status))
		return row, nil
	}
}

func (s *Storage) createTables(ctx context.Context) error {
	var queries []string
	query := `CREATE TABLE IF NOT EXISTS accounts (
		id      BIGSERIAL      NOT NULL,
		user_id BIGINT         NOT NULL UNIQUE,
		balance NUMERIC(10, 2) NOT NULL DEFAULT 0
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS orders (
		id                BIGSERIAL      PRIMARY KEY,
		user_id           BIGINT         NOT NULL,
		provider_order_id BIGINT         NOT NULL UNIQUE,
		service_id        BIGINT         NOT NULL,
		service_name      TEXT           NOT NULL,
		quantity          BIGINT         NOT NULL,
		price             NUMERIC(10, 2) NOT NULL,
		status            TEXT           NOT NULL,
		created_at        TIMESTAMPTZ    NOT NULL
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS refunds (
		id         BIGSERIAL      PRIMARY KEY,
		order_id   BIGINT         NOT NULL,
		user_id    BIGINT         NOT NULL,
		amount     NUMERIC(10, 2) NOT NULL,
		reason     TEXT           NOT NULL,
		status     TEXT           NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMPTZ    NOT NULL
	);`
	queries = append(queries, query)
	for _, subquery := range queries {
		_, err := s.DB.ExecContext(ctx, subquery)
		if err != nil {
			return err
		}
	}
	return nil
}
