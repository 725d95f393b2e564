package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/monitoring"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service errors
var (
	ErrInsufficientBalance = errors.New("insufficient coin balance")
	ErrInvalidAmount       = errors.New("transaction amount must be a positive integer")
	ErrInvalidDirection    = errors.New("transaction direction must be spend or earn")
	ErrUserNotFound        = errors.New("user not found")
)

// Service is the coin transaction service. It owns every mutation of the
// coin ledger: balance is derived by aggregating coin_transactions, never
// read from a stored counter.
type Service struct {
	db *pgxpool.Pool
}

// NewService creates a new wallet service
func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// CreateTransactionRequest describes a single ledger entry to append
type CreateTransactionRequest struct {
	UserID      uuid.UUID
	Direction   models.TransactionDirection
	Amount      int64
	RelatedType models.RelatedContentType
	RelatedID   uuid.UUID
	Description string
}

// TransactionResult is the outcome of a committed ledger append
type TransactionResult struct {
	Transaction *models.CoinTransaction `json:"transaction"`
	NewBalance  int64                   `json:"new_balance"`
}

// Validate checks the request invariants shared by both directions
func (r *CreateTransactionRequest) Validate() error {
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	switch r.Direction {
	case models.TransactionSpend, models.TransactionEarn:
		return nil
	default:
		return ErrInvalidDirection
	}
}

// Balance returns the user's current coin balance, derived from the
// ledger. Callers must not treat the result as a guarantee at a later
// write time; spends revalidate under lock.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return balance(ctx, s.db, userID)
}

// CheckSufficientCoins reports whether the user currently holds at least
// amount coins. Read-only projection; the authoritative check happens
// inside CreateTransaction under the user-row lock.
func (s *Service) CheckSufficientCoins(ctx context.Context, userID uuid.UUID, amount int64) (bool, int64, error) {
	bal, err := balance(ctx, s.db, userID)
	if err != nil {
		return false, 0, err
	}
	return bal >= amount, bal, nil
}

// CreateTransaction validates and executes a single spend or earn
// operation in one database transaction. Spends lock the user's row
// first so the balance check and the insert cannot interleave with a
// concurrent spend against a stale snapshot; earns always succeed.
func (s *Service) CreateTransaction(ctx context.Context, req *CreateTransactionRequest) (*TransactionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := LockUser(ctx, tx, req.UserID); err != nil {
		return nil, err
	}

	result, err := AppendTx(ctx, tx, req)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	monitoring.RecordLedgerTransaction(string(req.Direction), string(req.RelatedType), req.Amount)
	return result, nil
}

// LockUser takes the row lock that serializes all coin mutations for a
// user. Every transaction that appends to the ledger acquires this lock
// before reading the balance.
func LockUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	var status models.UserStatus
	err := tx.QueryRow(ctx, `SELECT status FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to lock user row: %w", err)
	}
	return nil
}

// AppendTx appends a ledger entry on a caller-supplied transaction.
// The caller must already hold the user-row lock via LockUser; spends
// revalidate the balance inside that lock before inserting.
func AppendTx(ctx context.Context, tx pgx.Tx, req *CreateTransactionRequest) (*TransactionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	bal, err := balance(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}

	if req.Direction == models.TransactionSpend {
		if req.Amount > bal {
			return nil, ErrInsufficientBalance
		}
	}

	txn := &models.CoinTransaction{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Direction:   req.Direction,
		Amount:      req.Amount,
		RelatedType: req.RelatedType,
		RelatedID:   req.RelatedID,
		Description: req.Description,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO coin_transactions (id, user_id, direction, amount, related_type, related_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, txn.ID, txn.UserID, txn.Direction, txn.Amount, txn.RelatedType, txn.RelatedID, txn.Description).Scan(&txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert coin transaction: %w", err)
	}

	newBalance := bal
	if req.Direction == models.TransactionSpend {
		newBalance -= req.Amount
	} else {
		newBalance += req.Amount
	}

	return &TransactionResult{Transaction: txn, NewBalance: newBalance}, nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func balance(ctx context.Context, q querier, userID uuid.UUID) (int64, error) {
	var bal int64
	start := time.Now()
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'earn' THEN amount ELSE -amount END), 0)
		FROM coin_transactions
		WHERE user_id = $1
	`, userID).Scan(&bal)
	monitoring.RecordDBQuery("wallet_balance", time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate balance: %w", err)
	}
	return bal, nil
}

// NewBalanceAfter computes the balance that results from applying a
// ledger entry to a starting balance
func NewBalanceAfter(balance int64, direction models.TransactionDirection, amount int64) int64 {
	if direction == models.TransactionSpend {
		return balance - amount
	}
	return balance + amount
}

// HistoryResponse represents a page of a user's ledger
type HistoryResponse struct {
	Transactions []models.CoinTransaction `json:"transactions"`
	Balance      int64                    `json:"balance"`
	Total        int                      `json:"total"`
	Page         int                      `json:"page"`
	PageSize     int                      `json:"page_size"`
	TotalPages   int                      `json:"total_pages"`
}

// History retrieves a user's coin transaction history, newest first
func (s *Service) History(ctx context.Context, userID uuid.UUID, page, pageSize int) (*HistoryResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var total int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM coin_transactions WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, direction, amount, related_type, related_id, description, created_at
		FROM coin_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.CoinTransaction
	for rows.Next() {
		var t models.CoinTransaction
		err := rows.Scan(&t.ID, &t.UserID, &t.Direction, &t.Amount, &t.RelatedType, &t.RelatedID, &t.Description, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}

	bal, err := balance(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	return &HistoryResponse{
		Transactions: transactions,
		Balance:      bal,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
		TotalPages:   (total + pageSize - 1) / pageSize,
	}, nil
}
