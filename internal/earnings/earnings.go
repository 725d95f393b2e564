package earnings

import (
	"context"
	"errors"
	"fmt"

	"github.com/clipvault/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Service errors
var (
	ErrCreatorNotFound = errors.New("creator not found")
	ErrNotCreator      = errors.New("user is not a creator")
)

// Service records and reports creator earnings. Earnings are ordinary
// earn-direction ledger entries related to content; recording happens
// inside the purchase transaction so the credit commits or rolls back
// with the charge.
type Service struct {
	db *pgxpool.Pool
}

// NewService creates a new earnings service
func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// RecordTx credits the creator's earning ledger on the caller's
// transaction. Earn entries have no deficit policy and need no balance
// check, so no creator-row lock is taken; taking one here could deadlock
// against the creator's own concurrent spends.
func RecordTx(ctx context.Context, tx pgx.Tx, creatorID uuid.UUID, amount int64, relatedType models.RelatedContentType, relatedID uuid.UUID, description string) (*models.CoinTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("earning amount must be positive, got %d", amount)
	}

	txn := &models.CoinTransaction{
		ID:          uuid.New(),
		UserID:      creatorID,
		Direction:   models.TransactionEarn,
		Amount:      amount,
		RelatedType: relatedType,
		RelatedID:   relatedID,
		Description: description,
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO coin_transactions (id, user_id, direction, amount, related_type, related_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, txn.ID, txn.UserID, txn.Direction, txn.Amount, txn.RelatedType, txn.RelatedID, txn.Description).Scan(&txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record creator earning: %w", err)
	}
	return txn, nil
}

// ContentEarnings represents earned coins attributed to one content item
type ContentEarnings struct {
	ContentType models.RelatedContentType `json:"content_type"`
	ContentID   uuid.UUID                 `json:"content_id"`
	Title       string                    `json:"title"`
	Sales       int64                     `json:"sales"`
	Coins       int64                     `json:"coins"`
}

// Summary represents a creator's aggregate earnings
type Summary struct {
	CreatorID      uuid.UUID         `json:"creator_id"`
	TotalCoins     int64             `json:"total_coins"`
	CurrencyValue  decimal.Decimal   `json:"currency_value"`
	CoinsPerUnit   int64             `json:"coins_per_unit"`
	ContentedItems []ContentEarnings `json:"breakdown"`
}

// GetSummary aggregates a creator's content earnings from the ledger.
// Top-up credits are excluded: only earn entries attributed to videos
// or series count as earnings.
func (s *Service) GetSummary(ctx context.Context, creatorID uuid.UUID) (*Summary, error) {
	if err := s.requireCreator(ctx, creatorID); err != nil {
		return nil, err
	}

	var totalCoins int64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM coin_transactions
		WHERE user_id = $1 AND direction = 'earn' AND related_type IN ('video', 'series')
	`, creatorID).Scan(&totalCoins)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate earnings: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT ct.related_type, ct.related_id,
		       COALESCE(v.title, sr.title, '') AS title,
		       COUNT(*) AS sales,
		       SUM(ct.amount) AS coins
		FROM coin_transactions ct
		LEFT JOIN videos v ON ct.related_type = 'video' AND v.id = ct.related_id
		LEFT JOIN series sr ON ct.related_type = 'series' AND sr.id = ct.related_id
		WHERE ct.user_id = $1 AND ct.direction = 'earn' AND ct.related_type IN ('video', 'series')
		GROUP BY ct.related_type, ct.related_id, v.title, sr.title
		ORDER BY coins DESC
	`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query earnings breakdown: %w", err)
	}
	defer rows.Close()

	var items []ContentEarnings
	for rows.Next() {
		var item ContentEarnings
		if err := rows.Scan(&item.ContentType, &item.ContentID, &item.Title, &item.Sales, &item.Coins); err != nil {
			return nil, fmt.Errorf("failed to scan earnings breakdown: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read earnings breakdown: %w", err)
	}

	return &Summary{
		CreatorID:      creatorID,
		TotalCoins:     totalCoins,
		CurrencyValue:  CoinsToCurrency(totalCoins),
		CoinsPerUnit:   models.CoinsPerCurrencyUnit,
		ContentedItems: items,
	}, nil
}

// HistoryResponse represents a page of a creator's earning entries
type HistoryResponse struct {
	Earnings   []models.CoinTransaction `json:"earnings"`
	Total      int                      `json:"total"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"page_size"`
	TotalPages int                      `json:"total_pages"`
}

// GetHistory retrieves a creator's earning entries, newest first
func (s *Service) GetHistory(ctx context.Context, creatorID uuid.UUID, page, pageSize int) (*HistoryResponse, error) {
	if err := s.requireCreator(ctx, creatorID); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var total int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM coin_transactions
		WHERE user_id = $1 AND direction = 'earn' AND related_type IN ('video', 'series')
	`, creatorID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count earnings: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, direction, amount, related_type, related_id, description, created_at
		FROM coin_transactions
		WHERE user_id = $1 AND direction = 'earn' AND related_type IN ('video', 'series')
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, creatorID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query earnings: %w", err)
	}
	defer rows.Close()

	var entries []models.CoinTransaction
	for rows.Next() {
		var t models.CoinTransaction
		err := rows.Scan(&t.ID, &t.UserID, &t.Direction, &t.Amount, &t.RelatedType, &t.RelatedID, &t.Description, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan earning: %w", err)
		}
		entries = append(entries, t)
	}

	return &HistoryResponse{
		Earnings:   entries,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// CoinsToCurrency projects a coin amount onto real currency at the
// platform exchange policy
func CoinsToCurrency(coins int64) decimal.Decimal {
	return decimal.NewFromInt(coins).
		Div(decimal.NewFromInt(models.CoinsPerCurrencyUnit)).
		Round(2)
}

func (s *Service) requireCreator(ctx context.Context, creatorID uuid.UUID) error {
	var role models.UserRole
	err := s.db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, creatorID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCreatorNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if role != models.UserRoleCreator {
		return ErrNotCreator
	}
	return nil
}
