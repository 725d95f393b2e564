package topup

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/clipvault/backend/internal/events"
	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/monitoring"
	"github.com/clipvault/backend/internal/wallet"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Service errors
var (
	ErrPackageNotFound  = errors.New("coin package not found")
	ErrTopupNotFound    = errors.New("topup not found")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrTopupFailed      = errors.New("topup was not completed by the gateway")
)

// Service handles coin purchases through the payment gateway. Coins are
// credited to the ledger only from the gateway webhook, never from the
// client-facing initiation call.
type Service struct {
	db            *pgxpool.Pool
	publisher     *events.Publisher
	webhookSecret string
	log           zerolog.Logger
}

// NewService creates a new topup service
func NewService(db *pgxpool.Pool, publisher *events.Publisher, webhookSecret string, log zerolog.Logger) *Service {
	return &Service{
		db:            db,
		publisher:     publisher,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

// ListPackages returns the active coin packages cheapest first
func (s *Service) ListPackages(ctx context.Context) ([]models.CoinPackage, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, coins, price, currency, active
		FROM coin_packages
		WHERE active = true
		ORDER BY price ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list coin packages: %w", err)
	}
	defer rows.Close()

	var packages []models.CoinPackage
	for rows.Next() {
		var p models.CoinPackage
		if err := rows.Scan(&p.ID, &p.Name, &p.Coins, &p.Price, &p.Currency, &p.Active); err != nil {
			return nil, fmt.Errorf("failed to scan coin package: %w", err)
		}
		packages = append(packages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read coin packages: %w", err)
	}
	return packages, nil
}

// InitiateTopup creates a pending topup for a coin package. The gateway
// reference on the returned record is what the client completes payment
// against; no coins move until the webhook confirms.
func (s *Service) InitiateTopup(ctx context.Context, userID uuid.UUID, packageID string) (*models.Topup, error) {
	var pkg models.CoinPackage
	err := s.db.QueryRow(ctx, `
		SELECT id, name, coins, price, currency, active
		FROM coin_packages WHERE id = $1 AND active = true
	`, packageID).Scan(&pkg.ID, &pkg.Name, &pkg.Coins, &pkg.Price, &pkg.Currency, &pkg.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("failed to load coin package: %w", err)
	}

	ref := uuid.New().String()
	t := &models.Topup{
		ID:         uuid.New(),
		UserID:     userID,
		PackageID:  pkg.ID,
		Coins:      pkg.Coins,
		Amount:     pkg.Price,
		GatewayRef: &ref,
		Status:     models.TopupStatusPending,
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO topups (id, user_id, package_id, coins, amount, gateway_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, t.ID, t.UserID, t.PackageID, t.Coins, t.Amount, t.GatewayRef, t.Status).Scan(&t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert topup: %w", err)
	}

	s.log.Info().
		Str("topup_id", t.ID.String()).
		Str("user_id", userID.String()).
		Str("package_id", pkg.ID).
		Int64("coins", t.Coins).
		Msg("Topup initiated")
	return t, nil
}

// VerifySignature checks the gateway's HMAC-SHA256 signature over the
// raw webhook body using constant-time comparison
func (s *Service) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookPayload is the gateway's settlement notification
type WebhookPayload struct {
	GatewayRef string `json:"gateway_ref" binding:"required"`
	Status     string `json:"status" binding:"required"`
}

// CompleteTopup processes a verified gateway notification. Marking the
// topup completed and crediting the ledger happen in one transaction;
// a repeated notification for an already-settled topup is a no-op.
func (s *Service) CompleteTopup(ctx context.Context, payload *WebhookPayload) (*models.Topup, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	t := &models.Topup{}
	var currency string
	err = tx.QueryRow(ctx, `
		SELECT t.id, t.user_id, t.package_id, t.coins, t.amount, t.gateway_ref,
		       t.status, t.created_at, t.completed_at, t.failed_at, p.currency
		FROM topups t
		JOIN coin_packages p ON p.id = t.package_id
		WHERE t.gateway_ref = $1
		FOR UPDATE OF t
	`, payload.GatewayRef).Scan(&t.ID, &t.UserID, &t.PackageID, &t.Coins, &t.Amount,
		&t.GatewayRef, &t.Status, &t.CreatedAt, &t.CompletedAt, &t.FailedAt, &currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTopupNotFound
		}
		return nil, fmt.Errorf("failed to lock topup: %w", err)
	}

	if t.Status != models.TopupStatusPending {
		if t.Status == models.TopupStatusFailed {
			return t, ErrTopupFailed
		}
		return t, nil
	}

	if payload.Status != "completed" {
		now := time.Now()
		_, err = tx.Exec(ctx, `UPDATE topups SET status = $1, failed_at = $2 WHERE id = $3`,
			models.TopupStatusFailed, now, t.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to mark topup failed: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit topup failure: %w", err)
		}
		t.Status = models.TopupStatusFailed
		t.FailedAt = &now
		monitoring.RecordTopup("failed")
		return t, ErrTopupFailed
	}

	if err := wallet.LockUser(ctx, tx, t.UserID); err != nil {
		return nil, err
	}

	result, err := wallet.AppendTx(ctx, tx, &wallet.CreateTransactionRequest{
		UserID:      t.UserID,
		Direction:   models.TransactionEarn,
		Amount:      t.Coins,
		RelatedType: models.RelatedTypeTopup,
		RelatedID:   t.ID,
		Description: fmt.Sprintf("Coin topup: %s", t.PackageID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to credit topup coins: %w", err)
	}

	now := time.Now()
	_, err = tx.Exec(ctx, `UPDATE topups SET status = $1, completed_at = $2 WHERE id = $3`,
		models.TopupStatusCompleted, now, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark topup completed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit topup: %w", err)
	}
	t.Status = models.TopupStatusCompleted
	t.CompletedAt = &now

	monitoring.RecordTopup("completed")
	monitoring.RecordTopupRevenue(currency, t.Amount.InexactFloat64())
	monitoring.RecordLedgerTransaction(string(models.TransactionEarn), string(models.RelatedTypeTopup), t.Coins)

	s.publisher.PublishTopup(ctx, &events.TopupEvent{
		UserID:  t.UserID,
		TopupID: t.ID,
		Coins:   t.Coins,
	})

	s.log.Info().
		Str("topup_id", t.ID.String()).
		Str("user_id", t.UserID.String()).
		Int64("coins", t.Coins).
		Int64("new_balance", result.NewBalance).
		Msg("Topup completed")
	return t, nil
}
