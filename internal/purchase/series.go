package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clipvault/backend/internal/access"
	"github.com/clipvault/backend/internal/earnings"
	"github.com/clipvault/backend/internal/events"
	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/monitoring"
	"github.com/clipvault/backend/internal/pricing"
	"github.com/clipvault/backend/internal/wallet"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PurchaseSeries executes the series purchase state machine for one
// attempt. Terminal on first success or failure; repeat calls after a
// successful grant return success without a second charge.
func (s *Service) PurchaseSeries(ctx context.Context, userID, seriesID uuid.UUID) (*Result, error) {
	// Load the series. Moderation-deactivated series cannot be bought.
	var (
		creatorID uuid.UUID
		listPrice int64
		status    models.ContentStatus
		title     string
	)
	err := s.db.QueryRow(ctx, `
		SELECT creator_id, coin_price, status, title FROM series WHERE id = $1
	`, seriesID).Scan(&creatorID, &listPrice, &status, &title)
	if err != nil {
		return nil, translateRowError(err, ErrSeriesNotFound)
	}
	if status != models.ContentStatusActive {
		return nil, ErrSeriesInactive
	}

	// Idempotent repeat purchase: an existing grant short-circuits
	// before any pricing work.
	existing, err := s.accessSvc.GetSeriesPurchase(ctx, userID, seriesID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.repeatResult(ctx, userID, existing)
	}

	// The creator gets zero-cost access to their own series.
	if creatorID == userID {
		return s.grantSeriesFree(ctx, userID, seriesID, listPrice, models.PurchaseTypeCreatorAccess, nil, "Creator self access")
	}

	// Price the series against the buyer's individual purchases. The
	// quote is a snapshot; the existing-grant check is repeated inside
	// the locked transaction before any money moves.
	quote, err := s.priceSvc.CalculateAdjustedPrice(ctx, userID, seriesID)
	if err != nil {
		if errors.Is(err, pricing.ErrSeriesNotFound) {
			return nil, ErrSeriesNotFound
		}
		return nil, err
	}

	if quote.AllVideosOwned {
		return s.grantSeriesFree(ctx, userID, seriesID, listPrice, models.PurchaseTypeFullyDeducted, quote, "All videos already owned")
	}

	if quote.AdjustedPrice == 0 {
		// Deductions covered the whole list price without covering
		// every video. Nothing to debit, nothing to credit.
		return s.grantSeriesFree(ctx, userID, seriesID, listPrice, models.PurchaseTypePaid, quote, "Fully deducted by owned videos")
	}

	return s.purchaseSeriesPaid(ctx, userID, seriesID, creatorID, title, quote)
}

// purchaseSeriesPaid performs the charged path: balance check, debit,
// grant, counter bump and creator credit commit together or not at all.
func (s *Service) purchaseSeriesPaid(ctx context.Context, userID, seriesID, creatorID uuid.UUID, title string, quote *pricing.Quote) (*Result, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin purchase transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize on the buyer's row: concurrent spends by the same user
	// queue here and each sees the balance left by the previous commit.
	if err := wallet.LockUser(ctx, tx, userID); err != nil {
		if errors.Is(err, wallet.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	// Re-check under the lock: a concurrent purchase may have committed
	// between the snapshot check and here.
	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM series_purchases WHERE user_id = $1 AND series_id = $2)
	`, userID, seriesID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to recheck series purchase: %w", err)
	}
	if exists {
		tx.Rollback(ctx)
		existing, err := s.accessSvc.GetSeriesPurchase(ctx, userID, seriesID)
		if err != nil {
			return nil, err
		}
		return s.repeatResult(ctx, userID, existing)
	}

	// Debit the buyer. AppendTx revalidates the balance under the lock.
	spendResult, err := wallet.AppendTx(ctx, tx, &wallet.CreateTransactionRequest{
		UserID:      userID,
		Direction:   models.TransactionSpend,
		Amount:      quote.AdjustedPrice,
		RelatedType: models.RelatedTypeSeries,
		RelatedID:   seriesID,
		Description: fmt.Sprintf("Purchased series: %s", title),
	})
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientBalance) {
			bal, balErr := s.walletSvc.Balance(ctx, userID)
			if balErr != nil {
				return nil, balErr
			}
			monitoring.RecordInsufficientCoins()
			return nil, &InsufficientCoinsError{
				Required:   quote.AdjustedPrice,
				Available:  bal,
				Deductions: quote.Deductions,
			}
		}
		return nil, err
	}

	if err := s.insertSeriesPurchase(ctx, tx, userID, seriesID, quote.AdjustedPrice, quote.OriginalPrice, models.PurchaseTypePaid, quote); err != nil {
		if isUniqueViolation(err) {
			tx.Rollback(ctx)
			existing, getErr := s.accessSvc.GetSeriesPurchase(ctx, userID, seriesID)
			if getErr != nil {
				return nil, getErr
			}
			return s.repeatResult(ctx, userID, existing)
		}
		return nil, err
	}

	if err := s.bumpSeriesCounter(ctx, tx, seriesID); err != nil {
		return nil, err
	}

	// Credit the creator for the same amount inside the same transaction.
	earnDesc := fmt.Sprintf("Series sold: %s", title)
	if _, err := earnings.RecordTx(ctx, tx, creatorID, quote.AdjustedPrice, models.RelatedTypeSeries, seriesID, earnDesc); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}

	monitoring.RecordLedgerTransaction(string(models.TransactionSpend), string(models.RelatedTypeSeries), quote.AdjustedPrice)
	monitoring.RecordLedgerTransaction(string(models.TransactionEarn), string(models.RelatedTypeSeries), quote.AdjustedPrice)
	monitoring.RecordPurchase("series", string(models.PurchaseTypePaid))

	s.publisher.PublishPurchase(ctx, &events.PurchaseEvent{
		UserID:      userID,
		ContentType: "series",
		ContentID:   seriesID,
		CoinsSpent:  quote.AdjustedPrice,
	})
	s.publisher.PublishEarning(ctx, &events.EarningEvent{
		CreatorID:   creatorID,
		ContentType: "series",
		ContentID:   seriesID,
		Coins:       quote.AdjustedPrice,
	})

	s.log.Info().
		Str("user_id", userID.String()).
		Str("series_id", seriesID.String()).
		Int64("coins_spent", quote.AdjustedPrice).
		Int64("original_price", quote.OriginalPrice).
		Msg("Series purchased")

	return &Result{
		Success:          true,
		Message:          "Series purchased successfully",
		PurchaseType:     models.PurchaseTypePaid,
		CoinsSpent:       quote.AdjustedPrice,
		OriginalPrice:    quote.OriginalPrice,
		AdjustedPrice:    quote.AdjustedPrice,
		Deductions:       quote.Deductions,
		RemainingBalance: spendResult.NewBalance,
		HasAccess:        true,
	}, nil
}

// grantSeriesFree records a zero-cost grant (creator self access, an
// all-owned waiver, or a fully deducted price). No ledger entries are
// written: there is nothing to debit and nothing to credit.
func (s *Service) grantSeriesFree(ctx context.Context, userID, seriesID uuid.UUID, listPrice int64, purchaseType models.PurchaseType, quote *pricing.Quote, message string) (*Result, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin grant transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.insertSeriesPurchase(ctx, tx, userID, seriesID, 0, listPrice, purchaseType, quote); err != nil {
		if isUniqueViolation(err) {
			tx.Rollback(ctx)
			existing, getErr := s.accessSvc.GetSeriesPurchase(ctx, userID, seriesID)
			if getErr != nil {
				return nil, getErr
			}
			return s.repeatResult(ctx, userID, existing)
		}
		return nil, err
	}

	if err := s.bumpSeriesCounter(ctx, tx, seriesID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit grant: %w", err)
	}

	monitoring.RecordPurchase("series", string(purchaseType))

	balance, err := s.walletSvc.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Success:          true,
		Message:          message,
		PurchaseType:     purchaseType,
		CoinsSpent:       0,
		OriginalPrice:    listPrice,
		AdjustedPrice:    0,
		RemainingBalance: balance,
		HasAccess:        true,
	}
	if quote != nil {
		result.Deductions = quote.Deductions
	}
	return result, nil
}

func (s *Service) insertSeriesPurchase(ctx context.Context, tx pgx.Tx, userID, seriesID uuid.UUID, coinsPaid, originalPrice int64, purchaseType models.PurchaseType, quote *pricing.Quote) error {
	metadata := models.SeriesPurchaseMetadata{
		OriginalPrice: originalPrice,
		AdjustedPrice: coinsPaid,
	}
	if quote != nil {
		metadata.AdjustedPrice = quote.AdjustedPrice
		metadata.TotalDeduction = quote.TotalDeduction
		metadata.Deductions = quote.Deductions
		metadata.AllVideosOwned = quote.AllVideosOwned
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal purchase metadata: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO series_purchases (id, user_id, series_id, coins_paid, original_price, purchase_type, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, 'completed', $7)
	`, uuid.New(), userID, seriesID, coinsPaid, originalPrice, purchaseType, metadataJSON)
	if err != nil {
		return fmt.Errorf("failed to insert series purchase: %w", err)
	}
	return nil
}

func (s *Service) bumpSeriesCounter(ctx context.Context, tx pgx.Tx, seriesID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE series SET purchase_count = purchase_count + 1, updated_at = NOW() WHERE id = $1
	`, seriesID)
	if err != nil {
		return fmt.Errorf("failed to increment series purchase count: %w", err)
	}
	return nil
}

// repeatResult builds the no-charge response for a repeat purchase
func (s *Service) repeatResult(ctx context.Context, userID uuid.UUID, existing *models.SeriesPurchase) (*Result, error) {
	balance, err := s.walletSvc.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Result{
		Success:          true,
		Message:          "Series already purchased",
		AlreadyOwned:     true,
		PurchaseType:     existing.PurchaseType,
		CoinsSpent:       0,
		OriginalPrice:    existing.OriginalPrice,
		AdjustedPrice:    existing.Metadata.AdjustedPrice,
		Deductions:       existing.Metadata.Deductions,
		RemainingBalance: balance,
		HasAccess:        true,
	}, nil
}

// SeriesAccessDetails is the read-only purchase/access view of a series
type SeriesAccessDetails struct {
	HasAccess   bool                   `json:"hasAccess"`
	AccessLevel access.Level           `json:"accessLevel"`
	Purchase    *models.SeriesPurchase `json:"purchase,omitempty"`
	Quote       *pricing.Quote         `json:"quote,omitempty"`
}

// GetSeriesPurchase returns the caller's current access and purchase
// details for a series, including a live quote when not yet owned
func (s *Service) GetSeriesPurchase(ctx context.Context, userID, seriesID uuid.UUID) (*SeriesAccessDetails, error) {
	level, err := s.accessSvc.CheckSeriesAccess(ctx, userID, seriesID)
	if err != nil {
		if errors.Is(err, access.ErrSeriesNotFound) {
			return nil, ErrSeriesNotFound
		}
		return nil, err
	}

	details := &SeriesAccessDetails{
		HasAccess:   level.HasAccess(),
		AccessLevel: level,
	}

	if level == access.LevelOwnedDirect {
		p, err := s.accessSvc.GetSeriesPurchase(ctx, userID, seriesID)
		if err != nil {
			return nil, err
		}
		details.Purchase = p
	}

	if !level.HasAccess() {
		quote, err := s.priceSvc.CalculateAdjustedPrice(ctx, userID, seriesID)
		if err != nil {
			return nil, err
		}
		details.Quote = quote
	}

	return details, nil
}
