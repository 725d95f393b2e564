package purchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/clipvault/backend/internal/earnings"
	"github.com/clipvault/backend/internal/events"
	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/monitoring"
	"github.com/clipvault/backend/internal/wallet"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PurchaseVideo executes the single-video purchase state machine.
// Bundled videos are rejected outright: a series purchase is the only
// path to a video that lives inside a series.
func (s *Service) PurchaseVideo(ctx context.Context, userID, videoID uuid.UUID) (*Result, error) {
	var (
		creatorID uuid.UUID
		seriesID  *uuid.UUID
		price     int64
		status    models.ContentStatus
		title     string
	)
	err := s.db.QueryRow(ctx, `
		SELECT creator_id, series_id, coin_price, status, title FROM videos WHERE id = $1
	`, videoID).Scan(&creatorID, &seriesID, &price, &status, &title)
	if err != nil {
		return nil, translateRowError(err, ErrVideoNotFound)
	}
	if status != models.ContentStatusActive {
		return nil, ErrVideoInactive
	}
	if seriesID != nil {
		return nil, ErrVideoBundled
	}

	existing, err := s.getVideoPurchase(ctx, userID, videoID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.repeatVideoResult(ctx, userID, existing)
	}

	if creatorID == userID {
		return s.grantVideoFree(ctx, userID, videoID, price, models.PurchaseTypeCreatorAccess, "Creator self access")
	}

	// A standalone video at price 0 was pulled out of a series and not
	// re-priced yet; it is not sellable until the creator sets a price.
	if price <= 0 {
		return nil, ErrVideoUnpriced
	}

	return s.purchaseVideoPaid(ctx, userID, videoID, creatorID, title, price)
}

func (s *Service) purchaseVideoPaid(ctx context.Context, userID, videoID, creatorID uuid.UUID, title string, price int64) (*Result, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin purchase transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := wallet.LockUser(ctx, tx, userID); err != nil {
		if errors.Is(err, wallet.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM video_purchases WHERE user_id = $1 AND video_id = $2)
	`, userID, videoID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to recheck video purchase: %w", err)
	}
	if exists {
		tx.Rollback(ctx)
		existing, getErr := s.getVideoPurchase(ctx, userID, videoID)
		if getErr != nil {
			return nil, getErr
		}
		return s.repeatVideoResult(ctx, userID, existing)
	}

	spendResult, err := wallet.AppendTx(ctx, tx, &wallet.CreateTransactionRequest{
		UserID:      userID,
		Direction:   models.TransactionSpend,
		Amount:      price,
		RelatedType: models.RelatedTypeVideo,
		RelatedID:   videoID,
		Description: fmt.Sprintf("Purchased video: %s", title),
	})
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientBalance) {
			bal, balErr := s.walletSvc.Balance(ctx, userID)
			if balErr != nil {
				return nil, balErr
			}
			monitoring.RecordInsufficientCoins()
			return nil, &InsufficientCoinsError{Required: price, Available: bal}
		}
		return nil, err
	}

	if err := s.insertVideoPurchase(ctx, tx, userID, videoID, price, price, models.PurchaseTypePaid); err != nil {
		if isUniqueViolation(err) {
			tx.Rollback(ctx)
			existing, getErr := s.getVideoPurchase(ctx, userID, videoID)
			if getErr != nil {
				return nil, getErr
			}
			return s.repeatVideoResult(ctx, userID, existing)
		}
		return nil, err
	}

	if err := s.bumpVideoCounter(ctx, tx, videoID); err != nil {
		return nil, err
	}

	earnDesc := fmt.Sprintf("Video sold: %s", title)
	if _, err := earnings.RecordTx(ctx, tx, creatorID, price, models.RelatedTypeVideo, videoID, earnDesc); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}

	monitoring.RecordLedgerTransaction(string(models.TransactionSpend), string(models.RelatedTypeVideo), price)
	monitoring.RecordLedgerTransaction(string(models.TransactionEarn), string(models.RelatedTypeVideo), price)
	monitoring.RecordPurchase("video", string(models.PurchaseTypePaid))

	s.publisher.PublishPurchase(ctx, &events.PurchaseEvent{
		UserID:      userID,
		ContentType: "video",
		ContentID:   videoID,
		CoinsSpent:  price,
	})
	s.publisher.PublishEarning(ctx, &events.EarningEvent{
		CreatorID:   creatorID,
		ContentType: "video",
		ContentID:   videoID,
		Coins:       price,
	})

	s.log.Info().
		Str("user_id", userID.String()).
		Str("video_id", videoID.String()).
		Int64("coins_spent", price).
		Msg("Video purchased")

	return &Result{
		Success:          true,
		Message:          "Video purchased successfully",
		PurchaseType:     models.PurchaseTypePaid,
		CoinsSpent:       price,
		OriginalPrice:    price,
		AdjustedPrice:    price,
		RemainingBalance: spendResult.NewBalance,
		HasAccess:        true,
	}, nil
}

func (s *Service) grantVideoFree(ctx context.Context, userID, videoID uuid.UUID, price int64, purchaseType models.PurchaseType, message string) (*Result, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin grant transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.insertVideoPurchase(ctx, tx, userID, videoID, 0, price, purchaseType); err != nil {
		if isUniqueViolation(err) {
			tx.Rollback(ctx)
			existing, getErr := s.getVideoPurchase(ctx, userID, videoID)
			if getErr != nil {
				return nil, getErr
			}
			return s.repeatVideoResult(ctx, userID, existing)
		}
		return nil, err
	}

	if err := s.bumpVideoCounter(ctx, tx, videoID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit grant: %w", err)
	}

	monitoring.RecordPurchase("video", string(purchaseType))

	balance, err := s.walletSvc.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Result{
		Success:          true,
		Message:          message,
		PurchaseType:     purchaseType,
		CoinsSpent:       0,
		OriginalPrice:    price,
		AdjustedPrice:    0,
		RemainingBalance: balance,
		HasAccess:        true,
	}, nil
}

func (s *Service) insertVideoPurchase(ctx context.Context, tx pgx.Tx, userID, videoID uuid.UUID, coinsPaid, originalPrice int64, purchaseType models.PurchaseType) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO video_purchases (id, user_id, video_id, coins_paid, original_price, purchase_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'completed')
	`, uuid.New(), userID, videoID, coinsPaid, originalPrice, purchaseType)
	if err != nil {
		return fmt.Errorf("failed to insert video purchase: %w", err)
	}
	return nil
}

func (s *Service) bumpVideoCounter(ctx context.Context, tx pgx.Tx, videoID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE videos SET purchase_count = purchase_count + 1, updated_at = NOW() WHERE id = $1
	`, videoID)
	if err != nil {
		return fmt.Errorf("failed to increment video purchase count: %w", err)
	}
	return nil
}

func (s *Service) getVideoPurchase(ctx context.Context, userID, videoID uuid.UUID) (*models.VideoPurchase, error) {
	var p models.VideoPurchase
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, video_id, coins_paid, original_price, purchase_type, status, created_at
		FROM video_purchases
		WHERE user_id = $1 AND video_id = $2
	`, userID, videoID).Scan(&p.ID, &p.UserID, &p.VideoID, &p.CoinsPaid, &p.OriginalPrice, &p.PurchaseType, &p.Status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get video purchase: %w", err)
	}
	return &p, nil
}

// repeatVideoResult builds the no-charge response for a repeat purchase.
// Prices are echoed from the recorded purchase: the current list price
// may belong to a different pricing epoch (re-priced, or zeroed when the
// video was bundled into a series after the sale).
func (s *Service) repeatVideoResult(ctx context.Context, userID uuid.UUID, existing *models.VideoPurchase) (*Result, error) {
	balance, err := s.walletSvc.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Result{
		Success:          true,
		Message:          "Video already purchased",
		AlreadyOwned:     true,
		PurchaseType:     existing.PurchaseType,
		CoinsSpent:       0,
		OriginalPrice:    existing.OriginalPrice,
		AdjustedPrice:    existing.CoinsPaid,
		RemainingBalance: balance,
		HasAccess:        true,
	}, nil
}
