package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/clipvault/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service errors
var (
	ErrVideoNotFound  = errors.New("video not found")
	ErrSeriesNotFound = errors.New("series not found")
)

// Level describes how a user may access a piece of content
type Level string

const (
	LevelNone           Level = "none"
	LevelOwnedDirect    Level = "owned-direct"
	LevelOwnedViaSeries Level = "owned-via-series"
	LevelCreatorSelf    Level = "creator-self"
)

// HasAccess reports whether the level grants viewing rights
func (l Level) HasAccess() bool {
	return l != LevelNone
}

// Service answers ownership questions from purchase and membership
// records. It never writes.
type Service struct {
	db *pgxpool.Pool
}

// NewService creates a new access service
func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// CheckVideoAccess determines the caller's access to a video.
// For a bundled video the series grant is checked before any individual
// purchase: the series purchase is the authoritative grant and must not
// leave room for a second charge on the member video.
func (s *Service) CheckVideoAccess(ctx context.Context, userID, videoID uuid.UUID) (Level, error) {
	var creatorID uuid.UUID
	var seriesID *uuid.UUID
	err := s.db.QueryRow(ctx, `
		SELECT creator_id, series_id FROM videos WHERE id = $1
	`, videoID).Scan(&creatorID, &seriesID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LevelNone, ErrVideoNotFound
		}
		return LevelNone, fmt.Errorf("failed to load video: %w", err)
	}

	if creatorID == userID {
		return LevelCreatorSelf, nil
	}

	if seriesID != nil {
		owned, err := s.hasSeriesPurchase(ctx, userID, *seriesID)
		if err != nil {
			return LevelNone, err
		}
		if owned {
			return LevelOwnedViaSeries, nil
		}
	}

	owned, err := s.hasVideoPurchase(ctx, userID, videoID)
	if err != nil {
		return LevelNone, err
	}
	if owned {
		return LevelOwnedDirect, nil
	}

	return LevelNone, nil
}

// CheckSeriesAccess determines the caller's access to a series.
// Creator self-access is evaluated before purchase records.
func (s *Service) CheckSeriesAccess(ctx context.Context, userID, seriesID uuid.UUID) (Level, error) {
	var creatorID uuid.UUID
	err := s.db.QueryRow(ctx, `
		SELECT creator_id FROM series WHERE id = $1
	`, seriesID).Scan(&creatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LevelNone, ErrSeriesNotFound
		}
		return LevelNone, fmt.Errorf("failed to load series: %w", err)
	}

	if creatorID == userID {
		return LevelCreatorSelf, nil
	}

	owned, err := s.hasSeriesPurchase(ctx, userID, seriesID)
	if err != nil {
		return LevelNone, err
	}
	if owned {
		return LevelOwnedDirect, nil
	}

	return LevelNone, nil
}

// GetSeriesPurchase returns the user's purchase record for a series,
// or nil when none exists
func (s *Service) GetSeriesPurchase(ctx context.Context, userID, seriesID uuid.UUID) (*models.SeriesPurchase, error) {
	var p models.SeriesPurchase
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, series_id, coins_paid, original_price, purchase_type, status, metadata, created_at
		FROM series_purchases
		WHERE user_id = $1 AND series_id = $2
	`, userID, seriesID).Scan(
		&p.ID, &p.UserID, &p.SeriesID, &p.CoinsPaid, &p.OriginalPrice,
		&p.PurchaseType, &p.Status, &p.Metadata, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get series purchase: %w", err)
	}
	return &p, nil
}

func (s *Service) hasSeriesPurchase(ctx context.Context, userID, seriesID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM series_purchases
			WHERE user_id = $1 AND series_id = $2 AND status = 'completed'
		)
	`, userID, seriesID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check series purchase: %w", err)
	}
	return exists, nil
}

func (s *Service) hasVideoPurchase(ctx context.Context, userID, videoID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM video_purchases
			WHERE user_id = $1 AND video_id = $2 AND status = 'completed'
		)
	`, userID, videoID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check video purchase: %w", err)
	}
	return exists, nil
}
