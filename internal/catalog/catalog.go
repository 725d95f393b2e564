package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/clipvault/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Service errors
var (
	ErrSeriesNotFound    = errors.New("series not found")
	ErrVideoNotFound     = errors.New("video not found")
	ErrNotOwner          = errors.New("content belongs to another creator")
	ErrCreatorMismatch   = errors.New("video and series belong to different creators")
	ErrAlreadyInSeries   = errors.New("video already belongs to a series")
	ErrNotInSeries       = errors.New("video is not in the series")
	ErrInvalidCoinPrice  = errors.New("standalone videos must be priced at least 1 coin")
	ErrReorderValidation = errors.New("reorder validation failed")
)

// Service manages videos, series and their membership. Every membership
// change recomputes the series aggregates from the junction table inside
// the same transaction, so video_count and total_duration always match a
// COUNT/SUM over series_videos.
type Service struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewService creates a new catalog service
func NewService(db *pgxpool.Pool, log zerolog.Logger) *Service {
	return &Service{db: db, log: log}
}

// CreateVideoRequest describes a new standalone video
type CreateVideoRequest struct {
	Title           string  `json:"title" binding:"required"`
	Description     *string `json:"description"`
	CoinPrice       int64   `json:"coin_price" binding:"required,min=1"`
	DurationSeconds int64   `json:"duration_seconds" binding:"required,min=1"`
}

// CreateVideo creates a standalone video priced at one coin or more
func (s *Service) CreateVideo(ctx context.Context, creatorID uuid.UUID, req *CreateVideoRequest) (*models.Video, error) {
	if req.CoinPrice < 1 {
		return nil, ErrInvalidCoinPrice
	}

	v := &models.Video{
		ID:              uuid.New(),
		CreatorID:       creatorID,
		Title:           req.Title,
		Description:     req.Description,
		CoinPrice:       req.CoinPrice,
		DurationSeconds: req.DurationSeconds,
		Status:          models.ContentStatusActive,
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO videos (id, creator_id, title, description, coin_price, duration_seconds, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, v.ID, v.CreatorID, v.Title, v.Description, v.CoinPrice, v.DurationSeconds, v.Status).Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert video: %w", err)
	}
	return v, nil
}

// CreateSeriesRequest describes a new series bundle
type CreateSeriesRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
	CoinPrice   int64   `json:"coin_price" binding:"required,min=1"`
}

// CreateSeries creates an empty series
func (s *Service) CreateSeries(ctx context.Context, creatorID uuid.UUID, req *CreateSeriesRequest) (*models.Series, error) {
	sr := &models.Series{
		ID:        uuid.New(),
		CreatorID: creatorID,
		Title:     req.Title,
		Description: req.Description,
		CoinPrice: req.CoinPrice,
		Status:    models.ContentStatusActive,
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO series (id, creator_id, title, description, coin_price, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, sr.ID, sr.CreatorID, sr.Title, sr.Description, sr.CoinPrice, sr.Status).Scan(&sr.CreatedAt, &sr.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert series: %w", err)
	}
	return sr, nil
}

// AddVideoToSeries appends a video to the end of a series. The video
// must belong to the same creator as the series and must not already be
// bundled; its standalone coin price is zeroed, since bundled videos are
// only sold through their series.
func (s *Service) AddVideoToSeries(ctx context.Context, creatorID, seriesID, videoID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the series row so concurrent membership changes serialize
	// and the appended order index stays consecutive.
	var seriesCreator uuid.UUID
	err = tx.QueryRow(ctx, `SELECT creator_id FROM series WHERE id = $1 FOR UPDATE`, seriesID).Scan(&seriesCreator)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSeriesNotFound
		}
		return fmt.Errorf("failed to lock series: %w", err)
	}
	if seriesCreator != creatorID {
		return ErrNotOwner
	}

	var videoCreator uuid.UUID
	var existingSeries *uuid.UUID
	err = tx.QueryRow(ctx, `SELECT creator_id, series_id FROM videos WHERE id = $1`, videoID).Scan(&videoCreator, &existingSeries)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVideoNotFound
		}
		return fmt.Errorf("failed to load video: %w", err)
	}
	if videoCreator != seriesCreator {
		return ErrCreatorMismatch
	}
	if existingSeries != nil {
		return ErrAlreadyInSeries
	}

	var count int
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM series_videos WHERE series_id = $1`, seriesID).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count series videos: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO series_videos (series_id, video_id, order_index)
		VALUES ($1, $2, $3)
	`, seriesID, videoID, count+1)
	if err != nil {
		return fmt.Errorf("failed to insert series membership: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE videos SET series_id = $1, coin_price = 0, updated_at = NOW() WHERE id = $2
	`, seriesID, videoID)
	if err != nil {
		return fmt.Errorf("failed to bundle video: %w", err)
	}

	if err := recomputeAggregates(ctx, tx, seriesID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit membership change: %w", err)
	}

	s.log.Info().
		Str("series_id", seriesID.String()).
		Str("video_id", videoID.String()).
		Int("order_index", count+1).
		Msg("Video added to series")
	return nil
}

// RemoveVideoFromSeries detaches a video from a series, resequences the
// remaining order indices to 1..N, and recomputes the aggregates. The
// video becomes standalone with a zero price; the creator re-prices it
// before it can be sold again.
func (s *Service) RemoveVideoFromSeries(ctx context.Context, creatorID, seriesID, videoID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var seriesCreator uuid.UUID
	err = tx.QueryRow(ctx, `SELECT creator_id FROM series WHERE id = $1 FOR UPDATE`, seriesID).Scan(&seriesCreator)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSeriesNotFound
		}
		return fmt.Errorf("failed to lock series: %w", err)
	}
	if seriesCreator != creatorID {
		return ErrNotOwner
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM series_videos WHERE series_id = $1 AND video_id = $2
	`, seriesID, videoID)
	if err != nil {
		return fmt.Errorf("failed to delete series membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotInSeries
	}

	// Close the gap left by the removed video.
	_, err = tx.Exec(ctx, `
		WITH resequenced AS (
			SELECT video_id, ROW_NUMBER() OVER (ORDER BY order_index) AS new_index
			FROM series_videos WHERE series_id = $1
		)
		UPDATE series_videos sv
		SET order_index = r.new_index
		FROM resequenced r
		WHERE sv.series_id = $1 AND sv.video_id = r.video_id
	`, seriesID)
	if err != nil {
		return fmt.Errorf("failed to resequence series: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE videos SET series_id = NULL, updated_at = NOW() WHERE id = $1
	`, videoID)
	if err != nil {
		return fmt.Errorf("failed to unbundle video: %w", err)
	}

	if err := recomputeAggregates(ctx, tx, seriesID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit membership change: %w", err)
	}

	s.log.Info().
		Str("series_id", seriesID.String()).
		Str("video_id", videoID.String()).
		Msg("Video removed from series")
	return nil
}

// recomputeAggregates refreshes the series counters from the junction
// table so they can never drift from the membership rows
func recomputeAggregates(ctx context.Context, tx pgx.Tx, seriesID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE series SET
			video_count = (SELECT COUNT(*) FROM series_videos WHERE series_id = $1),
			total_duration = (
				SELECT COALESCE(SUM(v.duration_seconds), 0)
				FROM series_videos sv JOIN videos v ON v.id = sv.video_id
				WHERE sv.series_id = $1
			),
			updated_at = NOW()
		WHERE id = $1
	`, seriesID)
	if err != nil {
		return fmt.Errorf("failed to recompute series aggregates: %w", err)
	}
	return nil
}
