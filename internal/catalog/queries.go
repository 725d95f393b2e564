package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/clipvault/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetVideo loads a single video by id
func (s *Service) GetVideo(ctx context.Context, videoID uuid.UUID) (*models.Video, error) {
	v := &models.Video{}
	err := s.db.QueryRow(ctx, `
		SELECT id, creator_id, series_id, title, description, coin_price,
		       duration_seconds, status, purchase_count, created_at, updated_at
		FROM videos WHERE id = $1
	`, videoID).Scan(&v.ID, &v.CreatorID, &v.SeriesID, &v.Title, &v.Description,
		&v.CoinPrice, &v.DurationSeconds, &v.Status, &v.PurchaseCount, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to load video: %w", err)
	}
	return v, nil
}

// SeriesDetail is a series together with its videos in playback order
type SeriesDetail struct {
	models.Series
	Videos []models.Video `json:"videos"`
}

// GetSeriesDetail loads a series and its member videos ordered by position
func (s *Service) GetSeriesDetail(ctx context.Context, seriesID uuid.UUID) (*SeriesDetail, error) {
	d := &SeriesDetail{}
	err := s.db.QueryRow(ctx, `
		SELECT id, creator_id, title, description, coin_price, status,
		       video_count, total_duration, purchase_count, created_at, updated_at
		FROM series WHERE id = $1
	`, seriesID).Scan(&d.ID, &d.CreatorID, &d.Title, &d.Description, &d.CoinPrice,
		&d.Status, &d.VideoCount, &d.TotalDuration, &d.PurchaseCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSeriesNotFound
		}
		return nil, fmt.Errorf("failed to load series: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT v.id, v.creator_id, v.series_id, v.title, v.description, v.coin_price,
		       v.duration_seconds, v.status, v.purchase_count, v.created_at, v.updated_at
		FROM series_videos sv
		JOIN videos v ON v.id = sv.video_id
		WHERE sv.series_id = $1
		ORDER BY sv.order_index
	`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to load series videos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.CreatorID, &v.SeriesID, &v.Title, &v.Description,
			&v.CoinPrice, &v.DurationSeconds, &v.Status, &v.PurchaseCount, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan video row: %w", err)
		}
		d.Videos = append(d.Videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read video rows: %w", err)
	}
	return d, nil
}
