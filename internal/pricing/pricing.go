package pricing

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
	ErrSeriesNotFound = errors.New("series not found")
)

// Quote is the result of pricing a series for a specific buyer
type Quote struct {
	SeriesID       uuid.UUID          `json:"series_id"`
	OriginalPrice  int64              `json:"original_price"`
	AdjustedPrice  int64              `json:"adjusted_price"`
	TotalDeduction int64              `json:"total_deduction"`
	Deductions     []models.Deduction `json:"deductions,omitempty"`
	AllVideosOwned bool               `json:"all_videos_owned"`
}

// Service computes the buyer-specific adjusted price of a series: list
// price minus what the buyer already paid for member videos they own
// individually.
type Service struct {
	db *pgxpool.Pool
}

// NewService creates a new pricing service
func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// CalculateAdjustedPrice enumerates the series' videos, itemizes the
// ones the buyer already owns, and clamps the adjusted price at zero.
// A series with no videos prices at the unmodified list price and is
// never reported as fully owned. When every video is owned the series
// is free regardless of the arithmetic, since the buyer has already
// paid for all of the content piecewise.
func (s *Service) CalculateAdjustedPrice(ctx context.Context, userID, seriesID uuid.UUID) (*Quote, error) {
	var listPrice int64
	err := s.db.QueryRow(ctx, `SELECT coin_price FROM series WHERE id = $1`, seriesID).Scan(&listPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSeriesNotFound
		}
		return nil, fmt.Errorf("failed to load series: %w", err)
	}

	// Member videos paired with the buyer's individual purchase, if any.
	// The deduction is the amount the buyer actually paid for the video:
	// bundled videos carry a zero list price, so the purchase record is
	// the only faithful source for what the content already cost them.
	rows, err := s.db.Query(ctx, `
		SELECT v.id, v.title, vp.coins_paid
		FROM series_videos sv
		JOIN videos v ON v.id = sv.video_id
		LEFT JOIN video_purchases vp
		    ON vp.video_id = v.id AND vp.user_id = $1 AND vp.status = 'completed'
		WHERE sv.series_id = $2
		ORDER BY sv.order_index
	`, userID, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate series videos: %w", err)
	}
	defer rows.Close()

	var (
		videoCount int
		deductions []models.Deduction
	)
	for rows.Next() {
		var (
			id        uuid.UUID
			title     string
			coinsPaid *int64
		)
		if err := rows.Scan(&id, &title, &coinsPaid); err != nil {
			return nil, fmt.Errorf("failed to scan series video: %w", err)
		}
		videoCount++
		if coinsPaid != nil {
			deductions = append(deductions, models.Deduction{VideoID: id, Title: title, CoinPrice: *coinsPaid})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read series videos: %w", err)
	}

	return BuildQuote(seriesID, listPrice, videoCount, deductions), nil
}

// BuildQuote applies the adjustment arithmetic to an enumerated series.
// Split from the query so the clamp and all-owned rules are testable
// without a database.
func BuildQuote(seriesID uuid.UUID, listPrice int64, videoCount int, deductions []models.Deduction) *Quote {
	var totalDeduction int64
	for _, d := range deductions {
		totalDeduction += d.CoinPrice
	}

	// Surplus deduction beyond the list price is discarded, not refunded.
	adjusted := listPrice - totalDeduction
	if adjusted < 0 {
		adjusted = 0
	}

	allOwned := videoCount > 0 && len(deductions) == videoCount
	if allOwned {
		adjusted = 0
	}

	return &Quote{
		SeriesID:       seriesID,
		OriginalPrice:  listPrice,
		AdjustedPrice:  adjusted,
		TotalDeduction: totalDeduction,
		Deductions:     deductions,
		AllVideosOwned: allOwned,
	}
}
