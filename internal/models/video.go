package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentStatus represents the moderation status of a video or series
type ContentStatus string

const (
	ContentStatusActive   ContentStatus = "active"
	ContentStatusInactive ContentStatus = "inactive"
)

// Video represents a single video. A video with a non-nil SeriesID is
// bundled: it is only sold as part of its series and its standalone
// coin price is forced to zero by policy.
type Video struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	CreatorID       uuid.UUID     `json:"creator_id" db:"creator_id"`
	Title           string        `json:"title" db:"title"`
	Description     *string       `json:"description,omitempty" db:"description"`
	CoinPrice       int64         `json:"coin_price" db:"coin_price"`
	DurationSeconds int64         `json:"duration_seconds" db:"duration_seconds"`
	SeriesID        *uuid.UUID    `json:"series_id,omitempty" db:"series_id"`
	Status          ContentStatus `json:"status" db:"status"`
	PurchaseCount   int64         `json:"purchase_count" db:"purchase_count"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// IsBundled reports whether the video belongs to a series
func (v *Video) IsBundled() bool {
	return v.SeriesID != nil
}
