package models

import (
	"time"

	"github.com/google/uuid"
)

// Series represents an ordered bundle of videos sold as one purchasable
// unit. VideoCount and TotalDuration are aggregates over series_videos
// and are recomputed inside the same transaction as every membership
// change.
type Series struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	CreatorID     uuid.UUID     `json:"creator_id" db:"creator_id"`
	Title         string        `json:"title" db:"title"`
	Description   *string       `json:"description,omitempty" db:"description"`
	CoinPrice     int64         `json:"coin_price" db:"coin_price"`
	VideoCount    int           `json:"video_count" db:"video_count"`
	TotalDuration int64         `json:"total_duration" db:"total_duration"`
	Status        ContentStatus `json:"status" db:"status"`
	PurchaseCount int64         `json:"purchase_count" db:"purchase_count"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// SeriesVideo is the junction row linking a video into a series.
// Order indices are the consecutive integers 1..N within a series.
type SeriesVideo struct {
	SeriesID   uuid.UUID `json:"series_id" db:"series_id"`
	VideoID    uuid.UUID `json:"video_id" db:"video_id"`
	OrderIndex int       `json:"order_index" db:"order_index"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
