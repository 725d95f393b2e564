package models

import (
	"time"

	"github.com/google/uuid"
)

// PurchaseType records how access was granted
type PurchaseType string

const (
	// PurchaseTypePaid is an ordinary purchase charged in coins
	PurchaseTypePaid PurchaseType = "paid"
	// PurchaseTypeCreatorAccess is a creator's zero-cost grant to their own content
	PurchaseTypeCreatorAccess PurchaseType = "creator_access"
	// PurchaseTypeFullyDeducted is a series grant waived because every
	// member video was already owned individually
	PurchaseTypeFullyDeducted PurchaseType = "fully_deducted"
)

// PurchaseStatus represents the status of a purchase record
type PurchaseStatus string

const (
	PurchaseStatusCompleted PurchaseStatus = "completed"
)

// Deduction itemizes one already-owned video that reduced a series price
type Deduction struct {
	VideoID   uuid.UUID `json:"videoId"`
	Title     string    `json:"title"`
	CoinPrice int64     `json:"coinPrice"`
}

// SeriesPurchaseMetadata is the audit breakdown stored alongside a
// series purchase
type SeriesPurchaseMetadata struct {
	OriginalPrice  int64       `json:"original_price"`
	AdjustedPrice  int64       `json:"adjusted_price"`
	TotalDeduction int64       `json:"total_deduction"`
	Deductions     []Deduction `json:"deductions,omitempty"`
	AllVideosOwned bool        `json:"all_videos_owned"`
}

// VideoPurchase grants a user access to a single video
type VideoPurchase struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	UserID        uuid.UUID      `json:"user_id" db:"user_id"`
	VideoID       uuid.UUID      `json:"video_id" db:"video_id"`
	CoinsPaid     int64          `json:"coins_paid" db:"coins_paid"`
	OriginalPrice int64          `json:"original_price" db:"original_price"`
	PurchaseType  PurchaseType   `json:"purchase_type" db:"purchase_type"`
	Status        PurchaseStatus `json:"status" db:"status"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// SeriesPurchase grants a user access to a series and every video in it
type SeriesPurchase struct {
	ID            uuid.UUID              `json:"id" db:"id"`
	UserID        uuid.UUID              `json:"user_id" db:"user_id"`
	SeriesID      uuid.UUID              `json:"series_id" db:"series_id"`
	CoinsPaid     int64                  `json:"coins_paid" db:"coins_paid"`
	OriginalPrice int64                  `json:"original_price" db:"original_price"`
	PurchaseType  PurchaseType           `json:"purchase_type" db:"purchase_type"`
	Status        PurchaseStatus         `json:"status" db:"status"`
	Metadata      SeriesPurchaseMetadata `json:"metadata" db:"metadata"`
	CreatedAt     time.Time              `json:"created_at" db:"created_at"`
}
