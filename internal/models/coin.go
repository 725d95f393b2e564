package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CoinsPerCurrencyUnit is the platform exchange policy: one real
// currency unit buys twenty coins.
const CoinsPerCurrencyUnit = 20

// TransactionDirection represents whether a ledger entry adds to or
// subtracts from a user's balance
type TransactionDirection string

const (
	TransactionSpend TransactionDirection = "spend"
	TransactionEarn  TransactionDirection = "earn"
)

// RelatedContentType identifies what a coin transaction was for
type RelatedContentType string

const (
	RelatedTypeVideo  RelatedContentType = "video"
	RelatedTypeSeries RelatedContentType = "series"
	RelatedTypeTopup  RelatedContentType = "topup"
)

// CoinTransaction is an immutable ledger entry. Rows are inserted once
// and never updated or deleted; a user's balance is
// SUM(earn) - SUM(spend) over their rows.
type CoinTransaction struct {
	ID          uuid.UUID            `json:"id" db:"id"`
	UserID      uuid.UUID            `json:"user_id" db:"user_id"`
	Direction   TransactionDirection `json:"direction" db:"direction"`
	Amount      int64                `json:"amount" db:"amount"`
	RelatedType RelatedContentType   `json:"related_type" db:"related_type"`
	RelatedID   uuid.UUID            `json:"related_id" db:"related_id"`
	Description string               `json:"description" db:"description"`
	CreatedAt   time.Time            `json:"created_at" db:"created_at"`
}

// CoinPackage is a purchasable bundle of coins priced in real currency
type CoinPackage struct {
	ID       string          `json:"id" db:"id"`
	Name     string          `json:"name" db:"name"`
	Coins    int64           `json:"coins" db:"coins"`
	Price    decimal.Decimal `json:"price" db:"price"`
	Currency string          `json:"currency" db:"currency"`
	Active   bool            `json:"active" db:"active"`
}

// TopupStatus represents the status of a wallet top-up
type TopupStatus string

const (
	TopupStatusPending   TopupStatus = "pending"
	TopupStatusCompleted TopupStatus = "completed"
	TopupStatusFailed    TopupStatus = "failed"
)

// Topup represents a pending or settled wallet top-up. The payment
// gateway confirms funds externally; completion credits the ledger
// with an earn transaction.
type Topup struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	UserID      uuid.UUID       `json:"user_id" db:"user_id"`
	PackageID   string          `json:"package_id" db:"package_id"`
	Coins       int64           `json:"coins" db:"coins"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	GatewayRef  *string         `json:"gateway_ref,omitempty" db:"gateway_ref"`
	Status      TopupStatus     `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	FailedAt    *time.Time      `json:"failed_at,omitempty" db:"failed_at"`
}
