package purchase

import (
	"errors"
	"fmt"

	"github.com/clipvault/backend/internal/access"
	"github.com/clipvault/backend/internal/events"
	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/pricing"
	"github.com/clipvault/backend/internal/wallet"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Service errors
var (
	ErrSeriesNotFound = errors.New("series not found")
	ErrVideoNotFound  = errors.New("video not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrSeriesInactive = errors.New("series is not active")
	ErrVideoInactive  = errors.New("video is not active")
	ErrVideoBundled   = errors.New("video is part of a series and cannot be purchased individually")
	ErrVideoUnpriced  = errors.New("video has no standalone price")
)

// InsufficientCoinsError carries the shortfall detail the client needs
// to render a top-up prompt
type InsufficientCoinsError struct {
	Required   int64
	Available  int64
	Deductions []models.Deduction
}

func (e *InsufficientCoinsError) Error() string {
	return fmt.Sprintf("insufficient coins: required %d, available %d", e.Required, e.Available)
}

// Shortfall returns the missing amount
func (e *InsufficientCoinsError) Shortfall() int64 {
	return e.Required - e.Available
}

// Service orchestrates content purchases. Each purchase attempt is a
// terminal state machine: ownership check, pricing, balance check, then
// debit + grant + counter + creator credit as one database transaction.
type Service struct {
	db        *pgxpool.Pool
	walletSvc *wallet.Service
	accessSvc *access.Service
	priceSvc  *pricing.Service
	publisher *events.Publisher
	log       zerolog.Logger
}

// NewService creates a new purchase service
func NewService(db *pgxpool.Pool, walletSvc *wallet.Service, accessSvc *access.Service, priceSvc *pricing.Service, publisher *events.Publisher, log zerolog.Logger) *Service {
	return &Service{
		db:        db,
		walletSvc: walletSvc,
		accessSvc: accessSvc,
		priceSvc:  priceSvc,
		publisher: publisher,
		log:       log,
	}
}

// Result is the outcome of a purchase attempt for either content type
type Result struct {
	Success          bool                `json:"success"`
	Message          string              `json:"message"`
	AlreadyOwned     bool                `json:"alreadyOwned"`
	PurchaseType     models.PurchaseType `json:"purchaseType"`
	CoinsSpent       int64               `json:"coinsSpent"`
	OriginalPrice    int64               `json:"originalPrice"`
	AdjustedPrice    int64               `json:"adjustedPrice"`
	Deductions       []models.Deduction  `json:"deductions"`
	RemainingBalance int64               `json:"remainingBalance"`
	HasAccess        bool                `json:"hasAccess"`
}

// isUniqueViolation reports whether err is a duplicate-key error on a
// purchase grant. The unique indexes on (user_id, series_id) and
// (user_id, video_id) are the backstop against two concurrent purchases
// both passing the no-existing-purchase check; the loser lands here and
// is treated as an idempotent repeat, not a failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func translateRowError(err error, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return err
}
