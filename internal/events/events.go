package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/clipvault/backend/internal/monitoring"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event channels
const (
	ChannelPurchaseCompleted = "events:purchase.completed"
	ChannelEarningRecorded   = "events:earning.recorded"
	ChannelTopupCompleted    = "events:topup.completed"
)

// PurchaseEvent is emitted after a purchase transaction commits
type PurchaseEvent struct {
	UserID      uuid.UUID `json:"user_id"`
	ContentType string    `json:"content_type"`
	ContentID   uuid.UUID `json:"content_id"`
	CoinsSpent  int64     `json:"coins_spent"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EarningEvent is emitted after a creator earning commits
type EarningEvent struct {
	CreatorID   uuid.UUID `json:"creator_id"`
	ContentType string    `json:"content_type"`
	ContentID   uuid.UUID `json:"content_id"`
	Coins       int64     `json:"coins"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// TopupEvent is emitted after a wallet top-up commits
type TopupEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	TopupID    uuid.UUID `json:"topup_id"`
	Coins      int64     `json:"coins"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits domain events on Redis pub/sub channels after the
// owning database transaction has committed. Publishing is best-effort:
// a delivery failure is logged and counted but never surfaced to the
// caller, so a notification outage can never roll back or block a
// financial commit.
type Publisher struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewPublisher creates a new event publisher. A nil client yields a
// no-op publisher, which keeps the core testable without Redis.
func NewPublisher(client *redis.Client, log zerolog.Logger) *Publisher {
	return &Publisher{client: client, log: log}
}

// NewRedisClient creates a Redis client from a URL
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// PublishPurchase emits a purchase-completed event
func (p *Publisher) PublishPurchase(ctx context.Context, ev *PurchaseEvent) {
	ev.OccurredAt = time.Now().UTC()
	p.publish(ctx, ChannelPurchaseCompleted, ev)
}

// PublishEarning emits an earning-recorded event
func (p *Publisher) PublishEarning(ctx context.Context, ev *EarningEvent) {
	ev.OccurredAt = time.Now().UTC()
	p.publish(ctx, ChannelEarningRecorded, ev)
}

// PublishTopup emits a topup-completed event
func (p *Publisher) PublishTopup(ctx context.Context, ev *TopupEvent) {
	ev.OccurredAt = time.Now().UTC()
	p.publish(ctx, ChannelTopupCompleted, ev)
}

func (p *Publisher) publish(ctx context.Context, channel string, payload any) {
	if p == nil || p.client == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.log.Error().Err(err).Str("channel", channel).Msg("Failed to marshal event")
		monitoring.RecordEventPublishFailure(channel)
		return
	}

	// Bounded so a slow Redis cannot hold up the request goroutine.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := p.client.Publish(pubCtx, channel, data).Err(); err != nil {
		p.log.Warn().Err(err).Str("channel", channel).Msg("Failed to publish event")
		monitoring.RecordEventPublishFailure(channel)
		return
	}
	monitoring.RecordEventPublished(channel)
}
