package service

import (
	"context"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/models"
	"github.com/shopspring/decimal"
)

// Topics for published domain events.
const (
	TopicUsers        = "users"
	TopicTransactions = "transactions"
	TopicWallet       = "wallet"
)

// KeyValueStore is the raw string surface of the store adapter.
type KeyValueStore interface {
	GetString(ctx context.Context, key string) (string, bool)
	SetString(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// EventPublisher sends domain events to the outside world.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

// Notifier posts a notification to the feed.
type Notifier interface {
	Add(ctx context.Context, alert models.Alert) (*models.Notification, error)
}

type nopNotifier struct{}

func (nopNotifier) Add(context.Context, models.Alert) (*models.Notification, error) { return nil, nil }

// RateSource yields the USD to INR multiplier used for new payment links.
type RateSource interface {
	ConversionRate(ctx context.Context) (decimal.Decimal, error)
}

// FixedRate is a constant RateSource.
type FixedRate struct {
	Rate decimal.Decimal
}

func (f FixedRate) ConversionRate(context.Context) (decimal.Decimal, error) {
	return f.Rate, nil
}

// DefaultPaymentRate is the USDT to INR rate the dashboard used for payment links.
var DefaultPaymentRate = decimal.RequireFromString("83.00")

// ArtifactGenerator stands in for the payment gateway, chain and document store.
type ArtifactGenerator interface {
	PaymentLink() string
	BlockchainHash() string
	DocumentCID() string
	TransactionHash() string
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseOrZero parses s as a decimal and falls back to zero.
func parseOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
