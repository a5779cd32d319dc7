package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/storage"
	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// DefaultRateCacheTTL is how long a fetched USD to INR rate is reused.
const DefaultRateCacheTTL = 2 * time.Hour

// RateFetcher asks an exchange-rate provider for the current USD to INR rate.
type RateFetcher interface {
	FetchUSDINR(ctx context.Context) (decimal.Decimal, error)
}

// Quote is a rate together with the time it was fetched.
type Quote struct {
	Rate      decimal.Decimal `json:"rate"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Stale     bool            `json:"stale"`
}

type RatesService interface {
	Current(ctx context.Context) (Quote, error)
	ConversionRate(ctx context.Context) (decimal.Decimal, error)
}

type ratesService struct {
	store   KeyValueStore
	fetcher RateFetcher
	ttl     time.Duration
	now     func() time.Time
}

func NewRatesService(store KeyValueStore, fetcher RateFetcher, ttl time.Duration) *ratesService {
	if ttl <= 0 {
		ttl = DefaultRateCacheTTL
	}
	return &ratesService{store: store, fetcher: fetcher, ttl: ttl, now: time.Now}
}

// Current serves the cached rate while it is fresh. Otherwise it fetches and
// caches a new one, falling back to the cached rate, however old, on failure.
func (s *ratesService) Current(ctx context.Context) (Quote, error) {
	tracer := otel.Tracer("rates-service")
	ctx, span := tracer.Start(ctx, "Current")
	defer span.End()

	cached, hasCached := s.cached(ctx)
	if hasCached && s.now().Sub(cached.FetchedAt) < s.ttl {
		return cached, nil
	}

	rate, err := s.fetcher.FetchUSDINR(ctx)
	if err != nil {
		span.RecordError(err)
		if hasCached {
			slog.Warn("rate fetch failed, using cached rate", "rate", cached.Rate.String(), "fetched_at", cached.FetchedAt, "error", err)
			cached.Stale = true
			return cached, nil
		}
		span.SetStatus(codes.Error, "no rate available")
		slog.Error("rate fetch failed and no cached rate", "error", err)
		return Quote{}, fmt.Errorf("%w: %v", pkgerrors.ErrRateUnavailable, err)
	}

	now := s.now()
	if err := s.store.SetString(ctx, storage.KeyUsdInrRate, rate.String()); err != nil {
		slog.Warn("failed to cache rate", "error", err)
	}
	if err := s.store.SetString(ctx, storage.KeyUsdInrRateTimestamp, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		slog.Warn("failed to cache rate timestamp", "error", err)
	}
	slog.Info("rate refreshed", "rate", rate.String())
	return Quote{Rate: rate, FetchedAt: now}, nil
}

func (s *ratesService) ConversionRate(ctx context.Context) (decimal.Decimal, error) {
	q, err := s.Current(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Rate, nil
}

func (s *ratesService) cached(ctx context.Context) (Quote, bool) {
	rawRate, ok := s.store.GetString(ctx, storage.KeyUsdInrRate)
	if !ok {
		return Quote{}, false
	}
	rate, err := decimal.NewFromString(rawRate)
	if err != nil {
		slog.Warn("malformed cached rate", "value", rawRate, "error", err)
		return Quote{}, false
	}

	var fetchedAt time.Time
	if rawTS, ok := s.store.GetString(ctx, storage.KeyUsdInrRateTimestamp); ok {
		if ms, err := strconv.ParseInt(rawTS, 10, 64); err == nil {
			fetchedAt = time.UnixMilli(ms)
		}
	}
	return Quote{Rate: rate, FetchedAt: fetchedAt}, true
}
