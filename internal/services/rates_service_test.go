package service

import (
	"context"
	stderrors "errors"
	"strconv"
	"testing"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/storage"
	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (f *stubFetcher) FetchUSDINR(context.Context) (decimal.Decimal, error) {
	f.calls++
	return f.rate, f.err
}

func TestRatesService_Current(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fetches and caches", func(t *testing.T) {
		mgr, _ := newTestStorage(t)
		fetcher := &stubFetcher{rate: decimal.RequireFromString("83.12")}
		s := NewRatesService(mgr, fetcher, 0)
		s.now = func() time.Time { return now }

		q, err := s.Current(ctx)
		require.NoError(t, err)
		assert.True(t, q.Rate.Equal(decimal.RequireFromString("83.12")))

		raw, ok := mgr.GetString(ctx, storage.KeyUsdInrRateTimestamp)
		require.True(t, ok)
		assert.Equal(t, strconv.FormatInt(now.UnixMilli(), 10), raw)

		s.now = func() time.Time { return now.Add(time.Hour) }
		_, err = s.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, fetcher.calls)
	})

	t.Run("refreshes after two hours", func(t *testing.T) {
		mgr, _ := newTestStorage(t)
		require.NoError(t, mgr.SetString(ctx, storage.KeyUsdInrRate, "82"))
		require.NoError(t, mgr.SetString(ctx, storage.KeyUsdInrRateTimestamp, strconv.FormatInt(now.Add(-3*time.Hour).UnixMilli(), 10)))
		fetcher := &stubFetcher{rate: decimal.RequireFromString("84")}
		s := NewRatesService(mgr, fetcher, 0)
		s.now = func() time.Time { return now }

		rate, err := s.ConversionRate(ctx)
		require.NoError(t, err)
		assert.True(t, rate.Equal(decimal.NewFromInt(84)))
		assert.Equal(t, 1, fetcher.calls)
	})

	t.Run("falls back to stale cache", func(t *testing.T) {
		mgr, _ := newTestStorage(t)
		require.NoError(t, mgr.SetString(ctx, storage.KeyUsdInrRate, "82"))
		require.NoError(t, mgr.SetString(ctx, storage.KeyUsdInrRateTimestamp, strconv.FormatInt(now.Add(-48*time.Hour).UnixMilli(), 10)))
		s := NewRatesService(mgr, &stubFetcher{err: stderrors.New("offline")}, 0)
		s.now = func() time.Time { return now }

		q, err := s.Current(ctx)
		require.NoError(t, err)
		assert.True(t, q.Stale)
		assert.True(t, q.Rate.Equal(decimal.NewFromInt(82)))
	})

	t.Run("nothing cached and fetch fails", func(t *testing.T) {
		mgr, _ := newTestStorage(t)
		s := NewRatesService(mgr, &stubFetcher{err: stderrors.New("offline")}, 0)
		_, err := s.Current(ctx)
		assert.ErrorIs(t, err, pkgerrors.ErrRateUnavailable)
	})
}
