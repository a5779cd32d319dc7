package service

import (
	"context"
	"testing"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/models"
	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*ledgerService, *recordingPublisher) {
	t.Helper()
	mgr, _ := newTestStorage(t)
	pub := &recordingPublisher{}
	l := NewLedgerService(context.Background(), mgr, LedgerOptions{
		Artifacts: fakeArtifacts{},
		Publisher: pub,
	})
	l.now = fixedClock(time.Date(2024, 1, 20, 10, 30, 0, 0, time.UTC), 0)
	return l, pub
}

func acme(amount int64) models.NewTransaction {
	return models.NewTransaction{
		ClientName: "Acme",
		Amount:     decimal.NewFromInt(amount),
		AmountInr:  decimal.NewFromInt(amount).Mul(DefaultPaymentRate),
		Status:     models.StatusPending,
	}
}

func assertCompletedAtMatchesStatus(t *testing.T, txs []models.Transaction) {
	t.Helper()
	for _, tx := range txs {
		assert.Equal(t, tx.Status == models.StatusCompleted, tx.CompletedAt != nil, "transaction %s", tx.ID)
	}
}

func TestLedgerService_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("amount in INR and pending status", func(t *testing.T) {
		l, pub := newTestLedger(t)
		tx, err := l.Add(ctx, acme(100))
		require.NoError(t, err)
		assert.True(t, tx.AmountInr.Equal(decimal.NewFromInt(8300)))
		assert.Equal(t, models.StatusPending, tx.Status)
		assert.Nil(t, tx.CompletedAt)
		assert.Equal(t, []string{TopicTransactions}, pub.Topics())
	})

	t.Run("newest first with unique ids", func(t *testing.T) {
		l, _ := newTestLedger(t)
		seen := map[string]bool{}
		for i := 1; i <= 5; i++ {
			tx, err := l.Add(ctx, acme(int64(i)))
			require.NoError(t, err)
			list := l.List(ctx)
			assert.Equal(t, tx.ID, list[0].ID)
			assert.False(t, seen[tx.ID])
			seen[tx.ID] = true
		}
		assert.Len(t, l.List(ctx), 5)
	})

	t.Run("persisted on every add", func(t *testing.T) {
		l, _ := newTestLedger(t)
		_, err := l.Add(ctx, acme(1))
		require.NoError(t, err)
		assert.Len(t, l.store.LoadTransactions(ctx), 1)
	})

	t.Run("validation", func(t *testing.T) {
		l, _ := newTestLedger(t)
		_, err := l.Add(ctx, models.NewTransaction{ClientName: "", Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
		_, err = l.Add(ctx, models.NewTransaction{ClientName: "Acme", Amount: decimal.NewFromInt(-1)})
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
		assert.Empty(t, l.List(ctx))
	})
}

func TestLedgerService_SetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("completes and stamps once", func(t *testing.T) {
		l, _ := newTestLedger(t)
		tx, err := l.Add(ctx, acme(100))
		require.NoError(t, err)

		done, err := l.SetStatus(ctx, tx.ID, models.StatusCompleted)
		require.NoError(t, err)
		require.NotNil(t, done.CompletedAt)
		assert.False(t, done.CompletedAt.IsZero())
		assert.True(t, done.Amount.Equal(tx.Amount))
		assert.True(t, done.AmountInr.Equal(tx.AmountInr))

		l.now = fixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 0)
		again, err := l.SetStatus(ctx, tx.ID, models.StatusCompleted)
		require.NoError(t, err)
		assert.True(t, done.CompletedAt.Equal(*again.CompletedAt))

		assertCompletedAtMatchesStatus(t, l.List(ctx))
		stored := l.store.LoadTransactions(ctx)
		assert.Equal(t, models.StatusCompleted, stored[0].Status)
	})

	t.Run("never back to pending", func(t *testing.T) {
		l, _ := newTestLedger(t)
		tx, _ := l.Add(ctx, acme(1))
		_, err := l.SetStatus(ctx, tx.ID, models.StatusCompleted)
		require.NoError(t, err)

		_, err = l.SetStatus(ctx, tx.ID, models.StatusPending)
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
		got, _ := l.Get(ctx, tx.ID)
		assert.Equal(t, models.StatusCompleted, got.Status)
	})

	t.Run("unknown id changes nothing", func(t *testing.T) {
		l, _ := newTestLedger(t)
		_, _ = l.Add(ctx, acme(1))
		before := l.List(ctx)
		_, err := l.SetStatus(ctx, "missing", models.StatusCompleted)
		assert.ErrorIs(t, err, pkgerrors.ErrTransactionNotFound)
		assert.Equal(t, before, l.List(ctx))
	})

	t.Run("unknown status", func(t *testing.T) {
		l, _ := newTestLedger(t)
		tx, _ := l.Add(ctx, acme(1))
		_, err := l.SetStatus(ctx, tx.ID, "failed")
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
	})
}

func TestLedgerService_Complete(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	tx, err := l.Add(ctx, acme(10))
	require.NoError(t, err)

	done, changed, err := l.Complete(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.StatusCompleted, done.Status)

	again, changed, err := l.Complete(ctx, tx.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, done.CompletedAt.Equal(*again.CompletedAt))

	_, changed, err = l.Complete(ctx, "missing")
	assert.ErrorIs(t, err, pkgerrors.ErrTransactionNotFound)
	assert.False(t, changed)
}

func TestLedgerService_FilterByStatus(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	a, _ := l.Add(ctx, acme(1))
	_, _ = l.Add(ctx, acme(2))
	_, err := l.SetStatus(ctx, a.ID, models.StatusCompleted)
	require.NoError(t, err)

	first, err := l.FilterByStatus(ctx, models.StatusAll)
	require.NoError(t, err)
	second, err := l.FilterByStatus(ctx, models.StatusAll)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 2)

	pending, _ := l.FilterByStatus(ctx, models.StatusPending)
	assert.Len(t, pending, 1)
	completed, _ := l.FilterByStatus(ctx, models.StatusCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, a.ID, completed[0].ID)

	_, err = l.FilterByStatus(ctx, "refunded")
	assert.ErrorIs(t, err, pkgerrors.ErrValidation)

	first[0].ClientName = "changed"
	assert.Equal(t, "Acme", l.List(ctx)[0].ClientName)
}

func TestLedgerService_CreatePaymentLink(t *testing.T) {
	ctx := context.Background()

	t.Run("pending transaction with artifacts", func(t *testing.T) {
		l, _ := newTestLedger(t)
		notifier := &recordingNotifier{}
		l.opts.Notifier = notifier

		tx, err := l.CreatePaymentLink(ctx, models.PaymentLinkRequest{
			ClientName: "Acme", Amount: decimal.NewFromInt(100), Description: "Logo design",
		})
		require.NoError(t, err)
		assert.True(t, tx.AmountInr.Equal(decimal.NewFromInt(8300)))
		assert.Equal(t, models.StatusPending, tx.Status)
		assert.Equal(t, "https://rzp.io/i/mockabc123", tx.PaymentLinkURL)
		assert.Len(t, tx.BlockchainHash, 66)
		assert.Len(t, tx.IPFSCid, 46)
		assert.Equal(t, "Logo design", tx.Description)
		require.Len(t, notifier.Alerts(), 1)
		assert.Equal(t, models.NotificationSuccess, notifier.Alerts()[0].Type)
	})

	t.Run("rate source", func(t *testing.T) {
		l, _ := newTestLedger(t)
		l.opts.Rates = FixedRate{Rate: decimal.RequireFromString("84.50")}
		tx, err := l.CreatePaymentLink(ctx, models.PaymentLinkRequest{ClientName: "Acme", Amount: decimal.NewFromInt(2)})
		require.NoError(t, err)
		assert.True(t, tx.AmountInr.Equal(decimal.RequireFromString("169")))
	})

	t.Run("invalid request", func(t *testing.T) {
		l, _ := newTestLedger(t)
		_, err := l.CreatePaymentLink(ctx, models.PaymentLinkRequest{ClientName: "Acme"})
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
		assert.Empty(t, l.List(ctx))
	})

	t.Run("cancelled during delay", func(t *testing.T) {
		l, _ := newTestLedger(t)
		l.opts.LinkDelay = time.Hour
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := l.CreatePaymentLink(cctx, models.PaymentLinkRequest{ClientName: "Acme", Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, l.List(ctx))
	})
}

func TestLedgerService_ReloadClearClose(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	tx, _ := l.Add(ctx, acme(1))

	reopened := NewLedgerService(ctx, l.store, LedgerOptions{})
	reopened.now = l.now
	got, err := reopened.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)

	next, err := reopened.Add(ctx, acme(2))
	require.NoError(t, err)
	assert.NotEqual(t, tx.ID, next.ID)

	require.NoError(t, reopened.Clear(ctx))
	assert.Empty(t, reopened.List(ctx))
	assert.Empty(t, l.store.LoadTransactions(ctx))

	reopened.Close()
	_, err = reopened.Add(ctx, acme(3))
	assert.ErrorIs(t, err, pkgerrors.ErrClosed)
}
