package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/models"
	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryArchive struct {
	mu    sync.Mutex
	snaps []models.Snapshot
}

func (a *memoryArchive) Save(_ context.Context, snap models.Snapshot) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snaps = append(a.snaps, snap)
	return int64(len(a.snaps)), nil
}

func (a *memoryArchive) GetByID(_ context.Context, id int64) (*models.ArchivedSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id < 1 || int(id) > len(a.snaps) {
		return nil, pkgerrors.ErrSnapshotNotFound
	}
	return &models.ArchivedSnapshot{ID: id, Snapshot: a.snaps[id-1]}, nil
}

func (a *memoryArchive) Latest(ctx context.Context) (*models.ArchivedSnapshot, error) {
	return a.GetByID(ctx, int64(len(a.snaps)))
}

type dataFixture struct {
	data   *dataService
	ledger *ledgerService
	users  interface {
		List(context.Context) []models.User
	}
	archive *memoryArchive
}

func newDataFixture(t *testing.T) dataFixture {
	t.Helper()
	ctx := context.Background()
	mgr, _ := newTestStorage(t)
	users := newTestUsers(t, mgr, true)
	ledger := NewLedgerService(ctx, mgr, LedgerOptions{Artifacts: fakeArtifacts{}})
	wallet := NewWalletService(ctx, mgr, WalletOptions{Artifacts: fakeArtifacts{}})
	archive := &memoryArchive{}
	data := NewDataService(mgr, archive, users, ledger, wallet)
	data.now = func() time.Time { return time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC) }
	return dataFixture{data: data, ledger: ledger, users: users, archive: archive}
}

func TestDataService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fx := newDataFixture(t)

	a, err := fx.ledger.Add(ctx, acme(100))
	require.NoError(t, err)
	_, err = fx.ledger.Add(ctx, acme(5))
	require.NoError(t, err)
	_, err = fx.ledger.SetStatus(ctx, a.ID, "completed")
	require.NoError(t, err)

	export, err := fx.data.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dreamnity-data-2024-01-20.json", export.FileName)
	assert.Equal(t, int64(1), export.ArchiveID)

	usersBefore := fx.users.List(ctx)
	ledgerBefore := fx.ledger.List(ctx)

	payload, err := json.Marshal(export.Snapshot)
	require.NoError(t, err)
	_, err = fx.data.Import(ctx, payload)
	require.NoError(t, err)

	assert.Equal(t, usersBefore, fx.users.List(ctx))
	after := fx.ledger.List(ctx)
	require.Len(t, after, len(ledgerBefore))
	for i := range after {
		assert.Equal(t, ledgerBefore[i].ID, after[i].ID)
		assert.Equal(t, ledgerBefore[i].Status, after[i].Status)
		assert.True(t, ledgerBefore[i].AmountInr.Equal(after[i].AmountInr))
		assert.True(t, ledgerBefore[i].CreatedAt.Equal(after[i].CreatedAt))
	}
	assertCompletedAtMatchesStatus(t, after)
}

func TestDataService_ImportRejects(t *testing.T) {
	ctx := context.Background()
	fx := newDataFixture(t)
	_, err := fx.ledger.Add(ctx, acme(1))
	require.NoError(t, err)
	before := fx.ledger.List(ctx)

	cases := map[string]string{
		"not json":                      `{`,
		"no domains":                    `{"lastUpdated":"2024-01-20T09:00:00Z"}`,
		"user without email":            `{"users":[{"id":"1","name":"x","passwordHash":"h"}]}`,
		"negative amount":               `{"transactions":[{"id":"1","clientName":"A","amount":-5,"amountInr":0,"status":"pending","createdAt":"2024-01-20T09:00:00Z"}]}`,
		"completed without completedAt": `{"transactions":[{"id":"1","clientName":"A","amount":5,"amountInr":415,"status":"completed","createdAt":"2024-01-20T09:00:00Z"}]}`,
		"duplicate ids":                 `{"transactions":[{"id":"1","clientName":"A","amount":5,"amountInr":415,"status":"pending","createdAt":"2024-01-20T09:00:00Z"},{"id":"1","clientName":"B","amount":5,"amountInr":415,"status":"pending","createdAt":"2024-01-20T09:00:00Z"}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := fx.data.Import(ctx, []byte(payload))
			assert.ErrorIs(t, err, pkgerrors.ErrInvalidSnapshot)
			assert.Equal(t, before, fx.ledger.List(ctx))
			assert.Len(t, fx.users.List(ctx), 1)
		})
	}
}

func TestDataService_ImportPartial(t *testing.T) {
	ctx := context.Background()
	fx := newDataFixture(t)

	payload := `{"transactions":[{"id":"42","clientName":"Globex","amount":10,"amountInr":830,"status":"pending","createdAt":"2024-01-20T09:00:00Z"}]}`
	snap, err := fx.data.Import(ctx, []byte(payload))
	require.NoError(t, err)
	assert.Nil(t, snap.Users)

	list := fx.ledger.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, "Globex", list[0].ClientName)
	assert.Len(t, fx.users.List(ctx), 1)
}

func TestDataService_ClearAndRestore(t *testing.T) {
	ctx := context.Background()
	fx := newDataFixture(t)
	_, err := fx.ledger.Add(ctx, acme(1))
	require.NoError(t, err)

	export, err := fx.data.Export(ctx)
	require.NoError(t, err)

	require.NoError(t, fx.data.Clear(ctx))
	assert.Empty(t, fx.ledger.List(ctx))
	_, ok := fx.data.LastUpdated(ctx)
	// reseeding the demo user writes the user list again
	assert.True(t, ok)
	assert.Len(t, fx.users.List(ctx), 1)

	restored, err := fx.data.RestoreArchived(ctx, export.ArchiveID)
	require.NoError(t, err)
	assert.Len(t, restored.Transactions, 1)
	assert.Len(t, fx.ledger.List(ctx), 1)

	_, err = fx.data.RestoreArchived(ctx, 99)
	assert.ErrorIs(t, err, pkgerrors.ErrSnapshotNotFound)

	noArchive := NewDataService(nil, nil)
	_, err = noArchive.RestoreArchived(ctx, 1)
	assert.ErrorIs(t, err, pkgerrors.ErrSnapshotNotFound)
}
