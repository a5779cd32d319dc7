package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/infrastructure/observability"
	"github.com/honeynil/dreamnity-payments/internal/models"
	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Persisted keys. They match what the web dashboard wrote to local storage so
// existing exports and caches stay readable.
const (
	KeyUsers               = "dreamnity_users"
	KeyTransactions        = "dreamnity_transactions"
	KeyLastUpdated         = "dreamnity_last_updated"
	KeyToken               = "dreamnity_jwt"
	KeyUserID              = "dreamnity_user_id"
	KeySameDaySettlement   = "dreamnity_same_day_settlement"
	KeyInitialBalance      = "wallet_initial_balance"
	KeyConversionRate      = "wallet_conversion_rate"
	KeyWalletTransactions  = "wallet_transactions"
	KeyUsdInrRate          = "usdToInrRate"
	KeyUsdInrRateTimestamp = "usdToInrRateTimestamp"
)

// KV is the key/value store the manager persists through.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Del(ctx context.Context, keys ...string) error
}

// Manager serializes domain lists to JSON under fixed keys. Loads never fail:
// a missing or unreadable value comes back as an empty default.
type Manager struct {
	kv  KV
	now func() time.Time
}

func NewManager(kv KV) *Manager {
	return &Manager{kv: kv, now: time.Now}
}

func (m *Manager) SaveUsers(ctx context.Context, users []models.User) error {
	return m.saveJSON(ctx, KeyUsers, users)
}

func (m *Manager) LoadUsers(ctx context.Context) []models.User {
	return loadJSON[models.User](ctx, m, KeyUsers)
}

func (m *Manager) SaveTransactions(ctx context.Context, txs []models.Transaction) error {
	return m.saveJSON(ctx, KeyTransactions, txs)
}

func (m *Manager) LoadTransactions(ctx context.Context) []models.Transaction {
	return loadJSON[models.Transaction](ctx, m, KeyTransactions)
}

func (m *Manager) SaveWalletTransactions(ctx context.Context, txs []models.WalletTransaction) error {
	return m.saveJSON(ctx, KeyWalletTransactions, txs)
}

func (m *Manager) LoadWalletTransactions(ctx context.Context) []models.WalletTransaction {
	return loadJSON[models.WalletTransaction](ctx, m, KeyWalletTransactions)
}

// SetString writes a raw value without touching the last-updated stamp.
func (m *Manager) SetString(ctx context.Context, key, value string) error {
	start := time.Now()
	status := "success"
	defer func() {
		observability.StoreCalls.WithLabelValues("SetString", key, status).Inc()
		observability.StoreDuration.WithLabelValues("SetString").Observe(time.Since(start).Seconds())
	}()

	if err := m.kv.Set(ctx, key, value); err != nil {
		status = "error"
		slog.Error("failed to write key", "method", "SetString", "key", key, "error", err)
		return fmt.Errorf("%w: %v", pkgerrors.ErrStorage, err)
	}
	return nil
}

// GetString reads a raw value. ok is false when the key is absent or unreadable.
func (m *Manager) GetString(ctx context.Context, key string) (string, bool) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.StoreCalls.WithLabelValues("GetString", key, status).Inc()
		observability.StoreDuration.WithLabelValues("GetString").Observe(time.Since(start).Seconds())
	}()

	val, err := m.kv.Get(ctx, key)
	if stderrors.Is(err, pkgerrors.ErrKeyNotFound) {
		status = "miss"
		return "", false
	}
	if err != nil {
		status = "error"
		slog.Error("failed to read key", "method", "GetString", "key", key, "error", err)
		return "", false
	}
	return val, true
}

func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	if err := m.kv.Del(ctx, keys...); err != nil {
		slog.Error("failed to delete keys", "method", "Delete", "keys", keys, "error", err)
		return fmt.Errorf("%w: %v", pkgerrors.ErrStorage, err)
	}
	return nil
}

// LastUpdated returns the time of the most recent domain save.
func (m *Manager) LastUpdated(ctx context.Context) (time.Time, bool) {
	raw, ok := m.GetString(ctx, KeyLastUpdated)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		slog.Error("malformed last-updated stamp", "method", "LastUpdated", "value", raw, "error", err)
		return time.Time{}, false
	}
	return ts, true
}

// Clear removes the domain lists and the last-updated stamp. Session keys,
// wallet settings and the rate cache survive.
func (m *Manager) Clear(ctx context.Context) error {
	tracer := otel.Tracer("storage")
	ctx, span := tracer.Start(ctx, "Clear")
	defer span.End()

	if err := m.Delete(ctx, KeyUsers, KeyTransactions, KeyWalletTransactions, KeyLastUpdated); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clear failed")
		return err
	}
	slog.Info("storage cleared", "method", "Clear")
	return nil
}

// ExportSnapshot bundles users and transactions with the last-updated stamp,
// or the current time when nothing was ever saved.
func (m *Manager) ExportSnapshot(ctx context.Context) models.Snapshot {
	lastUpdated, ok := m.LastUpdated(ctx)
	if !ok {
		lastUpdated = m.now().UTC()
	}
	return models.Snapshot{
		Users:        m.LoadUsers(ctx),
		Transactions: m.LoadTransactions(ctx),
		LastUpdated:  lastUpdated,
	}
}

// ImportSnapshot writes each present field of snap. Callers validate first.
func (m *Manager) ImportSnapshot(ctx context.Context, snap models.Snapshot) error {
	tracer := otel.Tracer("storage")
	ctx, span := tracer.Start(ctx, "ImportSnapshot")
	defer span.End()

	if snap.Users != nil {
		if err := m.SaveUsers(ctx, snap.Users); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "import users failed")
			return err
		}
	}
	if snap.Transactions != nil {
		if err := m.SaveTransactions(ctx, snap.Transactions); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "import transactions failed")
			return err
		}
	}
	span.SetAttributes(
		attribute.Int("users", len(snap.Users)),
		attribute.Int("transactions", len(snap.Transactions)),
	)
	return nil
}

func (m *Manager) saveJSON(ctx context.Context, key string, value any) error {
	start := time.Now()
	status := "success"
	defer func() {
		observability.StoreCalls.WithLabelValues("Save", key, status).Inc()
		observability.StoreDuration.WithLabelValues("Save").Observe(time.Since(start).Seconds())
	}()

	data, err := json.Marshal(value)
	if err != nil {
		status = "error"
		slog.Error("failed to serialize value", "method", "Save", "key", key, "error", err)
		return fmt.Errorf("%w: %v", pkgerrors.ErrStorage, err)
	}
	if err := m.kv.Set(ctx, key, string(data)); err != nil {
		status = "error"
		slog.Error("failed to write value", "method", "Save", "key", key, "error", err)
		return fmt.Errorf("%w: %v", pkgerrors.ErrStorage, err)
	}
	if err := m.kv.Set(ctx, KeyLastUpdated, m.now().UTC().Format(time.RFC3339Nano)); err != nil {
		slog.Warn("failed to stamp last-updated", "method", "Save", "key", key, "error", err)
	}
	return nil
}

func loadJSON[T any](ctx context.Context, m *Manager, key string) []T {
	start := time.Now()
	status := "success"
	defer func() {
		observability.StoreCalls.WithLabelValues("Load", key, status).Inc()
		observability.StoreDuration.WithLabelValues("Load").Observe(time.Since(start).Seconds())
	}()

	raw, err := m.kv.Get(ctx, key)
	if stderrors.Is(err, pkgerrors.ErrKeyNotFound) {
		status = "miss"
		return []T{}
	}
	if err != nil {
		status = "error"
		slog.Error("failed to read value", "method", "Load", "key", key, "error", err)
		return []T{}
	}

	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		status = "error"
		slog.Error("failed to deserialize value", "method", "Load", "key", key, "error", err)
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}
