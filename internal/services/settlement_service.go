package service

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/models"
	"github.com/honeynil/dreamnity-payments/internal/storage"
	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
)

// SettlementService holds the same-day settlement preference.
type SettlementService interface {
	Enabled(ctx context.Context) bool
	SetEnabled(ctx context.Context, enabled bool) (bool, error)
	Close()
}

type settlementService struct {
	store    KeyValueStore
	notifier Notifier
	delay    time.Duration

	mu     sync.Mutex
	closed bool
}

func NewSettlementService(store KeyValueStore, notifier Notifier, delay time.Duration) *settlementService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &settlementService{store: store, notifier: notifier, delay: delay}
}

func (s *settlementService) Enabled(ctx context.Context) bool {
	raw, ok := s.store.GetString(ctx, storage.KeySameDaySettlement)
	if !ok {
		return false
	}
	enabled, err := strconv.ParseBool(raw)
	return err == nil && enabled
}

// SetEnabled waits out the simulated provider call, persists the preference
// and posts an info notification describing the change.
func (s *settlementService) SetEnabled(ctx context.Context, enabled bool) (bool, error) {
	if err := sleepCtx(ctx, s.delay); err != nil {
		return s.Enabled(ctx), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, pkgerrors.ErrClosed
	}
	if err := s.store.SetString(ctx, storage.KeySameDaySettlement, strconv.FormatBool(enabled)); err != nil {
		return s.Enabled(ctx), err
	}

	alert := models.Alert{
		Type:    models.NotificationInfo,
		Title:   "Same-Day Settlement Disabled",
		Message: "Your payments will now follow standard settlement times.",
	}
	if enabled {
		alert.Title = "Same-Day Settlement Enabled"
		alert.Message = "Your payments will now be settled within 24 hours!"
	}
	if _, err := s.notifier.Add(ctx, alert); err != nil {
		slog.Warn("failed to post settlement notification", "error", err)
	}
	slog.Info("same-day settlement updated", "enabled", enabled)
	return enabled, nil
}

func (s *settlementService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
