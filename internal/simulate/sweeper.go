package simulate

import (
	"context"
	"log/slog"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/models"
)

type PendingLister interface {
	FilterByStatus(ctx context.Context, status models.StatusType) ([]models.Transaction, error)
}

type SettlementSink interface {
	OnSettlementConfirmed(ctx context.Context, transactionID string) error
}

// SettlementSweeper confirms pending transactions at random, standing in for a
// payment processor's settlement callbacks in development.
type SettlementSweeper struct {
	ledger      PendingLister
	sink        SettlementSink
	gen         *Generator
	interval    time.Duration
	probability float64
}

func NewSettlementSweeper(ledger PendingLister, sink SettlementSink, gen *Generator, interval time.Duration, probability float64) *SettlementSweeper {
	return &SettlementSweeper{
		ledger:      ledger,
		sink:        sink,
		gen:         gen,
		interval:    interval,
		probability: probability,
	}
}

func (s *SettlementSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	slog.Info("settlement sweeper started", "interval", s.interval, "probability", s.probability)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one sweep and returns how many transactions were confirmed.
func (s *SettlementSweeper) Tick(ctx context.Context) int {
	pending, err := s.ledger.FilterByStatus(ctx, models.StatusPending)
	if err != nil {
		slog.Error("sweep failed to list pending transactions", "error", err)
		return 0
	}
	confirmed := 0
	for _, tx := range pending {
		if s.gen.Float64() >= s.probability {
			continue
		}
		if err := s.sink.OnSettlementConfirmed(ctx, tx.ID); err != nil {
			slog.Error("sweep failed to confirm settlement", "transaction_id", tx.ID, "error", err)
			continue
		}
		confirmed++
	}
	return confirmed
}
