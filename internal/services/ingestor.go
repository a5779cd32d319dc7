package service

import (
	"context"
	"log/slog"

	"github.com/honeynil/dreamnity-payments/internal/models"
)

// Ingestor is the single entry point for events from outside the process:
// settlement confirmations and alerts. Broker consumers and the development
// simulators call nothing else.
type Ingestor struct {
	ledger LedgerService
	feed   NotificationFeed
}

func NewIngestor(ledger LedgerService, feed NotificationFeed) *Ingestor {
	return &Ingestor{ledger: ledger, feed: feed}
}

// OnSettlementConfirmed completes the transaction and posts a success
// notification. Confirming an already completed transaction is a no-op.
func (i *Ingestor) OnSettlementConfirmed(ctx context.Context, transactionID string) error {
	tx, changed, err := i.ledger.Complete(ctx, transactionID)
	if err != nil {
		slog.Warn("settlement not applied", "transaction_id", transactionID, "error", err)
		return err
	}
	if !changed {
		return nil
	}
	if _, err := i.feed.Add(ctx, models.Alert{
		Type:    models.NotificationSuccess,
		Title:   "Payment Completed",
		Message: "Payment from " + tx.ClientName + " has been settled.",
	}); err != nil {
		slog.Warn("failed to post settlement notification", "transaction_id", transactionID, "error", err)
	}
	return nil
}

func (i *Ingestor) OnExternalAlert(ctx context.Context, alert models.Alert) error {
	_, err := i.feed.Add(ctx, alert)
	return err
}
