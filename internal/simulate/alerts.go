package simulate

import (
	"context"
	"log/slog"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/models"
)

type AlertSink interface {
	OnExternalAlert(ctx context.Context, alert models.Alert) error
}

var demoAlerts = []models.Alert{
	{Type: models.NotificationSuccess, Title: "Payment Completed", Message: "A new payment has been successfully processed."},
	{Type: models.NotificationInfo, Title: "New Transaction", Message: "A new transaction has been added to your account."},
	{Type: models.NotificationWarning, Title: "Settlement Update", Message: "Your settlement preferences have been updated."},
}

// AlertGenerator occasionally raises one of the demo alerts.
type AlertGenerator struct {
	sink        AlertSink
	gen         *Generator
	interval    time.Duration
	probability float64
}

func NewAlertGenerator(sink AlertSink, gen *Generator, interval time.Duration, probability float64) *AlertGenerator {
	return &AlertGenerator{sink: sink, gen: gen, interval: interval, probability: probability}
}

func (a *AlertGenerator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	slog.Info("alert generator started", "interval", a.interval, "probability", a.probability)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Tick(ctx)
		}
	}
}

// Tick reports whether an alert was raised.
func (a *AlertGenerator) Tick(ctx context.Context) bool {
	if a.gen.Float64() >= a.probability {
		return false
	}
	alert := demoAlerts[a.gen.IntN(len(demoAlerts))]
	if err := a.sink.OnExternalAlert(ctx, alert); err != nil {
		slog.Error("failed to raise demo alert", "title", alert.Title, "error", err)
		return false
	}
	return true
}
