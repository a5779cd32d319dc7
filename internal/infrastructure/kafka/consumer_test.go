package kafka

import (
	"context"
	"testing"

	"github.com/honeynil/dreamnity-payments/internal/models"
	"github.com/stretchr/testify/assert"
)

type recordingSink struct {
	settled []string
	alerts  []models.Alert
}

func (r *recordingSink) OnSettlementConfirmed(_ context.Context, id string) error {
	r.settled = append(r.settled, id)
	return nil
}

func (r *recordingSink) OnExternalAlert(_ context.Context, alert models.Alert) error {
	r.alerts = append(r.alerts, alert)
	return nil
}

func TestHandleMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("settlement", func(t *testing.T) {
		sink := &recordingSink{}
		err := handleMessage(ctx, sink, TopicSettlements, []byte(`{"transaction_id":"1705746600000"}`))
		assert.NoError(t, err)
		assert.Equal(t, []string{"1705746600000"}, sink.settled)
	})

	t.Run("settlement without id", func(t *testing.T) {
		sink := &recordingSink{}
		err := handleMessage(ctx, sink, TopicSettlements, []byte(`{}`))
		assert.Error(t, err)
		assert.Empty(t, sink.settled)
	})

	t.Run("alert", func(t *testing.T) {
		sink := &recordingSink{}
		err := handleMessage(ctx, sink, TopicAlerts, []byte(`{"type":"warning","title":"Settlement Update","message":"Your settlement preferences have been updated."}`))
		assert.NoError(t, err)
		assert.Len(t, sink.alerts, 1)
		assert.Equal(t, models.NotificationWarning, sink.alerts[0].Type)
	})

	t.Run("malformed", func(t *testing.T) {
		err := handleMessage(ctx, &recordingSink{}, TopicAlerts, []byte(`{`))
		assert.Error(t, err)
	})

	t.Run("unknown topic", func(t *testing.T) {
		err := handleMessage(ctx, &recordingSink{}, "users", []byte(`{}`))
		assert.Error(t, err)
	})
}
