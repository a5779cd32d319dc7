package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/infrastructure/memory"
	"github.com/honeynil/dreamnity-payments/internal/models"
	"github.com/honeynil/dreamnity-payments/internal/repository/kv"
	"github.com/honeynil/dreamnity-payments/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

type fakeArtifacts struct{}

func (fakeArtifacts) PaymentLink() string     { return "https://rzp.io/i/mockabc123" }
func (fakeArtifacts) BlockchainHash() string  { return "0x" + repeat("a", 64) }
func (fakeArtifacts) DocumentCID() string     { return "Qm" + repeat("B", 44) }
func (fakeArtifacts) TransactionHash() string { return "0x" + repeat("f", 64) }

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic, _ string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (n *recordingNotifier) Add(_ context.Context, alert models.Alert) (*models.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return &models.Notification{Type: alert.Type, Title: alert.Title}, nil
}

func (n *recordingNotifier) Alerts() []models.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Alert(nil), n.alerts...)
}

// fixedClock returns successive times one millisecond apart, or the same time
// when step is zero.
func fixedClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := cur
		cur = cur.Add(step)
		return t
	}
}

func newTestStorage(t *testing.T) (*storage.Manager, *memory.Store) {
	t.Helper()
	kvStore := memory.NewStore()
	return storage.NewManager(kvStore), kvStore
}

func newTestUsers(t *testing.T, mgr *storage.Manager, seed bool) *kv.UserRepository {
	t.Helper()
	return kv.NewUserRepository(context.Background(), mgr, kv.Options{BcryptCost: bcrypt.MinCost, SeedDemoUser: seed})
}
