package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/honeynil/dreamnity-payments/internal/infrastructure/observability"
	"github.com/honeynil/dreamnity-payments/internal/models"
	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
)

// DefaultNotificationTTL is how long success and error notifications live.
const DefaultNotificationTTL = 5 * time.Second

// NotificationFeed is an in-memory, newest-first list of notifications.
// Nothing here is persisted.
type NotificationFeed interface {
	Add(ctx context.Context, alert models.Alert) (*models.Notification, error)
	List(ctx context.Context) []models.Notification
	UnreadCount(ctx context.Context) int
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context)
	Remove(ctx context.Context, id string) error
	ClearAll(ctx context.Context)
	Subscribe() (<-chan models.FeedView, func())
	Close()
}

type notificationFeed struct {
	ttl   time.Duration
	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	items   []models.Notification
	timers  map[string]*time.Timer
	subs    map[int]chan models.FeedView
	nextSub int
	closed  bool
}

func NewNotificationFeed(ttl time.Duration) *notificationFeed {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &notificationFeed{
		ttl:    ttl,
		now:    time.Now,
		newID:  uuid.NewString,
		items:  []models.Notification{},
		timers: make(map[string]*time.Timer),
		subs:   make(map[int]chan models.FeedView),
	}
}

// Add prepends an unread notification. Success and error notifications remove
// themselves after the feed TTL.
func (f *notificationFeed) Add(ctx context.Context, alert models.Alert) (*models.Notification, error) {
	if err := alert.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrValidation, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, pkgerrors.ErrClosed
	}

	n := models.Notification{
		ID:        f.newID(),
		Type:      alert.Type,
		Title:     alert.Title,
		Message:   alert.Message,
		Timestamp: f.now().UTC(),
		Action:    alert.Action,
	}
	f.items = append([]models.Notification{n}, f.items...)

	if n.Type.AutoExpires() {
		id := n.ID
		f.timers[id] = time.AfterFunc(f.ttl, func() {
			f.expire(id)
		})
	}

	observability.Notifications.WithLabelValues(string(n.Type)).Inc()
	slog.Debug("notification added", "notification_id", n.ID, "type", n.Type)
	f.broadcastLocked()
	return &n, nil
}

func (f *notificationFeed) List(ctx context.Context) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.copyLocked()
}

func (f *notificationFeed) UnreadCount(ctx context.Context) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unreadLocked()
}

func (f *notificationFeed) MarkRead(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(id)
	if i < 0 {
		return pkgerrors.ErrNotificationNotFound
	}
	if !f.items[i].Read {
		f.items[i].Read = true
		f.broadcastLocked()
	}
	return nil
}

func (f *notificationFeed) MarkAllRead(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		f.items[i].Read = true
	}
	f.broadcastLocked()
}

func (f *notificationFeed) Remove(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.removeLocked(id) {
		return pkgerrors.ErrNotificationNotFound
	}
	f.broadcastLocked()
	return nil
}

func (f *notificationFeed) ClearAll(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopTimersLocked()
	f.items = []models.Notification{}
	f.broadcastLocked()
}

// Subscribe returns a channel that always holds the latest view. The current
// view is delivered right away. Call cancel to unsubscribe.
func (f *notificationFeed) Subscribe() (<-chan models.FeedView, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan models.FeedView, 1)
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	id := f.nextSub
	f.nextSub++
	f.subs[id] = ch
	ch <- f.viewLocked()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if sub, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Close stops pending expiry timers and closes every subscription. Later
// mutations are ignored.
func (f *notificationFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.stopTimersLocked()
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
}

func (f *notificationFeed) expire(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	if f.removeLocked(id) {
		slog.Debug("notification expired", "notification_id", id)
		f.broadcastLocked()
	}
}

func (f *notificationFeed) removeLocked(id string) bool {
	if t, ok := f.timers[id]; ok {
		t.Stop()
		delete(f.timers, id)
	}
	i := f.indexLocked(id)
	if i < 0 {
		return false
	}
	f.items = append(f.items[:i], f.items[i+1:]...)
	return true
}

func (f *notificationFeed) stopTimersLocked() {
	for id, t := range f.timers {
		t.Stop()
		delete(f.timers, id)
	}
}

func (f *notificationFeed) indexLocked(id string) int {
	for i := range f.items {
		if f.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *notificationFeed) unreadLocked() int {
	n := 0
	for _, item := range f.items {
		if !item.Read {
			n++
		}
	}
	return n
}

func (f *notificationFeed) copyLocked() []models.Notification {
	out := make([]models.Notification, len(f.items))
	copy(out, f.items)
	return out
}

func (f *notificationFeed) viewLocked() models.FeedView {
	return models.FeedView{Notifications: f.copyLocked(), UnreadCount: f.unreadLocked()}
}

// broadcastLocked replaces whatever view a subscriber has not read yet.
func (f *notificationFeed) broadcastLocked() {
	if len(f.subs) == 0 {
		return
	}
	view := f.viewLocked()
	for _, ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		ch <- view
	}
}
