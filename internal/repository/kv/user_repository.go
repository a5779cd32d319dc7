package kv

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/honeynil/dreamnity-payments/internal/models"
	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// UserStore persists the full user list.
type UserStore interface {
	LoadUsers(ctx context.Context) []models.User
	SaveUsers(ctx context.Context, users []models.User) error
}

type Options struct {
	BcryptCost   int
	SeedDemoUser bool
}

// Demo account seeded into an empty directory.
const (
	DemoEmail    = "demo@dreamnity.com"
	DemoPassword = "password"
)

// UserRepository keeps the directory in memory in insertion order and writes the
// whole list back on every mutation.
type UserRepository struct {
	mu    sync.RWMutex
	store UserStore
	users []models.User
	opts  Options
	now   func() time.Time
	newID func() string
}

func NewUserRepository(ctx context.Context, store UserStore, opts Options) *UserRepository {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	r := &UserRepository{
		store: store,
		opts:  opts,
		now:   time.Now,
		newID: uuid.NewString,
	}
	r.Reload(ctx)
	return r
}

// Reload replaces the in-memory list with what the store holds, seeding the
// demo account when the list is empty and seeding is enabled.
func (r *UserRepository) Reload(ctx context.Context) {
	users := r.store.LoadUsers(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = users
	if len(r.users) > 0 || !r.opts.SeedDemoUser {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), r.opts.BcryptCost)
	if err != nil {
		slog.Error("failed to hash demo password", "method", "Reload", "error", err)
		return
	}
	r.users = append(r.users, models.User{
		ID:           "1",
		Name:         "John Doe",
		Email:        DemoEmail,
		Phone:        "+91 98765 43210",
		AccountNo:    "1234567890",
		IFSCCode:     "SBIN0001234",
		PasswordHash: string(hash),
		JoinedDate:   "2024-01-15",
		Avatar:       "https://images.unsplash.com/photo-1472099645785-5658abf4ff4e?w=150&h=150&fit=crop&crop=face",
	})
	r.persistLocked(ctx, "Reload")
	slog.Info("demo user seeded", "method", "Reload", "email", DemoEmail)
}

func (r *UserRepository) List(ctx context.Context) []models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.User, len(r.users))
	copy(out, r.users)
	return out
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexByID(id); i >= 0 {
		u := r.users[i]
		return &u, nil
	}
	return nil, pkgerrors.ErrUserNotFound
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexByEmail(email); i >= 0 {
		u := r.users[i]
		return &u, nil
	}
	return nil, pkgerrors.ErrUserNotFound
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexByEmail(email) >= 0
}

func (r *UserRepository) Create(ctx context.Context, fields models.NewUser) (*models.User, error) {
	tracer := otel.Tracer("user-repository")
	ctx, span := tracer.Start(ctx, "CreateUser")
	defer span.End()

	if err := fields.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrValidation, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(fields.Password), r.opts.BcryptCost)
	if err != nil {
		slog.Error("failed to hash password", "method", "Create", "error", err)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexByEmail(fields.Email) >= 0 {
		slog.Warn("email already registered", "method", "Create", "email", fields.Email)
		return nil, pkgerrors.ErrDuplicateEmail
	}

	user := models.User{
		ID:           r.newID(),
		Name:         fields.Name,
		Email:        fields.Email,
		Phone:        fields.Phone,
		AccountNo:    fields.AccountNo,
		IFSCCode:     fields.IFSCCode,
		PasswordHash: string(hash),
		JoinedDate:   r.now().Format("2006-01-02"),
		Avatar:       fields.Avatar,
	}
	r.users = append(r.users, user)
	r.persistLocked(ctx, "Create")

	span.SetAttributes(attribute.String("user_id", user.ID))
	slog.Info("user created", "method", "Create", "user_id", user.ID)
	return &user, nil
}

func (r *UserRepository) Update(ctx context.Context, id string, fields models.UserUpdate) (*models.User, error) {
	if err := fields.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrValidation, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexByID(id)
	if i < 0 {
		return nil, pkgerrors.ErrUserNotFound
	}
	if fields.Email != nil {
		if j := r.indexByEmail(*fields.Email); j >= 0 && j != i {
			return nil, pkgerrors.ErrDuplicateEmail
		}
	}

	fields.Apply(&r.users[i])
	r.persistLocked(ctx, "Update")

	u := r.users[i]
	slog.Info("user updated", "method", "Update", "user_id", id)
	return &u, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexByID(id)
	if i < 0 {
		return pkgerrors.ErrUserNotFound
	}
	r.users = append(r.users[:i], r.users[i+1:]...)
	r.persistLocked(ctx, "Delete")

	slog.Info("user deleted", "method", "Delete", "user_id", id)
	return nil
}

// Authenticate returns the user whose email matches exactly and whose hash
// verifies against password.
func (r *UserRepository) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	r.mu.RLock()
	i := r.indexByEmail(email)
	var user models.User
	if i >= 0 {
		user = r.users[i]
	}
	r.mu.RUnlock()

	if i < 0 || !user.VerifyPassword(password) {
		return nil, pkgerrors.ErrInvalidCredentials
	}
	return &user, nil
}

func (r *UserRepository) indexByID(id string) int {
	for i := range r.users {
		if r.users[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *UserRepository) indexByEmail(email string) int {
	for i := range r.users {
		if r.users[i].Email == email {
			return i
		}
	}
	return -1
}

// persistLocked writes the list; a failed write is logged and the in-memory
// change stands.
func (r *UserRepository) persistLocked(ctx context.Context, method string) {
	snapshot := make([]models.User, len(r.users))
	copy(snapshot, r.users)
	if err := r.store.SaveUsers(ctx, snapshot); err != nil {
		slog.Error("failed to persist users", "method", method, "error", err)
	}
}
