package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/models"
	"github.com/honeynil/dreamnity-payments/internal/repository"
	"github.com/honeynil/dreamnity-payments/internal/storage"
	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TokenService issues and checks session bearer tokens.
type TokenService interface {
	Generate(user models.User) (string, error)
	Validate(token string) (*models.TokenClaims, error)
}

// AuthService is the session state machine: LoggedOut until a login succeeds,
// LoggedIn until logout.
type AuthService interface {
	Signup(ctx context.Context, fields models.NewUser) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*models.User, error)
	CheckToken(ctx context.Context, token string) (*models.User, error)
	UpdateProfile(ctx context.Context, fields models.ProfileUpdate) (*models.User, error)
	Close()
}

type authService struct {
	users      repository.UserRepository
	store      KeyValueStore
	tokens     TokenService
	publisher  EventPublisher
	loginDelay time.Duration

	mu     sync.Mutex
	userID string
	token  string
	seq    uint64
	closed bool
}

// NewAuthService restores a session when the stored token and user id are both
// present, agree with each other and the user still exists.
func NewAuthService(
	ctx context.Context,
	users repository.UserRepository,
	store KeyValueStore,
	tokens TokenService,
	publisher EventPublisher,
	loginDelay time.Duration,
) *authService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	s := &authService{
		users:      users,
		store:      store,
		tokens:     tokens,
		publisher:  publisher,
		loginDelay: loginDelay,
	}
	s.restore(ctx)
	return s
}

func (s *authService) restore(ctx context.Context) {
	token, okToken := s.store.GetString(ctx, storage.KeyToken)
	userID, okUser := s.store.GetString(ctx, storage.KeyUserID)
	if !okToken || !okUser || token == "" || userID == "" {
		return
	}

	claims, err := s.tokens.Validate(token)
	if err != nil {
		slog.Warn("stored session token rejected", "user_id", userID, "error", err)
		return
	}
	if claims.UserID != userID {
		slog.Warn("stored session token does not match user id", "user_id", userID, "token_user_id", claims.UserID)
		return
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		slog.Warn("stored session user no longer exists", "user_id", userID)
		return
	}

	s.userID = userID
	s.token = token
	slog.Info("session restored", "user_id", userID)
}

func (s *authService) Signup(ctx context.Context, fields models.NewUser) (*models.User, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Signup")
	defer span.End()

	user, err := s.users.Create(ctx, fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "signup failed")
		return nil, err
	}

	event := map[string]string{
		"event":   "user_registered",
		"user_id": user.ID,
		"email":   user.Email,
	}
	if err := s.publisher.Publish(ctx, TopicUsers, user.ID, event); err != nil {
		slog.Error("failed to publish user event", "user_id", user.ID, "error", err)
	}
	return user, nil
}

// Login waits out the simulated latency, then authenticates. When a newer login
// started meanwhile this attempt is dropped with ErrLoginSuperseded.
func (s *authService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", nil, pkgerrors.ErrClosed
	}
	s.seq++
	attempt := s.seq
	s.mu.Unlock()

	if err := sleepCtx(ctx, s.loginDelay); err != nil {
		return "", nil, err
	}

	user, authErr := s.users.Authenticate(ctx, email, password)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", nil, pkgerrors.ErrClosed
	}
	if attempt != s.seq {
		slog.Info("login superseded", "email", email)
		return "", nil, pkgerrors.ErrLoginSuperseded
	}
	if authErr != nil {
		span.SetStatus(codes.Error, "invalid credentials")
		slog.Warn("login failed", "email", email)
		return "", nil, pkgerrors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(*user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token generation failed")
		slog.Error("failed to generate token", "user_id", user.ID, "error", err)
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	// Two independent writes, no cross-key atomicity.
	if err := s.store.SetString(ctx, storage.KeyToken, token); err != nil {
		slog.Error("failed to persist session token", "user_id", user.ID, "error", err)
	}
	if err := s.store.SetString(ctx, storage.KeyUserID, user.ID); err != nil {
		slog.Error("failed to persist session user id", "user_id", user.ID, "error", err)
	}

	s.userID = user.ID
	s.token = token
	span.SetAttributes(attribute.String("user_id", user.ID))
	slog.Info("user logged in", "user_id", user.ID)
	return token, user, nil
}

func (s *authService) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID := s.userID
	s.userID = ""
	s.token = ""
	// an in-flight login must not resurrect the session
	s.seq++

	if err := s.store.Delete(ctx, storage.KeyToken, storage.KeyUserID); err != nil {
		slog.Error("failed to clear session keys", "user_id", userID, "error", err)
		return err
	}
	slog.Info("user logged out", "user_id", userID)
	return nil
}

func (s *authService) CurrentUser(ctx context.Context) (*models.User, error) {
	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()

	if userID == "" {
		return nil, pkgerrors.ErrNotAuthenticated
	}
	user, err := s.users.GetByID(ctx, userID)
	if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
		return nil, pkgerrors.ErrNotAuthenticated
	}
	return user, err
}

// CheckToken accepts only the token of the live session.
func (s *authService) CheckToken(ctx context.Context, token string) (*models.User, error) {
	s.mu.Lock()
	current := s.token
	s.mu.Unlock()

	if current == "" || token != current {
		return nil, pkgerrors.ErrNotAuthenticated
	}
	if _, err := s.tokens.Validate(token); err != nil {
		return nil, pkgerrors.ErrNotAuthenticated
	}
	return s.CurrentUser(ctx)
}

func (s *authService) UpdateProfile(ctx context.Context, fields models.ProfileUpdate) (*models.User, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "UpdateProfile")
	defer span.End()

	current, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	fields.IFSCCode = strings.ToUpper(strings.TrimSpace(fields.IFSCCode))
	if err := fields.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid profile")
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrValidation, err)
	}

	updated, err := s.users.Update(ctx, current.ID, models.UserUpdate{
		Name:      &fields.Name,
		Email:     &fields.Email,
		Phone:     &fields.Phone,
		AccountNo: &fields.AccountNo,
		IFSCCode:  &fields.IFSCCode,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile update failed")
		return nil, err
	}
	slog.Info("profile updated", "user_id", current.ID)
	return updated, nil
}

// Close makes pending logins return ErrClosed.
func (s *authService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
