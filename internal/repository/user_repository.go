package repository

import (
	"context"

	"github.com/honeynil/dreamnity-payments/internal/models"
)

// UserRepository is the user directory. Implementations own their backing list;
// every returned value is a copy.
type UserRepository interface {
	List(ctx context.Context) []models.User
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) bool
	Create(ctx context.Context, fields models.NewUser) (*models.User, error)
	Update(ctx context.Context, id string, fields models.UserUpdate) (*models.User, error)
	Delete(ctx context.Context, id string) error
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	Reload(ctx context.Context)
}
