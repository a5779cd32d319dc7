package repository

import (
	"context"

	"github.com/honeynil/dreamnity-payments/internal/models"
)

// SnapshotRepository archives exported snapshots.
type SnapshotRepository interface {
	Save(ctx context.Context, snap models.Snapshot) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ArchivedSnapshot, error)
	Latest(ctx context.Context) (*models.ArchivedSnapshot, error)
}
