package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/models"
	"github.com/honeynil/dreamnity-payments/internal/repository"
	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SnapshotStore is the snapshot side of the store adapter.
type SnapshotStore interface {
	ExportSnapshot(ctx context.Context) models.Snapshot
	ImportSnapshot(ctx context.Context, snap models.Snapshot) error
	Clear(ctx context.Context) error
	LastUpdated(ctx context.Context) (time.Time, bool)
}

// Reloader re-reads its state from the store after a bulk change.
type Reloader interface {
	Reload(ctx context.Context)
}

// Export is a snapshot ready for download.
type Export struct {
	Snapshot  models.Snapshot
	FileName  string
	ArchiveID int64
}

type DataService interface {
	Export(ctx context.Context) (*Export, error)
	Import(ctx context.Context, data []byte) (*models.Snapshot, error)
	Clear(ctx context.Context) error
	LastUpdated(ctx context.Context) (time.Time, bool)
	RestoreArchived(ctx context.Context, id int64) (*models.Snapshot, error)
}

type dataService struct {
	store     SnapshotStore
	archive   repository.SnapshotRepository
	reloaders []Reloader
	now       func() time.Time
}

// NewDataService wires export/import/clear. archive may be nil, in which case
// exports are not archived and RestoreArchived reports ErrSnapshotNotFound.
func NewDataService(store SnapshotStore, archive repository.SnapshotRepository, reloaders ...Reloader) *dataService {
	return &dataService{store: store, archive: archive, reloaders: reloaders, now: time.Now}
}

func (s *dataService) Export(ctx context.Context) (*Export, error) {
	tracer := otel.Tracer("data-service")
	ctx, span := tracer.Start(ctx, "Export")
	defer span.End()

	snap := s.store.ExportSnapshot(ctx)
	out := &Export{
		Snapshot: snap,
		FileName: fmt.Sprintf("dreamnity-data-%s.json", s.now().Format("2006-01-02")),
	}

	if s.archive != nil {
		id, err := s.archive.Save(ctx, snap)
		if err != nil {
			span.RecordError(err)
			slog.Error("failed to archive snapshot", "error", err)
		} else {
			out.ArchiveID = id
			span.SetAttributes(attribute.Int64("snapshot_id", id))
		}
	}

	slog.Info("data exported", "users", len(snap.Users), "transactions", len(snap.Transactions), "snapshot_id", out.ArchiveID)
	return out, nil
}

// Import decodes and validates data before writing anything; a rejected
// snapshot leaves live state untouched.
func (s *dataService) Import(ctx context.Context, data []byte) (*models.Snapshot, error) {
	tracer := otel.Tracer("data-service")
	ctx, span := tracer.Start(ctx, "Import")
	defer span.End()

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		span.SetStatus(codes.Error, "malformed snapshot")
		slog.Warn("snapshot rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidSnapshot, err)
	}
	if err := s.apply(ctx, snap); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "import failed")
		return nil, err
	}
	return &snap, nil
}

func (s *dataService) RestoreArchived(ctx context.Context, id int64) (*models.Snapshot, error) {
	tracer := otel.Tracer("data-service")
	ctx, span := tracer.Start(ctx, "RestoreArchived")
	defer span.End()
	span.SetAttributes(attribute.Int64("snapshot_id", id))

	if s.archive == nil {
		return nil, pkgerrors.ErrSnapshotNotFound
	}
	archived, err := s.archive.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.apply(ctx, archived.Snapshot); err != nil {
		span.RecordError(err)
		return nil, err
	}
	slog.Info("snapshot restored", "snapshot_id", id)
	return &archived.Snapshot, nil
}

func (s *dataService) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.reload(ctx)
	slog.Info("all data cleared")
	return nil
}

func (s *dataService) LastUpdated(ctx context.Context) (time.Time, bool) {
	return s.store.LastUpdated(ctx)
}

func (s *dataService) apply(ctx context.Context, snap models.Snapshot) error {
	if err := snap.Validate(); err != nil {
		slog.Warn("snapshot rejected", "error", err)
		return fmt.Errorf("%w: %v", pkgerrors.ErrInvalidSnapshot, err)
	}
	if err := s.store.ImportSnapshot(ctx, snap); err != nil {
		return err
	}
	s.reload(ctx)
	slog.Info("data imported", "users", len(snap.Users), "transactions", len(snap.Transactions))
	return nil
}

func (s *dataService) reload(ctx context.Context) {
	for _, r := range s.reloaders {
		r.Reload(ctx)
	}
}
