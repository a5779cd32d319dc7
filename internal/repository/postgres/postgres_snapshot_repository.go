package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/infrastructure/observability"
	"github.com/honeynil/dreamnity-payments/internal/models"
	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const createSnapshotsTable = `CREATE TABLE IF NOT EXISTS snapshots (
	id BIGSERIAL PRIMARY KEY,
	taken_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	payload JSONB NOT NULL
)`

type PostgresSnapshotRepository struct {
	db *sql.DB
}

func NewPostgresSnapshotRepository(db *sql.DB) *PostgresSnapshotRepository {
	return &PostgresSnapshotRepository{db: db}
}

// Migrate creates the snapshots table when missing.
func (r *PostgresSnapshotRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSnapshotsTable); err != nil {
		slog.Error("failed to create snapshots table", "method", "Migrate", "error", err)
		return fmt.Errorf("failed to create snapshots table: %w", err)
	}
	return nil
}

func (r *PostgresSnapshotRepository) Save(ctx context.Context, snap models.Snapshot) (int64, error) {
	var err error
	tracer := otel.Tracer("snapshot-repository")
	ctx, span := tracer.Start(ctx, "SaveSnapshot")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("SaveSnapshot", status).Inc()
		observability.RepositoryDuration.WithLabelValues("SaveSnapshot").Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(snap)
	if err != nil {
		slog.Error("failed to encode snapshot", "method", "Save", "error", err)
		return 0, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	span.SetAttributes(
		attribute.Int("users", len(snap.Users)),
		attribute.Int("transactions", len(snap.Transactions)),
	)

	query := `INSERT INTO snapshots (taken_at, payload) VALUES ($1, $2) RETURNING id`
	var id int64
	err = r.db.QueryRowContext(ctx, query, snap.LastUpdated, payload).Scan(&id)
	if err != nil {
		slog.Error("failed to insert snapshot", "method", "Save", "error", err)
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	slog.Info("snapshot archived", "method", "Save", "snapshot_id", id)
	return id, nil
}

func (r *PostgresSnapshotRepository) GetByID(ctx context.Context, id int64) (*models.ArchivedSnapshot, error) {
	var err error
	tracer := otel.Tracer("snapshot-repository")
	ctx, span := tracer.Start(ctx, "GetSnapshotByID")
	defer span.End()
	span.SetAttributes(attribute.Int64("snapshot_id", id))

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("GetSnapshotByID", status).Inc()
		observability.RepositoryDuration.WithLabelValues("GetSnapshotByID").Observe(time.Since(start).Seconds())
	}()

	query := `SELECT id, taken_at, payload FROM snapshots WHERE id = $1`
	var archived *models.ArchivedSnapshot
	archived, err = scanSnapshot(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		slog.Error("failed to get snapshot", "method", "GetByID", "snapshot_id", id, "error", err)
		return nil, err
	}
	return archived, nil
}

func (r *PostgresSnapshotRepository) Latest(ctx context.Context) (*models.ArchivedSnapshot, error) {
	var err error
	tracer := otel.Tracer("snapshot-repository")
	ctx, span := tracer.Start(ctx, "LatestSnapshot")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("LatestSnapshot", status).Inc()
		observability.RepositoryDuration.WithLabelValues("LatestSnapshot").Observe(time.Since(start).Seconds())
	}()

	query := `SELECT id, taken_at, payload FROM snapshots ORDER BY taken_at DESC, id DESC LIMIT 1`
	var archived *models.ArchivedSnapshot
	archived, err = scanSnapshot(r.db.QueryRowContext(ctx, query))
	if err != nil {
		slog.Error("failed to get latest snapshot", "method", "Latest", "error", err)
		return nil, err
	}
	return archived, nil
}

func scanSnapshot(row *sql.Row) (*models.ArchivedSnapshot, error) {
	var archived models.ArchivedSnapshot
	var payload []byte
	err := row.Scan(&archived.ID, &archived.TakenAt, &payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	if err := json.Unmarshal(payload, &archived.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot payload: %w", err)
	}
	return &archived, nil
}
