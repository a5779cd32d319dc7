package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/infrastructure/observability"
	"github.com/honeynil/dreamnity-payments/internal/models"
	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TransactionStore persists the ledger as a flat list, newest first.
type TransactionStore interface {
	LoadTransactions(ctx context.Context) []models.Transaction
	SaveTransactions(ctx context.Context, txs []models.Transaction) error
}

type LedgerService interface {
	List(ctx context.Context) []models.Transaction
	Get(ctx context.Context, id string) (*models.Transaction, error)
	Add(ctx context.Context, fields models.NewTransaction) (*models.Transaction, error)
	SetStatus(ctx context.Context, id string, status models.StatusType) (*models.Transaction, error)
	Complete(ctx context.Context, id string) (*models.Transaction, bool, error)
	FilterByStatus(ctx context.Context, status models.StatusType) ([]models.Transaction, error)
	CreatePaymentLink(ctx context.Context, req models.PaymentLinkRequest) (*models.Transaction, error)
	Clear(ctx context.Context) error
	Reload(ctx context.Context)
	Close()
}

type LedgerOptions struct {
	Rates     RateSource
	Artifacts ArtifactGenerator
	Publisher EventPublisher
	Notifier  Notifier
	LinkDelay time.Duration
}

type ledgerService struct {
	store TransactionStore
	opts  LedgerOptions
	now   func() time.Time

	mu     sync.RWMutex
	txs    []models.Transaction
	lastID int64
	closed bool
}

func NewLedgerService(ctx context.Context, store TransactionStore, opts LedgerOptions) *ledgerService {
	if opts.Rates == nil {
		opts.Rates = FixedRate{Rate: DefaultPaymentRate}
	}
	if opts.Publisher == nil {
		opts.Publisher = NopPublisher{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	s := &ledgerService{store: store, opts: opts, now: time.Now}
	s.Reload(ctx)
	return s
}

// Reload replaces the in-memory ledger with the stored list.
func (s *ledgerService) Reload(ctx context.Context) {
	txs := s.store.LoadTransactions(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = txs
	for _, tx := range txs {
		if n, err := strconv.ParseInt(tx.ID, 10, 64); err == nil && n > s.lastID {
			s.lastID = n
		}
	}
}

func (s *ledgerService) List(ctx context.Context) []models.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *ledgerService) Get(ctx context.Context, id string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		tx := s.txs[i]
		return &tx, nil
	}
	return nil, pkgerrors.ErrTransactionNotFound
}

// Add assigns id and creation time and prepends the transaction.
func (s *ledgerService) Add(ctx context.Context, fields models.NewTransaction) (*models.Transaction, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "Add")
	defer span.End()

	if err := fields.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid transaction")
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrValidation, err)
	}
	if fields.Status == "" {
		fields.Status = models.StatusPending
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, pkgerrors.ErrClosed
	}

	now := s.now().UTC()
	tx := models.Transaction{
		ID:             s.nextIDLocked(now),
		ClientName:     fields.ClientName,
		Amount:         fields.Amount,
		AmountInr:      fields.AmountInr,
		Status:         fields.Status,
		PaymentLinkURL: fields.PaymentLinkURL,
		BlockchainHash: fields.BlockchainHash,
		IPFSCid:        fields.IPFSCid,
		Description:    fields.Description,
		CreatedAt:      now,
	}
	if tx.Status == models.StatusCompleted {
		tx.CompletedAt = &now
	}

	s.txs = append([]models.Transaction{tx}, s.txs...)
	s.persistLocked(ctx, "Add")
	s.mu.Unlock()

	observability.LedgerTransactions.WithLabelValues("created").Inc()
	span.SetAttributes(attribute.String("transaction_id", tx.ID))
	slog.Info("transaction added", "transaction_id", tx.ID, "client", tx.ClientName, "amount", tx.Amount.String())
	s.publish(ctx, "transaction_created", tx)
	return &tx, nil
}

// SetStatus moves a transaction forward. Completing stamps CompletedAt once;
// a completed transaction never goes back to pending.
func (s *ledgerService) SetStatus(ctx context.Context, id string, status models.StatusType) (*models.Transaction, error) {
	tx, _, err := s.transition(ctx, "SetStatus", id, status)
	return tx, err
}

// Complete marks a pending transaction completed. changed is false when it
// was already completed, so concurrent confirmations can tell which one won.
func (s *ledgerService) Complete(ctx context.Context, id string) (*models.Transaction, bool, error) {
	return s.transition(ctx, "Complete", id, models.StatusCompleted)
}

func (s *ledgerService) transition(ctx context.Context, method, id string, status models.StatusType) (*models.Transaction, bool, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, method)
	defer span.End()
	span.SetAttributes(attribute.String("transaction_id", id), attribute.String("status", string(status)))

	if status != models.StatusPending && status != models.StatusCompleted {
		return nil, false, fmt.Errorf("%w: unknown status %q", pkgerrors.ErrValidation, status)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, false, pkgerrors.ErrClosed
	}
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		slog.Warn("status change for unknown transaction", "method", method, "transaction_id", id)
		return nil, false, pkgerrors.ErrTransactionNotFound
	}

	tx := &s.txs[i]
	if tx.Status == status {
		out := *tx
		s.mu.Unlock()
		return &out, false, nil
	}
	if tx.Status == models.StatusCompleted {
		s.mu.Unlock()
		span.SetStatus(codes.Error, "completed transaction cannot be reopened")
		return nil, false, fmt.Errorf("%w: transaction %s is already completed", pkgerrors.ErrValidation, id)
	}

	now := s.now().UTC()
	tx.Status = models.StatusCompleted
	tx.CompletedAt = &now
	out := *tx
	s.persistLocked(ctx, method)
	s.mu.Unlock()

	observability.LedgerTransactions.WithLabelValues("completed").Inc()
	slog.Info("transaction completed", "transaction_id", id)
	s.publish(ctx, "transaction_completed", out)
	return &out, true, nil
}

// FilterByStatus returns a copy of the matching transactions. StatusAll matches everything.
func (s *ledgerService) FilterByStatus(ctx context.Context, status models.StatusType) ([]models.Transaction, error) {
	switch status {
	case models.StatusAll, "":
		return s.List(ctx), nil
	case models.StatusPending, models.StatusCompleted:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", pkgerrors.ErrValidation, status)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		if tx.Status == status {
			out = append(out, tx)
		}
	}
	return out, nil
}

// CreatePaymentLink simulates the gateway round trip and records a pending transaction.
func (s *ledgerService) CreatePaymentLink(ctx context.Context, req models.PaymentLinkRequest) (*models.Transaction, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "CreatePaymentLink")
	defer span.End()

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid payment link request")
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrValidation, err)
	}
	if s.opts.Artifacts == nil {
		return nil, fmt.Errorf("payment link generator not configured")
	}

	if err := sleepCtx(ctx, s.opts.LinkDelay); err != nil {
		return nil, err
	}

	rate, err := s.opts.Rates.ConversionRate(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate unavailable")
		slog.Error("failed to get conversion rate", "error", err)
		return nil, err
	}

	tx, err := s.Add(ctx, models.NewTransaction{
		ClientName:     req.ClientName,
		Amount:         req.Amount,
		AmountInr:      req.Amount.Mul(rate),
		Status:         models.StatusPending,
		PaymentLinkURL: s.opts.Artifacts.PaymentLink(),
		BlockchainHash: s.opts.Artifacts.BlockchainHash(),
		IPFSCid:        s.opts.Artifacts.DocumentCID(),
		Description:    req.Description,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.opts.Notifier.Add(ctx, models.Alert{
		Type:    models.NotificationSuccess,
		Title:   "Payment link created!",
		Message: "Your payment link has been generated successfully.",
		Action:  &models.NotificationAction{Label: "Open link", Target: tx.PaymentLinkURL},
	}); err != nil {
		slog.Warn("failed to post payment link notification", "transaction_id", tx.ID, "error", err)
	}
	return tx, nil
}

func (s *ledgerService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = []models.Transaction{}
	if err := s.store.SaveTransactions(ctx, s.txs); err != nil {
		slog.Error("failed to persist cleared ledger", "error", err)
		return err
	}
	slog.Info("ledger cleared")
	return nil
}

// Close drops results of operations still in flight.
func (s *ledgerService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// nextIDLocked returns the creation time in unix milliseconds, bumped past the
// last issued id so ids stay unique within one millisecond.
func (s *ledgerService) nextIDLocked(now time.Time) string {
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

func (s *ledgerService) indexLocked(id string) int {
	for i := range s.txs {
		if s.txs[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *ledgerService) copyLocked() []models.Transaction {
	out := make([]models.Transaction, len(s.txs))
	copy(out, s.txs)
	return out
}

func (s *ledgerService) persistLocked(ctx context.Context, method string) {
	if err := s.store.SaveTransactions(ctx, s.copyLocked()); err != nil {
		slog.Error("failed to persist ledger", "method", method, "error", err)
	}
}

func (s *ledgerService) publish(ctx context.Context, event string, tx models.Transaction) {
	payload := map[string]any{
		"event":       event,
		"transaction": tx,
	}
	if err := s.opts.Publisher.Publish(ctx, TopicTransactions, tx.ID, payload); err != nil {
		slog.Error("failed to publish transaction event", "transaction_id", tx.ID, "event", event, "error", err)
	}
}
