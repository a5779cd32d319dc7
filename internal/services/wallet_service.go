package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/infrastructure/observability"
	"github.com/honeynil/dreamnity-payments/internal/models"
	"github.com/honeynil/dreamnity-payments/internal/storage"
	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
	"github.com/jellydator/validation"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultConversionRate is the wallet rate before the user sets one.
const DefaultConversionRate = "83.00"

type WalletStore interface {
	KeyValueStore
	LoadWalletTransactions(ctx context.Context) []models.WalletTransaction
	SaveWalletTransactions(ctx context.Context, txs []models.WalletTransaction) error
}

type WalletService interface {
	Summary(ctx context.Context) models.WalletSummary
	SetInitialBalance(ctx context.Context, balance string) error
	SetConversionRate(ctx context.Context, rate string) error
	Convert(ctx context.Context, walletAddress, amountUsdt string) (*models.WalletTransaction, error)
	ClearTransactions(ctx context.Context) error
	Reload(ctx context.Context)
	Close()
}

type WalletOptions struct {
	Artifacts       ArtifactGenerator
	Publisher       EventPublisher
	Notifier        Notifier
	ConversionDelay time.Duration
}

type walletService struct {
	store WalletStore
	opts  WalletOptions
	now   func() time.Time

	mu             sync.RWMutex
	initialBalance string
	conversionRate string
	txs            []models.WalletTransaction
	lastID         int64
	closed         bool
}

func NewWalletService(ctx context.Context, store WalletStore, opts WalletOptions) *walletService {
	if opts.Publisher == nil {
		opts.Publisher = NopPublisher{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	s := &walletService{
		store: store,
		opts:  opts,
		now:   time.Now,
	}
	s.Reload(ctx)
	return s
}

// Reload re-reads the settings and conversion history from the store.
func (s *walletService) Reload(ctx context.Context) {
	balance, _ := s.store.GetString(ctx, storage.KeyInitialBalance)
	rate, ok := s.store.GetString(ctx, storage.KeyConversionRate)
	if !ok || rate == "" {
		rate = DefaultConversionRate
	}
	txs := s.store.LoadWalletTransactions(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialBalance = balance
	s.conversionRate = rate
	s.txs = txs
	for _, tx := range txs {
		if n, err := strconv.ParseInt(tx.ID, 10, 64); err == nil && n > s.lastID {
			s.lastID = n
		}
	}
}

// Summary reports the remaining USDT (initial balance minus everything
// converted) and the INR received across all conversions.
func (s *walletService) Summary(ctx context.Context) models.WalletSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	converted := decimal.Zero
	totalInr := decimal.Zero
	for _, tx := range s.txs {
		converted = converted.Add(tx.AmountUsdt)
		totalInr = totalInr.Add(tx.AmountInr)
	}

	txs := make([]models.WalletTransaction, len(s.txs))
	copy(txs, s.txs)
	return models.WalletSummary{
		InitialUsdtBalance: s.initialBalance,
		ConversionRate:     s.conversionRate,
		TotalUsdt:          parseOrZero(s.initialBalance).Sub(converted),
		TotalInr:           totalInr,
		Transactions:       txs,
	}
}

// SetInitialBalance stores the value verbatim; unparsable input counts as zero.
func (s *walletService) SetInitialBalance(ctx context.Context, balance string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.SetString(ctx, storage.KeyInitialBalance, balance); err != nil {
		return err
	}
	s.initialBalance = balance
	return nil
}

// SetConversionRate stores the value verbatim; unparsable input counts as zero.
func (s *walletService) SetConversionRate(ctx context.Context, rate string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.SetString(ctx, storage.KeyConversionRate, rate); err != nil {
		return err
	}
	s.conversionRate = rate
	return nil
}

type conversionRequest struct {
	WalletAddress string
	AmountUsdt    string
}

func (r conversionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.WalletAddress, validation.Required),
		validation.Field(&r.AmountUsdt, validation.Required, validation.By(func(value interface{}) error {
			d, err := decimal.NewFromString(value.(string))
			if err != nil {
				return fmt.Errorf("must be a number")
			}
			if !d.IsPositive() {
				return fmt.Errorf("must be positive")
			}
			return nil
		})),
	)
}

// Convert simulates sending USDT to the INR wallet. The record is created
// completed after the processing delay.
func (s *walletService) Convert(ctx context.Context, walletAddress, amountUsdt string) (*models.WalletTransaction, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "Convert")
	defer span.End()

	req := conversionRequest{
		WalletAddress: strings.TrimSpace(walletAddress),
		AmountUsdt:    strings.TrimSpace(amountUsdt),
	}
	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid conversion")
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrValidation, err)
	}
	if s.opts.Artifacts == nil {
		return nil, fmt.Errorf("transaction hash generator not configured")
	}
	amount := decimal.RequireFromString(req.AmountUsdt)

	if err := sleepCtx(ctx, s.opts.ConversionDelay); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, pkgerrors.ErrClosed
	}
	now := s.now().UTC()
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id

	tx := models.WalletTransaction{
		ID:              strconv.FormatInt(id, 10),
		WalletAddress:   req.WalletAddress,
		AmountUsdt:      amount,
		AmountInr:       amount.Mul(parseOrZero(s.conversionRate)),
		Status:          models.StatusCompleted,
		TransactionHash: s.opts.Artifacts.TransactionHash(),
		CreatedAt:       now,
	}
	s.txs = append([]models.WalletTransaction{tx}, s.txs...)
	snapshot := make([]models.WalletTransaction, len(s.txs))
	copy(snapshot, s.txs)
	if err := s.store.SaveWalletTransactions(ctx, snapshot); err != nil {
		slog.Error("failed to persist wallet transactions", "method", "Convert", "error", err)
	}
	s.mu.Unlock()

	observability.WalletConversions.Inc()
	span.SetAttributes(attribute.String("wallet_transaction_id", tx.ID))
	slog.Info("conversion completed", "wallet_transaction_id", tx.ID, "amount_usdt", tx.AmountUsdt.String(), "amount_inr", tx.AmountInr.String())

	event := map[string]any{"event": "conversion_completed", "transaction": tx}
	if err := s.opts.Publisher.Publish(ctx, TopicWallet, tx.ID, event); err != nil {
		slog.Error("failed to publish wallet event", "wallet_transaction_id", tx.ID, "error", err)
	}
	if _, err := s.opts.Notifier.Add(ctx, models.Alert{
		Type:    models.NotificationSuccess,
		Title:   "Transaction Successful!",
		Message: fmt.Sprintf("Successfully converted %s USDT to ₹%s", tx.AmountUsdt.String(), tx.AmountInr.StringFixed(2)),
	}); err != nil {
		slog.Warn("failed to post conversion notification", "wallet_transaction_id", tx.ID, "error", err)
	}
	return &tx, nil
}

func (s *walletService) ClearTransactions(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = []models.WalletTransaction{}
	if err := s.store.SaveWalletTransactions(ctx, s.txs); err != nil {
		slog.Error("failed to persist cleared wallet transactions", "error", err)
		return err
	}
	return nil
}

func (s *walletService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
