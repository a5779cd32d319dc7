package models

import (
	"errors"
	"time"

	"github.com/jellydator/validation"
	"github.com/shopspring/decimal"
)

func init() {
	// snapshot files carry amounts as plain JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

type StatusType string

const (
	StatusPending   StatusType = "pending"
	StatusCompleted StatusType = "completed"
)

// StatusAll is accepted by status filters only.
const StatusAll StatusType = "all"

// Transaction is a payment request in the ledger.
type Transaction struct {
	ID             string          `json:"id"`
	ClientName     string          `json:"clientName"`
	Amount         decimal.Decimal `json:"amount"`
	AmountInr      decimal.Decimal `json:"amountInr"`
	Status         StatusType      `json:"status"`
	PaymentLinkURL string          `json:"razorpayLink"`
	BlockchainHash string          `json:"blockchainHash"`
	IPFSCid        string          `json:"ipfsCid"`
	Description    string          `json:"description"`
	CreatedAt      time.Time       `json:"createdAt"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
}

func (t Transaction) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ID, validation.Required),
		validation.Field(&t.ClientName, validation.Required),
		validation.Field(&t.Amount, validation.By(positiveDecimal)),
		validation.Field(&t.Status, validation.Required, validation.In(StatusPending, StatusCompleted)),
		validation.Field(&t.CreatedAt, validation.Required),
		validation.Field(&t.CompletedAt, validation.By(func(value interface{}) error {
			completedAt, _ := value.(*time.Time)
			if (completedAt != nil) != (t.Status == StatusCompleted) {
				return errors.New("must be set exactly when status is completed")
			}
			return nil
		})),
	)
}

// NewTransaction holds every ledger field except the ones the ledger assigns.
type NewTransaction struct {
	ClientName     string          `json:"clientName"`
	Amount         decimal.Decimal `json:"amount"`
	AmountInr      decimal.Decimal `json:"amountInr"`
	Status         StatusType      `json:"status"`
	PaymentLinkURL string          `json:"razorpayLink"`
	BlockchainHash string          `json:"blockchainHash"`
	IPFSCid        string          `json:"ipfsCid"`
	Description    string          `json:"description"`
}

func (n NewTransaction) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.ClientName, validation.Required),
		validation.Field(&n.Amount, validation.By(positiveDecimal)),
		validation.Field(&n.Status, validation.In(StatusPending, StatusCompleted)),
	)
}

// PaymentLinkRequest is the payment-link form.
type PaymentLinkRequest struct {
	ClientName  string          `json:"clientName"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (p PaymentLinkRequest) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ClientName, validation.Required),
		validation.Field(&p.Amount, validation.By(positiveDecimal)),
	)
}

func positiveDecimal(value interface{}) error {
	d, ok := value.(decimal.Decimal)
	if !ok || !d.IsPositive() {
		return errors.New("must be positive")
	}
	return nil
}
