package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WalletTransaction struct {
	ID              string          `json:"id"`
	WalletAddress   string          `json:"walletAddress"`
	AmountUsdt      decimal.Decimal `json:"amountUsdt"`
	AmountInr       decimal.Decimal `json:"amountInr"`
	Status          StatusType      `json:"status"`
	TransactionHash string          `json:"transactionHash"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// WalletSummary is the wallet screen's view of the conversion state.
type WalletSummary struct {
	InitialUsdtBalance string              `json:"initialUsdtBalance"`
	ConversionRate     string              `json:"conversionRate"`
	TotalUsdt          decimal.Decimal     `json:"totalUsdt"`
	TotalInr           decimal.Decimal     `json:"totalInr"`
	Transactions       []WalletTransaction `json:"transactions"`
}
