package dto

import (
	"github.com/shopspring/decimal"
)

// DepositRequest represents a request to credit an account.
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// WithdrawRequest represents a request to debit an account.
type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// TransferRequest represents a request to transfer money to another account.
type TransferRequest struct {
	TargetAccountID string          `json:"target_account_id"`
	Amount          decimal.Decimal `json:"amount"`
}
