package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank/corebank/internal/domain"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CreateAccountResponse carries the id of a freshly created account.
type CreateAccountResponse struct {
	AccountID string `json:"account_id"`
}

// OKResponse acknowledges an accepted mutating command.
type OKResponse struct {
	Timestamp time.Time `json:"timestamp"`
}

// AccountResponse is the reply to a Get.
type AccountResponse struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	Journal   []JournalEntry  `json:"journal"`
}

// JournalEntry is one journal event, serialized with a discriminating kind
// tag. Consumers must treat the set of kinds as open.
type JournalEntry struct {
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
	TransferID    string          `json:"transfer_id,omitempty"`
	TargetAccount string          `json:"target_account,omitempty"`
	SourceAccount string          `json:"source_account,omitempty"`
	DeliveryID    uint64          `json:"delivery_id,omitempty"`
	Accepted      *bool           `json:"accepted,omitempty"`
}

// JournalFromDomain converts the journal snapshot for the wire.
func JournalFromDomain(events []domain.Event) []JournalEntry {
	entries := make([]JournalEntry, 0, len(events))
	for _, evt := range events {
		switch e := evt.(type) {
		case domain.Deposited:
			entries = append(entries, JournalEntry{
				Kind:      domain.KindDeposit,
				Amount:    e.Amount,
				Timestamp: e.Timestamp,
			})
		case domain.Withdrawn:
			entries = append(entries, JournalEntry{
				Kind:      domain.KindWithdrawal,
				Amount:    e.Amount,
				Timestamp: e.Timestamp,
			})
		case domain.TransferSent:
			entries = append(entries, JournalEntry{
				Kind:          domain.KindTransfer,
				Amount:        e.Amount,
				Timestamp:     e.Timestamp,
				TransferID:    e.TransferID.String(),
				TargetAccount: e.TargetAccount.String(),
			})
		case domain.TransferReceived:
			entries = append(entries, JournalEntry{
				Kind:          domain.KindReceivedTransfer,
				Amount:        e.Amount,
				Timestamp:     e.Timestamp,
				TransferID:    e.TransferID.String(),
				SourceAccount: e.SourceAccount.String(),
				DeliveryID:    e.DeliveryID,
			})
		case domain.TransferAcked:
			accepted := e.Accepted
			entries = append(entries, JournalEntry{
				Kind:       domain.KindTransferAck,
				Amount:     e.Amount,
				Timestamp:  e.Timestamp,
				TransferID: e.TransferID.String(),
				DeliveryID: e.DeliveryID,
				Accepted:   &accepted,
			})
		}
	}
	return entries
}
