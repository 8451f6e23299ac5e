package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event kinds. Journal consumers must treat this as an open tagged union.
const (
	KindAccountCreated   = "account-created"
	KindDeposit          = "deposit"
	KindWithdrawal       = "withdrawal"
	KindTransfer         = "transfer"
	KindReceivedTransfer = "received-transfer"
	KindTransferAck      = "transfer-ack"
	KindWatchStarted     = "watch-started"
	KindWatchCancelled   = "watch-cancelled"
)

// Event is a persisted journal event.
type Event interface {
	Kind() string
}

// AccountCreated marks the creation of an account. It is persisted but not
// part of the client-visible journal.
type AccountCreated struct {
	AccountID uuid.UUID `json:"account_id"`
}

// Deposited records a credit from a deposit command.
type Deposited struct {
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// Withdrawn records a debit from a withdraw command.
type Withdrawn struct {
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// TransferSent records the optimistic debit on the source account of a
// transfer. The matching delivery ticket is re-armed on replay until a
// TransferAcked with the same transfer id is folded.
type TransferSent struct {
	TransferID    uuid.UUID       `json:"transfer_id"`
	Amount        decimal.Decimal `json:"amount"`
	TargetAccount uuid.UUID       `json:"target_account"`
	Timestamp     time.Time       `json:"timestamp"`
}

// TransferReceived records the credit on the target account of a transfer.
// At most one is ever applied per transfer id; duplicates are detected by
// scanning the journal and re-acknowledged without re-crediting.
type TransferReceived struct {
	DeliveryID    uint64          `json:"delivery_id"`
	TransferID    uuid.UUID       `json:"transfer_id"`
	Amount        decimal.Decimal `json:"amount"`
	SourceAccount uuid.UUID       `json:"source_account"`
	Timestamp     time.Time       `json:"timestamp"`
}

// TransferAcked records the acknowledgement on the source account. A rejected
// transfer (Accepted=false) compensates the optimistic debit.
type TransferAcked struct {
	DeliveryID uint64          `json:"delivery_id"`
	TransferID uuid.UUID       `json:"transfer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Accepted   bool            `json:"accepted"`
	Timestamp  time.Time       `json:"timestamp"`
}

// WatchStarted records a watchdog bucket taking a transfer under watch.
type WatchStarted struct {
	TransferID    uuid.UUID `json:"transfer_id"`
	SourceAccount uuid.UUID `json:"source_account"`
}

// WatchCancelled records a watch being resolved.
type WatchCancelled struct {
	TransferID uuid.UUID `json:"transfer_id"`
}

func (AccountCreated) Kind() string   { return KindAccountCreated }
func (Deposited) Kind() string        { return KindDeposit }
func (Withdrawn) Kind() string        { return KindWithdrawal }
func (TransferSent) Kind() string     { return KindTransfer }
func (TransferReceived) Kind() string { return KindReceivedTransfer }
func (TransferAcked) Kind() string    { return KindTransferAck }
func (WatchStarted) Kind() string     { return KindWatchStarted }
func (WatchCancelled) Kind() string   { return KindWatchCancelled }
