package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Commands addressed to an account ledger. Inbound saga messages
// (TransferReceived, TransferAcked) reuse the event types in events.go, as
// the accepted message is persisted verbatim.

// CreateAccount creates the account. Fails with ErrAlreadyExists on a second
// attempt.
type CreateAccount struct{}

// Deposit credits the account.
type Deposit struct {
	Amount    decimal.Decimal
	Timestamp time.Time
}

// Withdraw debits the account.
type Withdraw struct {
	Amount    decimal.Decimal
	Timestamp time.Time
}

// Get asks for the current balance and journal snapshot.
type Get struct{}

// Transfer starts (Watched=false) or continues (Watched=true) the transfer
// saga on the source account. The watched form is produced by the watchdog
// once the transfer is durably registered for reconciliation.
type Transfer struct {
	TransferID    uuid.UUID
	Watched       bool
	Amount        decimal.Decimal
	TargetAccount uuid.UUID
	Timestamp     time.Time
}

// TransferPing is the watchdog's reconciliation probe: the source account
// re-sends the watch cancellation if the transfer is already acknowledged.
type TransferPing struct {
	TransferID uuid.UUID
}

// OK is the reply to an accepted mutating command.
type OK struct {
	Timestamp time.Time
}
