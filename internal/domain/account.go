package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountState is the in-memory state of one account. It is rebuilt from the
// persisted event sequence by folding Apply over it in order, so Apply must
// stay free of side effects.
type AccountState struct {
	Created bool
	Balance decimal.Decimal
	Journal []Event
}

// Apply folds a single event into the state. Balance mutations are always
// computed, never overwritten.
func (s *AccountState) Apply(evt Event) {
	switch e := evt.(type) {
	case AccountCreated:
		s.Created = true
	case Deposited:
		s.Journal = append(s.Journal, e)
		s.Balance = s.Balance.Add(e.Amount)
	case Withdrawn:
		s.Journal = append(s.Journal, e)
		s.Balance = s.Balance.Sub(e.Amount)
	case TransferSent:
		s.Journal = append(s.Journal, e)
		s.Balance = s.Balance.Sub(e.Amount)
	case TransferReceived:
		s.Journal = append(s.Journal, e)
		s.Balance = s.Balance.Add(e.Amount)
	case TransferAcked:
		s.Journal = append(s.Journal, e)
		if !e.Accepted {
			s.Balance = s.Balance.Add(e.Amount)
		}
	}
}

// HasReceived reports whether a TransferReceived for the transfer id is
// already in the journal. Used to de-duplicate redelivered transfers.
func (s *AccountState) HasReceived(transferID uuid.UUID) bool {
	for _, evt := range s.Journal {
		if e, ok := evt.(TransferReceived); ok && e.TransferID == transferID {
			return true
		}
	}
	return false
}

// HasAck reports whether a TransferAcked for the transfer id is already in
// the journal.
func (s *AccountState) HasAck(transferID uuid.UUID) bool {
	for _, evt := range s.Journal {
		if e, ok := evt.(TransferAcked); ok && e.TransferID == transferID {
			return true
		}
	}
	return false
}

// Snapshot is the reply to a Get command.
type Snapshot struct {
	Balance decimal.Decimal
	Journal []Event
}
