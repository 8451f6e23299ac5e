package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/corebank/internal/adapter/http/dto"
	"github.com/corebank/corebank/internal/domain"
)

// LedgerService defines the behavior needed by AccountHandler. Implemented
// by the account router.
type LedgerService interface {
	CreateNew(ctx context.Context) (uuid.UUID, error)
	Deposit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (time.Time, error)
	Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (time.Time, error)
	Transfer(ctx context.Context, sourceID, targetID uuid.UUID, amount decimal.Decimal) (time.Time, error)
	Get(ctx context.Context, accountID uuid.UUID) (domain.Snapshot, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	ledger LedgerService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(ledger LedgerService) *AccountHandler {
	return &AccountHandler{ledger: ledger}
}

// Create creates a new account with a generated id.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.ledger.CreateNew(r.Context())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to create account", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.CreateAccountResponse{AccountID: accountID.String()})
}

// Get returns the balance and journal of an account.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account ID", err.Error())
		return
	}

	snapshot, err := h.ledger.Get(r.Context(), accountID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get account", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountResponse{
		AccountID: accountID.String(),
		Balance:   snapshot.Balance,
		Journal:   dto.JournalFromDomain(snapshot.Journal),
	})
}

// Deposit credits an account.
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account ID", err.Error())
		return
	}

	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	timestamp, err := h.ledger.Deposit(r.Context(), accountID, req.Amount)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to deposit", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.OKResponse{Timestamp: timestamp})
}

// Withdraw debits an account.
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account ID", err.Error())
		return
	}

	var req dto.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	timestamp, err := h.ledger.Withdraw(r.Context(), accountID, req.Amount)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to withdraw", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.OKResponse{Timestamp: timestamp})
}

// Transfer starts a transfer to another account. The reply only reflects
// acceptance at submission time; a transfer later refused by the target is
// compensated on the source, not reported here.
func (h *AccountHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	sourceID, err := parseAccountID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account ID", err.Error())
		return
	}

	var req dto.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	targetID, err := parseAccountID(req.TargetAccountID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target account ID", err.Error())
		return
	}

	timestamp, err := h.ledger.Transfer(r.Context(), sourceID, targetID, req.Amount)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to transfer", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.OKResponse{Timestamp: timestamp})
}
