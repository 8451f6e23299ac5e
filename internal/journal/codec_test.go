package journal_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/corebank/internal/domain"
	"github.com/corebank/corebank/internal/journal"
)

func TestCodec_RoundTrip(t *testing.T) {
	transferID := uuid.New()
	target := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)

	sent := domain.TransferSent{
		TransferID:    transferID,
		Amount:        decimal.RequireFromString("12.34"),
		TargetAccount: target,
		Timestamp:     now,
	}

	kind, payload, err := journal.Encode(sent)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if kind != domain.KindTransfer {
		t.Errorf("kind = %q, want %q", kind, domain.KindTransfer)
	}

	decoded, err := journal.Decode(kind, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(domain.TransferSent)
	if !ok {
		t.Fatalf("decoded type = %T, want TransferSent", decoded)
	}
	if got.TransferID != sent.TransferID || got.TargetAccount != sent.TargetAccount {
		t.Errorf("ids diverged: %+v", got)
	}
	if !got.Amount.Equal(sent.Amount) {
		t.Errorf("amount = %s, want %s", got.Amount, sent.Amount)
	}
	if !got.Timestamp.Equal(sent.Timestamp) {
		t.Errorf("timestamp = %s, want %s", got.Timestamp, sent.Timestamp)
	}
}

func TestCodec_AckPreservesRejection(t *testing.T) {
	ack := domain.TransferAcked{
		DeliveryID: 7,
		TransferID: uuid.New(),
		Amount:     decimal.RequireFromString("5"),
		Accepted:   false,
		Timestamp:  time.Now(),
	}

	kind, payload, err := journal.Encode(ack)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := journal.Decode(kind, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(domain.TransferAcked)
	if got.Accepted {
		t.Error("rejection flag lost in round trip")
	}
	if got.DeliveryID != 7 {
		t.Errorf("delivery id = %d, want 7", got.DeliveryID)
	}
}

func TestCodec_UnknownKind(t *testing.T) {
	_, err := journal.Decode("wire-fraud", []byte(`{}`))
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if !strings.Contains(err.Error(), "wire-fraud") {
		t.Errorf("error %q does not name the kind", err)
	}
}
