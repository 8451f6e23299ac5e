// Package journal defines the append-only event store every ledger and
// watchdog bucket persists to, plus the wire codec for stored events.
package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/corebank/corebank/internal/domain"
)

// Store is an append-only event log partitioned by stream id. Appends within
// one stream are totally ordered; Load returns them in append order.
type Store interface {
	Append(ctx context.Context, streamID string, event domain.Event) error
	Load(ctx context.Context, streamID string) ([]domain.Event, error)
}

// Encode serializes an event into its kind tag and JSON payload.
func Encode(event domain.Event) (kind string, payload []byte, err error) {
	payload, err = json.Marshal(event)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode %s event: %w", event.Kind(), err)
	}
	return event.Kind(), payload, nil
}

// Decode deserializes a stored event from its kind tag and JSON payload.
func Decode(kind string, payload []byte) (domain.Event, error) {
	var (
		event domain.Event
		err   error
	)

	switch kind {
	case domain.KindAccountCreated:
		var e domain.AccountCreated
		err = json.Unmarshal(payload, &e)
		event = e
	case domain.KindDeposit:
		var e domain.Deposited
		err = json.Unmarshal(payload, &e)
		event = e
	case domain.KindWithdrawal:
		var e domain.Withdrawn
		err = json.Unmarshal(payload, &e)
		event = e
	case domain.KindTransfer:
		var e domain.TransferSent
		err = json.Unmarshal(payload, &e)
		event = e
	case domain.KindReceivedTransfer:
		var e domain.TransferReceived
		err = json.Unmarshal(payload, &e)
		event = e
	case domain.KindTransferAck:
		var e domain.TransferAcked
		err = json.Unmarshal(payload, &e)
		event = e
	case domain.KindWatchStarted:
		var e domain.WatchStarted
		err = json.Unmarshal(payload, &e)
		event = e
	case domain.KindWatchCancelled:
		var e domain.WatchCancelled
		err = json.Unmarshal(payload, &e)
		event = e
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", kind, err)
	}
	return event, nil
}
