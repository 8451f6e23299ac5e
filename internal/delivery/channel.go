// Package delivery implements the per-sender at-least-once delivery channel:
// a pending set of outbound messages keyed by a monotonic delivery id,
// redelivered on a fixed interval until the sender confirms receipt.
package delivery

import (
	"time"

	"github.com/google/uuid"

	"github.com/corebank/corebank/internal/domain"
)

// Ticket is a pending outbound message awaiting confirmation. Delivery ids
// are sender-local; receivers de-duplicate by business key, never by
// delivery id.
type Ticket struct {
	ID          uint64
	Destination uuid.UUID
	Message     domain.Event
	Created     time.Time
	warned      bool
}

// Channel is the pending set of one sender. It is owned by the sender's
// sequential loop and is not safe for concurrent use.
type Channel struct {
	nextID  uint64
	pending map[uint64]*Ticket
	order   []uint64
}

// NewChannel creates an empty Channel.
func NewChannel() *Channel {
	return &Channel{pending: make(map[uint64]*Ticket)}
}

// Deliver assigns the next delivery id, builds the message with it and
// retains the ticket until Confirm. It returns the armed ticket; sending is
// the caller's job.
func (c *Channel) Deliver(dest uuid.UUID, now time.Time, build func(deliveryID uint64) domain.Event) Ticket {
	c.nextID++
	t := &Ticket{
		ID:          c.nextID,
		Destination: dest,
		Message:     build(c.nextID),
		Created:     now,
	}
	c.pending[t.ID] = t
	c.order = append(c.order, t.ID)
	return *t
}

// Confirm removes the ticket, stopping redelivery. It reports whether the
// ticket was still pending.
func (c *Channel) Confirm(deliveryID uint64) bool {
	if _, ok := c.pending[deliveryID]; !ok {
		return false
	}
	delete(c.pending, deliveryID)
	return true
}

// Pending returns all unconfirmed tickets in delivery id order. Every call
// of the redelivery timer resends the full set.
func (c *Channel) Pending() []Ticket {
	tickets := make([]Ticket, 0, len(c.pending))
	live := c.order[:0]
	for _, id := range c.order {
		t, ok := c.pending[id]
		if !ok {
			continue
		}
		live = append(live, id)
		tickets = append(tickets, *t)
	}
	c.order = live
	return tickets
}

// Unconfirmed returns tickets that have stayed pending past the threshold
// and have not been reported yet. Each ticket is reported once; it surfaces
// as an operator warning, not a process failure.
func (c *Channel) Unconfirmed(now time.Time, threshold time.Duration) []Ticket {
	var overdue []Ticket
	for _, id := range c.order {
		t, ok := c.pending[id]
		if !ok || t.warned {
			continue
		}
		if now.Sub(t.Created) >= threshold {
			t.warned = true
			overdue = append(overdue, *t)
		}
	}
	return overdue
}

// Len returns the number of pending tickets.
func (c *Channel) Len() int {
	return len(c.pending)
}
