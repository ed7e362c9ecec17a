// Package notify delivers committed order lifecycle events to interested
// parties: connected clients, the event stream and operators.
package notify

import (
	"context"
	"log"
	"sync"

	"gigmarket/backend/internal/models"
)

// Notifier receives order events after the store write succeeded.
// Implementations must not block for long; delivery is best-effort.
type Notifier interface {
	NotifyOrderEvent(ctx context.Context, evt models.OrderEvent) error
}

// Multi fans an event out to every registered notifier. A failing notifier is
// logged and does not stop the others.
type Multi struct {
	mu        sync.RWMutex
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Add registers n. Used for notifiers constructed after the order service.
func (m *Multi) Add(n Notifier) {
	if n == nil {
		return
	}
	m.mu.Lock()
	m.notifiers = append(m.notifiers, n)
	m.mu.Unlock()
}

func (m *Multi) NotifyOrderEvent(ctx context.Context, evt models.OrderEvent) error {
	m.mu.RLock()
	notifiers := append([]Notifier(nil), m.notifiers...)
	m.mu.RUnlock()

	for _, n := range notifiers {
		if err := n.NotifyOrderEvent(ctx, evt); err != nil {
			log.Printf("WARN: notifier %T failed for %s on order %s: %v", n, evt.Type, evt.OrderID, err)
		}
	}
	return nil
}

// Nop discards events.
type Nop struct{}

func (Nop) NotifyOrderEvent(context.Context, models.OrderEvent) error { return nil }
