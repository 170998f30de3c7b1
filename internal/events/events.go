// Package events carries reservation lifecycle notifications out of the
// booking coordinator.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"reservo/backend/internal/domain"
)

const (
	TypeReservationCreated   = "reservation.created"
	TypeReservationCancelled = "reservation.cancelled"
)

// Envelope is the wire form of an event.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// ReservationPayload is the payload of reservation.* events.
type ReservationPayload struct {
	ReservationID string `json:"reservation_id"`
	ServiceID     string `json:"service_id"`
	StaffID       string `json:"staff_id,omitempty"`
	Date          string `json:"date"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Status        string `json:"status"`
	ClientName    string `json:"client_name"`
	ClientEmail   string `json:"client_email,omitempty"`
	ClientPhone   string `json:"client_phone,omitempty"`
}

func NewReservationEnvelope(eventType string, r domain.Reservation, at time.Time) (Envelope, error) {
	payload, err := json.Marshal(ReservationPayload{
		ReservationID: r.ID.String(),
		ServiceID:     r.ServiceID,
		StaffID:       r.StaffID,
		Date:          r.Date.String(),
		Start:         r.Start.String(),
		End:           r.End.String(),
		Status:        string(r.Status),
		ClientName:    r.ClientName,
		ClientEmail:   r.ClientEmail,
		ClientPhone:   r.ClientPhone,
	})
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, OccurredAt: at.UTC(), Payload: payload}, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Envelope) error
}

// Handler reacts to an event published on a Bus.
type Handler func(ctx context.Context, e Envelope) error

// Bus is an in-process Publisher that fans events out to subscribers
// synchronously, in subscription order. The first handler error is returned
// after every handler has run.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers h for eventType. The empty type matches every event.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], h)
}

func (b *Bus) Publish(ctx context.Context, e Envelope) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[e.Type]...)
	handlers = append(handlers, b.subscribers[""]...)
	b.mu.RUnlock()

	var firstErr error
	for _, h := range handlers {
		if err := h(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
