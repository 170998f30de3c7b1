package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservo/backend/internal/domain"
)

func TestNewReservationEnvelope(t *testing.T) {
	r := domain.Reservation{
		ID:         uuid.MustParse("00000000-0000-0000-0000-000000000007"),
		ServiceID:  "court",
		Date:       domain.MustParseDate("2026-08-01"),
		Start:      domain.MustParseClockTime("18:00"),
		End:        domain.MustParseClockTime("19:30"),
		Status:     domain.ReservationConfirmed,
		ClientName: "Joaquín",
	}
	at := time.Date(2026, 7, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))

	e, err := NewReservationEnvelope(TypeReservationCreated, r, at)
	require.NoError(t, err)
	assert.Equal(t, TypeReservationCreated, e.Type)
	assert.Equal(t, time.UTC, e.OccurredAt.Location())

	var p ReservationPayload
	require.NoError(t, json.Unmarshal(e.Payload, &p))
	assert.Equal(t, "00000000-0000-0000-0000-000000000007", p.ReservationID)
	assert.Equal(t, "2026-08-01", p.Date)
	assert.Equal(t, "18:00", p.Start)
	assert.Equal(t, "19:30", p.End)
	assert.Empty(t, p.StaffID)
}

func TestBus_PublishFansOut(t *testing.T) {
	bus := NewBus()
	var typed, all []string
	bus.Subscribe(TypeReservationCreated, func(ctx context.Context, e Envelope) error {
		typed = append(typed, e.Type)
		return nil
	})
	bus.Subscribe("", func(ctx context.Context, e Envelope) error {
		all = append(all, e.Type)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), Envelope{Type: TypeReservationCreated}))
	require.NoError(t, bus.Publish(context.Background(), Envelope{Type: TypeReservationCancelled}))

	assert.Equal(t, []string{TypeReservationCreated}, typed)
	assert.Equal(t, []string{TypeReservationCreated, TypeReservationCancelled}, all)
}

func TestBus_ReturnsFirstErrorAfterAllHandlers(t *testing.T) {
	bus := NewBus()
	first := errors.New("first")
	calls := 0
	bus.Subscribe("x", func(ctx context.Context, e Envelope) error { calls++; return first })
	bus.Subscribe("x", func(ctx context.Context, e Envelope) error { calls++; return errors.New("second") })

	err := bus.Publish(context.Background(), Envelope{Type: "x"})
	require.ErrorIs(t, err, first)
	assert.Equal(t, 2, calls)
}
