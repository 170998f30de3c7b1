package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// NoStaff is the staff key of reservations for services without staff.
const NoStaff = "-"

// Reservation records a booked slot. It is immutable apart from the
// confirmed -> cancelled transition.
type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID          uuid.UUID         `bun:"id,pk,type:uuid" json:"id"`
	ServiceID   string            `bun:"service_id,notnull" json:"serviceId"`
	StaffID     string            `bun:"staff_id,notnull" json:"staffId,omitempty"`
	Date        Date              `bun:"date,notnull,type:date" json:"date"`
	Start       ClockTime         `bun:"start_minute,notnull" json:"start"`
	End         ClockTime         `bun:"end_minute,notnull" json:"end"`
	ClientName  string            `bun:"client_name,notnull" json:"clientName"`
	ClientEmail string            `bun:"client_email,notnull" json:"clientEmail,omitempty"`
	ClientPhone string            `bun:"client_phone,notnull" json:"clientPhone,omitempty"`
	Notes       string            `bun:"notes,notnull" json:"notes,omitempty"`
	Status      ReservationStatus `bun:"status,notnull" json:"status"`
	CreatedAt   time.Time         `bun:"created_at,notnull" json:"createdAt"`
	CancelledAt *time.Time        `bun:"cancelled_at" json:"cancelledAt,omitempty"`
}

func (r *Reservation) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if r.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		r.ID = id
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = ReservationConfirmed
	}
	return nil
}

// StaffKey is the staff component of the reservation's slot key.
func (r Reservation) StaffKey() string {
	return StaffKey(r.StaffID)
}

func StaffKey(staffID string) string {
	if staffID == "" {
		return NoStaff
	}
	return staffID
}

func (r Reservation) Slot() TimeSlot {
	return TimeSlot{Start: r.Start, End: r.End}
}

func (r Reservation) Active() bool {
	return r.Status == ReservationConfirmed
}

// SameBooking reports whether r and o describe the same request. It is used to
// answer replays of an idempotent create.
func (r Reservation) SameBooking(o Reservation) bool {
	return r.ServiceID == o.ServiceID &&
		r.StaffID == o.StaffID &&
		r.Date == o.Date &&
		r.Start == o.Start &&
		r.ClientName == o.ClientName &&
		r.ClientEmail == o.ClientEmail &&
		r.ClientPhone == o.ClientPhone
}

// SlotKey identifies the lock scope of a reservation attempt: a service, a
// staff member (or none) and a date.
type SlotKey struct {
	ServiceID string
	StaffID   string
	Date      Date
}

// String renders the key as reservation:<service>:<staff or ->:<date>. Ids
// are escaped so that distinct keys never render the same.
func (k SlotKey) String() string {
	staff := NoStaff
	if k.StaffID != "" {
		staff = escapeKeyPart(k.StaffID)
	}
	return "reservation:" + escapeKeyPart(k.ServiceID) + ":" + staff + ":" + k.Date.String()
}

var keyPartEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

func escapeKeyPart(id string) string {
	if id == NoStaff {
		return "%2D"
	}
	return keyPartEscaper.Replace(id)
}
