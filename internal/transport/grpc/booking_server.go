package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"reservo/backend/internal/availability"
	"reservo/backend/internal/domain"
	"reservo/backend/internal/service/booking"
	"reservo/backend/internal/store"
)

type BookingServer struct {
	svc bookingService
	log zerolog.Logger
}

type bookingService interface {
	AvailableSlots(ctx context.Context, q booking.SlotQuery) (availability.Day, error)
	CreateReservation(ctx context.Context, in booking.CreateInput) (domain.Reservation, error)
	CancelReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	Reservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
}

var _ BookingServiceServer = (*BookingServer)(nil)

func NewBookingServer(svc bookingService, log zerolog.Logger) *BookingServer {
	return &BookingServer{
		svc: svc,
		log: log.With().Str("component", "grpc.booking").Logger(),
	}
}

func (s *BookingServer) GetAvailableSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With().Str("rpc", "GetAvailableSlots").Logger()

	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	q := booking.SlotQuery{
		ServiceID: field(req, "service_id"),
		Date:      field(req, "date"),
		StaffID:   field(req, "staff_id"),
	}
	day, err := s.svc.AvailableSlots(ctx, q)
	if err != nil {
		return nil, s.statusError(log, err, "available slots failed")
	}

	log.Debug().
		Str("service_id", q.ServiceID).
		Stringer("date", day.Date).
		Str("status", string(day.Status)).
		Int("slots", len(day.Slots)).
		Msg("slots computed")
	return newStruct(dayFields(day))
}

func (s *BookingServer) CreateReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With().Str("rpc", "CreateReservation").Logger()

	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	in := booking.CreateInput{
		ServiceID:      field(req, "service_id"),
		StaffID:        field(req, "staff_id"),
		Date:           field(req, "date"),
		Start:          field(req, "start"),
		ClientName:     field(req, "client_name"),
		ClientEmail:    field(req, "client_email"),
		ClientPhone:    field(req, "client_phone"),
		Notes:          field(req, "notes"),
		IdempotencyKey: idempotencyKey(ctx),
	}
	r, err := s.svc.CreateReservation(ctx, in)
	if err != nil {
		return nil, s.statusError(log, err, "reservation create failed")
	}

	log.Info().
		Str("reservation_id", r.ID.String()).
		Str("service_id", r.ServiceID).
		Stringer("date", r.Date).
		Stringer("start", r.Start).
		Msg("reservation created")
	return newStruct(map[string]any{"reservation": reservationFields(r)})
}

func (s *BookingServer) CancelReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With().Str("rpc", "CancelReservation").Logger()

	id, err := reservationID(req)
	if err != nil {
		return nil, err
	}
	r, err := s.svc.CancelReservation(ctx, id)
	if err != nil {
		return nil, s.statusError(log, err, "reservation cancel failed")
	}

	log.Info().Str("reservation_id", id.String()).Msg("reservation cancelled")
	return newStruct(map[string]any{"reservation": reservationFields(r)})
}

func (s *BookingServer) GetReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With().Str("rpc", "GetReservation").Logger()

	id, err := reservationID(req)
	if err != nil {
		return nil, err
	}
	r, err := s.svc.Reservation(ctx, id)
	if err != nil {
		return nil, s.statusError(log, err, "reservation lookup failed")
	}
	return newStruct(map[string]any{"reservation": reservationFields(r)})
}

func reservationID(req *structpb.Struct) (uuid.UUID, error) {
	if req == nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := uuid.Parse(field(req, "reservation_id"))
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "reservation_id must be a UUID")
	}
	return id, nil
}

// statusError maps booking errors to gRPC codes. Unexpected errors are logged
// and reported as Internal without detail.
func (s *BookingServer) statusError(log zerolog.Logger, err error, msg string) error {
	code := errorCode(err)
	if code == codes.Internal {
		log.Error().Err(err).Msg(msg)
		return status.Error(codes.Internal, "internal error")
	}
	log.Info().Err(err).Str("code", code.String()).Msg(msg)
	return status.Error(code, err.Error())
}

func errorCode(err error) codes.Code {
	var vErr *booking.ValidationError
	switch {
	case errors.As(err, &vErr),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, booking.ErrStaffRequired):
		return codes.InvalidArgument
	case errors.Is(err, booking.ErrServiceNotFound),
		errors.Is(err, booking.ErrStaffNotFound),
		errors.Is(err, booking.ErrReservationNotFound):
		return codes.NotFound
	case errors.Is(err, booking.ErrSlotNoLongerAvailable),
		errors.Is(err, booking.ErrStaffNotCapable),
		errors.Is(err, booking.ErrServiceInactive),
		errors.Is(err, booking.ErrStaffInactive),
		errors.Is(err, booking.ErrAlreadyCancelled),
		errors.Is(err, store.ErrIdempotencyConflict):
		return codes.FailedPrecondition
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func field(req *structpb.Struct, name string) string {
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func dayFields(day availability.Day) map[string]any {
	slots := make([]any, 0, len(day.Slots))
	for _, sl := range day.Slots {
		slots = append(slots, map[string]any{"start": sl.Start.String(), "end": sl.End.String()})
	}
	out := map[string]any{
		"date":    day.Date.String(),
		"weekday": int(day.Weekday),
		"status":  string(day.Status),
		"slots":   slots,
	}
	if day.Override != "" {
		out["override"] = string(day.Override)
	}
	return out
}

func reservationFields(r domain.Reservation) map[string]any {
	out := map[string]any{
		"id":           r.ID.String(),
		"service_id":   r.ServiceID,
		"staff_id":     r.StaffID,
		"date":         r.Date.String(),
		"start":        r.Start.String(),
		"end":          r.End.String(),
		"client_name":  r.ClientName,
		"client_email": r.ClientEmail,
		"client_phone": r.ClientPhone,
		"notes":        r.Notes,
		"status":       string(r.Status),
		"created_at":   r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.CancelledAt != nil {
		out["cancelled_at"] = r.CancelledAt.UTC().Format(time.RFC3339)
	}
	return out
}
