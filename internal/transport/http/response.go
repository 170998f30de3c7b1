package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"reservo/backend/internal/availability"
	"reservo/backend/internal/domain"
	"reservo/backend/internal/service/booking"
	"reservo/backend/internal/service/catalog"
	"reservo/backend/internal/service/schedule"
	"reservo/backend/internal/store"
)

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, response{Success: true, Data: data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response{Success: false, Error: msg})
}

// fail writes err with the status that matches its kind. Unexpected errors
// are logged and reported without detail.
func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, response{Success: false, Error: "internal error"})
		return
	}
	c.JSON(status, response{Success: false, Error: err.Error()})
}

func statusFor(err error) int {
	var (
		schedErr   *schedule.ValidationError
		catalogErr *catalog.ValidationError
		bookingErr *booking.ValidationError
	)
	switch {
	case errors.As(err, &schedErr),
		errors.As(err, &catalogErr),
		errors.As(err, &bookingErr),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrInvalidClockTime),
		errors.Is(err, domain.ErrInvalidWeekday),
		errors.Is(err, domain.ErrInvalidBlock),
		errors.Is(err, domain.ErrInvalidOverrideKind),
		errors.Is(err, availability.ErrRangeTooLarge),
		errors.Is(err, booking.ErrStaffRequired):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrServiceNotFound),
		errors.Is(err, catalog.ErrStaffNotFound),
		errors.Is(err, booking.ErrReservationNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrDuplicateID),
		errors.Is(err, booking.ErrSlotNoLongerAvailable),
		errors.Is(err, booking.ErrAlreadyCancelled),
		errors.Is(err, booking.ErrStaffNotCapable),
		errors.Is(err, booking.ErrServiceInactive),
		errors.Is(err, booking.ErrStaffInactive),
		errors.Is(err, store.ErrIdempotencyConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
