package booking

import (
	"errors"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/service/catalog"
)

var (
	ErrInvalidDate     = domain.ErrInvalidDate
	ErrServiceNotFound = catalog.ErrServiceNotFound
	ErrStaffNotFound   = catalog.ErrStaffNotFound

	ErrStaffRequired         = errors.New("service requires a staff member")
	ErrStaffNotCapable       = errors.New("staff member cannot perform this service")
	ErrServiceInactive       = errors.New("service is not bookable")
	ErrStaffInactive         = errors.New("staff member is not bookable")
	ErrSlotNoLongerAvailable = errors.New("slot no longer available")
	ErrReservationNotFound   = errors.New("reservation not found")
	ErrAlreadyCancelled      = errors.New("reservation already cancelled")
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}
