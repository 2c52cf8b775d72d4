package booking

import "errors"

var (
	ErrShopClosed                 = errors.New("shop is closed")
	ErrSlotUnavailable            = errors.New("slot unavailable")
	ErrCooldownActive             = errors.New("cooldown active")
	ErrDuplicateActiveAppointment = errors.New("client already has an active appointment")
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
