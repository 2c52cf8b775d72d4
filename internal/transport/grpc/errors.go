package grpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"barberbook/internal/auth"
	"barberbook/internal/domain"
	"barberbook/internal/service/booking"
	"barberbook/internal/store"
)

const errorDomain = "barberbook"

const (
	ReasonValidation      = "VALIDATION_ERROR"
	ReasonNotFound        = "NOT_FOUND"
	ReasonShopClosed      = "SHOP_CLOSED"
	ReasonCooldownActive  = "COOLDOWN_ACTIVE"
	ReasonDuplicateActive = "DUPLICATE_ACTIVE_APPOINTMENT"
	ReasonTransition      = "INVALID_TRANSITION"
	ReasonSlotUnavailable = "SLOT_UNAVAILABLE"
	ReasonWriteConflict   = "WRITE_CONFLICT"
	ReasonUnavailable     = "STORE_UNAVAILABLE"
	ReasonUnauthenticated = "UNAUTHENTICATED"
	ReasonRateLimited     = "RATE_LIMITED"
)

type errorKind struct {
	code   codes.Code
	reason string
	msg    string
	level  slog.Level
}

func classify(err error) errorKind {
	var vErr *booking.ValidationError
	switch {
	case errors.As(err, &vErr):
		return errorKind{codes.InvalidArgument, ReasonValidation, vErr.Error(), slog.LevelWarn}
	case errors.Is(err, store.ErrNotFound):
		return errorKind{codes.NotFound, ReasonNotFound, "appointment not found", slog.LevelInfo}
	case errors.Is(err, booking.ErrShopClosed):
		return errorKind{codes.FailedPrecondition, ReasonShopClosed, "The shop is closed for bookings right now.", slog.LevelInfo}
	case errors.Is(err, booking.ErrCooldownActive):
		return errorKind{codes.FailedPrecondition, ReasonCooldownActive, "You had a visit less than 10 days ago. Try again later.", slog.LevelInfo}
	case errors.Is(err, booking.ErrDuplicateActiveAppointment):
		return errorKind{codes.FailedPrecondition, ReasonDuplicateActive, "You already have an open appointment.", slog.LevelInfo}
	case errors.Is(err, domain.ErrInvalidTransition):
		return errorKind{codes.FailedPrecondition, ReasonTransition, err.Error(), slog.LevelInfo}
	case errors.Is(err, booking.ErrSlotUnavailable):
		return errorKind{codes.AlreadyExists, ReasonSlotUnavailable, "That time is already taken. Pick a different slot.", slog.LevelInfo}
	case errors.Is(err, store.ErrConflict):
		return errorKind{codes.Aborted, ReasonWriteConflict, "Someone else changed this at the same time. Try again.", slog.LevelInfo}
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return errorKind{codes.Unauthenticated, ReasonUnauthenticated, "operator authentication required", slog.LevelWarn}
	case errors.Is(err, context.DeadlineExceeded):
		return errorKind{codes.DeadlineExceeded, "", "deadline exceeded", slog.LevelWarn}
	case errors.Is(err, context.Canceled):
		return errorKind{codes.Canceled, "", "request canceled", slog.LevelInfo}
	case errors.Is(err, store.ErrUnavailable):
		return errorKind{codes.Unavailable, ReasonUnavailable, "storage is unavailable, try again later", slog.LevelError}
	}
	return errorKind{codes.Internal, "", "internal error", slog.LevelError}
}

// statusError builds a status that carries the reason as an ErrorInfo
// detail when there is one.
func statusError(code codes.Code, reason, msg string) error {
	st := status.New(code, msg)
	if reason == "" {
		return st.Err()
	}
	withInfo, err := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: errorDomain})
	if err != nil {
		return st.Err()
	}
	return withInfo.Err()
}

// toStatus logs a failed call at the level its kind deserves and maps it
// to a gRPC status.
func toStatus(ctx context.Context, log *slog.Logger, err error, attrs ...any) error {
	if _, ok := status.FromError(err); ok {
		log.Warn("invalid request", append([]any{slog.Any("err", err)}, attrs...)...)
		return err
	}
	k := classify(err)
	log.Log(ctx, k.level, "request failed", append([]any{slog.Any("err", err), slog.String("reason", k.reason)}, attrs...)...)
	return statusError(k.code, k.reason, k.msg)
}

// Reason extracts the ErrorInfo reason from a status error.
func Reason(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}
