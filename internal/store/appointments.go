package store

import (
	"context"

	"github.com/google/uuid"

	"barberbook/internal/domain"
)

// Repository is the durable store. Reads outside a transaction see a recent
// snapshot and are meant for display only; anything that commits goes
// through InShopTransaction.
type Repository interface {
	InShopTransaction(ctx context.Context, locks []LockKey, fn func(ctx context.Context, tx ShopTx) error) error

	ShopConfig(ctx context.Context) (domain.ShopConfig, error)
	ListAppointments(ctx context.Context) ([]domain.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
}
