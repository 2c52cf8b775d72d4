package store

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"barberbook/internal/domain"
)

// ShopTx is the store as seen from inside one transaction. Writes become
// visible to others only if the transaction function returns nil.
type ShopTx interface {
	GetShopConfig(ctx context.Context) (domain.ShopConfig, error)
	// SaveShopConfig writes cfg if the stored version still equals
	// cfg.Version and returns it with the version incremented.
	SaveShopConfig(ctx context.Context, cfg domain.ShopConfig) (domain.ShopConfig, error)

	ListAppointments(ctx context.Context) ([]domain.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
}

// LockKey names a record a transaction must own exclusively.
type LockKey string

const ShopLock LockKey = "shop"

func SlotLock(s domain.Slot) LockKey {
	return LockKey("slot:" + s.String())
}

func ClientLock(k domain.ClientKey) LockKey {
	return LockKey("client:" + k.String())
}

func AppointmentLock(id uuid.UUID) LockKey {
	return LockKey("appointment:" + id.String())
}

// SortedLocks deduplicates keys and orders them so every transaction
// acquires locks in the same order.
func SortedLocks(keys []LockKey) []LockKey {
	seen := make(map[LockKey]struct{}, len(keys))
	out := make([]LockKey, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
