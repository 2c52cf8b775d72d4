package booking

import (
	"context"

	"barberbook/internal/domain"
	"barberbook/internal/store"
)

type CreateBookingInput struct {
	ClientName string
	Date       string
	Time       string
	// NotificationTarget is an optional device token for status updates.
	NotificationTarget string
}

// CreateBooking books a slot for a client. The new appointment starts
// pending and waits for the operator.
func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (domain.Appointment, error) {
	name, client, err := parseClientName(in.ClientName)
	if err != nil {
		return domain.Appointment{}, err
	}
	slot, err := parseSlot(in.Date, in.Time)
	if err != nil {
		return domain.Appointment{}, err
	}

	now := s.clock()
	locks := []store.LockKey{store.ClientLock(client), store.SlotLock(slot)}

	var out domain.Appointment
	err = s.repo.InShopTransaction(ctx, locks, func(ctx context.Context, tx store.ShopTx) error {
		cfg, err := tx.GetShopConfig(ctx)
		if err != nil {
			return err
		}
		if !cfg.IsOpen {
			return ErrShopClosed
		}

		appts, err := tx.ListAppointments(ctx)
		if err != nil {
			return err
		}
		if !domain.CanBook(client, appts, cfg.ReleasedClients, now, s.loc) {
			return ErrCooldownActive
		}
		if _, ok := activeAppointment(client, appts); ok {
			return ErrDuplicateActiveAppointment
		}
		if err := s.admitClientSlot(cfg, slot, now); err != nil {
			return err
		}
		if domain.IsOccupied(slot.Date, slot.Time, appts, noExclusion) {
			return ErrSlotUnavailable
		}

		created, err := tx.CreateAppointment(ctx, domain.Appointment{
			ClientName:         name,
			Date:               slot.Date,
			Time:               slot.Time,
			Status:             domain.StatusPending,
			NotificationTarget: in.NotificationTarget,
		})
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

type ManualBookInput struct {
	ClientName         string
	Date               string
	Time               string
	NotificationTarget string
	// Pending leaves the booking waiting for approval instead of accepting
	// it right away.
	Pending bool
}

// ManualBook lets the operator book on a client's behalf. It skips the
// shop switch, the calendar, the cooldown and the one-active-booking rule,
// but never the availability check.
func (s *Service) ManualBook(ctx context.Context, in ManualBookInput) (domain.Appointment, error) {
	name, _, err := parseClientName(in.ClientName)
	if err != nil {
		return domain.Appointment{}, err
	}
	slot, err := parseSlot(in.Date, in.Time)
	if err != nil {
		return domain.Appointment{}, err
	}

	status := domain.StatusAccepted
	if in.Pending {
		status = domain.StatusPending
	}

	var out domain.Appointment
	err = s.repo.InShopTransaction(ctx, []store.LockKey{store.SlotLock(slot)}, func(ctx context.Context, tx store.ShopTx) error {
		appts, err := tx.ListAppointments(ctx)
		if err != nil {
			return err
		}
		if domain.IsOccupied(slot.Date, slot.Time, appts, noExclusion) {
			return ErrSlotUnavailable
		}
		created, err := tx.CreateAppointment(ctx, domain.Appointment{
			ClientName:         name,
			Date:               slot.Date,
			Time:               slot.Time,
			Status:             status,
			NotificationTarget: in.NotificationTarget,
		})
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func activeAppointment(client domain.ClientKey, appts []domain.Appointment) (domain.Appointment, bool) {
	for _, a := range appts {
		if a.Status.Active() && a.Client() == client {
			return a, true
		}
	}
	return domain.Appointment{}, false
}
