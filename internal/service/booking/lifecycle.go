package booking

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"barberbook/internal/domain"
	"barberbook/internal/store"
)

// ClientAction identifies an appointment on behalf of the client who owns
// it. Appointments belonging to someone else are reported as not found.
type ClientAction struct {
	AppointmentID uuid.UUID
	ClientName    string
}

type RescheduleInput struct {
	AppointmentID uuid.UUID
	// ClientName is required when the client reschedules.
	ClientName string
	Date       string
	Time       string
}

type SuggestInput struct {
	AppointmentID uuid.UUID
	// Date is optional; when set it must be the appointment's date.
	Date string
	Time string
}

func (s *Service) Accept(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return s.transition(ctx, transitionCmd{id: id, event: domain.EventAccept, actor: domain.ActorOperator})
}

func (s *Service) Reject(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return s.transition(ctx, transitionCmd{id: id, event: domain.EventReject, actor: domain.ActorOperator})
}

// Complete marks an accepted appointment whose slot has started as done.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return s.transition(ctx, transitionCmd{id: id, event: domain.EventComplete, actor: domain.ActorOperator})
}

// Suggest proposes another time on the same day for a pending appointment.
func (s *Service) Suggest(ctx context.Context, in SuggestInput) (domain.Appointment, error) {
	t, err := domain.ParseLocalTime(strings.TrimSpace(in.Time))
	if err != nil {
		return domain.Appointment{}, validationError("time must be HH:MM")
	}
	var date domain.Date
	if strings.TrimSpace(in.Date) != "" {
		date, err = domain.ParseDate(strings.TrimSpace(in.Date))
		if err != nil {
			return domain.Appointment{}, validationError("date must be YYYY-MM-DD")
		}
	}
	return s.transition(ctx, transitionCmd{
		id:           in.AppointmentID,
		event:        domain.EventSuggest,
		actor:        domain.ActorOperator,
		input:        domain.TransitionInput{SuggestionTime: t},
		sameDayAs:    date,
		checkSameDay: !date.IsZero(),
	})
}

func (s *Service) Cancel(ctx context.Context, in ClientAction) (domain.Appointment, error) {
	return s.clientTransition(ctx, in, domain.EventCancel)
}

func (s *Service) AcceptSuggestion(ctx context.Context, in ClientAction) (domain.Appointment, error) {
	return s.clientTransition(ctx, in, domain.EventAcceptSuggestion)
}

func (s *Service) DeclineSuggestion(ctx context.Context, in ClientAction) (domain.Appointment, error) {
	return s.clientTransition(ctx, in, domain.EventDeclineSuggestion)
}

// ProposeSlot answers an operator suggestion with a different slot chosen by
// the client.
func (s *Service) ProposeSlot(ctx context.Context, in RescheduleInput) (domain.Appointment, error) {
	return s.moveTo(ctx, domain.ActorClient, domain.EventProposeSlot, in)
}

// Reschedule moves an appointment to a new slot and sends it back for
// approval. Clients are held to the calendar; the operator is not.
func (s *Service) Reschedule(ctx context.Context, actor domain.Actor, in RescheduleInput) (domain.Appointment, error) {
	return s.moveTo(ctx, actor, domain.EventReschedule, in)
}

func (s *Service) moveTo(ctx context.Context, actor domain.Actor, ev domain.Event, in RescheduleInput) (domain.Appointment, error) {
	slot, err := parseSlot(in.Date, in.Time)
	if err != nil {
		return domain.Appointment{}, err
	}
	cmd := transitionCmd{
		id:    in.AppointmentID,
		event: ev,
		actor: actor,
		input: domain.TransitionInput{Slot: slot},
	}
	if actor == domain.ActorClient {
		_, client, err := parseClientName(in.ClientName)
		if err != nil {
			return domain.Appointment{}, err
		}
		cmd.client = client
		cmd.clientSlot = true
	}
	return s.transition(ctx, cmd)
}

func (s *Service) clientTransition(ctx context.Context, in ClientAction, ev domain.Event) (domain.Appointment, error) {
	_, client, err := parseClientName(in.ClientName)
	if err != nil {
		return domain.Appointment{}, err
	}
	return s.transition(ctx, transitionCmd{id: in.AppointmentID, event: ev, actor: domain.ActorClient, client: client})
}

type transitionCmd struct {
	id    uuid.UUID
	event domain.Event
	actor domain.Actor
	input domain.TransitionInput

	// client restricts the command to appointments owned by this client.
	client domain.ClientKey
	// clientSlot holds the claimed slot to the calendar and to the future.
	clientSlot bool

	sameDayAs    domain.Date
	checkSameDay bool
}

// transition fires one lifecycle event inside a store transaction. Any slot
// the event claims is locked up front and re-checked for availability
// before the write, excluding the appointment itself.
func (s *Service) transition(ctx context.Context, cmd transitionCmd) (domain.Appointment, error) {
	if cmd.id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	now := s.clock()
	cmd.input.Now = now
	cmd.input.Location = s.loc

	snapshot, err := s.repo.GetAppointment(ctx, cmd.id)
	if err != nil {
		return domain.Appointment{}, err
	}
	locks := []store.LockKey{store.AppointmentLock(cmd.id)}
	locked, claims := domain.ClaimedSlot(snapshot, cmd.event, cmd.input)
	if claims {
		locks = append(locks, store.SlotLock(locked))
	}
	// A completed appointment that moves again becomes active, so it answers
	// to the same per-client rules as a new booking.
	reopens := !snapshot.Status.Active()
	if reopens {
		locks = append(locks, store.ClientLock(snapshot.Client()))
	}

	var (
		out    domain.Appointment
		intent domain.Intent
	)
	err = s.repo.InShopTransaction(ctx, locks, func(ctx context.Context, tx store.ShopTx) error {
		current, err := tx.GetAppointment(ctx, cmd.id)
		if err != nil {
			return err
		}
		if cmd.client != "" && current.Client() != cmd.client {
			return store.ErrNotFound
		}
		if cmd.checkSameDay && cmd.sameDayAs != current.Date {
			return validationError("a suggestion must stay on " + current.Date.String())
		}

		next, in, err := domain.Transition(current, cmd.event, cmd.actor, cmd.input)
		if err != nil {
			return err
		}

		if !current.Status.Active() && next.Status.Active() {
			if !reopens {
				return store.ErrConflict
			}
			if err := s.admitReopen(ctx, tx, cmd.actor, current, now); err != nil {
				return err
			}
		}

		if slot, ok := domain.ClaimedSlot(current, cmd.event, cmd.input); ok {
			// The appointment moved between the snapshot and the lock.
			if !claims || slot != locked {
				return store.ErrConflict
			}
			if cmd.clientSlot {
				cfg, err := tx.GetShopConfig(ctx)
				if err != nil {
					return err
				}
				if err := s.admitClientSlot(cfg, slot, now); err != nil {
					return err
				}
			}
			appts, err := tx.ListAppointments(ctx)
			if err != nil {
				return err
			}
			if domain.IsOccupied(slot.Date, slot.Time, appts, current.ID) {
				return ErrSlotUnavailable
			}
		}

		saved, err := tx.UpdateAppointment(ctx, next)
		if err != nil {
			return err
		}
		out, intent = saved, in
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.notify(ctx, intent)
	return out, nil
}

// admitReopen applies the one-active-appointment rule to an appointment
// leaving a final status. Clients also wait out the cooldown, measured
// without the appointment being moved.
func (s *Service) admitReopen(ctx context.Context, tx store.ShopTx, actor domain.Actor, current domain.Appointment, now time.Time) error {
	appts, err := tx.ListAppointments(ctx)
	if err != nil {
		return err
	}
	if other, ok := activeAppointment(current.Client(), appts); ok && other.ID != current.ID {
		return ErrDuplicateActiveAppointment
	}
	if actor != domain.ActorClient {
		return nil
	}
	cfg, err := tx.GetShopConfig(ctx)
	if err != nil {
		return err
	}
	history := make([]domain.Appointment, 0, len(appts))
	for _, a := range appts {
		if a.ID != current.ID {
			history = append(history, a)
		}
	}
	if !domain.CanBook(current.Client(), history, cfg.ReleasedClients, now, s.loc) {
		return ErrCooldownActive
	}
	return nil
}
