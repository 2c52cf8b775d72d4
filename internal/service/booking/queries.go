package booking

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"barberbook/internal/domain"
)

type View string

const (
	ViewPending  View = "pending"
	ViewToday    View = "today"
	ViewUpcoming View = "upcoming"
	ViewAll      View = "all"
)

func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewPending, ViewToday, ViewUpcoming, ViewAll:
		return v, nil
	case "":
		return ViewAll, nil
	}
	return "", validationError("view must be one of pending, today, upcoming, all")
}

type AvailableSlots struct {
	Date     domain.Date
	ShopOpen bool
	Times    []domain.LocalTime
}

// AvailableSlots lists the free slots of a date for display. Slots of past
// days, and slots of today that have already started, are left out.
func (s *Service) AvailableSlots(ctx context.Context, date string) (AvailableSlots, error) {
	d, err := domain.ParseDate(strings.TrimSpace(date))
	if err != nil {
		return AvailableSlots{}, validationError("date must be YYYY-MM-DD")
	}
	cfg, err := s.displayConfig(ctx)
	if err != nil {
		return AvailableSlots{}, err
	}
	out := AvailableSlots{Date: d, ShopOpen: cfg.IsOpen, Times: []domain.LocalTime{}}

	now := s.clock()
	if d.Before(domain.DateOf(now)) {
		return out, nil
	}
	candidates := domain.CandidateSlots(d, cfg)
	if len(candidates) == 0 {
		return out, nil
	}

	appts, err := s.repo.ListAppointments(ctx)
	if err != nil {
		return AvailableSlots{}, err
	}
	for _, t := range domain.FreeSlots(d, candidates, appts) {
		if t.On(d, s.loc).Before(now) {
			continue
		}
		out.Times = append(out.Times, t)
	}
	return out, nil
}

type Eligibility struct {
	ShopOpen          bool
	Cooldown          domain.CooldownStatus
	ActiveAppointment *domain.Appointment
}

// CanBook reports whether nothing stands in the way of a new booking.
func (e Eligibility) CanBook() bool {
	return e.ShopOpen && !e.Cooldown.Active && e.ActiveAppointment == nil
}

func (s *Service) Eligibility(ctx context.Context, clientName string) (Eligibility, error) {
	_, client, err := parseClientName(clientName)
	if err != nil {
		return Eligibility{}, err
	}
	cfg, err := s.displayConfig(ctx)
	if err != nil {
		return Eligibility{}, err
	}
	appts, err := s.repo.ListAppointments(ctx)
	if err != nil {
		return Eligibility{}, err
	}

	out := Eligibility{
		ShopOpen: cfg.IsOpen,
		Cooldown: domain.EvaluateCooldown(client, appts, cfg.ReleasedClients, s.clock(), s.loc),
	}
	if a, ok := activeAppointment(client, appts); ok {
		out.ActiveAppointment = &a
	}
	return out, nil
}

// ClientAppointments returns a client's history, latest slot first.
func (s *Service) ClientAppointments(ctx context.Context, clientName string) ([]domain.Appointment, error) {
	_, client, err := parseClientName(clientName)
	if err != nil {
		return nil, err
	}
	appts, err := s.repo.ListAppointments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Appointment, 0)
	for _, a := range appts {
		if a.Client() == client {
			out = append(out, a)
		}
	}
	domain.SortNewestFirst(out)
	return out, nil
}

// OperatorAppointments returns one of the operator's queues, latest slot
// first.
func (s *Service) OperatorAppointments(ctx context.Context, view View) ([]domain.Appointment, error) {
	appts, err := s.repo.ListAppointments(ctx)
	if err != nil {
		return nil, err
	}
	today := s.today()

	keep := func(a domain.Appointment) bool { return true }
	switch view {
	case ViewPending:
		keep = func(a domain.Appointment) bool {
			return a.Status == domain.StatusPending || a.Status == domain.StatusWaitingApproval
		}
	case ViewToday:
		keep = func(a domain.Appointment) bool {
			return a.Date == today && a.Status != domain.StatusCancelled && a.Status != domain.StatusRejected
		}
	case ViewUpcoming:
		keep = func(a domain.Appointment) bool {
			return !a.Date.Before(today) && (a.Status == domain.StatusAccepted || a.Status == domain.StatusPending)
		}
	case ViewAll, "":
	default:
		return nil, validationError("unknown view " + string(view))
	}

	out := make([]domain.Appointment, 0, len(appts))
	for _, a := range appts {
		if keep(a) {
			out = append(out, a)
		}
	}
	domain.SortNewestFirst(out)
	return out, nil
}

// NextAppointment returns the earliest accepted appointment that has not
// started yet.
func (s *Service) NextAppointment(ctx context.Context) (domain.Appointment, bool, error) {
	appts, err := s.repo.ListAppointments(ctx)
	if err != nil {
		return domain.Appointment{}, false, err
	}
	now := s.clock()

	upcoming := make([]domain.Appointment, 0)
	for _, a := range appts {
		if a.Status == domain.StatusAccepted && a.Slot().Start(s.loc).After(now) {
			upcoming = append(upcoming, a)
		}
	}
	if len(upcoming) == 0 {
		return domain.Appointment{}, false, nil
	}
	domain.SortOldestFirst(upcoming)
	return upcoming[0], true, nil
}

type Stats struct {
	Pending int
	Today   int
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	appts, err := s.repo.ListAppointments(ctx)
	if err != nil {
		return Stats{}, err
	}
	today := s.today()

	var out Stats
	for _, a := range appts {
		if a.Status == domain.StatusPending {
			out.Pending++
		}
		if a.Date == today {
			out.Today++
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	return s.repo.GetAppointment(ctx, id)
}
