package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"barberbook/internal/domain"
	"barberbook/internal/store"
	"barberbook/internal/store/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingNotifier struct {
	mu      sync.Mutex
	intents []domain.Intent
}

func (n *recordingNotifier) Notify(ctx context.Context, intent domain.Intent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = append(n.intents, intent)
}

func (n *recordingNotifier) kinds() []domain.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.NotificationKind, 0, len(n.intents))
	for _, i := range n.intents {
		out = append(out, i.Kind)
	}
	return out
}

type harness struct {
	svc      *Service
	store    *memory.Store
	clock    *testClock
	notifier *recordingNotifier
}

// newHarness starts on Wednesday 2024-06-05 08:00 UTC with the default
// shop configuration.
func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store:    memory.NewDefault(),
		clock:    &testClock{now: time.Date(2024, 6, 5, 8, 0, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
	}
	base := []Option{WithClock(h.clock.Now), WithLocation(time.UTC), WithNotifier(h.notifier)}
	h.svc = NewService(h.store, append(base, opts...)...)
	return h
}

func (h *harness) book(t *testing.T, name, date, tm string) domain.Appointment {
	t.Helper()
	a, err := h.svc.CreateBooking(context.Background(), CreateBookingInput{
		ClientName:         name,
		Date:               date,
		Time:               tm,
		NotificationTarget: "token-" + name,
	})
	if err != nil {
		t.Fatalf("CreateBooking(%s %s %s) error: %v", name, date, tm, err)
	}
	return a
}

// completedVisit records a finished visit by booking it manually in the
// past and marking it done.
func (h *harness) completedVisit(t *testing.T, name, date, tm string) domain.Appointment {
	t.Helper()
	ctx := context.Background()
	a, err := h.svc.ManualBook(ctx, ManualBookInput{ClientName: name, Date: date, Time: tm})
	if err != nil {
		t.Fatalf("ManualBook error: %v", err)
	}
	done, err := h.svc.Complete(ctx, a.ID)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	return done
}

func (h *harness) status(t *testing.T, id uuid.UUID) domain.Status {
	t.Helper()
	a, err := h.store.GetAppointment(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAppointment error: %v", err)
	}
	return a.Status
}

func TestCreateBooking_ValidationErrorType(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		in   CreateBookingInput
		msg  string
	}{
		{name: "missing name", in: CreateBookingInput{ClientName: "  ", Date: "2024-06-10", Time: "09:00"}, msg: "client_name is required"},
		{name: "bad date", in: CreateBookingInput{ClientName: "Ana", Date: "2024-6-10", Time: "09:00"}, msg: "date must be YYYY-MM-DD"},
		{name: "bad time", in: CreateBookingInput{ClientName: "Ana", Date: "2024-06-10", Time: "9:00"}, msg: "time must be HH:MM"},
		{name: "off grid", in: CreateBookingInput{ClientName: "Ana", Date: "2024-06-10", Time: "09:15"}, msg: "slot 2024-06-10T09:15 is not offered by the shop"},
		{name: "sunday", in: CreateBookingInput{ClientName: "Ana", Date: "2024-06-09", Time: "09:00"}, msg: "slot 2024-06-09T09:00 is not offered by the shop"},
		{name: "past", in: CreateBookingInput{ClientName: "Ana", Date: "2024-06-04", Time: "09:00"}, msg: "slot 2024-06-04T09:00 is in the past"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.CreateBooking(context.Background(), tt.in)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error = %v (%T), want *ValidationError", err, err)
			}
			if vErr.Error() != tt.msg {
				t.Fatalf("error = %q, want %q", vErr.Error(), tt.msg)
			}
		})
	}
}

func TestCreateBooking_SuggestionScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.book(t, "Ana", "2024-06-10", "09:00")
	if a.Status != domain.StatusPending {
		t.Fatalf("status = %s, want pending", a.Status)
	}

	suggested, err := h.svc.Suggest(ctx, SuggestInput{AppointmentID: a.ID, Date: "2024-06-10", Time: "10:00"})
	if err != nil {
		t.Fatalf("Suggest error: %v", err)
	}
	if suggested.Status != domain.StatusSuggestionSent || suggested.SuggestionTime == nil || suggested.SuggestionTime.String() != "10:00" {
		t.Fatalf("suggested = %+v", suggested)
	}

	accepted, err := h.svc.AcceptSuggestion(ctx, ClientAction{AppointmentID: a.ID, ClientName: "Ana"})
	if err != nil {
		t.Fatalf("AcceptSuggestion error: %v", err)
	}
	if accepted.Status != domain.StatusAccepted || accepted.Time.String() != "10:00" || accepted.SuggestionTime != nil {
		t.Fatalf("accepted = %+v", accepted)
	}

	kinds := h.notifier.kinds()
	if len(kinds) != 2 || kinds[0] != domain.NotifySuggestion || kinds[1] != domain.NotifyAccepted {
		t.Fatalf("notifications = %v, want [suggestion accepted]", kinds)
	}
}

func TestCreateBooking_ShopClosed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cfg, err := h.svc.ToggleShop(ctx)
	if err != nil {
		t.Fatalf("ToggleShop error: %v", err)
	}
	if cfg.IsOpen {
		t.Fatalf("expected shop closed")
	}

	_, err = h.svc.CreateBooking(ctx, CreateBookingInput{ClientName: "Ana", Date: "2024-06-10", Time: "09:00"})
	if !errors.Is(err, ErrShopClosed) {
		t.Fatalf("err = %v, want ErrShopClosed", err)
	}

	// The operator can still book while closed.
	if _, err := h.svc.ManualBook(ctx, ManualBookInput{ClientName: "Ana", Date: "2024-06-10", Time: "09:00"}); err != nil {
		t.Fatalf("ManualBook error: %v", err)
	}

	if _, err := h.svc.ToggleShop(ctx); err != nil {
		t.Fatalf("ToggleShop error: %v", err)
	}
	h.book(t, "Bruno", "2024-06-10", "09:40")
}

func TestCreateBooking_CooldownAndRelease(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.clock.Set(time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC))
	h.completedVisit(t, "Ana", "2024-06-10", "09:00")

	h.clock.Set(time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC))
	_, err := h.svc.CreateBooking(ctx, CreateBookingInput{ClientName: "Ana", Date: "2024-06-17", Time: "09:00"})
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("err = %v, want ErrCooldownActive", err)
	}

	el, err := h.svc.Eligibility(ctx, "ana")
	if err != nil {
		t.Fatalf("Eligibility error: %v", err)
	}
	if el.CanBook() || !el.Cooldown.Active || el.Cooldown.EndsOn.String() != "2024-06-19" {
		t.Fatalf("eligibility = %+v", el)
	}

	if _, err := h.svc.ReleaseClient(ctx, "Ana"); err != nil {
		t.Fatalf("ReleaseClient error: %v", err)
	}
	h.book(t, "Ana", "2024-06-17", "09:00")
}

func TestCreateBooking_CooldownEndsAfterTenDays(t *testing.T) {
	h := newHarness(t)

	h.clock.Set(time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC))
	h.completedVisit(t, "Ana", "2024-06-10", "09:00")

	h.clock.Set(time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC))
	h.book(t, "Ana", "2024-06-21", "09:00")
}

func TestCreateBooking_OneActiveAppointmentPerClient(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.book(t, "Ana", "2024-06-10", "09:00")
	_, err := h.svc.CreateBooking(ctx, CreateBookingInput{ClientName: " ANA ", Date: "2024-06-11", Time: "09:00"})
	if !errors.Is(err, ErrDuplicateActiveAppointment) {
		t.Fatalf("err = %v, want ErrDuplicateActiveAppointment", err)
	}

	if _, err := h.svc.Cancel(ctx, ClientAction{AppointmentID: first.ID, ClientName: "Ana"}); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	h.book(t, "Ana", "2024-06-11", "09:00")
}

func TestCreateBooking_SlotTaken(t *testing.T) {
	h := newHarness(t)

	h.book(t, "Ana", "2024-06-10", "09:00")
	_, err := h.svc.CreateBooking(context.Background(), CreateBookingInput{ClientName: "Bruno", Date: "2024-06-10", Time: "09:00"})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("err = %v, want ErrSlotUnavailable", err)
	}
}

func TestCreateBooking_CancelledSlotIsFreeAgain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.book(t, "Ana", "2024-06-10", "09:00")
	if _, err := h.svc.Reject(ctx, a.ID); err != nil {
		t.Fatalf("Reject error: %v", err)
	}
	h.book(t, "Bruno", "2024-06-10", "09:00")
}

func TestCreateBooking_ConcurrentSameSlot(t *testing.T) {
	h := newHarness(t)
	const clients = 16

	var wg sync.WaitGroup
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.CreateBooking(context.Background(), CreateBookingInput{
				ClientName: "client " + string(rune('a'+i)),
				Date:       "2024-06-10",
				Time:       "09:00",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotUnavailable):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
}

func TestReschedule_ChecksNewSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ana := h.book(t, "Ana", "2024-06-10", "09:00")
	bruno := h.book(t, "Bruno", "2024-06-10", "09:40")

	_, err := h.svc.Reschedule(ctx, domain.ActorClient, RescheduleInput{AppointmentID: ana.ID, ClientName: "Ana", Date: "2024-06-10", Time: "09:40"})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("err = %v, want ErrSlotUnavailable", err)
	}
	if got := h.status(t, ana.ID); got != domain.StatusPending {
		t.Fatalf("status after declined reschedule = %s, want pending", got)
	}

	// Moving onto its own slot is not a conflict.
	same, err := h.svc.Reschedule(ctx, domain.ActorClient, RescheduleInput{AppointmentID: ana.ID, ClientName: "Ana", Date: "2024-06-10", Time: "09:00"})
	if err != nil {
		t.Fatalf("Reschedule onto own slot error: %v", err)
	}
	if same.Status != domain.StatusWaitingApproval {
		t.Fatalf("status = %s, want waiting_approval", same.Status)
	}

	moved, err := h.svc.Reschedule(ctx, domain.ActorClient, RescheduleInput{AppointmentID: bruno.ID, ClientName: "Bruno", Date: "2024-06-11", Time: "10:20"})
	if err != nil {
		t.Fatalf("Reschedule error: %v", err)
	}
	if moved.Slot().String() != "2024-06-11T10:20" || moved.Status != domain.StatusWaitingApproval {
		t.Fatalf("moved = %+v", moved)
	}
}

func TestReschedule_ClientIsHeldToCalendarOperatorIsNot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ana := h.book(t, "Ana", "2024-06-10", "09:00")

	_, err := h.svc.Reschedule(ctx, domain.ActorClient, RescheduleInput{AppointmentID: ana.ID, ClientName: "Ana", Date: "2024-06-10", Time: "21:00"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}

	moved, err := h.svc.Reschedule(ctx, domain.ActorOperator, RescheduleInput{AppointmentID: ana.ID, Date: "2024-06-10", Time: "21:00"})
	if err != nil {
		t.Fatalf("operator Reschedule error: %v", err)
	}
	if moved.Time.String() != "21:00" {
		t.Fatalf("time = %s, want 21:00", moved.Time)
	}
}

func TestReschedule_OtherClientsAppointmentIsNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ana := h.book(t, "Ana", "2024-06-10", "09:00")
	_, err := h.svc.Reschedule(ctx, domain.ActorClient, RescheduleInput{AppointmentID: ana.ID, ClientName: "Bruno", Date: "2024-06-11", Time: "09:00"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want store.ErrNotFound", err)
	}
	if _, err := h.svc.Cancel(ctx, ClientAction{AppointmentID: ana.ID, ClientName: "Bruno"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cancel err = %v, want store.ErrNotFound", err)
	}
	if _, err := h.svc.Accept(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("accept err = %v, want store.ErrNotFound", err)
	}
}

func TestReschedule_FromCompleted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.clock.Set(time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC))
	done := h.completedVisit(t, "Ana", "2024-06-10", "09:00")

	moved, err := h.svc.Reschedule(ctx, domain.ActorOperator, RescheduleInput{AppointmentID: done.ID, Date: "2024-06-24", Time: "09:00"})
	if err != nil {
		t.Fatalf("Reschedule error: %v", err)
	}
	if moved.Status != domain.StatusWaitingApproval {
		t.Fatalf("status = %s, want waiting_approval", moved.Status)
	}
}

func TestReschedule_FromCompletedKeepsOneActiveAppointment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.clock.Set(time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC))
	done := h.completedVisit(t, "Bia", "2024-06-10", "09:00")
	if _, err := h.svc.ManualBook(ctx, ManualBookInput{ClientName: "Bia", Date: "2024-06-20", Time: "09:00"}); err != nil {
		t.Fatalf("ManualBook error: %v", err)
	}

	_, err := h.svc.Reschedule(ctx, domain.ActorOperator, RescheduleInput{AppointmentID: done.ID, Date: "2024-06-24", Time: "09:00"})
	if !errors.Is(err, ErrDuplicateActiveAppointment) {
		t.Fatalf("err = %v, want ErrDuplicateActiveAppointment", err)
	}
	if got := h.status(t, done.ID); got != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", got)
	}

	history, err := h.svc.ClientAppointments(ctx, "Bia")
	if err != nil {
		t.Fatalf("ClientAppointments error: %v", err)
	}
	active := 0
	for _, a := range history {
		if a.Status.Active() {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("active appointments = %d, want 1", active)
	}
}

func TestReschedule_FromCompletedHonoursCooldownForClients(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.clock.Set(time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC))
	h.completedVisit(t, "Ana", "2024-06-08", "09:00")
	done := h.completedVisit(t, "Ana", "2024-06-10", "09:00")

	h.clock.Set(time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC))
	if _, err := h.svc.CreateBooking(ctx, CreateBookingInput{ClientName: "Ana", Date: "2024-06-12", Time: "09:00"}); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("CreateBooking err = %v, want ErrCooldownActive", err)
	}

	in := RescheduleInput{AppointmentID: done.ID, ClientName: "Ana", Date: "2024-06-12", Time: "09:00"}
	if _, err := h.svc.Reschedule(ctx, domain.ActorClient, in); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("Reschedule err = %v, want ErrCooldownActive", err)
	}
	if got := h.status(t, done.ID); got != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", got)
	}

	if _, err := h.svc.ReleaseClient(ctx, "Ana"); err != nil {
		t.Fatalf("ReleaseClient error: %v", err)
	}
	moved, err := h.svc.Reschedule(ctx, domain.ActorClient, in)
	if err != nil {
		t.Fatalf("Reschedule after release error: %v", err)
	}
	if moved.Status != domain.StatusWaitingApproval {
		t.Fatalf("status = %s, want waiting_approval", moved.Status)
	}
}

func TestAcceptSuggestion_RechecksSuggestedSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ana := h.book(t, "Ana", "2024-06-10", "09:00")
	if _, err := h.svc.Suggest(ctx, SuggestInput{AppointmentID: ana.ID, Time: "10:20"}); err != nil {
		t.Fatalf("Suggest error: %v", err)
	}
	if _, err := h.svc.ManualBook(ctx, ManualBookInput{ClientName: "Bruno", Date: "2024-06-10", Time: "10:20"}); err != nil {
		t.Fatalf("ManualBook error: %v", err)
	}

	_, err := h.svc.AcceptSuggestion(ctx, ClientAction{AppointmentID: ana.ID, ClientName: "Ana"})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("err = %v, want ErrSlotUnavailable", err)
	}
	if got := h.status(t, ana.ID); got != domain.StatusSuggestionSent {
		t.Fatalf("status = %s, want suggestion_sent", got)
	}

	declined, err := h.svc.DeclineSuggestion(ctx, ClientAction{AppointmentID: ana.ID, ClientName: "Ana"})
	if err != nil {
		t.Fatalf("DeclineSuggestion error: %v", err)
	}
	if declined.Status != domain.StatusWaitingApproval || declined.SuggestionTime != nil || declined.Time.String() != "09:00" {
		t.Fatalf("declined = %+v", declined)
	}
}

func TestSuggest_Rules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ana := h.book(t, "Ana", "2024-06-10", "09:00")
	h.book(t, "Bruno", "2024-06-10", "09:40")

	_, err := h.svc.Suggest(ctx, SuggestInput{AppointmentID: ana.ID, Date: "2024-06-11", Time: "10:00"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("other-day suggestion err = %v, want *ValidationError", err)
	}

	if _, err := h.svc.Suggest(ctx, SuggestInput{AppointmentID: ana.ID, Time: "09:40"}); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("taken suggestion err = %v, want ErrSlotUnavailable", err)
	}

	if _, err := h.svc.Accept(ctx, ana.ID); err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	if _, err := h.svc.Suggest(ctx, SuggestInput{AppointmentID: ana.ID, Time: "11:00"}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("suggest on accepted err = %v, want ErrInvalidTransition", err)
	}
}

func TestProposeSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ana := h.book(t, "Ana", "2024-06-10", "09:00")
	if _, err := h.svc.ProposeSlot(ctx, RescheduleInput{AppointmentID: ana.ID, ClientName: "Ana", Date: "2024-06-12", Time: "11:00"}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("propose on pending err = %v, want ErrInvalidTransition", err)
	}

	if _, err := h.svc.Suggest(ctx, SuggestInput{AppointmentID: ana.ID, Time: "10:20"}); err != nil {
		t.Fatalf("Suggest error: %v", err)
	}
	proposed, err := h.svc.ProposeSlot(ctx, RescheduleInput{AppointmentID: ana.ID, ClientName: "Ana", Date: "2024-06-12", Time: "11:00"})
	if err != nil {
		t.Fatalf("ProposeSlot error: %v", err)
	}
	if proposed.Status != domain.StatusWaitingApproval || proposed.Slot().String() != "2024-06-12T11:00" || proposed.SuggestionTime != nil {
		t.Fatalf("proposed = %+v", proposed)
	}

	rejected, err := h.svc.Reject(ctx, ana.ID)
	if err != nil {
		t.Fatalf("Reject error: %v", err)
	}
	if rejected.Status != domain.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", rejected.Status)
	}
	kinds := h.notifier.kinds()
	if kinds[len(kinds)-1] != domain.NotifyRejected {
		t.Fatalf("last notification = %q, want rejected", kinds[len(kinds)-1])
	}
}

func TestComplete_WaitsForSlotStart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ana := h.book(t, "Ana", "2024-06-10", "09:00")
	if _, err := h.svc.Accept(ctx, ana.ID); err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	if _, err := h.svc.Complete(ctx, ana.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("early complete err = %v, want ErrInvalidTransition", err)
	}

	h.clock.Set(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	done, err := h.svc.Complete(ctx, ana.ID)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if done.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", done.Status)
	}

	// A completed visit keeps holding its slot.
	_, err = h.svc.ManualBook(ctx, ManualBookInput{ClientName: "Bruno", Date: "2024-06-10", Time: "09:00"})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("err = %v, want ErrSlotUnavailable", err)
	}
}

func TestManualBook(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, err := h.svc.ManualBook(ctx, ManualBookInput{ClientName: "Ana", Date: "2024-06-09", Time: "07:15"})
	if err != nil {
		t.Fatalf("ManualBook error: %v", err)
	}
	if a.Status != domain.StatusAccepted {
		t.Fatalf("status = %s, want accepted", a.Status)
	}

	pending, err := h.svc.ManualBook(ctx, ManualBookInput{ClientName: "Ana", Date: "2024-06-10", Time: "09:00", Pending: true})
	if err != nil {
		t.Fatalf("ManualBook pending error: %v", err)
	}
	if pending.Status != domain.StatusPending {
		t.Fatalf("status = %s, want pending", pending.Status)
	}
}

func TestReleaseClient_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.ReleaseClient(ctx, "Ana")
	if err != nil {
		t.Fatalf("ReleaseClient error: %v", err)
	}
	second, err := h.svc.ReleaseClient(ctx, "ana")
	if err != nil {
		t.Fatalf("second ReleaseClient error: %v", err)
	}
	if len(second.ReleasedClients) != 1 || second.Version != first.Version {
		t.Fatalf("second release changed config: %+v", second)
	}

	out, err := h.svc.UnreleaseClient(ctx, "ANA")
	if err != nil {
		t.Fatalf("UnreleaseClient error: %v", err)
	}
	if len(out.ReleasedClients) != 0 {
		t.Fatalf("released = %v, want empty", out.ReleasedClients)
	}
}

func TestUpdateShopConfig(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	opening, closing := "09:00", "12:00"
	interval := 60
	lunchStart, lunchEnd := "10:00", "11:00"
	days := []int{1, 2, 3, 4, 5}
	cfg, err := h.svc.UpdateShopConfig(ctx, ShopConfigPatch{
		OpenTime: &opening, CloseTime: &closing, IntervalMinutes: &interval,
		LunchStart: &lunchStart, LunchEnd: &lunchEnd, WorkDays: &days,
	})
	if err != nil {
		t.Fatalf("UpdateShopConfig error: %v", err)
	}
	if cfg.Version != 1 {
		t.Fatalf("version = %d, want 1", cfg.Version)
	}

	slots, err := h.svc.AvailableSlots(ctx, "2024-06-10")
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	if got := timesOf(slots.Times); !equal(got, []string{"09:00", "11:00"}) {
		t.Fatalf("slots = %v, want [09:00 11:00]", got)
	}

	bad := "13:00"
	_, err = h.svc.UpdateShopConfig(ctx, ShopConfigPatch{LunchEnd: &bad})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	after, _ := h.svc.GetShopConfig(ctx)
	if after.Version != 1 || after.LunchEnd.String() != "11:00" {
		t.Fatalf("declined update changed config: %+v", after)
	}

	cleared, err := h.svc.UpdateShopConfig(ctx, ShopConfigPatch{ClearLunch: true})
	if err != nil {
		t.Fatalf("clear lunch error: %v", err)
	}
	if cleared.LunchStart != nil || cleared.LunchEnd != nil {
		t.Fatalf("lunch not cleared: %+v", cleared)
	}
}

func TestAvailableSlots(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.book(t, "Ana", "2024-06-05", "09:00")
	h.clock.Set(time.Date(2024, 6, 5, 9, 30, 0, 0, time.UTC))

	slots, err := h.svc.AvailableSlots(ctx, "2024-06-05")
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	got := timesOf(slots.Times)
	if len(got) == 0 || got[0] != "09:40" {
		t.Fatalf("first slot = %v, want 09:40", got)
	}

	past, err := h.svc.AvailableSlots(ctx, "2024-06-04")
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	if len(past.Times) != 0 {
		t.Fatalf("past day slots = %v, want none", timesOf(past.Times))
	}

	if _, err := h.svc.AvailableSlots(ctx, "tomorrow"); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestOperatorQueries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	today1 := h.book(t, "Ana", "2024-06-05", "10:20")
	today2 := h.book(t, "Bruno", "2024-06-05", "11:00")
	later := h.book(t, "Carla", "2024-06-07", "09:00")
	cancelled := h.book(t, "Dora", "2024-06-05", "12:20")

	if _, err := h.svc.Accept(ctx, today2.ID); err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	if _, err := h.svc.Accept(ctx, later.ID); err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	if _, err := h.svc.Reject(ctx, cancelled.ID); err != nil {
		t.Fatalf("Reject error: %v", err)
	}
	if _, err := h.svc.Reschedule(ctx, domain.ActorOperator, RescheduleInput{AppointmentID: today1.ID, Date: "2024-06-05", Time: "13:00"}); err != nil {
		t.Fatalf("Reschedule error: %v", err)
	}

	tests := []struct {
		view View
		want []uuid.UUID
	}{
		{ViewPending, []uuid.UUID{today1.ID}},
		{ViewToday, []uuid.UUID{today1.ID, today2.ID}},
		{ViewUpcoming, []uuid.UUID{later.ID, today2.ID}},
		{ViewAll, []uuid.UUID{later.ID, today1.ID, cancelled.ID, today2.ID}},
	}
	for _, tt := range tests {
		t.Run(string(tt.view), func(t *testing.T) {
			got, err := h.svc.OperatorAppointments(ctx, tt.view)
			if err != nil {
				t.Fatalf("OperatorAppointments error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Fatalf("[%d] = %s %s, want %s", i, got[i].ClientName, got[i].Slot(), tt.want[i])
				}
			}
		})
	}

	next, ok, err := h.svc.NextAppointment(ctx)
	if err != nil || !ok {
		t.Fatalf("NextAppointment = %v, %v", ok, err)
	}
	if next.ID != today2.ID {
		t.Fatalf("next = %s, want Bruno", next.ClientName)
	}

	stats, err := h.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.Pending != 0 || stats.Today != 3 {
		t.Fatalf("stats = %+v, want pending 0 today 3", stats)
	}

	if _, err := h.svc.OperatorAppointments(ctx, View("archive")); err == nil {
		t.Fatalf("expected error for unknown view")
	}
}

func TestClientAppointments_NewestFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.clock.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	h.completedVisit(t, "Ana", "2024-05-01", "09:00")
	h.clock.Set(time.Date(2024, 6, 5, 8, 0, 0, 0, time.UTC))
	h.book(t, "Ana", "2024-06-10", "09:00")
	h.book(t, "Bruno", "2024-06-11", "09:00")

	got, err := h.svc.ClientAppointments(ctx, "ana")
	if err != nil {
		t.Fatalf("ClientAppointments error: %v", err)
	}
	if len(got) != 2 || got[0].Date.String() != "2024-06-10" || got[1].Date.String() != "2024-05-01" {
		t.Fatalf("history = %+v", got)
	}
}

type fakeRepo struct {
	inShopTransactionFn func(ctx context.Context, locks []store.LockKey, fn func(ctx context.Context, tx store.ShopTx) error) error
	shopConfigFn        func(ctx context.Context) (domain.ShopConfig, error)
	listAppointmentsFn  func(ctx context.Context) ([]domain.Appointment, error)
	getAppointmentFn    func(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
}

func (f *fakeRepo) InShopTransaction(ctx context.Context, locks []store.LockKey, fn func(ctx context.Context, tx store.ShopTx) error) error {
	if f.inShopTransactionFn == nil {
		panic("InShopTransaction not configured")
	}
	return f.inShopTransactionFn(ctx, locks, fn)
}

func (f *fakeRepo) ShopConfig(ctx context.Context) (domain.ShopConfig, error) {
	if f.shopConfigFn == nil {
		panic("ShopConfig not configured")
	}
	return f.shopConfigFn(ctx)
}

func (f *fakeRepo) ListAppointments(ctx context.Context) ([]domain.Appointment, error) {
	if f.listAppointmentsFn == nil {
		panic("ListAppointments not configured")
	}
	return f.listAppointmentsFn(ctx)
}

func (f *fakeRepo) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if f.getAppointmentFn == nil {
		panic("GetAppointment not configured")
	}
	return f.getAppointmentFn(ctx, id)
}

func TestStoreUnavailablePropagates(t *testing.T) {
	unavailable := errors.Join(store.ErrUnavailable, errors.New("connection refused"))
	svc := NewService(&fakeRepo{
		inShopTransactionFn: func(ctx context.Context, locks []store.LockKey, fn func(ctx context.Context, tx store.ShopTx) error) error {
			return unavailable
		},
		getAppointmentFn: func(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
			return domain.Appointment{ID: id, Status: domain.StatusPending}, nil
		},
	})

	if _, err := svc.CreateBooking(context.Background(), CreateBookingInput{ClientName: "Ana", Date: "2030-06-10", Time: "09:00"}); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("CreateBooking err = %v, want ErrUnavailable", err)
	}
	if _, err := svc.Accept(context.Background(), uuid.New()); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("Accept err = %v, want ErrUnavailable", err)
	}
}

func TestCreateBooking_LocksClientAndSlot(t *testing.T) {
	var got []store.LockKey
	svc := NewService(&fakeRepo{
		inShopTransactionFn: func(ctx context.Context, locks []store.LockKey, fn func(ctx context.Context, tx store.ShopTx) error) error {
			got = locks
			return store.ErrConflict
		},
	})

	_, err := svc.CreateBooking(context.Background(), CreateBookingInput{ClientName: "Ana  Maria", Date: "2030-06-10", Time: "09:00"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	want := []store.LockKey{"client:ana maria", "slot:2030-06-10T09:00"}
	if len(got) != len(want) {
		t.Fatalf("locks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("locks = %v, want %v", got, want)
		}
	}
}

type fakeCache struct {
	cfg    *domain.ShopConfig
	sets   int
	getErr error
}

func (c *fakeCache) Get(ctx context.Context) (domain.ShopConfig, bool, error) {
	if c.getErr != nil {
		return domain.ShopConfig{}, false, c.getErr
	}
	if c.cfg == nil {
		return domain.ShopConfig{}, false, nil
	}
	return *c.cfg, true, nil
}

func (c *fakeCache) Set(ctx context.Context, cfg domain.ShopConfig) error {
	c.cfg = &cfg
	c.sets++
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context) error {
	c.cfg = nil
	return nil
}

func TestConfigCache_UsedForDisplayOnly(t *testing.T) {
	cache := &fakeCache{}
	h := newHarness(t, WithConfigCache(cache))
	ctx := context.Background()

	if _, err := h.svc.AvailableSlots(ctx, "2024-06-10"); err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1 after miss", cache.sets)
	}

	// A stale cached "closed" only affects display.
	stale := *cache.cfg
	stale.IsOpen = false
	cache.cfg = &stale
	slots, err := h.svc.AvailableSlots(ctx, "2024-06-10")
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	if slots.ShopOpen {
		t.Fatalf("expected cached closed flag")
	}
	h.book(t, "Ana", "2024-06-10", "09:00")

	cfg, err := h.svc.ToggleShop(ctx)
	if err != nil {
		t.Fatalf("ToggleShop error: %v", err)
	}
	if cache.cfg == nil || cache.cfg.Version != cfg.Version {
		t.Fatalf("cache not refreshed after write: %+v", cache.cfg)
	}

	cache.getErr = errors.New("redis down")
	if _, err := h.svc.AvailableSlots(ctx, "2024-06-10"); err != nil {
		t.Fatalf("cache failure should fall back to the store: %v", err)
	}
}

func timesOf(ts []domain.LocalTime) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.String())
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
