package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"barberbook/internal/domain"
	"barberbook/internal/store"
)

const maxClientNameLen = 120

var noExclusion = uuid.Nil

// Notifier receives notification intents after the transition that emitted
// them has committed. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, intent domain.Intent)
}

// ConfigCache holds a recent ShopConfig for display reads.
type ConfigCache interface {
	Get(ctx context.Context) (domain.ShopConfig, bool, error)
	Set(ctx context.Context, cfg domain.ShopConfig) error
	Invalidate(ctx context.Context) error
}

type Service struct {
	repo     store.Repository
	notifier Notifier
	cache    ConfigCache
	now      func() time.Time
	loc      *time.Location
	log      *slog.Logger
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithConfigCache(c ConfigCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the shop's time zone, used for "today", "now" and
// cooldown arithmetic.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(repo store.Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		notifier: nopNotifier{},
		now:      time.Now,
		loc:      time.Local,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "booking"))
	return s
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.Intent) {}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) today() domain.Date {
	return domain.DateOf(s.clock())
}

func (s *Service) notify(ctx context.Context, intent domain.Intent) {
	if intent.Empty() {
		return
	}
	s.notifier.Notify(ctx, intent)
}

func parseSlot(date, tm string) (domain.Slot, error) {
	d, err := domain.ParseDate(strings.TrimSpace(date))
	if err != nil {
		return domain.Slot{}, validationError("date must be YYYY-MM-DD")
	}
	t, err := domain.ParseLocalTime(strings.TrimSpace(tm))
	if err != nil {
		return domain.Slot{}, validationError("time must be HH:MM")
	}
	return domain.Slot{Date: d, Time: t}, nil
}

func parseClientName(name string) (string, domain.ClientKey, error) {
	display := strings.TrimSpace(name)
	if display == "" {
		return "", "", validationError("client_name is required")
	}
	if len(display) > maxClientNameLen {
		return "", "", validationError("client_name too long")
	}
	return display, domain.NewClientKey(display), nil
}

// admitClientSlot checks that a client-chosen slot is one the calendar
// offers and that it has not started yet.
func (s *Service) admitClientSlot(cfg domain.ShopConfig, slot domain.Slot, now time.Time) error {
	if !domain.IsCandidateSlot(slot.Date, slot.Time, cfg) {
		return validationError("slot " + slot.String() + " is not offered by the shop")
	}
	if slot.Start(s.loc).Before(now) {
		return validationError("slot " + slot.String() + " is in the past")
	}
	return nil
}
