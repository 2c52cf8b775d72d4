package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"barberbook/internal/domain"
	"barberbook/internal/store"
)

// Store keeps everything in process. Transactions run one at a time and
// work on a private copy that replaces the shared state only on success.
type Store struct {
	txMu sync.Mutex

	mu    sync.RWMutex
	state state

	now func() time.Time
}

type state struct {
	cfg   domain.ShopConfig
	appts map[uuid.UUID]domain.Appointment
	order []uuid.UUID
}

func New(cfg domain.ShopConfig) *Store {
	return &Store{
		state: state{
			cfg:   cfg,
			appts: make(map[uuid.UUID]domain.Appointment),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func NewDefault() *Store {
	return New(domain.DefaultShopConfig())
}

func (s *Store) InShopTransaction(ctx context.Context, locks []store.LockKey, fn func(ctx context.Context, tx store.ShopTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	staged := s.state.clone()
	s.mu.RUnlock()

	tx := &shopTx{state: staged, now: s.now}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = tx.state
	s.mu.Unlock()
	return nil
}

func (s *Store) ShopConfig(ctx context.Context) (domain.ShopConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone().cfg, nil
}

func (s *Store) ListAppointments(ctx context.Context) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.list(), nil
}

func (s *Store) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.get(id)
}

type shopTx struct {
	state state
	now   func() time.Time
}

func (t *shopTx) GetShopConfig(ctx context.Context) (domain.ShopConfig, error) {
	return t.state.clone().cfg, nil
}

func (t *shopTx) SaveShopConfig(ctx context.Context, cfg domain.ShopConfig) (domain.ShopConfig, error) {
	if cfg.Version != t.state.cfg.Version {
		return domain.ShopConfig{}, store.ErrConflict
	}
	cfg.Version++
	cfg.UpdatedAt = t.now()
	t.state.cfg = cfg
	return t.state.clone().cfg, nil
}

func (t *shopTx) ListAppointments(ctx context.Context) ([]domain.Appointment, error) {
	return t.state.list(), nil
}

func (t *shopTx) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return t.state.get(id)
}

func (t *shopTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if appt.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Appointment{}, err
		}
		appt.ID = id
	}
	if _, ok := t.state.appts[appt.ID]; ok {
		return domain.Appointment{}, store.ErrConflict
	}
	now := t.now()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now
	t.state.appts[appt.ID] = appt
	t.state.order = append(t.state.order, appt.ID)
	return appt, nil
}

func (t *shopTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	existing, ok := t.state.appts[appt.ID]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	appt.CreatedAt = existing.CreatedAt
	appt.UpdatedAt = t.now()
	t.state.appts[appt.ID] = appt
	return appt, nil
}

func (s state) clone() state {
	out := state{
		cfg:   s.cfg,
		appts: make(map[uuid.UUID]domain.Appointment, len(s.appts)),
		order: append([]uuid.UUID(nil), s.order...),
	}
	out.cfg.WorkDays = append(out.cfg.WorkDays[:0:0], s.cfg.WorkDays...)
	out.cfg.BlockedDates = append(out.cfg.BlockedDates[:0:0], s.cfg.BlockedDates...)
	out.cfg.ReleasedClients = append(out.cfg.ReleasedClients[:0:0], s.cfg.ReleasedClients...)
	for id, a := range s.appts {
		out.appts[id] = copyAppointment(a)
	}
	return out
}

func (s state) list() []domain.Appointment {
	out := make([]domain.Appointment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copyAppointment(s.appts[id]))
	}
	return out
}

func (s state) get(id uuid.UUID) (domain.Appointment, error) {
	a, ok := s.appts[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return copyAppointment(a), nil
}

func copyAppointment(a domain.Appointment) domain.Appointment {
	if a.SuggestionTime != nil {
		st := *a.SuggestionTime
		a.SuggestionTime = &st
	}
	return a
}
