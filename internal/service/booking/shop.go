package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/store"
)

// ShopConfigPatch changes selected fields of the shop configuration. Nil
// fields are left as they are.
type ShopConfigPatch struct {
	IsOpen          *bool
	OpenTime        *string
	CloseTime       *string
	IntervalMinutes *int
	LunchStart      *string
	LunchEnd        *string
	// ClearLunch removes the lunch break. It wins over LunchStart/LunchEnd.
	ClearLunch   bool
	WorkDays     *[]int
	BlockedDates *[]string
}

func (s *Service) GetShopConfig(ctx context.Context) (domain.ShopConfig, error) {
	return s.repo.ShopConfig(ctx)
}

// ToggleShop flips the open switch. It only gates new client bookings.
func (s *Service) ToggleShop(ctx context.Context) (domain.ShopConfig, error) {
	return s.mutateConfig(ctx, func(cfg domain.ShopConfig) (domain.ShopConfig, bool, error) {
		cfg.IsOpen = !cfg.IsOpen
		return cfg, true, nil
	})
}

// ReleaseClient exempts a client from the cooldown until UnreleaseClient
// is called. Releasing an already released client changes nothing.
func (s *Service) ReleaseClient(ctx context.Context, name string) (domain.ShopConfig, error) {
	display, _, err := parseClientName(name)
	if err != nil {
		return domain.ShopConfig{}, err
	}
	return s.mutateConfig(ctx, func(cfg domain.ShopConfig) (domain.ShopConfig, bool, error) {
		next, added := cfg.WithReleased(display)
		return next, added, nil
	})
}

func (s *Service) UnreleaseClient(ctx context.Context, name string) (domain.ShopConfig, error) {
	display, _, err := parseClientName(name)
	if err != nil {
		return domain.ShopConfig{}, err
	}
	return s.mutateConfig(ctx, func(cfg domain.ShopConfig) (domain.ShopConfig, bool, error) {
		next, removed := cfg.WithoutReleased(display)
		return next, removed, nil
	})
}

func (s *Service) UpdateShopConfig(ctx context.Context, patch ShopConfigPatch) (domain.ShopConfig, error) {
	return s.mutateConfig(ctx, func(cfg domain.ShopConfig) (domain.ShopConfig, bool, error) {
		next, err := applyPatch(cfg, patch)
		if err != nil {
			return domain.ShopConfig{}, false, err
		}
		return next, true, nil
	})
}

func applyPatch(cfg domain.ShopConfig, p ShopConfigPatch) (domain.ShopConfig, error) {
	parseTime := func(field, v string) (domain.LocalTime, error) {
		t, err := domain.ParseLocalTime(strings.TrimSpace(v))
		if err != nil {
			return 0, validationError(field + " must be HH:MM")
		}
		return t, nil
	}

	if p.IsOpen != nil {
		cfg.IsOpen = *p.IsOpen
	}
	if p.OpenTime != nil {
		t, err := parseTime("open_time", *p.OpenTime)
		if err != nil {
			return cfg, err
		}
		cfg.OpenTime = t
	}
	if p.CloseTime != nil {
		t, err := parseTime("close_time", *p.CloseTime)
		if err != nil {
			return cfg, err
		}
		cfg.CloseTime = t
	}
	if p.IntervalMinutes != nil {
		cfg.IntervalMinutes = *p.IntervalMinutes
	}
	if p.LunchStart != nil {
		t, err := parseTime("lunch_start", *p.LunchStart)
		if err != nil {
			return cfg, err
		}
		cfg.LunchStart = &t
	}
	if p.LunchEnd != nil {
		t, err := parseTime("lunch_end", *p.LunchEnd)
		if err != nil {
			return cfg, err
		}
		cfg.LunchEnd = &t
	}
	if p.ClearLunch {
		cfg.LunchStart, cfg.LunchEnd = nil, nil
	}
	if p.WorkDays != nil {
		days := make([]time.Weekday, 0, len(*p.WorkDays))
		for _, d := range *p.WorkDays {
			if d < 0 || d > 6 {
				return cfg, validationError("work_days must be between 0 (Sunday) and 6 (Saturday)")
			}
			days = append(days, time.Weekday(d))
		}
		cfg.WorkDays = days
	}
	if p.BlockedDates != nil {
		dates := make([]domain.Date, 0, len(*p.BlockedDates))
		for _, v := range *p.BlockedDates {
			d, err := domain.ParseDate(strings.TrimSpace(v))
			if err != nil {
				return cfg, validationError("blocked_dates must be YYYY-MM-DD")
			}
			dates = append(dates, d)
		}
		cfg.BlockedDates = dates
	}
	return cfg, nil
}

// mutateConfig reads, changes and writes the configuration under the shop
// lock. fn reports whether anything changed; unchanged configs are not
// written.
func (s *Service) mutateConfig(ctx context.Context, fn func(cfg domain.ShopConfig) (domain.ShopConfig, bool, error)) (domain.ShopConfig, error) {
	var out domain.ShopConfig
	err := s.repo.InShopTransaction(ctx, []store.LockKey{store.ShopLock}, func(ctx context.Context, tx store.ShopTx) error {
		cur, err := tx.GetShopConfig(ctx)
		if err != nil {
			return err
		}
		next, changed, err := fn(cur)
		if err != nil {
			return err
		}
		if !changed {
			out = cur
			return nil
		}
		next = next.Normalize()
		if err := next.Validate(); err != nil {
			return validationError(err.Error())
		}
		saved, err := tx.SaveShopConfig(ctx, next)
		if err != nil {
			return err
		}
		out = saved
		return nil
	})
	if err != nil {
		return domain.ShopConfig{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, out); err != nil {
			s.log.Warn("shop config cache update failed", slog.Any("err", err))
			if err := s.cache.Invalidate(ctx); err != nil {
				s.log.Warn("shop config cache invalidate failed", slog.Any("err", err))
			}
		}
	}
	return out, nil
}

// displayConfig returns a recent configuration for read-only views. Commits
// never use it.
func (s *Service) displayConfig(ctx context.Context) (domain.ShopConfig, error) {
	if s.cache != nil {
		cfg, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.log.Warn("shop config cache read failed", slog.Any("err", err))
		} else if ok {
			return cfg, nil
		}
	}

	cfg, err := s.repo.ShopConfig(ctx)
	if err != nil {
		return domain.ShopConfig{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("shop config cache fill failed", slog.Any("err", err))
		}
	}
	return cfg, nil
}
