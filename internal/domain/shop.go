package domain

import (
	"errors"
	"sort"
	"time"
)

// ShopConfig is the singleton set of shop-wide rules. Decision functions
// take it as an argument; nothing reads it from package state.
type ShopConfig struct {
	IsOpen          bool
	OpenTime        LocalTime
	CloseTime       LocalTime
	LunchStart      *LocalTime
	LunchEnd        *LocalTime
	IntervalMinutes int
	WorkDays        []time.Weekday
	BlockedDates    []Date
	ReleasedClients []string
	Version         int64
	UpdatedAt       time.Time
}

func DefaultShopConfig() ShopConfig {
	return ShopConfig{
		IsOpen:          true,
		OpenTime:        MustLocalTime(9, 0),
		CloseTime:       MustLocalTime(20, 0),
		IntervalMinutes: 40,
		WorkDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday,
		},
	}
}

func (c ShopConfig) Validate() error {
	if c.OpenTime >= c.CloseTime {
		return errors.New("open_time must be before close_time")
	}
	if c.IntervalMinutes <= 0 {
		return errors.New("interval_minutes must be positive")
	}
	if (c.LunchStart == nil) != (c.LunchEnd == nil) {
		return errors.New("lunch_start and lunch_end must be set together")
	}
	if c.LunchStart != nil {
		ls, le := *c.LunchStart, *c.LunchEnd
		if ls < c.OpenTime || le > c.CloseTime || ls >= le {
			return errors.New("lunch window must lie inside opening hours with lunch_start before lunch_end")
		}
	}
	for _, wd := range c.WorkDays {
		if wd < time.Sunday || wd > time.Saturday {
			return errors.New("work_days must be between 0 (Sunday) and 6 (Saturday)")
		}
	}
	return nil
}

func (c ShopConfig) IsWorkDay(wd time.Weekday) bool {
	for _, d := range c.WorkDays {
		if d == wd {
			return true
		}
	}
	return false
}

func (c ShopConfig) IsBlocked(d Date) bool {
	for _, b := range c.BlockedDates {
		if b == d {
			return true
		}
	}
	return false
}

func (c ShopConfig) InLunch(t LocalTime) bool {
	if c.LunchStart == nil || c.LunchEnd == nil {
		return false
	}
	return t >= *c.LunchStart && t < *c.LunchEnd
}

func (c ShopConfig) IsReleased(client ClientKey) bool {
	for _, name := range c.ReleasedClients {
		if NewClientKey(name) == client {
			return true
		}
	}
	return false
}

// WithReleased returns a copy with name added to the release list. The
// second result is false when the client was already released.
func (c ShopConfig) WithReleased(name string) (ShopConfig, bool) {
	if c.IsReleased(NewClientKey(name)) {
		return c, false
	}
	out := c.clone()
	out.ReleasedClients = append(out.ReleasedClients, name)
	return out, true
}

// WithoutReleased returns a copy with every entry matching name removed.
func (c ShopConfig) WithoutReleased(name string) (ShopConfig, bool) {
	key := NewClientKey(name)
	out := c.clone()
	out.ReleasedClients = out.ReleasedClients[:0]
	for _, n := range c.ReleasedClients {
		if NewClientKey(n) != key {
			out.ReleasedClients = append(out.ReleasedClients, n)
		}
	}
	return out, len(out.ReleasedClients) != len(c.ReleasedClients)
}

// Normalize sorts and deduplicates the set-valued fields.
func (c ShopConfig) Normalize() ShopConfig {
	out := c.clone()

	seenDay := make(map[time.Weekday]struct{}, len(out.WorkDays))
	days := out.WorkDays[:0]
	for _, wd := range out.WorkDays {
		if _, ok := seenDay[wd]; ok {
			continue
		}
		seenDay[wd] = struct{}{}
		days = append(days, wd)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	out.WorkDays = days

	seenDate := make(map[Date]struct{}, len(out.BlockedDates))
	dates := out.BlockedDates[:0]
	for _, d := range out.BlockedDates {
		if _, ok := seenDate[d]; ok {
			continue
		}
		seenDate[d] = struct{}{}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	out.BlockedDates = dates

	return out
}

func (c ShopConfig) clone() ShopConfig {
	out := c
	out.WorkDays = append([]time.Weekday(nil), c.WorkDays...)
	out.BlockedDates = append([]Date(nil), c.BlockedDates...)
	out.ReleasedClients = append([]string(nil), c.ReleasedClients...)
	if c.LunchStart != nil {
		ls := *c.LunchStart
		out.LunchStart = &ls
	}
	if c.LunchEnd != nil {
		le := *c.LunchEnd
		out.LunchEnd = &le
	}
	return out
}
