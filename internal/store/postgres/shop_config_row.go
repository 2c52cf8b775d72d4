package postgres

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"barberbook/internal/domain"
)

type shopConfigRow struct {
	bun.BaseModel `bun:"table:shop_config"`

	ID              int               `bun:"id,pk"`
	IsOpen          bool              `bun:"is_open,notnull"`
	OpenTime        domain.LocalTime  `bun:"open_time,notnull,type:text"`
	CloseTime       domain.LocalTime  `bun:"close_time,notnull,type:text"`
	LunchStart      *domain.LocalTime `bun:"lunch_start,type:text"`
	LunchEnd        *domain.LocalTime `bun:"lunch_end,type:text"`
	IntervalMinutes int               `bun:"interval_minutes,notnull"`
	WorkDays        []int64           `bun:"work_days,array,notnull"`
	BlockedDates    []string          `bun:"blocked_dates,array,notnull"`
	ReleasedClients []string          `bun:"released_clients,array,notnull"`
	Version         int64             `bun:"version,notnull"`
	UpdatedAt       time.Time         `bun:"updated_at,notnull"`
}

func shopConfigRowFrom(cfg domain.ShopConfig) shopConfigRow {
	cfg = cfg.Normalize()
	row := shopConfigRow{
		ID:              shopConfigID,
		IsOpen:          cfg.IsOpen,
		OpenTime:        cfg.OpenTime,
		CloseTime:       cfg.CloseTime,
		LunchStart:      cfg.LunchStart,
		LunchEnd:        cfg.LunchEnd,
		IntervalMinutes: cfg.IntervalMinutes,
		WorkDays:        make([]int64, 0, len(cfg.WorkDays)),
		BlockedDates:    make([]string, 0, len(cfg.BlockedDates)),
		ReleasedClients: append([]string{}, cfg.ReleasedClients...),
		Version:         cfg.Version,
		UpdatedAt:       cfg.UpdatedAt,
	}
	for _, wd := range cfg.WorkDays {
		row.WorkDays = append(row.WorkDays, int64(wd))
	}
	for _, d := range cfg.BlockedDates {
		row.BlockedDates = append(row.BlockedDates, d.String())
	}
	return row
}

func (r shopConfigRow) toDomain() (domain.ShopConfig, error) {
	cfg := domain.ShopConfig{
		IsOpen:          r.IsOpen,
		OpenTime:        r.OpenTime,
		CloseTime:       r.CloseTime,
		LunchStart:      r.LunchStart,
		LunchEnd:        r.LunchEnd,
		IntervalMinutes: r.IntervalMinutes,
		ReleasedClients: append([]string(nil), r.ReleasedClients...),
		Version:         r.Version,
		UpdatedAt:       r.UpdatedAt,
	}
	for _, wd := range r.WorkDays {
		cfg.WorkDays = append(cfg.WorkDays, time.Weekday(wd))
	}
	for _, s := range r.BlockedDates {
		d, err := domain.ParseDate(s)
		if err != nil {
			return domain.ShopConfig{}, fmt.Errorf("shop_config.blocked_dates: %w", err)
		}
		cfg.BlockedDates = append(cfg.BlockedDates, d)
	}
	return cfg, nil
}
