package domain

// CandidateSlots lists the slot start times the shop offers on date, in
// order. Blocked dates win over work days; a closed day yields nil.
func CandidateSlots(date Date, cfg ShopConfig) []LocalTime {
	if cfg.IsBlocked(date) || !cfg.IsWorkDay(date.Weekday()) {
		return nil
	}
	if cfg.IntervalMinutes <= 0 || cfg.OpenTime >= cfg.CloseTime {
		return nil
	}

	slots := make([]LocalTime, 0, (int(cfg.CloseTime-cfg.OpenTime)+cfg.IntervalMinutes-1)/cfg.IntervalMinutes)
	for t, ok := cfg.OpenTime, true; ok && t < cfg.CloseTime; t, ok = t.AddMinutes(cfg.IntervalMinutes) {
		if cfg.InLunch(t) {
			continue
		}
		slots = append(slots, t)
	}
	return slots
}

// IsCandidateSlot reports whether t is one of the slots offered on date.
func IsCandidateSlot(date Date, t LocalTime, cfg ShopConfig) bool {
	for _, s := range CandidateSlots(date, cfg) {
		if s == t {
			return true
		}
	}
	return false
}
