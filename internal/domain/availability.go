package domain

import "github.com/google/uuid"

// HoldsSlot reports whether an appointment in status s keeps its slot
// taken. Completed visits keep their historical slot.
func (s Status) HoldsSlot() bool {
	return s.Active() || s == StatusCompleted
}

// IsOccupied reports whether some appointment other than excludeID holds
// (date, t). Pass uuid.Nil to exclude nothing.
func IsOccupied(date Date, t LocalTime, appts []Appointment, excludeID uuid.UUID) bool {
	for _, a := range appts {
		if excludeID != uuid.Nil && a.ID == excludeID {
			continue
		}
		if a.Date == date && a.Time == t && a.Status.HoldsSlot() {
			return true
		}
	}
	return false
}

// FreeSlots filters candidates down to the ones nobody holds on date.
func FreeSlots(date Date, candidates []LocalTime, appts []Appointment) []LocalTime {
	out := make([]LocalTime, 0, len(candidates))
	for _, t := range candidates {
		if !IsOccupied(date, t, appts, uuid.Nil) {
			out = append(out, t)
		}
	}
	return out
}
