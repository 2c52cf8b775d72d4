package domain

import (
	"time"
)

// CooldownDays is how long a client waits after a completed visit before
// booking again, unless released.
const CooldownDays = 10

const day = 24 * time.Hour

type CooldownStatus struct {
	Active        bool
	LastCompleted *Appointment
	ElapsedDays   int
	// EndsOn is the first date on which the client may book again. Booking
	// opens right after midnight of that date. Zero when the cooldown is not
	// active.
	EndsOn Date
}

// EvaluateCooldown inspects a client's history against the release list.
// Elapsed days are the absolute difference between now and the last
// completed appointment's date at midnight, rounded up to whole days.
func EvaluateCooldown(client ClientKey, appts []Appointment, released []string, now time.Time, loc *time.Location) CooldownStatus {
	for _, name := range released {
		if NewClientKey(name) == client {
			return CooldownStatus{}
		}
	}

	var last *Appointment
	for i := range appts {
		a := appts[i]
		if a.Status != StatusCompleted || a.Client() != client {
			continue
		}
		if last == nil || a.Date.After(last.Date) {
			last = &a
		}
	}
	if last == nil {
		return CooldownStatus{}
	}

	elapsed := ElapsedDays(now, last.Date, loc)
	st := CooldownStatus{LastCompleted: last, ElapsedDays: elapsed}
	if elapsed < CooldownDays {
		st.Active = true
		st.EndsOn = last.Date.AddDays(CooldownDays - 1)
	}
	return st
}

// CanBook is EvaluateCooldown reduced to its verdict.
func CanBook(client ClientKey, appts []Appointment, released []string, now time.Time, loc *time.Location) bool {
	return !EvaluateCooldown(client, appts, released, now, loc).Active
}

// ElapsedDays counts in civil days: whole calendar days between the dates
// plus the wall-clock time of day in loc, so DST shifts never move the
// result.
func ElapsedDays(now time.Time, d Date, loc *time.Location) int {
	local := now.In(loc)
	h, m, sec := local.Clock()
	sinceMidnight := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second + time.Duration(local.Nanosecond())

	diff := DateOf(local).Midnight(time.UTC).Sub(d.Midnight(time.UTC)) + sinceMidnight
	if diff < 0 {
		diff = -diff
	}
	days := int(diff / day)
	if diff%day != 0 {
		days++
	}
	return days
}
