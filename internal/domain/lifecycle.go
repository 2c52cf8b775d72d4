package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTransition = errors.New("invalid transition")

type Actor string

const (
	ActorClient   Actor = "client"
	ActorOperator Actor = "operator"
)

type Event string

const (
	EventAccept            Event = "accept"
	EventSuggest           Event = "suggest"
	EventReject            Event = "reject"
	EventAcceptSuggestion  Event = "accept_suggestion"
	EventDeclineSuggestion Event = "decline_suggestion"
	EventProposeSlot       Event = "propose_slot"
	EventCancel            Event = "cancel"
	EventReschedule        Event = "reschedule"
	EventComplete          Event = "complete"
)

var AllEvents = []Event{
	EventAccept,
	EventSuggest,
	EventReject,
	EventAcceptSuggestion,
	EventDeclineSuggestion,
	EventProposeSlot,
	EventCancel,
	EventReschedule,
	EventComplete,
}

// NotificationKind is the content key of a status-change notification.
type NotificationKind string

const (
	NotifyNone       NotificationKind = ""
	NotifyAccepted   NotificationKind = "accepted"
	NotifySuggestion NotificationKind = "suggestion"
	NotifyRejected   NotificationKind = "rejected"
)

type transition struct {
	from   []Status
	actors []Actor
	to     Status
	notify NotificationKind
}

// transitions is the only place that knows which status may follow which.
var transitions = map[Event]transition{
	EventAccept: {
		from:   []Status{StatusPending},
		actors: []Actor{ActorOperator},
		to:     StatusAccepted,
		notify: NotifyAccepted,
	},
	EventSuggest: {
		from:   []Status{StatusPending},
		actors: []Actor{ActorOperator},
		to:     StatusSuggestionSent,
		notify: NotifySuggestion,
	},
	EventReject: {
		from:   []Status{StatusPending, StatusWaitingApproval},
		actors: []Actor{ActorOperator},
		to:     StatusCancelled,
		notify: NotifyRejected,
	},
	EventAcceptSuggestion: {
		from:   []Status{StatusSuggestionSent},
		actors: []Actor{ActorClient},
		to:     StatusAccepted,
		notify: NotifyAccepted,
	},
	EventDeclineSuggestion: {
		from:   []Status{StatusSuggestionSent},
		actors: []Actor{ActorClient},
		to:     StatusWaitingApproval,
	},
	EventProposeSlot: {
		from:   []Status{StatusSuggestionSent},
		actors: []Actor{ActorClient},
		to:     StatusWaitingApproval,
	},
	EventCancel: {
		from:   []Status{StatusPending, StatusAccepted},
		actors: []Actor{ActorClient},
		to:     StatusCancelled,
	},
	EventReschedule: {
		from:   []Status{StatusPending, StatusAccepted, StatusCompleted},
		actors: []Actor{ActorClient, ActorOperator},
		to:     StatusWaitingApproval,
	},
	EventComplete: {
		from:   []Status{StatusAccepted},
		actors: []Actor{ActorOperator},
		to:     StatusCompleted,
	},
}

// CanTransition reports whether actor may fire ev while an appointment is
// in status from. Guards that depend on arguments or the clock are checked
// by Transition.
func CanTransition(ev Event, actor Actor, from Status) bool {
	tr, ok := transitions[ev]
	if !ok {
		return false
	}
	return containsStatus(tr.from, from) && containsActor(tr.actors, actor)
}

// TransitionInput carries the arguments some events need.
type TransitionInput struct {
	// Slot is the new slot for reschedule and propose_slot.
	Slot Slot
	// SuggestionTime is the operator's alternate time for suggest.
	SuggestionTime LocalTime
	// Now and Location are used by the complete guard.
	Now      time.Time
	Location *time.Location
}

// Intent says that a notification should be sent and with which content.
type Intent struct {
	Kind          NotificationKind
	AppointmentID string
	Target        string
	Status        Status
	Slot          Slot
	Suggestion    *LocalTime
}

func (i Intent) Empty() bool {
	return i.Kind == NotifyNone || i.Target == ""
}

// Transition applies ev to a and returns the updated copy together with the
// notification intent it emits. The input appointment is never modified.
func Transition(a Appointment, ev Event, actor Actor, in TransitionInput) (Appointment, Intent, error) {
	tr, ok := transitions[ev]
	if !ok {
		return Appointment{}, Intent{}, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev)
	}
	if !containsActor(tr.actors, actor) {
		return Appointment{}, Intent{}, fmt.Errorf("%w: %s cannot %s", ErrInvalidTransition, actor, ev)
	}
	if !containsStatus(tr.from, a.Status) {
		return Appointment{}, Intent{}, fmt.Errorf("%w: cannot %s an appointment that is %s", ErrInvalidTransition, ev, a.Status)
	}

	out := a
	switch ev {
	case EventSuggest:
		st := in.SuggestionTime
		out.SuggestionTime = &st
	case EventAcceptSuggestion:
		if a.SuggestionTime == nil {
			return Appointment{}, Intent{}, fmt.Errorf("%w: no suggested time to accept", ErrInvalidTransition)
		}
		out.Time = *a.SuggestionTime
		out.SuggestionTime = nil
	case EventProposeSlot, EventReschedule:
		if in.Slot.Date.IsZero() {
			return Appointment{}, Intent{}, fmt.Errorf("%w: %s requires a new slot", ErrInvalidTransition, ev)
		}
		out.Date = in.Slot.Date
		out.Time = in.Slot.Time
		out.SuggestionTime = nil
	case EventComplete:
		loc := in.Location
		if loc == nil {
			loc = time.Local
		}
		if a.Slot().Start(loc).After(in.Now) {
			return Appointment{}, Intent{}, fmt.Errorf("%w: appointment at %s has not started yet", ErrInvalidTransition, a.Slot())
		}
		out.SuggestionTime = nil
	default:
		out.SuggestionTime = nil
	}
	out.Status = tr.to

	intent := Intent{
		Kind:          tr.notify,
		AppointmentID: out.ID.String(),
		Target:        out.NotificationTarget,
		Status:        out.Status,
		Slot:          out.Slot(),
		Suggestion:    out.SuggestionTime,
	}
	return out, intent, nil
}

// ClaimedSlot returns the slot ev would move a into, if any. Every slot it
// returns must pass the availability check before the transition commits.
func ClaimedSlot(a Appointment, ev Event, in TransitionInput) (Slot, bool) {
	switch ev {
	case EventSuggest:
		return Slot{Date: a.Date, Time: in.SuggestionTime}, true
	case EventAcceptSuggestion:
		if a.SuggestionTime == nil {
			return Slot{}, false
		}
		return Slot{Date: a.Date, Time: *a.SuggestionTime}, true
	case EventProposeSlot, EventReschedule:
		return in.Slot, true
	}
	return Slot{}, false
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsActor(list []Actor, a Actor) bool {
	for _, v := range list {
		if v == a {
			return true
		}
	}
	return false
}
