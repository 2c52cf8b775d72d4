package domain

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Status string

const (
	StatusPending         Status = "pending"
	StatusAccepted        Status = "accepted"
	StatusCancelled       Status = "cancelled"
	StatusCompleted       Status = "completed"
	StatusWaitingApproval Status = "waiting_approval"
	StatusSuggestionSent  Status = "suggestion_sent"
	StatusRejected        Status = "rejected"
)

var AllStatuses = []Status{
	StatusPending,
	StatusAccepted,
	StatusCancelled,
	StatusCompleted,
	StatusWaitingApproval,
	StatusSuggestionSent,
	StatusRejected,
}

func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Active reports whether the status still expects a visit: the client
// holds at most one appointment in one of these.
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusWaitingApproval, StatusSuggestionSent:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// ClientKey is the join key for everything keyed by client. Names are
// self-declared, so the key only normalizes spacing and case.
type ClientKey string

func NewClientKey(name string) ClientKey {
	return ClientKey(strings.ToLower(strings.Join(strings.Fields(name), " ")))
}

func (k ClientKey) String() string { return string(k) }

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID                 uuid.UUID  `bun:"id,pk,type:uuid"`
	ClientName         string     `bun:"client_name,notnull"`
	Date               Date       `bun:"date,notnull,type:date"`
	Time               LocalTime  `bun:"time,notnull,type:text"`
	Status             Status     `bun:"status,notnull"`
	SuggestionTime     *LocalTime `bun:"suggestion_time,type:text"`
	NotificationTarget string     `bun:"notification_target,nullzero"`
	CreatedAt          time.Time  `bun:"created_at,notnull"`
	UpdatedAt          time.Time  `bun:"updated_at,notnull"`
}

func (a Appointment) Client() ClientKey {
	return NewClientKey(a.ClientName)
}

func (a Appointment) Slot() Slot {
	return Slot{Date: a.Date, Time: a.Time}
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// SortNewestFirst orders by date then time, latest slot first.
func SortNewestFirst(appts []Appointment) {
	sort.SliceStable(appts, func(i, j int) bool { return compareSlots(appts[i], appts[j]) > 0 })
}

// SortOldestFirst orders by date then time, earliest slot first.
func SortOldestFirst(appts []Appointment) {
	sort.SliceStable(appts, func(i, j int) bool { return compareSlots(appts[i], appts[j]) < 0 })
}

func compareSlots(a, b Appointment) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	return cmpInt(int(a.Time), int(b.Time))
}
