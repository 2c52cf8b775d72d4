package domain

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	minutesPerDay  = 24 * 60
	minutesPerHour = 60
)

var (
	errInvalidDate = errors.New("invalid date, want YYYY-MM-DD")
	errInvalidTime = errors.New("invalid time, want HH:MM")
)

// Date is a calendar date with no time-of-day and no zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	if len(s) != len(dateLayout) {
		return Date{}, errInvalidDate
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, errInvalidDate
	}
	return DateOf(t), nil
}

func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Midnight returns the start of the date in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) Weekday() time.Weekday {
	return d.Midnight(time.UTC).Weekday()
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Midnight(time.UTC).AddDate(0, 0, n))
}

func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// LocalTime is a minute-granular wall-clock time, stored as minutes since
// midnight in [0, 1440).
type LocalTime int

func NewLocalTime(hour, minute int) (LocalTime, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, errInvalidTime
	}
	return LocalTime(hour*minutesPerHour + minute), nil
}

func MustLocalTime(hour, minute int) LocalTime {
	t, err := NewLocalTime(hour, minute)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseLocalTime accepts exactly HH:MM with zero-padded fields.
func ParseLocalTime(s string) (LocalTime, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, errInvalidTime
	}
	h, ok1 := twoDigits(s[0:2])
	m, ok2 := twoDigits(s[3:5])
	if !ok1 || !ok2 {
		return 0, errInvalidTime
	}
	return NewLocalTime(h, m)
}

func MustParseLocalTime(s string) LocalTime {
	t, err := ParseLocalTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t LocalTime) Hour() int   { return int(t) / minutesPerHour }
func (t LocalTime) Minute() int { return int(t) % minutesPerHour }

func (t LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// AddMinutes steps forward; the second result is false once the result
// leaves the day.
func (t LocalTime) AddMinutes(n int) (LocalTime, bool) {
	next := int(t) + n
	if next < 0 || next >= minutesPerDay {
		return 0, false
	}
	return LocalTime(next), true
}

// On combines the time with a date in loc.
func (t LocalTime) On(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour(), t.Minute(), 0, 0, loc)
}

func (t LocalTime) Value() (driver.Value, error) {
	return t.String(), nil
}

func (t *LocalTime) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseLocalTime(trimSeconds(v))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case []byte:
		return t.Scan(string(v))
	case time.Time:
		*t = LocalTime(v.Hour()*minutesPerHour + v.Minute())
		return nil
	default:
		return fmt.Errorf("cannot scan %T into LocalTime", src)
	}
}

// Slot is a (date, time) pair.
type Slot struct {
	Date Date
	Time LocalTime
}

func (s Slot) String() string {
	return s.Date.String() + "T" + s.Time.String()
}

func (s Slot) Start(loc *time.Location) time.Time {
	return s.Time.On(s.Date, loc)
}

func twoDigits(s string) (int, bool) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

// trimSeconds lets postgres "time" columns (HH:MM:SS) scan as well.
func trimSeconds(s string) string {
	if len(s) == 8 && s[5] == ':' && s[6:] == "00" {
		return s[:5]
	}
	return s
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
