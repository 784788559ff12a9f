// Package date provides a day-granularity calendar date used for every
// YYYY-MM-DD field persisted by the store.
package date

import (
	"encoding/json"
	"fmt"
	"time"
)

const readFormat = "2006-1-2" // lenient read format, accepts 2025-7-1

// Format is the canonical persisted form.
const Format = "2006-01-02"

// Date is a calendar day with no time component.
type Date struct {
	y int
	m time.Month
	d int
}

// New returns a normalized Date, so New(2025, 1, 32) is 2025-02-01.
func New(year int, month time.Month, day int) Date {
	d := Date{year, month, day}
	d.y, d.m, d.d = d.time().Date()
	return d
}

// Of returns the calendar day of t in t's location.
func Of(t time.Time) Date { return New(t.Date()) }

// Today returns the current local date.
func Today() Date { return Of(time.Now()) }

func (d Date) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// Time returns midnight UTC of d.
func (d Date) Time() time.Time { return d.time() }

func (d Date) Year() int          { return d.y }
func (d Date) Month() time.Month  { return d.m }
func (d Date) Day() int           { return d.d }
func (d Date) IsZero() bool       { return d == Date{} }
func (d Date) Before(x Date) bool { return d.time().Before(x.time()) }
func (d Date) After(x Date) bool  { return d.time().After(x.time()) }

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date { return New(d.y, d.m, d.d+n) }

// AddMonths returns d shifted by n months. Day overflow rolls into the next
// month, so 2025-01-31 plus one month is 2025-03-03.
func (d Date) AddMonths(n int) Date { return New(d.y, d.m+time.Month(n), d.d) }

// AddYears returns d shifted by n years.
func (d Date) AddYears(n int) Date { return New(d.y+n, d.m, d.d) }

// String formats d as YYYY-MM-DD.
func (d Date) String() string { return d.time().Format(Format) }

// Display formats d the way schedules show due dates, e.g. "2 Jan 2006".
func (d Date) Display() string { return d.time().Format("2 Jan 2006") }

// Parse reads a date. Full ISO-8601 timestamps are accepted and truncated to
// their day.
func Parse(str string) (Date, error) {
	if on, err := time.Parse(readFormat, str); err == nil {
		return New(on.Date()), nil
	}
	if on, err := time.Parse(time.RFC3339Nano, str); err == nil {
		return New(on.Date()), nil
	}
	return Date{}, fmt.Errorf("invalid date %q want format %q", str, Format)
}

// MustParse is like Parse but panics on error.
func MustParse(str string) Date {
	d, err := Parse(str)
	if err != nil {
		panic(err.Error())
	}
	return d
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	p, err := Parse(str)
	if err != nil {
		return err
	}
	*d = p
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

var _ json.Marshaler = Date{}
var _ json.Unmarshaler = (*Date)(nil)
