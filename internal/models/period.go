package models

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of a calendar date.
const DateLayout = "2006-01-02"

// PeriodLayout is the wire format of a period.
const PeriodLayout = "2006-01"

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidPeriod = errors.New("invalid period")
)

// Date is a naive calendar date. The time component is always midnight UTC
// so two dates compare equal exactly when year, month and day match.
type Date struct {
	time.Time
}

// NewDate returns the date for year, month, day. Out of range values are
// normalised the way time.Date does (e.g. Feb 30 becomes Mar 1 or Mar 2).
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock and location of t, keeping its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string. Impossible dates such as 2025-02-29
// are rejected rather than normalised.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// Period returns the calendar month containing d.
func (d Date) Period() Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

// Period is a calendar month, the aggregation window for summaries.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod validates year and month and returns the period.
func NewPeriod(year, month int) (Period, error) {
	p := Period{Year: year, Month: time.Month(month)}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// ParsePeriod parses a YYYY-MM string.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse(PeriodLayout, s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	p := PeriodOf(t)
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// PeriodOf returns the calendar month of t in t's own location.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Validate checks the month is 1-12 and the year is a four digit year.
func (p Period) Validate() error {
	if p.Month < time.January || p.Month > time.December {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, int(p.Month))
	}
	if p.Year < 1 || p.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, p.Year)
	}
	return nil
}

// First returns the first day of the period.
func (p Period) First() Date {
	return NewDate(p.Year, p.Month, 1)
}

// Last returns the last day of the period, leap years included.
func (p Period) Last() Date {
	// Day 0 of the next month is the last day of this one.
	return NewDate(p.Year, p.Month+1, 0)
}

// AddMonths returns the period n months away.
func (p Period) AddMonths(n int) Period {
	first := NewDate(p.Year, p.Month+time.Month(n), 1)
	return first.Period()
}

// Prev returns the previous calendar month.
func (p Period) Prev() Period {
	return p.AddMonths(-1)
}

// Next returns the following calendar month.
func (p Period) Next() Period {
	return p.AddMonths(1)
}

// String formats the period as YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
