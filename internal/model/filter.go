package model

import (
	"fmt"
	"time"
)

// TimeUnit is the granularity of relative date arithmetic.
type TimeUnit int

const (
	Minute TimeUnit = iota
	Hour
	Day
)

func (u TimeUnit) String() string {
	switch u {
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	}
	return "unknown"
}

// Duration converts amount units to a time.Duration.
func (u TimeUnit) Duration(amount int) time.Duration {
	switch u {
	case Hour:
		return time.Duration(amount) * time.Hour
	case Day:
		return time.Duration(amount) * 24 * time.Hour
	default:
		return time.Duration(amount) * time.Minute
	}
}

// DateFilter is a relative "last N units" bucket selected in the dashboard.
type DateFilter string

const (
	Last5Minutes  DateFilter = "5m"
	Last15Minutes DateFilter = "15m"
	Last30Minutes DateFilter = "30m"
	Last1Hour     DateFilter = "1h"
	Last4Hours    DateFilter = "4h"
	Last12Hours   DateFilter = "12h"
	Last1Day      DateFilter = "1d"
	Last7Days     DateFilter = "7d"
	Last30Days    DateFilter = "30d"
)

type window struct {
	amount int
	unit   TimeUnit
}

var dateFilterWindows = map[DateFilter]window{
	Last5Minutes:  {5, Minute},
	Last15Minutes: {15, Minute},
	Last30Minutes: {30, Minute},
	Last1Hour:     {1, Hour},
	Last4Hours:    {4, Hour},
	Last12Hours:   {12, Hour},
	Last1Day:      {1, Day},
	Last7Days:     {7, Day},
	Last30Days:    {30, Day},
}

// Window returns how far back the bucket reaches.
func (f DateFilter) Window() (amount int, unit TimeUnit, err error) {
	w, ok := dateFilterWindows[f]
	if !ok {
		return 0, Minute, fmt.Errorf("%w: unknown date filter %q", ErrInvalidArgument, string(f))
	}
	return w.amount, w.unit, nil
}

// DateRange is an absolute window. A zero endpoint leaves that side open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether neither endpoint is set.
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// QueryFilter is built per read request. Zero value means no restriction.
// When both DateFilter and DateRange are set, DateFilter wins.
type QueryFilter struct {
	Query          string
	Level          string
	ExceptionsOnly bool
	DateFilter     DateFilter
	DateRange      DateRange
}
