package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// Schedule yields the next fire time strictly after a given instant
type Schedule interface {
	Next(after time.Time) time.Time
	String() string
}

// Daily fires once a day at a wall clock time in its location
type Daily struct {
	Hour     int
	Minute   int
	Location *time.Location
}

func (d Daily) Next(after time.Time) time.Time {
	local := after.In(d.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, 0, 0, d.Location)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.Hour, d.Minute, 0, 0, d.Location)
	}
	return next
}

func (d Daily) String() string {
	return fmt.Sprintf("daily@%02d:%02d %s", d.Hour, d.Minute, d.Location)
}

// Every fires at a fixed interval from the previous run
type Every struct {
	Interval time.Duration
}

func (e Every) Next(after time.Time) time.Time {
	return after.Add(e.Interval)
}

func (e Every) String() string {
	return "every " + e.Interval.String()
}

// Parse reads "daily@HH:MM" or "every <duration>"
func Parse(expr string, loc *time.Location) (Schedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	expr = strings.TrimSpace(expr)

	switch {
	case strings.HasPrefix(expr, "daily@"):
		clock, err := time.Parse("15:04", strings.TrimPrefix(expr, "daily@"))
		if err != nil {
			return nil, fmt.Errorf("invalid daily schedule %q: %w", expr, err)
		}
		return Daily{Hour: clock.Hour(), Minute: clock.Minute(), Location: loc}, nil

	case strings.HasPrefix(expr, "every "):
		interval, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(expr, "every ")))
		if err != nil {
			return nil, fmt.Errorf("invalid interval schedule %q: %w", expr, err)
		}
		if interval < time.Second {
			return nil, fmt.Errorf("interval schedule %q must be at least 1s", expr)
		}
		return Every{Interval: interval}, nil
	}

	return nil, fmt.Errorf("unrecognised schedule %q: want daily@HH:MM or every <duration>", expr)
}
