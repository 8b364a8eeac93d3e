// Package schedule holds the pure date/time arithmetic the phase gating is
// built on: deriving a contest phase from a declared schedule and a clock
// reading, and formatting the remaining time for display.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"codearena/internal/domain/model"
)

// Resolution is the outcome of resolving a schedule against a point in time.
type Resolution struct {
	Phase     model.Phase
	Remaining time.Duration
}

// Resolve derives the contest phase for now. The ongoing window is closed at
// both ends: now == start and now == end both resolve to ongoing; the first
// instant after end is past. Remaining is time-to-start while upcoming,
// time-to-end while ongoing, zero once past.
func Resolve(s model.Schedule, loc *time.Location, now time.Time) (Resolution, error) {
	start, err := s.StartInstant(loc)
	if err != nil {
		return Resolution{}, err
	}
	end := start.Add(time.Duration(s.DurationHours) * time.Hour)
	if !start.Before(end) {
		return Resolution{}, fmt.Errorf("schedule: start %v is not before end %v", start, end)
	}

	switch {
	case now.Before(start):
		return Resolution{Phase: model.PhaseUpcoming, Remaining: start.Sub(now)}, nil
	case !now.After(end):
		return Resolution{Phase: model.PhaseOngoing, Remaining: end.Sub(now)}, nil
	default:
		return Resolution{Phase: model.PhasePast, Remaining: 0}, nil
	}
}

// FormatCountdown renders a remaining duration as e.g. "2d 4h 10m 3s".
// Leading zero-valued units are omitted, but once a unit is shown every
// smaller unit is shown too, and the trailing seconds unit always appears.
// Non-positive durations render as the empty string; a countdown never goes
// negative.
func FormatCountdown(remaining time.Duration) string {
	if remaining <= 0 {
		return ""
	}

	total := int64(remaining / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd ", days)
	}
	if hours > 0 || days > 0 {
		fmt.Fprintf(&b, "%dh ", hours)
	}
	if minutes > 0 || hours > 0 || days > 0 {
		fmt.Fprintf(&b, "%dm ", minutes)
	}
	fmt.Fprintf(&b, "%ds", seconds)
	return b.String()
}

// FormatClock renders a remaining duration as a fixed-width HH:MM:SS clock,
// used by the live session header. Days fold into hours.
func FormatClock(remaining time.Duration) string {
	if remaining <= 0 {
		return "00:00:00"
	}
	total := int64(remaining / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
