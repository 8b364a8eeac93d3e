package model

import (
	"fmt"
	"time"
)

// Phase is the derived contest lifecycle state. It is never stored;
// it is recomputed from the schedule and the current time.
type Phase string

const (
	PhaseUpcoming Phase = "upcoming"
	PhaseOngoing  Phase = "ongoing"
	PhasePast     Phase = "past"
)

// Schedule declares when a contest runs. Immutable once the contest is
// published. StartDate is a calendar date (YYYY-MM-DD), StartTime a local
// wall-clock time (HH:MM), DurationHours a positive integer.
type Schedule struct {
	StartDate     string `json:"start_date"`
	StartTime     string `json:"start_time"`
	DurationHours int    `json:"duration_hours"`
}

// StartInstant combines StartDate and StartTime in the given location.
func (s Schedule) StartInstant(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", s.StartDate+" "+s.StartTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: invalid start %q %q: %w", s.StartDate, s.StartTime, err)
	}
	return t, nil
}

// EndInstant is StartInstant plus the declared duration.
func (s Schedule) EndInstant(loc *time.Location) (time.Time, error) {
	start, err := s.StartInstant(loc)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(time.Duration(s.DurationHours) * time.Hour), nil
}

type Contest struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Schedule    Schedule     `json:"schedule"`
	Difficulty  Difficulty   `json:"difficulty"`
	Rules       []string     `json:"rules,omitempty"`
	Problems    []ProblemRef `json:"problems,omitempty"`
	IsDraft     bool         `json:"is_draft"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ContestDetails is a contest joined with its registration list, as served
// to a viewer. Registered is derived for the requesting participant.
type ContestDetails struct {
	Contest
	ParticipantEmails []string `json:"participant_emails"`
	Registered        bool     `json:"registered"`
}

// Registration records that a participant entered the contest's roster.
// Existence implies "registered"; there is no separate state field.
type Registration struct {
	ContestID    string    `json:"contest_id"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}
