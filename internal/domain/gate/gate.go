// Package gate is the pure policy deciding what a participant may see and do
// for a given contest phase and registration state. It holds no state and is
// re-evaluated on every phase or registration change; content that a ticking
// clock revealed is hidden again if a later evaluation says so.
package gate

import (
	"time"

	"codearena/internal/domain/model"
)

// PrestartLockout is how long before the start instant registration and
// entry are both frozen.
const PrestartLockout = 5 * time.Minute

// Input is everything the decision table keys on.
type Input struct {
	Phase      model.Phase
	Registered bool
	// Remaining is time-to-start while upcoming, time-to-end while ongoing.
	Remaining time.Duration
	// HasRecord is true when the participant already has a submission or
	// violation record for the contest, which reveals problems early.
	HasRecord bool
}

// Decision is the full set of allowances for one evaluation.
type Decision struct {
	CanRegister        bool
	CanEnter           bool
	ShowRegistered     bool
	ShowResults        bool
	ProblemsVisible    bool
	LeaderboardVisible bool
	// Notice is the user-visible reason an enter attempt would be refused,
	// empty when entry is allowed or not applicable.
	Notice string
}

const noticeRegistrationRequired = "You must register for this contest before you can enter it."

// Evaluate applies the decision table.
func Evaluate(in Input) Decision {
	var d Decision

	switch in.Phase {
	case model.PhaseUpcoming:
		inLockout := in.Remaining <= PrestartLockout
		d.CanRegister = !in.Registered && !inLockout
		d.ShowRegistered = in.Registered
		// Entry stays disabled for everyone until the contest starts,
		// including registered participants inside the lockout window.
		d.CanEnter = false
	case model.PhaseOngoing:
		d.CanEnter = in.Registered
		d.ShowRegistered = in.Registered
		if !in.Registered {
			d.Notice = noticeRegistrationRequired
		}
	case model.PhasePast:
		d.ShowResults = true
	}

	d.ProblemsVisible = in.Phase == model.PhaseOngoing || in.Phase == model.PhasePast || in.HasRecord
	d.LeaderboardVisible = in.Phase == model.PhasePast
	return d
}

// CanEnterSession is the single check the session controller delegates to
// before admitting a participant.
func CanEnterSession(phase model.Phase, registered bool) bool {
	return Evaluate(Input{Phase: phase, Registered: registered}).CanEnter
}
