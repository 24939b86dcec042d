package appointment

import "time"

// CanTransition reports whether a status may move from one value to another
// through a direct update. The implemented graph is permissive with a single
// hard rule enforced at this lowest layer: nothing leaves cancelled. The
// named operations add their own stricter preconditions on top.
func CanTransition(from, to Status) bool {
	if from == StatusCancelled {
		return to == StatusCancelled
	}
	return true
}

// IsOverdue reports whether the appointment is due to be swept to missed as
// of the given instant: still scheduled, with a start time strictly in the
// past. The comparison is on the absolute timeline, so the offsets the two
// timestamps carry do not matter.
func IsOverdue(a *Appointment, asOf time.Time) bool {
	return a.Status == StatusScheduled && a.ScheduledTime.Before(asOf)
}
