package moderation

import "time"

// TimeoutDetector reclassifies a new timeout as an adjustment when the
// target is already timed out.
type TimeoutDetector struct {
	now func() time.Time
}

func NewTimeoutDetector(now func() time.Time) *TimeoutDetector {
	if now == nil {
		now = time.Now
	}
	return &TimeoutDetector{now: now}
}

// Resolve returns the action type the pipeline should execute.
func (d *TimeoutDetector) Resolve(action Action, target Target) ActionType {
	if action.Type() != ActionTimeout {
		return action.Type()
	}
	if target.Member.TimedOut(d.now()) {
		return ActionTimeoutAdjust
	}
	return ActionTimeout
}
