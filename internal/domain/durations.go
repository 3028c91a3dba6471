package domain

import "time"

// Durations is the snapshot of derived interval metrics attached to an
// incident once, at resolution. All values are milliseconds.
type Durations struct {
	TotalDownMs    int64  `json:"totalDownMs"`
	TimeToAssignMs *int64 `json:"timeToAssignMs"`
	TimeToStartMs  *int64 `json:"timeToStartMs"`
	RepairMs       *int64 `json:"repairMs"`
	WaitingMs      int64  `json:"waitingMs"`
}

// AccrueWaiting flushes the current waiting interval into WaitingMs and
// clears the marker. Calling it while not waiting is a no-op, which makes
// it safe to call on every exit-from-waiting transition. Negative deltas
// (clock skew) are discarded; WaitingMs never decreases.
func AccrueWaiting(i *Incident, at time.Time) {
	if i.WaitingSince == nil {
		return
	}
	if delta := at.Sub(*i.WaitingSince); delta > 0 {
		i.WaitingMs += delta.Milliseconds()
	}
	i.WaitingSince = nil
}

// EnterWaiting marks the start of a waiting interval. Re-entering a
// waiting status without an intervening flush keeps the original marker,
// so hopping between WAITING_PARTS and LONG_REPAIR counts as one
// continuous interval.
func EnterWaiting(i *Incident, at time.Time) {
	if i.WaitingSince != nil {
		return
	}
	t := at
	i.WaitingSince = &t
}

// ComputeDurations derives the resolution-time metrics. It returns nil
// until both OpenedAt and ResolvedAt are set. Any pending waiting
// interval must have been flushed via AccrueWaiting beforehand.
func ComputeDurations(i *Incident) *Durations {
	if i.OpenedAt.IsZero() || i.ResolvedAt == nil {
		return nil
	}

	d := &Durations{
		TotalDownMs: i.ResolvedAt.Sub(i.OpenedAt).Milliseconds(),
		WaitingMs:   i.WaitingMs,
	}

	if i.AssignedAt != nil {
		ms := i.AssignedAt.Sub(i.OpenedAt).Milliseconds()
		d.TimeToAssignMs = &ms
	}
	if i.WorkStartedAt != nil {
		started := i.WorkStartedAt.Sub(i.OpenedAt).Milliseconds()
		d.TimeToStartMs = &started
		repair := i.ResolvedAt.Sub(*i.WorkStartedAt).Milliseconds()
		d.RepairMs = &repair
	}

	return d
}
