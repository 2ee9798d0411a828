package logic

import "time"

// NewState returns the empty decision state.
func NewState() State {
	return State{LastDirection: DirectionNone}
}

// Reload discards the decision state. The config is accepted so callers
// can treat a reload as "start over under these settings"; the fresh state
// does not depend on it.
func Reload(Config) State {
	return NewState()
}

// Process classifies a single wheel tick and returns the decision along with
// the next state. Event times must be non-decreasing for a given state.
func Process(ev ScrollEvent, cfg Config, st State) (Decision, State) {
	d := Decision{Event: ev, Verdict: Pass, Direction: ev.Direction}

	if !cfg.Enabled {
		d.Direction = DirectionNone
		d.Status = Status{Code: StatusDisabled}
		return d, st
	}

	// First event or the window has lapsed: anchor a new burst.
	if !st.Committed() || ev.Time.Sub(st.LastEventTime) >= cfg.TimeThreshold {
		d.Status = Status{Code: StatusInitialDirection, Direction: ev.Direction}
		return d, anchor(ev)
	}

	if ev.Direction == st.LastDirection {
		st.LastEventTime = ev.Time
		st.OppositeRunCount = 0
		d.Status = Status{Code: StatusSameDirection}
		return d, st
	}

	st.OppositeRunCount++
	if st.OppositeRunCount >= cfg.DirectionChangeCount {
		d.Status = Status{Code: StatusDirectionChanged, Count: cfg.DirectionChangeCount}
		return d, anchor(ev)
	}

	// Jitter. The window is not extended by suppressed ticks.
	d.Verdict = Suppress
	d.Status = Status{
		Code:      StatusBlocked,
		Count:     st.OppositeRunCount,
		Threshold: cfg.DirectionChangeCount,
	}
	return d, st
}

func anchor(ev ScrollEvent) State {
	return State{
		LastDirection: ev.Direction,
		LastEventTime: ev.Time,
	}
}

// Record folds a decision into the snapshot. Every observed tick counts
// toward TotalEvents, so BlockedEvents never exceeds it.
func (s Snapshot) Record(d Decision) Snapshot {
	s.TotalEvents++
	if d.Verdict == Suppress {
		s.BlockedEvents++
	}
	s.CurrentDirection = d.Direction
	s.Status = d.Status
	return s
}

// Heartbeat decides when a periodic status event is due.
type Heartbeat struct {
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewHeartbeat creates a heartbeat clock. The startTime is used for uptime.
func NewHeartbeat(startTime time.Time) *Heartbeat {
	return &Heartbeat{startTime: startTime, lastHeartbeat: startTime}
}

// Check returns heartbeat data if the interval has elapsed since the last
// heartbeat (or startup). Returns nil if the interval has not elapsed, or if
// interval is <= 0 (disabled).
func (h *Heartbeat) Check(now time.Time, interval time.Duration, snap Snapshot) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(h.lastHeartbeat) < interval {
		return nil
	}
	h.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(h.startTime),
		Snapshot:  snap,
	}
}
