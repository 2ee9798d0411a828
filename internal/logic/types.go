// Package logic contains the pure scroll debounce decision engine.
// This package has NO external dependencies (no hooks, GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time values carried on events.
package logic

import (
	"fmt"
	"time"
)

// Direction is the direction of a wheel tick.
type Direction string

const (
	DirectionNone Direction = "NONE"
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// Verdict decides whether a tick is forwarded or swallowed.
type Verdict string

const (
	Pass     Verdict = "PASS"
	Suppress Verdict = "SUPPRESS"
)

// StatusCode classifies the most recently processed event.
type StatusCode string

const (
	StatusWaiting          StatusCode = "WAITING"
	StatusDisabled         StatusCode = "DISABLED"
	StatusInitialDirection StatusCode = "INITIAL_DIRECTION"
	StatusSameDirection    StatusCode = "SAME_DIRECTION"
	StatusDirectionChanged StatusCode = "DIRECTION_CHANGED"
	StatusBlocked          StatusCode = "BLOCKED"
)

// Defaults used when no settings are stored.
const (
	DefaultTimeThreshold        = 500 * time.Millisecond
	DefaultDirectionChangeCount = 3
)

// ScrollEvent is a single physical wheel tick.
type ScrollEvent struct {
	Direction Direction
	Time      time.Time
}

// Config holds the tunables. The engine reads it and never mutates it.
// TimeThreshold > 0 and DirectionChangeCount >= 1 are assumed; the settings
// store clamps values before they get here.
type Config struct {
	TimeThreshold        time.Duration
	DirectionChangeCount int
	Enabled              bool
}

// DefaultConfig returns the out-of-the-box tunables.
func DefaultConfig() Config {
	return Config{
		TimeThreshold:        DefaultTimeThreshold,
		DirectionChangeCount: DefaultDirectionChangeCount,
		Enabled:              true,
	}
}

// State is the engine's private decision state.
type State struct {
	// Direction of the committed burst; DirectionNone before the first event.
	LastDirection Direction
	// Time of the last event that was part of the committed burst
	LastEventTime time.Time
	// Consecutive opposite-direction events seen inside the window
	OppositeRunCount int
}

// Committed reports whether a burst direction has been established.
func (s State) Committed() bool {
	return s.LastDirection == DirectionUp || s.LastDirection == DirectionDown
}

// Status describes how the most recent event was classified.
type Status struct {
	Code      StatusCode
	Direction Direction // INITIAL_DIRECTION only
	Count     int       // run count for DIRECTION_CHANGED and BLOCKED
	Threshold int       // BLOCKED only
}

// String renders the status for display.
func (s Status) String() string {
	switch s.Code {
	case StatusDisabled:
		return "Blocking disabled"
	case StatusInitialDirection:
		if s.Direction == DirectionUp {
			return "Initial direction: Up"
		}
		return "Initial direction: Down"
	case StatusSameDirection:
		return "Same direction scrolling"
	case StatusDirectionChanged:
		return fmt.Sprintf("Direction changed (consecutive %d times)", s.Count)
	case StatusBlocked:
		return fmt.Sprintf("Blocked (consecutive %d/%d times)", s.Count, s.Threshold)
	default:
		return "Waiting for scroll events"
	}
}

// Decision is the outcome of processing one event.
type Decision struct {
	Event     ScrollEvent
	Verdict   Verdict
	Direction Direction // displayed direction, NONE while disabled
	Status    Status
}

// Snapshot is a point-in-time view of the engine for display.
// It is a value type, safe to share once built.
type Snapshot struct {
	TotalEvents      uint64
	BlockedEvents    uint64
	CurrentDirection Direction
	Status           Status
}

// NewSnapshot returns the snapshot shown before any event arrives.
func NewSnapshot() Snapshot {
	return Snapshot{
		CurrentDirection: DirectionNone,
		Status:           Status{Code: StatusWaiting},
	}
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Snapshot  Snapshot
}
