// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/scroll-stabilizer/internal/logic"
)

// Topic is the MQTT topic for forwarded scroll ticks.
const Topic = "input/scroll-stabilizer/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "input/scroll-stabilizer/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a scroll decision to the broker.
	// Returns error if publishing fails (should not crash the process).
	// Must not block the capture goroutine.
	Publish(d logic.Decision) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "RELOAD"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Scroll ScrollPayload `json:"scroll"`
}

// ScrollPayload contains the tick details.
type ScrollPayload struct {
	Timestamp string `json:"timestamp"`
	Direction string `json:"direction"`
	Verdict   string `json:"verdict"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// FormatPayload creates the JSON payload for a scroll decision.
func FormatPayload(d logic.Decision) ([]byte, error) {
	payload := Payload{
		Scroll: ScrollPayload{
			Timestamp: d.Event.Time.UTC().Format(time.RFC3339Nano),
			Direction: string(d.Event.Direction),
			Verdict:   string(d.Verdict),
			Status:    string(d.Status.Code),
			Message:   d.Status.String(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
