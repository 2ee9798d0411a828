package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event            string       `json:"event,omitempty"`
	Reason           string       `json:"reason,omitempty"`
	CurrentDirection string       `json:"current_direction"`
	Code             string       `json:"code"`
	Message          string       `json:"message"`
	TotalEvents      uint64       `json:"total_events"`
	BlockedEvents    uint64       `json:"blocked_events"`
	UptimeSeconds    int64        `json:"uptime_seconds"`
	StartTime        string       `json:"start_time"`
	Timestamp        string       `json:"timestamp"`
	MQTT             MQTTStatus   `json:"mqtt"`
	Tunables         TunablesJSON `json:"settings"`
	Config           ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Buffered  int    `json:"buffered"`
	Dropped   uint64 `json:"dropped"`
}

// TunablesJSON is the JSON representation of the debounce settings.
// The same shape is accepted by PUT /api/config.
type TunablesJSON struct {
	BlockIntervalMs          int64 `json:"block_interval_ms"`
	DirectionChangeThreshold int   `json:"direction_change_threshold"`
	Enabled                  bool  `json:"enabled"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Source       string `json:"source"`
	PollMs       int64  `json:"poll_ms"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
	SettingsPath string `json:"settings_path"`
}

func buildInner(snap Snapshot) StatusInner {
	dir := string(snap.Engine.CurrentDirection)
	if dir == "" {
		dir = "NONE"
	}
	code := string(snap.Engine.Status.Code)
	if code == "" {
		code = "WAITING"
	}

	return StatusInner{
		CurrentDirection: dir,
		Code:             code,
		Message:          snap.Engine.Status.String(),
		TotalEvents:      snap.Engine.TotalEvents,
		BlockedEvents:    snap.Engine.BlockedEvents,
		UptimeSeconds:    int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:        snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:        snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Buffered:  snap.MQTTBuffered,
			Dropped:   snap.MQTTDropped,
		},
		Tunables: TunablesJSON{
			BlockIntervalMs:          snap.Tunables.TimeThreshold.Milliseconds(),
			DirectionChangeThreshold: snap.Tunables.DirectionChangeCount,
			Enabled:                  snap.Tunables.Enabled,
		},
		Config: ConfigJSON{
			Source:       snap.Config.Source,
			PollMs:       snap.Config.PollMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			SettingsPath: snap.Config.SettingsPath,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
