// Package status provides a thread-safe status tracker for the scroll-stabilizer daemon.
// It is read by HTTP handlers, the websocket feed and MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/scroll-stabilizer/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Source       string
	PollMs       int64
	HeartbeatMs  int64
	Broker       string
	HTTPAddr     string
	SettingsPath string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Engine        logic.Snapshot
	Tunables      logic.Config
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	MQTTBuffered  int
	MQTTDropped   uint64
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Engine:    logic.NewSnapshot(),
			Tunables:  logic.DefaultConfig(),
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the engine snapshot and active tunables.
// Called from the status ticker on every poll.
func (t *Tracker) Update(snap logic.Snapshot, tunables logic.Config) {
	t.mu.Lock()
	t.snap.Engine = snap
	t.snap.Tunables = tunables
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetMQTTBuffered sets the number of messages waiting for a broker connection.
func (t *Tracker) SetMQTTBuffered(n int) {
	t.mu.Lock()
	t.snap.MQTTBuffered = n
	t.mu.Unlock()
}

// SetMQTTDropped sets how many forwarded ticks were discarded because the
// publisher fell behind.
func (t *Tracker) SetMQTTDropped(n uint64) {
	t.mu.Lock()
	t.snap.MQTTDropped = n
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
