package internal

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/scroll-stabilizer/internal/engine"
	"github.com/sweeney/scroll-stabilizer/internal/logic"
	"github.com/sweeney/scroll-stabilizer/internal/mqtt"
	"github.com/sweeney/scroll-stabilizer/internal/relay"
	"github.com/sweeney/scroll-stabilizer/internal/settings"
	"github.com/sweeney/scroll-stabilizer/internal/status"
	"github.com/sweeney/scroll-stabilizer/internal/wheel"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// replay feeds a trace through the daemon's capture path: replay source,
// relay, engine and publisher goroutine.
func replay(t *testing.T, trace string, rl *relay.Relay) {
	t.Helper()
	tr, err := wheel.ParseTrace(strings.NewReader(trace))
	if err != nil {
		t.Fatalf("ParseTrace: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rl.Run(ctx) }()

	src := wheel.NewReplaySource(tr, 0, startTime)
	if err := src.Run(context.Background(), rl.Handle); err != nil {
		t.Fatalf("Run: %v", err)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("relay: %v", err)
	}
}

// A worn encoder scrolling down, reporting stray UP ticks mid-burst.
const wornEncoderTrace = `name: worn-encoder
events:
  - {direction: down, at: 0ms}
  - {direction: down, at: 60ms}
  - {direction: up, at: 110ms}
  - {direction: down, at: 150ms}
  - {direction: down, at: 210ms}
  - {direction: up, at: 260ms}
  - {direction: up, at: 300ms}
  - {direction: down, at: 350ms}
`

// TestIntegrationJitterTrace runs a recorded trace from replay through the
// engine to the publisher.
func TestIntegrationJitterTrace(t *testing.T) {
	eng := engine.New(logic.DefaultConfig())
	pub := mqtt.NewFakePublisher()

	replay(t, wornEncoderTrace, relay.New(eng, pub, 0, false))

	if len(pub.Decisions) != 5 {
		t.Fatalf("expected 5 forwarded ticks, got %d", len(pub.Decisions))
	}
	for i, d := range pub.Decisions {
		if d.Event.Direction != logic.DirectionDown {
			t.Errorf("forwarded tick %d: got %s, want DOWN", i, d.Event.Direction)
		}
	}

	snap := eng.Snapshot()
	if snap.TotalEvents != 8 {
		t.Errorf("TotalEvents: got %d, want 8", snap.TotalEvents)
	}
	if snap.BlockedEvents != 3 {
		t.Errorf("BlockedEvents: got %d, want 3", snap.BlockedEvents)
	}
	if snap.CurrentDirection != logic.DirectionDown {
		t.Errorf("CurrentDirection: got %s, want DOWN", snap.CurrentDirection)
	}
}

// TestIntegrationDeliberateReversal checks that a sustained reversal gets
// through once it reaches the threshold.
func TestIntegrationDeliberateReversal(t *testing.T) {
	eng := engine.New(logic.DefaultConfig())
	pub := mqtt.NewFakePublisher()

	replay(t, `events:
  - {direction: down, at: 0ms}
  - {direction: up, at: 50ms}
  - {direction: up, at: 100ms}
  - {direction: up, at: 150ms}
  - {direction: up, at: 200ms}
`, relay.New(eng, pub, 0, false))

	dirs := pub.Directions()
	want := []logic.Direction{logic.DirectionDown, logic.DirectionUp, logic.DirectionUp}
	if len(dirs) != len(want) {
		t.Fatalf("forwarded: got %v, want %v", dirs, want)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("forwarded %d: got %s, want %s", i, dirs[i], want[i])
		}
	}
	if pub.Decisions[1].Status.Code != logic.StatusDirectionChanged {
		t.Errorf("reversal status: got %s, want DIRECTION_CHANGED", pub.Decisions[1].Status.Code)
	}
}

// TestIntegrationSettingsFileDrivesEngine loads tunables from an INI file and
// checks the engine honours them.
func TestIntegrationSettingsFileDrivesEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Settings.ini")
	ini := "[General]\nblock_interval=0.1\ndirection_change_threshold=2\nenabled=true\n"
	if err := os.WriteFile(path, []byte(ini), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	store, err := settings.Open(path)
	if err != nil {
		t.Fatalf("settings.Open: %v", err)
	}

	eng := engine.New(store.Config())
	pub := mqtt.NewFakePublisher()

	// The reversal at 150ms is outside the 100ms window, so it passes.
	replay(t, `events:
  - {direction: down, at: 0ms}
  - {direction: up, at: 150ms}
  - {direction: down, at: 180ms}
  - {direction: down, at: 200ms}
`, relay.New(eng, pub, 0, false))

	if len(pub.Decisions) != 3 {
		t.Fatalf("expected 3 forwarded ticks, got %d", len(pub.Decisions))
	}
	if pub.Decisions[2].Status.Code != logic.StatusDirectionChanged || pub.Decisions[2].Status.Count != 2 {
		t.Errorf("third forwarded tick: got %+v, want DIRECTION_CHANGED x2", pub.Decisions[2].Status)
	}
}

// TestIntegrationReloadMidStream commits new settings between bursts.
func TestIntegrationReloadMidStream(t *testing.T) {
	store, err := settings.Open(filepath.Join(t.TempDir(), "Settings.ini"))
	if err != nil {
		t.Fatalf("settings.Open: %v", err)
	}
	eng := engine.New(store.Config())
	pub := mqtt.NewFakePublisher()
	handle := relay.New(eng, pub, 0, false).Handle

	handle(logic.ScrollEvent{Direction: logic.DirectionDown, Time: startTime})

	store.SetEnabled(false)
	if err := store.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	eng.Reload(store.Config())

	v := handle(logic.ScrollEvent{Direction: logic.DirectionUp, Time: startTime.Add(10 * time.Millisecond)})
	if v != logic.Pass {
		t.Errorf("verdict with stabilizer disabled: got %s, want PASS", v)
	}
	snap := eng.Snapshot()
	if snap.Status.Code != logic.StatusDisabled {
		t.Errorf("status: got %s, want DISABLED", snap.Status.Code)
	}
	if snap.TotalEvents != 2 {
		t.Errorf("TotalEvents across reload: got %d, want 2", snap.TotalEvents)
	}
}

// TestIntegrationPublishSuppressed forwards every tick, verdict included,
// as the daemon does with -publish-suppressed.
func TestIntegrationPublishSuppressed(t *testing.T) {
	eng := engine.New(logic.DefaultConfig())
	pub := mqtt.NewFakePublisher()

	replay(t, wornEncoderTrace, relay.New(eng, pub, 0, true))

	if len(pub.Decisions) != 8 {
		t.Fatalf("expected 8 published ticks, got %d", len(pub.Decisions))
	}
	var suppressed int
	for _, d := range pub.Decisions {
		if d.Verdict == logic.Suppress {
			suppressed++
		}
	}
	if suppressed != 3 {
		t.Errorf("suppressed ticks published: got %d, want 3", suppressed)
	}
	if !strings.Contains(string(pub.Payloads[2]), `"verdict":"SUPPRESS"`) {
		t.Errorf("third payload should carry the SUPPRESS verdict: %s", pub.Payloads[2])
	}
}

// TestIntegrationPublishFailureDoesNotCrash verifies the pipeline keeps
// deciding when the broker rejects publishes.
func TestIntegrationPublishFailureDoesNotCrash(t *testing.T) {
	eng := engine.New(logic.DefaultConfig())
	pub := mqtt.NewFakePublisher()
	pub.PublishError = errors.New("broker unavailable")

	replay(t, wornEncoderTrace, relay.New(eng, pub, 0, false))

	if got := eng.Snapshot().TotalEvents; got != 8 {
		t.Errorf("TotalEvents: got %d, want 8", got)
	}
	if len(pub.Decisions) != 0 {
		t.Errorf("expected no recorded decisions, got %d", len(pub.Decisions))
	}
}

// TestIntegrationPayloadFormat verifies the wire format of a forwarded tick.
func TestIntegrationPayloadFormat(t *testing.T) {
	eng := engine.New(logic.DefaultConfig())
	pub := mqtt.NewFakePublisher()

	replay(t, "events:\n  - {direction: up, at: 250ms}\n", relay.New(eng, pub, 0, false))

	if len(pub.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(pub.Payloads))
	}
	expected := `{"scroll":{"timestamp":"2026-01-01T12:00:00.25Z","direction":"UP","verdict":"PASS","status":"INITIAL_DIRECTION","message":"Initial direction: Up"}}`
	if string(pub.Payloads[0]) != expected {
		t.Errorf("payload mismatch:\ngot:  %s\nwant: %s", pub.Payloads[0], expected)
	}
}

// TestIntegrationHeartbeatPayload checks a heartbeat built from the engine
// snapshot reaches the system topic as a full status document.
func TestIntegrationHeartbeatPayload(t *testing.T) {
	eng := engine.New(logic.DefaultConfig())
	pub := mqtt.NewFakePublisher()
	replay(t, wornEncoderTrace, relay.New(eng, pub, 0, false))

	tracker := status.NewTracker(startTime, status.Config{Source: "replay", HeartbeatMs: 60000})
	hb := logic.NewHeartbeat(startTime)

	if hb.Check(startTime.Add(30*time.Second), time.Minute, eng.Snapshot()) != nil {
		t.Fatal("heartbeat fired early")
	}
	data := hb.Check(startTime.Add(time.Minute), time.Minute, eng.Snapshot())
	if data == nil {
		t.Fatal("expected heartbeat")
	}

	tracker.Update(data.Snapshot, eng.Config())
	snap := tracker.Snapshot()
	pub.PublishSystem(mqtt.SystemEvent{
		Timestamp:  data.Timestamp,
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
	})

	if len(pub.SystemPayloads) != 1 {
		t.Fatalf("expected 1 system payload, got %d", len(pub.SystemPayloads))
	}
	var parsed status.StatusJSON
	if err := json.Unmarshal(pub.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.TotalEvents != 8 || parsed.Status.BlockedEvents != 3 {
		t.Errorf("counts: got %d/%d, want 8/3", parsed.Status.TotalEvents, parsed.Status.BlockedEvents)
	}
	if parsed.Status.Config.Source != "replay" {
		t.Errorf("source: got %q, want replay", parsed.Status.Config.Source)
	}
}
