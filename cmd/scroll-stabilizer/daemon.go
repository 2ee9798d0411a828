package main

import (
	"fmt"
	"log"
	"time"

	"github.com/sweeney/scroll-stabilizer/internal/engine"
	"github.com/sweeney/scroll-stabilizer/internal/logic"
	"github.com/sweeney/scroll-stabilizer/internal/mqtt"
	"github.com/sweeney/scroll-stabilizer/internal/relay"
	"github.com/sweeney/scroll-stabilizer/internal/settings"
	"github.com/sweeney/scroll-stabilizer/internal/status"
)

// bufferReporter is implemented by publishers that hold messages offline.
type bufferReporter interface {
	Buffered() int
}

// daemon ties the engine to its collaborators: the capture source calls
// relay.Handle, the HTTP API and settings watcher call the control methods.
type daemon struct {
	engine    *engine.Engine
	relay     *relay.Relay
	store     *settings.Store
	publisher mqtt.Publisher
	tracker   *status.Tracker
	now       func() time.Time
}

// Tunables returns the active engine config.
func (d *daemon) Tunables() logic.Config {
	return d.engine.Config()
}

// UpdateTunables persists cfg and reloads the engine. An environment
// override still wins over the saved value.
func (d *daemon) UpdateTunables(cfg logic.Config) error {
	if err := settings.Validate(cfg); err != nil {
		return err
	}
	if d.store != nil {
		if err := d.store.Save(cfg); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
		cfg = d.store.Config()
	}
	d.reload(cfg, "api")
	return nil
}

// reloadFromFile is the settings watcher callback.
func (d *daemon) reloadFromFile(cfg logic.Config) {
	d.reload(cfg, "file")
}

func (d *daemon) reload(cfg logic.Config, reason string) {
	d.engine.Reload(cfg)
	log.Printf("reloaded (%s): interval=%v threshold=%d enabled=%t",
		reason, cfg.TimeThreshold, cfg.DirectionChangeCount, cfg.Enabled)
	d.publishSystem("RELOAD", reason, false)
}

// ResetCounters zeroes the engine counters.
func (d *daemon) ResetCounters() {
	d.engine.ResetCounters()
	d.refresh()
	log.Printf("counters reset")
}

// refresh copies engine and connection state into the tracker.
func (d *daemon) refresh() {
	d.tracker.Update(d.engine.Snapshot(), d.engine.Config())
	if cs, ok := d.publisher.(mqtt.ConnectionStatus); ok {
		d.tracker.SetMQTTConnected(cs.IsConnected())
	}
	if br, ok := d.publisher.(bufferReporter); ok {
		d.tracker.SetMQTTBuffered(br.Buffered())
	}
	if d.relay != nil {
		d.tracker.SetMQTTDropped(d.relay.Dropped())
	}
}

// publishSystem sends a lifecycle event carrying the full status snapshot.
func (d *daemon) publishSystem(event, reason string, retained bool) {
	d.refresh()
	snap := d.tracker.Snapshot()
	se := mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(se); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
		return
	}
	log.Printf("published %s event", event)
}
