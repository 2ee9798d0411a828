// Package engine bridges a capture goroutine and status readers to the pure
// decision logic. Only the capture goroutine calls Process; anything may call
// Reload, ResetCounters, Snapshot and Config.
package engine

import (
	"sync"
	"sync/atomic"

	"github.com/sweeney/scroll-stabilizer/internal/logic"
)

// settings pairs a config with the reload generation that installed it.
type settings struct {
	cfg logic.Config
	gen uint64
}

// Engine owns the decision state and publishes an immutable snapshot after
// every processed event.
type Engine struct {
	current atomic.Pointer[settings]
	snap    atomic.Pointer[logic.Snapshot]

	// serializes Reload callers against each other, never taken by Process
	reloadMu sync.Mutex

	// capture goroutine only
	state   logic.State
	seenGen uint64
}

// New creates an Engine with the given initial config.
func New(cfg logic.Config) *Engine {
	e := &Engine{state: logic.NewState()}
	e.current.Store(&settings{cfg: cfg})
	snap := logic.NewSnapshot()
	e.snap.Store(&snap)
	return e
}

// Process runs one event through the decision logic and returns the verdict.
// It must only be called from the capture goroutine and never blocks.
func (e *Engine) Process(ev logic.ScrollEvent) logic.Decision {
	cur := e.current.Load()
	if cur.gen != e.seenGen {
		e.state = logic.Reload(cur.cfg)
		e.seenGen = cur.gen
	}

	d, next := logic.Process(ev, cur.cfg, e.state)
	e.state = next

	for {
		old := e.snap.Load()
		snap := old.Record(d)
		if e.snap.CompareAndSwap(old, &snap) {
			return d
		}
	}
}

// Reload installs a new config. The next Process call starts from an empty
// decision state; event counters keep running.
func (e *Engine) Reload(cfg logic.Config) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()
	cur := e.current.Load()
	e.current.Store(&settings{cfg: cfg, gen: cur.gen + 1})
}

// ResetCounters zeroes the event counters and returns the display to the
// waiting state. Decision state is untouched.
func (e *Engine) ResetCounters() {
	fresh := logic.NewSnapshot()
	e.snap.Store(&fresh)
}

// Snapshot returns the latest status snapshot.
func (e *Engine) Snapshot() logic.Snapshot {
	return *e.snap.Load()
}

// Config returns the active config.
func (e *Engine) Config() logic.Config {
	return e.current.Load().cfg
}
