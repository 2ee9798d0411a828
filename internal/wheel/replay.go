package wheel

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/scroll-stabilizer/internal/logic"
)

// Trace is a recorded sequence of ticks, as stored on disk:
//
//	name: cheap-mouse-jitter
//	events:
//	  - {direction: up, at: 0s}
//	  - {direction: down, at: 80ms}
type Trace struct {
	Name   string       `yaml:"name"`
	Events []TraceEvent `yaml:"events"`
}

// TraceEvent is one tick at an offset from the start of the trace.
type TraceEvent struct {
	Direction string        `yaml:"direction"`
	At        time.Duration `yaml:"at"`
}

// ParseTrace decodes and validates a YAML trace.
func ParseTrace(r io.Reader) (Trace, error) {
	var tr Trace
	if err := yaml.NewDecoder(r).Decode(&tr); err != nil {
		if err == io.EOF {
			return tr, fmt.Errorf("empty trace")
		}
		return tr, fmt.Errorf("decode trace: %w", err)
	}

	var prev time.Duration
	for i, ev := range tr.Events {
		if _, err := parseDirection(ev.Direction); err != nil {
			return tr, fmt.Errorf("event %d: %w", i, err)
		}
		if ev.At < prev {
			return tr, fmt.Errorf("event %d: offset %v goes backwards (previous %v)", i, ev.At, prev)
		}
		prev = ev.At
	}
	return tr, nil
}

// LoadTrace reads a trace file.
func LoadTrace(path string) (Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return Trace{}, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	tr, err := ParseTrace(f)
	if err != nil {
		return tr, fmt.Errorf("%s: %w", path, err)
	}
	return tr, nil
}

func parseDirection(s string) (logic.Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UP", "+1", "1":
		return logic.DirectionUp, nil
	case "DOWN", "-1":
		return logic.DirectionDown, nil
	}
	return logic.DirectionNone, fmt.Errorf("unknown direction %q", s)
}

// ReplaySource plays a trace back through the handler.
type ReplaySource struct {
	trace Trace
	speed float64
	start time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewReplaySource creates a replay of tr. speed scales wall-clock pacing
// (2 plays twice as fast); speed <= 0 delivers without pausing. Event times
// are always start plus the recorded offset, so decisions do not depend on
// the pacing.
func NewReplaySource(tr Trace, speed float64, start time.Time) *ReplaySource {
	return &ReplaySource{trace: tr, speed: speed, start: start, sleep: sleepCtx}
}

// Run delivers the trace, then returns.
func (r *ReplaySource) Run(ctx context.Context, handle Handler) error {
	var prev time.Duration
	for _, te := range r.trace.Events {
		if r.speed > 0 {
			wait := time.Duration(float64(te.At-prev) / r.speed)
			if !r.sleep(ctx, wait) {
				return nil
			}
		} else if ctx.Err() != nil {
			return nil
		}
		prev = te.At

		dir, _ := parseDirection(te.Direction)
		handle(logic.ScrollEvent{Direction: dir, Time: r.start.Add(te.At)})
	}
	return nil
}

// Close is a no-op.
func (r *ReplaySource) Close() error {
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
