//go:build linux

package wheel

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/scroll-stabilizer/internal/logic"
)

// tickBuffer bounds ticks queued between the edge handler and Run.
const tickBuffer = 256

// RealSource reads a quadrature scroll wheel from the Linux GPIO character device.
type RealSource struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
	pinA  int
	pinB  int

	mu      sync.Mutex
	decoder *Quadrature
	a, b    int
	dropped int

	ticks chan logic.ScrollEvent
}

// NewRealSource requests both encoder lines with edge detection on both edges.
// debounce, if positive, enables the kernel's contact debounce filter; this
// only removes electrical bounce, not wheel jitter.
func NewRealSource(chipName string, pinA, pinB int, debounce time.Duration) (*RealSource, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	r := &RealSource{
		chip:  chip,
		pinA:  pinA,
		pinB:  pinB,
		ticks: make(chan logic.ScrollEvent, tickBuffer),
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(r.handleEdge),
	}
	if debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(debounce))
	}

	// Hold mu so the handler cannot run before the decoder is seeded.
	r.mu.Lock()
	defer r.mu.Unlock()

	lines, err := chip.RequestLines([]int{pinA, pinB}, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request encoder pins %d/%d: %w", pinA, pinB, err)
	}
	r.lines = lines

	vals := make([]int, 2)
	if err := lines.Values(vals); err != nil {
		lines.Close()
		chip.Close()
		return nil, fmt.Errorf("read encoder pins: %w", err)
	}
	r.a, r.b = vals[0], vals[1]
	r.decoder = NewQuadrature(r.a, r.b, StepsPerDetent)

	return r, nil
}

// handleEdge runs on the gpiocdev watcher goroutine.
func (r *RealSource) handleEdge(evt gpiocdev.LineEvent) {
	level := 0
	if evt.Type == gpiocdev.LineEventRisingEdge {
		level = 1
	}

	r.mu.Lock()
	switch evt.Offset {
	case r.pinA:
		r.a = level
	case r.pinB:
		r.b = level
	default:
		r.mu.Unlock()
		return
	}
	dir := r.decoder.Step(r.a, r.b)
	r.mu.Unlock()

	if dir == logic.DirectionNone {
		return
	}

	select {
	case r.ticks <- logic.ScrollEvent{Direction: dir, Time: time.Now()}:
	default:
		r.mu.Lock()
		r.dropped++
		if r.dropped == 1 {
			log.Printf("wheel: tick queue full (%d), dropping", tickBuffer)
		}
		r.mu.Unlock()
	}
}

// Run delivers decoded ticks to handle until ctx is cancelled.
func (r *RealSource) Run(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.ticks:
			handle(ev)
		}
	}
}

// Close releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (r *RealSource) Close() error {
	var errs []error

	if r.lines != nil {
		if err := r.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure encoder pins: %w", err))
		}
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close encoder pins: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
