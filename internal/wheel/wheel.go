// Package wheel provides scroll wheel capture with hardware abstraction.
// The real implementation decodes a quadrature rotary encoder on Linux GPIO.
// The replay implementation plays back recorded traces, and the fake
// implementation allows testing without hardware.
package wheel

import (
	"context"

	"github.com/sweeney/scroll-stabilizer/internal/logic"
)

// Handler receives one tick and returns whether it should be forwarded.
// It is always called from a single goroutine, in timestamp order.
type Handler func(logic.ScrollEvent) logic.Verdict

// Source delivers wheel ticks.
type Source interface {
	// Run delivers ticks to handle until ctx is cancelled or the source is
	// exhausted. A nil return means a clean stop.
	Run(ctx context.Context, handle Handler) error

	// Close releases capture resources.
	Close() error
}

// Default encoder lines (BCM numbering)
const (
	DefaultChip = "gpiochip0"
	DefaultPinA = 17
	DefaultPinB = 27
)
