//go:build !linux

package wheel

import (
	"context"
	"errors"
	"time"
)

// RealSource is not available on non-Linux platforms.
type RealSource struct{}

// NewRealSource returns an error on non-Linux platforms.
func NewRealSource(chipName string, pinA, pinB int, debounce time.Duration) (*RealSource, error) {
	return nil, errors.New("wheel: gpio encoder not supported on this platform (requires Linux)")
}

// Run is not implemented on non-Linux platforms.
func (r *RealSource) Run(ctx context.Context, handle Handler) error {
	return errors.New("wheel: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealSource) Close() error {
	return nil
}
