package wheel

import (
	"context"

	"github.com/sweeney/scroll-stabilizer/internal/logic"
)

// FakeSource is a test double that delivers scripted ticks.
type FakeSource struct {
	// Events are delivered in order, then Run returns.
	Events []logic.ScrollEvent

	// Verdicts records what the handler returned for each delivered event.
	Verdicts []logic.Verdict

	// RunError, if set, is returned by Run before delivering anything.
	RunError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeSource creates a FakeSource with the given events.
func NewFakeSource(events []logic.ScrollEvent) *FakeSource {
	return &FakeSource{Events: events}
}

// Run delivers every scripted event, stopping early if ctx is cancelled.
func (f *FakeSource) Run(ctx context.Context, handle Handler) error {
	if f.RunError != nil {
		return f.RunError
	}
	for _, ev := range f.Events {
		if ctx.Err() != nil {
			return nil
		}
		f.Verdicts = append(f.Verdicts, handle(ev))
	}
	return nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded verdicts.
func (f *FakeSource) Reset() {
	f.Verdicts = nil
	f.Closed = false
}
