package mqtt

import (
	"sync"

	"github.com/sweeney/scroll-stabilizer/internal/logic"
)

// FakePublisher records what would have gone to the broker. The capture
// goroutine and the status ticker both publish, so it locks internally.
type FakePublisher struct {
	mu sync.Mutex

	Decisions []logic.Decision // forwarded ticks, in order
	Payloads  [][]byte         // wire form of Decisions

	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// Errors returned instead of recording.
	PublishError       error
	PublishSystemError error

	Closed    bool
	Connected bool // reported by IsConnected
}

// NewFakePublisher returns an empty, disconnected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records d unless PublishError is set.
func (f *FakePublisher) Publish(d logic.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPayload(d)
	if err != nil {
		return err
	}
	f.Decisions = append(f.Decisions, d)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records event unless PublishSystemError is set.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// SystemEventNames returns the Event field of every recorded system event.
func (f *FakePublisher) SystemEventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		names[i] = e.Event
	}
	return names
}

// Directions returns the direction of every forwarded tick.
func (f *FakePublisher) Directions() []logic.Direction {
	f.mu.Lock()
	defer f.mu.Unlock()
	dirs := make([]logic.Direction, len(f.Decisions))
	for i, d := range f.Decisions {
		dirs[i] = d.Event.Direction
	}
	return dirs
}

// Reset forgets everything recorded and clears injected errors.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Decisions = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
