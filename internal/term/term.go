// Package term captures wheel ticks from the terminal's mouse reporting and
// shows the stabilizer status while you scroll. It implements wheel.Source.
package term

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sweeney/scroll-stabilizer/internal/logic"
	"github.com/sweeney/scroll-stabilizer/internal/wheel"
)

// DefaultRefresh is how often the status panel is redrawn without input.
const DefaultRefresh = 250 * time.Millisecond

// Source runs a full-screen terminal program and feeds its wheel events to
// the handler from the program's update loop.
type Source struct {
	snapshot func() logic.Snapshot
	tunables func() logic.Config
	reset    func()
	refresh  time.Duration

	// ReverseWheel swaps UP and DOWN, for terminals with natural scrolling.
	ReverseWheel bool

	mu   sync.Mutex
	prog *tea.Program
}

// NewSource creates a terminal source. snapshot and tunables feed the status
// panel; reset is bound to the "r" key and may be nil.
func NewSource(snapshot func() logic.Snapshot, tunables func() logic.Config, reset func()) *Source {
	return &Source{
		snapshot: snapshot,
		tunables: tunables,
		reset:    reset,
		refresh:  DefaultRefresh,
	}
}

var _ wheel.Source = (*Source)(nil)

// Run blocks until the user quits or ctx is cancelled.
func (s *Source) Run(ctx context.Context, handle wheel.Handler) error {
	p := tea.NewProgram(s.model(handle), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	s.mu.Lock()
	s.prog = p
	s.mu.Unlock()

	_, err := p.Run()
	return exitErr(ctx, err)
}

// exitErr maps the program's exit error: a kill caused by ctx is a clean stop.
func exitErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("run terminal: %w", err)
}

func (s *Source) model(handle wheel.Handler) *model {
	m := newModel(handle, s.snapshot, s.tunables, s.reset, s.refresh)
	m.reverse = s.ReverseWheel
	return m
}

// Close asks a running program to exit.
func (s *Source) Close() error {
	s.mu.Lock()
	p := s.prog
	s.mu.Unlock()
	if p != nil {
		p.Quit()
	}
	return nil
}
