package term

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sweeney/scroll-stabilizer/internal/logic"
	"github.com/sweeney/scroll-stabilizer/internal/wheel"
)

const trackWidth = 40

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Width(22)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	blockStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	markerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

type tickMsg time.Time

type model struct {
	handle   wheel.Handler
	snapshot func() logic.Snapshot
	tunables func() logic.Config
	reset    func()
	refresh  time.Duration
	now      func() time.Time
	reverse  bool

	// marker offset on the track, moved by forwarded ticks only
	position int
	last     logic.Decision
	seen     bool

	snap logic.Snapshot
	cfg  logic.Config
}

func newModel(handle wheel.Handler, snapshot func() logic.Snapshot, tunables func() logic.Config, reset func(), refresh time.Duration) *model {
	m := &model{
		handle:   handle,
		snapshot: snapshot,
		tunables: tunables,
		reset:    reset,
		refresh:  refresh,
		now:      time.Now,
		position: trackWidth / 2,
	}
	m.pull()
	return m
}

func (m *model) pull() {
	if m.snapshot != nil {
		m.snap = m.snapshot()
	}
	if m.tunables != nil {
		m.cfg = m.tunables()
	}
}

func (m *model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *model) Init() tea.Cmd {
	return m.tick()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			if m.reset != nil {
				m.reset()
			}
			m.pull()
		case "up", "k":
			m.scroll(logic.DirectionUp)
		case "down", "j":
			m.scroll(logic.DirectionDown)
		}
		return m, nil

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			return m, nil
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.scroll(m.orient(logic.DirectionUp))
		case tea.MouseButtonWheelDown:
			m.scroll(m.orient(logic.DirectionDown))
		}
		return m, nil

	case tickMsg:
		m.pull()
		return m, m.tick()
	}
	return m, nil
}

func (m *model) orient(d logic.Direction) logic.Direction {
	if !m.reverse {
		return d
	}
	if d == logic.DirectionUp {
		return logic.DirectionDown
	}
	return logic.DirectionUp
}

// scroll runs one tick through the handler and moves the marker when it passes.
func (m *model) scroll(d logic.Direction) {
	ev := logic.ScrollEvent{Direction: d, Time: m.now()}
	v := m.handle(ev)
	m.last = logic.Decision{Event: ev, Verdict: v, Direction: d}
	m.seen = true

	if v == logic.Pass {
		if d == logic.DirectionUp && m.position > 0 {
			m.position--
		}
		if d == logic.DirectionDown && m.position < trackWidth-1 {
			m.position++
		}
	}
	m.pull()
}

func (m *model) track() string {
	left := strings.Repeat("─", m.position)
	right := strings.Repeat("─", trackWidth-1-m.position)
	return dimStyle.Render(left) + markerStyle.Render("●") + dimStyle.Render(right)
}

func (m *model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Scroll Stabilizer"))
	b.WriteString("\n\n")
	b.WriteString(m.track())
	b.WriteString("\n\n")

	row := func(k, v string) {
		b.WriteString(keyStyle.Render(k))
		b.WriteString(v)
		b.WriteString("\n")
	}

	last := dimStyle.Render("none yet")
	if m.seen {
		if m.last.Verdict == logic.Pass {
			last = passStyle.Render(fmt.Sprintf("%s forwarded", m.last.Direction))
		} else {
			last = blockStyle.Render(fmt.Sprintf("%s suppressed", m.last.Direction))
		}
	}
	row("Last tick", last)
	row("Direction", string(m.snap.CurrentDirection))

	msg := m.snap.Status.String()
	switch m.snap.Status.Code {
	case logic.StatusBlocked:
		msg = blockStyle.Render(msg)
	case logic.StatusDirectionChanged, logic.StatusDisabled:
		msg = warnStyle.Render(msg)
	}
	row("Status", msg)
	row("Total events", fmt.Sprintf("%d", m.snap.TotalEvents))
	row("Blocked events", fmt.Sprintf("%d", m.snap.BlockedEvents))

	enabled := "on"
	if !m.cfg.Enabled {
		enabled = warnStyle.Render("off")
	}
	settings := fmt.Sprintf("stabilizer %s, interval %dms, threshold %d",
		enabled, m.cfg.TimeThreshold.Milliseconds(), m.cfg.DirectionChangeCount)

	out := panelStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n" +
		dimStyle.Render(settings) + "\n" +
		dimStyle.Render("scroll to test, r reset counters, q quit")
	return out
}
