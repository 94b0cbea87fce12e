// Package dashboard is the terminal dashboard for a homed daemon. It shows
// the live state and sends updates for the selected device.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/homed/pkg/daemon"
	"github.com/grovetools/homed/pkg/energy"
	"github.com/grovetools/homed/pkg/models"
	"github.com/grovetools/homed/tui/theme"
)

// Backend is the part of daemon.Client the dashboard uses.
type Backend interface {
	StreamState(ctx context.Context) (<-chan daemon.StateUpdate, error)
	Update(ctx context.Context, path string, data json.RawMessage) (models.State, error)
}

const (
	brightnessStep = 10
	targetStep     = 1.0
)

type (
	streamStartedMsg struct{ updates <-chan daemon.StateUpdate }
	streamClosedMsg  struct{}
	stateMsg         daemon.StateUpdate
	updateResultMsg  struct {
		path string
		err  error
	}
	errMsg struct{ err error }
)

// Model is the bubbletea model of the dashboard.
type Model struct {
	backend Backend
	ctx     context.Context
	updates <-chan daemon.StateUpdate

	state    models.State
	analysis models.EnergyAnalysis
	calc     *energy.Calculator
	budget   float64
	ids      []string
	cursor   int
	loaded   bool
	live     bool
	status   string
	lastErr  string
	Title    string
	keys     KeyMap
	help     help.Model
	theme    *theme.Theme
	width    int
	quitting bool
}

// New creates a dashboard over backend. Streams and updates stop when ctx
// is canceled.
func New(ctx context.Context, backend Backend) *Model {
	return &Model{
		backend: backend,
		ctx:     ctx,
		Title:   "homed",
		keys:    DefaultKeyMap,
		calc:    energy.New(energy.DefaultTariff()),
		help:    help.New(),
		theme:   theme.DefaultTheme,
	}
}

// SetKeyMap replaces the keybindings.
func (m *Model) SetKeyMap(km KeyMap) {
	m.keys = km
}

// SetTariff sets the tariff the efficiency analysis is priced with.
func (m *Model) SetTariff(t energy.Tariff) {
	m.calc = energy.New(t)
	if m.loaded {
		m.analysis = m.calc.Analyze(m.state)
	}
}

// SetBudget sets the monthly budget shown next to the cost projection.
func (m *Model) SetBudget(monthly float64) {
	m.budget = monthly
}

// Init starts the state stream.
func (m *Model) Init() tea.Cmd {
	return m.startStream
}

func (m *Model) startStream() tea.Msg {
	ch, err := m.backend.StreamState(m.ctx)
	if err != nil {
		return errMsg{err}
	}
	return streamStartedMsg{ch}
}

func waitForUpdate(ch <-chan daemon.StateUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return stateMsg(u)
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case streamStartedMsg:
		m.updates = msg.updates
		m.live = true
		return m, waitForUpdate(m.updates)

	case stateMsg:
		if msg.Error != "" {
			m.lastErr = msg.Error
		} else {
			m.setState(msg.State)
		}
		return m, waitForUpdate(m.updates)

	case streamClosedMsg:
		m.live = false
		m.status = "disconnected"
		return m, nil

	case updateResultMsg:
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		} else {
			m.lastErr = ""
			m.status = "updated " + msg.path
		}
		return m, nil

	case errMsg:
		m.lastErr = msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) setState(s models.State) {
	m.state = s
	m.analysis = m.calc.Analyze(s)
	m.ids = s.DeviceIDs()
	m.loaded = true
	if m.cursor >= len(m.ids) {
		m.cursor = len(m.ids) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// Selected returns the id of the highlighted device.
func (m *Model) Selected() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.ids) {
		return "", false
	}
	return m.ids[m.cursor], true
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.ids)-1 {
			m.cursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.Arm):
		return m, m.send("system", map[string]interface{}{"armed": !m.state.System.Armed})
	case key.Matches(msg, m.keys.Away):
		next := models.ModeAway
		if m.state.System.HomeAway == models.ModeAway {
			next = models.ModeHome
		}
		return m, m.send("system", map[string]interface{}{"homeAway": next})
	}

	id, ok := m.Selected()
	if !ok {
		return m, nil
	}
	d := m.state.Devices[id]
	path := "devices." + id

	switch {
	case key.Matches(msg, m.keys.Toggle):
		return m, m.send(path, map[string]interface{}{"on": !d.On})
	case key.Matches(msg, m.keys.Increase), key.Matches(msg, m.keys.Decrease):
		sign := 1
		if key.Matches(msg, m.keys.Decrease) {
			sign = -1
		}
		switch d.Kind {
		case models.KindLight:
			b := clamp(d.Brightness+sign*brightnessStep, 0, 100)
			if b == d.Brightness {
				return m, nil
			}
			return m, m.send(path, map[string]interface{}{"brightness": b})
		case models.KindThermostat:
			return m, m.send(path, map[string]interface{}{"target": d.Target + float64(sign)*targetStep})
		}
	case key.Matches(msg, m.keys.Eco):
		if d.IsThermostat() {
			return m, m.send(path, map[string]interface{}{"ecoMode": !d.EcoMode})
		}
	}
	return m, nil
}

// send applies an update in the background. The new state arrives through
// the stream like any other client's change.
func (m *Model) send(path string, data interface{}) tea.Cmd {
	return func() tea.Msg {
		raw, err := json.Marshal(data)
		if err != nil {
			return updateResultMsg{path: path, err: err}
		}
		if _, err := m.backend.Update(m.ctx, path, raw); err != nil {
			return updateResultMsg{path: path, err: fmt.Errorf("%s: %w", path, err)}
		}
		return updateResultMsg{path: path}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
