package console

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/climanode/internal/gateway"
	"github.com/muurk/climanode/internal/ui"
)

const maxEvents = 8

// keyMap defines the console key bindings
type keyMap struct {
	LED     key.Binding
	Pixel   key.Binding
	Release key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.LED, k.Pixel, k.Release, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func newKeyMap(releaseEnabled bool) keyMap {
	k := keyMap{
		LED: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "toggle led"),
		),
		Pixel: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "toggle pixel"),
		),
		Release: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "auto"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
	k.Release.SetEnabled(releaseEnabled)
	return k
}

// Messages
type inboundMsg gateway.UIMessage

type disconnectedMsg struct{ err error }

type sendErrMsg struct{ err error }

type output struct {
	name     string
	gpio     int
	on       bool
	override bool
}

type event struct {
	at   time.Time
	text string
}

// Model is the console's Bubble Tea model.
type Model struct {
	transport Transport
	node      string

	sensor  gateway.SensorValue
	led     output
	pixel   output
	lastErr string
	events  []event
	closed  bool

	keys  keyMap
	help  help.Model
	width int
}

// NewModel builds a console over transport seeded with the node's state.
func NewModel(transport Transport, node string, state *gateway.StateResponse) Model {
	m := Model{
		transport: transport,
		node:      node,
		sensor:    state.Sensor,
		keys:      newKeyMap(state.ReleaseEnabled),
		help:      help.New(),
		width:     ui.GetTerminalWidth(),
		led:       output{name: "LED"},
		pixel:     output{name: "Pixel"},
	}
	for _, o := range state.Outputs {
		switch o.Name {
		case "led":
			m.led = output{name: "LED", gpio: o.GPIO, on: o.On, override: o.Override}
		case "neopixel":
			m.pixel = output{name: "Pixel", gpio: o.GPIO, on: o.On, override: o.Override}
		}
	}
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return waitForMessage(m.transport)
}

func waitForMessage(t Transport) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-t.Messages()
		if !ok {
			return disconnectedMsg{err: t.Err()}
		}
		return inboundMsg(msg)
	}
}

func (m Model) send(gpio int, status string) tea.Cmd {
	t := m.transport
	return func() tea.Msg {
		if err := t.Send(gateway.PageDevice, gateway.DeviceValue{GPIO: gpio, Status: status}); err != nil {
			return sendErrMsg{err: err}
		}
		return nil
	}
}

func toggle(on bool) string {
	if on {
		return gateway.StatusOff
	}
	return gateway.StatusOn
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = max(min(msg.Width, ui.MaxContentWidth), ui.MinTerminalWidth)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case m.closed:
			return m, nil
		case key.Matches(msg, m.keys.LED):
			m.led.override = true
			return m, m.send(m.led.gpio, toggle(m.led.on))
		case key.Matches(msg, m.keys.Pixel):
			m.pixel.override = true
			return m, m.send(m.pixel.gpio, toggle(m.pixel.on))
		case key.Matches(msg, m.keys.Release):
			m.led.override, m.pixel.override = false, false
			return m, tea.Batch(
				m.send(m.led.gpio, gateway.StatusAuto),
				m.send(m.pixel.gpio, gateway.StatusAuto),
			)
		}
		return m, nil

	case inboundMsg:
		m.apply(gateway.UIMessage(msg))
		return m, waitForMessage(m.transport)

	case disconnectedMsg:
		m.closed = true
		if msg.err != nil {
			m.lastErr = "disconnected: " + msg.err.Error()
		} else {
			m.lastErr = "disconnected"
		}
		return m, nil

	case sendErrMsg:
		m.lastErr = msg.err.Error()
		return m, nil
	}
	return m, nil
}

func (m *Model) apply(msg gateway.UIMessage) {
	switch msg.Page {
	case gateway.PageSensor:
		var v gateway.SensorValue
		if json.Unmarshal(msg.Value, &v) == nil {
			m.sensor = v
		}
	case gateway.PageDeviceUpdate:
		var v gateway.DeviceValue
		if json.Unmarshal(msg.Value, &v) != nil {
			return
		}
		on := strings.EqualFold(v.Status, gateway.StatusOn)
		name := fmt.Sprintf("GPIO %d", v.GPIO)
		switch v.GPIO {
		case m.led.gpio:
			m.led.on = on
			name = m.led.name
		case m.pixel.gpio:
			m.pixel.on = on
			name = m.pixel.name
		}
		m.addEvent(fmt.Sprintf("%s → %s", name, strings.ToUpper(v.Status)))
	case gateway.PageError:
		var v gateway.ErrorValue
		if json.Unmarshal(msg.Value, &v) == nil {
			m.lastErr = v.Message
			m.addEvent("error: " + v.Message)
		}
	}
}

func (m *Model) addEvent(text string) {
	m.events = append(m.events, event{at: time.Now(), text: text})
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
}

var (
	titleStyle = lipgloss.NewStyle().Foreground(ui.PrimaryColor).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(ui.MutedColor).Width(14)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(ui.PrimaryColor).Padding(0, 1)
	eventStyle = lipgloss.NewStyle().Foreground(ui.MutedColor)
)

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("climanode console") + "  " + eventStyle.Render(m.node) + "\n\n")

	stateStyle := ui.DisplayStateStyle(m.sensor.State)
	sensor := strings.Join([]string{
		labelStyle.Render("Temperature") + fmt.Sprintf("%.1f °C", m.sensor.Temperature),
		labelStyle.Render("Humidity") + fmt.Sprintf("%.1f %%", m.sensor.Humidity),
		labelStyle.Render("State") + stateStyle.Render(m.sensor.State),
	}, "\n")

	outputs := strings.Join([]string{m.renderOutput(m.led), m.renderOutput(m.pixel)}, "\n")

	boxWidth := (m.width - 6) / 2
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Width(boxWidth).Render(sensor),
		" ",
		boxStyle.Width(boxWidth).Render(outputs),
	))
	b.WriteString("\n\n")

	for _, e := range m.events {
		b.WriteString(eventStyle.Render(e.at.Format("15:04:05")+"  "+e.text) + "\n")
	}

	if m.lastErr != "" {
		b.WriteString("\n" + ui.ErrorMessageStyle.Render(ui.FailureMarker+" "+m.lastErr) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m Model) renderOutput(o output) string {
	mode := "auto"
	if o.override {
		mode = lipgloss.NewStyle().Foreground(ui.WarningColor).Render("override")
	}
	return labelStyle.Render(fmt.Sprintf("%s (%d)", o.name, o.gpio)) + ui.OnOff(o.on) + "  " + mode
}

// Run starts the console and blocks until the operator quits.
func Run(transport Transport, node string, state *gateway.StateResponse) error {
	p := tea.NewProgram(NewModel(transport, node, state), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
