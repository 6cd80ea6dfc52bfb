package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pedalcast/pedalcast/pkg/cast"
	"github.com/pedalcast/pedalcast/pkg/pairing"
	"github.com/pedalcast/pedalcast/pkg/signal"
	"github.com/pedalcast/pedalcast/pkg/wizard"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	codeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("13"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	speedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	hudBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 2)
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type pairingEventMsg pairing.Event

type eventsClosedMsg struct{}

type snapshotMsg struct {
	snap cast.Snapshot
	ok   bool
}

type wizardMsg wizard.Update

type spinTickMsg time.Time

type model struct {
	sub         signal.Subscriber
	store       cast.Store
	fixedCode   string
	joinTimeout time.Duration

	receiver *pairing.Receiver
	funnel   chan tea.Msg

	pollCtx    context.Context
	pollCancel context.CancelFunc
	poller     *cast.Poller

	state    pairing.State
	err      error
	code     string
	streamUp bool

	snap     cast.Snapshot
	haveSnap bool
	phase    wizard.Phase
	step     int

	spin   int
	width  int
	height int
}

func newModel(sub signal.Subscriber, store cast.Store, code string, joinTimeout time.Duration) *model {
	return &model{
		sub:         sub,
		store:       store,
		fixedCode:   code,
		joinTimeout: joinTimeout,
		funnel:      make(chan tea.Msg, 32),
		state:       pairing.StateIdle,
	}
}

func (m *model) Init() tea.Cmd {
	m.startSession()
	return tea.Batch(m.waitEvent(), m.waitFunnel(), spinTick())
}

// startSession creates a fresh receiver and the waiting-cadence poll loop.
func (m *model) startSession() {
	m.receiver = pairing.NewReceiver(pairing.ReceiverConfig{
		Code:        m.fixedCode,
		Subscriber:  m.sub,
		JoinTimeout: m.joinTimeout,
	})
	m.code = m.receiver.Code()
	m.state = pairing.StateIdle
	m.err = nil
	m.streamUp = false
	m.haveSnap = false
	m.phase = ""
	m.step = 0

	if err := m.receiver.Start(); err != nil {
		m.err = err
		m.state = pairing.StateFailed
	}

	m.pollCtx, m.pollCancel = context.WithCancel(context.Background())
	m.startPoller(cast.WaitingInterval)
}

func (m *model) startPoller(interval time.Duration) {
	if m.poller != nil {
		m.poller.Stop()
	}
	m.poller = cast.NewPoller(m.store, m.code, interval, func(snap cast.Snapshot, ok bool) {
		m.push(snapshotMsg{snap: snap, ok: ok})
	})
	go m.poller.Run(m.pollCtx)
}

// startMirror begins the fast wizard mirror, independent of the peer
// connection's lifecycle.
func (m *model) startMirror() {
	mirror := wizard.NewMirror(m.store, m.code, func(u wizard.Update) {
		m.push(wizardMsg(u))
	})
	go mirror.Run(m.pollCtx)
}

func (m *model) push(msg tea.Msg) {
	select {
	case m.funnel <- msg:
	default:
	}
}

func (m *model) teardown() {
	if m.pollCancel != nil {
		m.pollCancel()
	}
	if m.receiver != nil {
		m.receiver.Destroy()
	}
}

func (m *model) waitEvent() tea.Cmd {
	events := m.receiver.Events()
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return pairingEventMsg(ev)
	}
}

func (m *model) waitFunnel() tea.Cmd {
	return func() tea.Msg {
		return <-m.funnel
	}
}

func spinTick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(t time.Time) tea.Msg {
		return spinTickMsg(t)
	})
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.teardown()
			return m, tea.Quit
		case "n":
			// Manual recovery: fresh code, fresh session.
			m.teardown()
			m.fixedCode = ""
			m.startSession()
			return m, m.waitEvent()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinTickMsg:
		m.spin = (m.spin + 1) % len(spinnerFrames)
		return m, spinTick()

	case pairingEventMsg:
		ev := pairing.Event(msg)
		switch ev.Kind {
		case pairing.EventState:
			m.state = ev.State
			m.err = ev.Err
			if ev.State == pairing.StateConnected {
				// View is rendering now: relax the HUD cadence and
				// start the fast wizard mirror.
				m.startPoller(cast.ViewingInterval)
				m.startMirror()
			}
		case pairing.EventStream:
			m.streamUp = true
		}
		return m, m.waitEvent()

	case eventsClosedMsg:
		return m, nil

	case snapshotMsg:
		if msg.ok {
			m.snap = msg.snap
			m.haveSnap = true
		}
		return m, m.waitFunnel()

	case wizardMsg:
		m.phase = msg.Phase
		m.step = msg.Step
		return m, m.waitFunnel()
	}

	return m, nil
}

func (m *model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Pedalcast") + "\n\n")

	switch {
	case m.state == pairing.StateFailed:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Pairing failed: %v", m.err)) + "\n\n")
		b.WriteString(dimStyle.Render("Press n for a new code, q to quit") + "\n")

	case m.state == pairing.StateConnected:
		b.WriteString(m.rideView())

	default:
		b.WriteString(fmt.Sprintf("Pairing code  %s\n\n", codeStyle.Render(m.code)))
		b.WriteString(statusStyle.Render(fmt.Sprintf("%s %s", spinnerFrames[m.spin], m.statusLine())) + "\n\n")
		if m.haveSnap {
			b.WriteString(m.rideView())
		}
		b.WriteString(dimStyle.Render("Press n for a new code, q to quit") + "\n")
	}

	return b.String()
}

func (m *model) statusLine() string {
	switch m.state {
	case pairing.StateWaiting:
		return "Waiting for your phone to join..."
	case pairing.StatePhoneJoined:
		return "Phone joined, connecting..."
	case pairing.StateConnecting:
		return "Negotiating video link..."
	default:
		return "Starting..."
	}
}

func (m *model) rideView() string {
	var b strings.Builder

	if !m.haveSnap {
		b.WriteString(statusStyle.Render("Connected. Waiting for ride data...") + "\n\n")
	} else {
		hud := cast.BuildHUD(m.snap)
		b.WriteString(speedStyle.Render(hud.Speed) + "\n")

		rows := []string{
			fmt.Sprintf("Cadence   %s", hud.RPM),
			fmt.Sprintf("Distance  %s", hud.Distance),
			fmt.Sprintf("Time      %s", hud.RideTime),
			fmt.Sprintf("Gear      %s", hud.Gear),
		}
		b.WriteString(hudBoxStyle.Render(strings.Join(rows, "\n")) + "\n")
	}

	if m.phase != "" {
		b.WriteString(statusStyle.Render(fmt.Sprintf("Setup: %s (step %d)", m.phase, m.step)) + "\n")
	}

	if m.streamUp {
		b.WriteString(dimStyle.Render("camera stream: live") + "\n")
	} else {
		b.WriteString(dimStyle.Render("camera stream: not yet connected") + "\n")
	}

	return b.String()
}
