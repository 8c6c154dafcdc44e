package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/lox/cardtable/internal/client"
	"github.com/lox/cardtable/internal/session"
)

// Controller is what the TUI drives. *session.Session implements it.
type Controller interface {
	Snapshot() session.Snapshot
	Call(ctx context.Context) error
	Raise(ctx context.Context, raise int64) error
	Fold(ctx context.Context) error
	ToggleCard(i int) error
	SubmitReplace(ctx context.Context) error
	ChooseVariant(i int) error
	ToggleSpecialCard(i int) error
	SubmitDealersChoice(ctx context.Context) error
	PrevPage()
	NextPage()
	StartTable(ctx context.Context) error
	AddBot(ctx context.Context, skill client.BotSkill) error
}

// SnapshotMsg carries new session state into the program
type SnapshotMsg struct {
	Snapshot session.Snapshot
}

// resultMsg reports the end of a submitted intent
type resultMsg struct {
	intent string
	err    error
}

const (
	paneLog = iota
	paneInput
)

// Model is the Bubble Tea model for a table session
type Model struct {
	ctx    context.Context
	ctrl   Controller
	logger *log.Logger

	logViewport viewport.Model
	actionInput textinput.Model

	snap        session.Snapshot
	status      string
	statusIsErr bool
	focusedPane int
	quitting    bool

	width  int
	height int
}

// New creates a model. Intents are submitted with ctx.
func New(ctx context.Context, ctrl Controller, logger *log.Logger) *Model {
	// Sized properly when the first WindowSizeMsg arrives
	vp := viewport.New(10, 5)

	ti := textinput.New()
	ti.Placeholder = "Type a command, or 'help'"
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 60
	ti.PromptStyle = lipgloss.NewStyle().Foreground(focusColor).Bold(true)
	ti.Prompt = "> "

	m := &Model{
		ctx:         ctx,
		ctrl:        ctrl,
		logger:      logger.WithPrefix("tui"),
		logViewport: vp,
		actionInput: ti,
		focusedPane: paneInput,
	}
	m.refresh(ctrl.Snapshot())
	return m
}

// Bind forwards session changes to p until ctx is done. Listeners may run
// on the program's own event loop, so they never call p.Send themselves.
// Snapshots arriving faster than the program reads them are coalesced.
func Bind(ctx context.Context, p *tea.Program, s *session.Session) {
	var (
		mu     sync.Mutex
		latest session.Snapshot
	)
	wake := make(chan struct{}, 1)

	s.Subscribe(func(snap session.Snapshot) {
		mu.Lock()
		latest = snap
		mu.Unlock()
		select {
		case wake <- struct{}{}:
		default:
		}
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
			}
			mu.Lock()
			snap := latest
			mu.Unlock()
			p.Send(SnapshotMsg{Snapshot: snap})
		}
	}()
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case SnapshotMsg:
		m.refresh(msg.Snapshot)

	case resultMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("%s failed: %v", msg.intent, msg.err))
		} else {
			m.setStatus(fmt.Sprintf("Sent %s", msg.intent))
		}
		m.refresh(m.ctrl.Snapshot())

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logger.Debug("Updating dimensions", "width", m.width, "height", m.height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "tab":
			if m.focusedPane == paneLog {
				m.focusedPane = paneInput
				m.actionInput.Focus()
			} else {
				m.focusedPane = paneLog
				m.actionInput.Blur()
			}
		case "enter":
			if m.focusedPane == paneInput {
				input := strings.TrimSpace(m.actionInput.Value())
				m.actionInput.SetValue("")
				if cmd := m.execute(input); cmd != nil {
					cmds = append(cmds, cmd)
				}
				if m.quitting {
					return m, tea.Quit
				}
			}
		case "left", "h", "[":
			if m.focusedPane == paneLog {
				m.ctrl.PrevPage()
				m.refresh(m.ctrl.Snapshot())
			}
		case "right", "l", "]":
			if m.focusedPane == paneLog {
				m.ctrl.NextPage()
				m.refresh(m.ctrl.Snapshot())
			}
		}
	}

	var cmd tea.Cmd
	if m.focusedPane == paneInput {
		m.actionInput, cmd = m.actionInput.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		m.logViewport, cmd = m.logViewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// Snapshot returns the state the model last rendered
func (m *Model) Snapshot() session.Snapshot {
	return m.snap
}

// Status returns the status line text
func (m *Model) Status() string {
	return m.status
}

func (m *Model) refresh(snap session.Snapshot) {
	m.snap = snap
	m.logViewport.SetContent(m.renderLogPane())
	if snap.Page.OnLast {
		m.logViewport.GotoBottom()
	} else {
		m.logViewport.GotoTop()
	}
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusIsErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusIsErr = true
	m.logger.Warn(s)
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent)
	actionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(mutedColor).
		Width(max(m.width-2, 1)).
		Height(max(actionHeight, 1))
	if m.focusedPane == paneInput {
		actionStyle = actionStyle.BorderForeground(focusColor)
	}
	actionPane := actionStyle.Render(actionContent)

	sidebarContent := m.renderSidebarPane()
	sidebarWidth := max(lipgloss.Width(sidebarContent), 28)
	paneHeight := max(m.height-actionHeight-4, 1)

	sidebarPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(mutedColor).
		Width(sidebarWidth).
		Height(paneHeight).
		Render(sidebarContent)

	logWidth := max(m.width-sidebarWidth-4, 1)
	m.logViewport.Width = logWidth
	m.logViewport.Height = paneHeight

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(mutedColor).
		Width(logWidth).
		Height(paneHeight)
	if m.focusedPane == paneLog {
		logStyle = logStyle.BorderForeground(focusColor)
	}
	logPane := logStyle.Render(m.logViewport.View())

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Top, topRow, actionPane)
}
