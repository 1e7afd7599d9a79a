// canvas is a terminal browser for the research canvas: a session sidebar
// with create/rename/delete/switch, and a rendered view of the active
// session's report.
//
// Usage:
//
//	export ANA_DATA_DIR=./data
//	go run cmd/canvas/main.go
//
// Keys:
//
//	↑/↓  move   enter  open session   n  new   r  rename   d  delete
//	i    run agent     esc            back/quit
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/ana-research/canvas/pkg/agent"
	"github.com/ana-research/canvas/pkg/agent/ws"
	"github.com/ana-research/canvas/pkg/controller"
	"github.com/ana-research/canvas/pkg/domain"
	"github.com/ana-research/canvas/pkg/session"
	"github.com/ana-research/canvas/pkg/storage/file"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	selectedItemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	previewStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).PaddingLeft(4)
	activeMarkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Padding(0, 1)
	helpStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type uiState int

const (
	stateList uiState = iota
	stateNaming
	stateRenaming
	stateConfirmDelete
	stateReport
)

type eventMsg session.Event
type errMsg struct{ err error }

type model struct {
	ctx    context.Context
	ctrl   *controller.Controller
	events <-chan session.Event

	state      uiState
	sessions   []domain.Session
	cursor     int
	listOffset int
	width      int
	height     int
	err        error

	viewport viewport.Model
	input    textinput.Model
	renderer *glamour.TermRenderer
}

func initialModel(ctx context.Context, ctrl *controller.Controller) model {
	ti := textinput.New()
	ti.Placeholder = "Session title"
	ti.CharLimit = 120
	ti.Width = 50

	vp := viewport.New(80, 20)

	r, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("light"),
		glamour.WithWordWrap(80),
	)

	return model{
		ctx:      ctx,
		ctrl:     ctrl,
		events:   ctrl.Subscribe(),
		sessions: ctrl.ListSessions(ctx),
		viewport: vp,
		input:    ti,
		renderer: r,
	}
}

func (m model) Init() tea.Cmd {
	return m.listenForEvents()
}

func (m model) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-m.events)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 3
		if m.viewport.Height < 0 {
			m.viewport.Height = 0
		}
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithStandardStyle("light"),
			glamour.WithWordWrap(m.width-4),
		)

	case eventMsg:
		// Any session change re-reads the list.
		m.sessions = m.ctrl.ListSessions(m.ctx)
		if m.cursor >= len(m.sessions) {
			m.cursor = len(m.sessions) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		if m.state == stateReport {
			m.refreshReport()
		}
		cmds = append(cmds, m.listenForEvents())

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		switch m.state {
		case stateList:
			return m.updateList(msg)
		case stateNaming, stateRenaming:
			return m.updateInput(msg)
		case stateConfirmDelete:
			return m.updateConfirm(msg)
		case stateReport:
			if msg.Type == tea.KeyEsc || msg.String() == "q" {
				m.state = stateList
				return m, nil
			}
		}
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.sessions)-1 {
			m.cursor++
		}
	case "n":
		m.state = stateNaming
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink
	case "r":
		if len(m.sessions) > 0 {
			m.state = stateRenaming
			m.input.SetValue(m.sessions[m.cursor].Title)
			m.input.Focus()
			return m, textinput.Blink
		}
	case "d":
		if len(m.sessions) > 0 {
			m.state = stateConfirmDelete
		}
	case "i":
		if err := m.ctrl.Invoke(m.ctx); err != nil {
			m.err = err
		}
	case "enter":
		if len(m.sessions) > 0 {
			id := m.sessions[m.cursor].ID
			if err := m.ctrl.SwitchSession(m.ctx, id); err != nil {
				m.err = err
				return m, nil
			}
			m.state = stateReport
			m.refreshReport()
		}
	}
	m.clampOffset()
	return m, nil
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.state = stateList
		return m, nil
	case tea.KeyEnter:
		title := strings.TrimSpace(m.input.Value())
		if m.state == stateNaming {
			if _, err := m.ctrl.CreateSession(m.ctx, title); err != nil {
				m.err = err
			}
			m.cursor = 0
		} else if len(m.sessions) > 0 && title != "" {
			m.ctrl.RenameSession(m.ctx, m.sessions[m.cursor].ID, title)
		}
		m.state = stateList
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y":
		if len(m.sessions) > 0 {
			if err := m.ctrl.DeleteSession(m.ctx, m.sessions[m.cursor].ID); err != nil {
				m.err = err
			}
		}
		m.state = stateList
	case "n", "esc":
		m.state = stateList
	}
	return m, nil
}

func (m *model) refreshReport() {
	sess := m.ctrl.ActiveSession()
	if sess == nil {
		m.viewport.SetContent("No active session.")
		return
	}
	rendered, err := m.renderer.Render(reportMarkdown(sess))
	if err != nil {
		rendered = reportMarkdown(sess)
	}
	m.viewport.SetContent(rendered)
}

func (m *model) clampOffset() {
	visible := m.height - 4
	if visible < 1 {
		visible = 1
	}
	if m.cursor < m.listOffset {
		m.listOffset = m.cursor
	}
	if m.cursor >= m.listOffset+visible {
		m.listOffset = m.cursor - visible + 1
	}
	if m.listOffset < 0 {
		m.listOffset = 0
	}
}

func (m model) View() string {
	var b strings.Builder

	switch m.state {
	case stateReport:
		b.WriteString(titleStyle.Render("ANA — Report"))
		b.WriteString("\n")
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("esc back"))
	case stateNaming:
		b.WriteString(titleStyle.Render("New research session"))
		b.WriteString("\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter create · esc cancel"))
	case stateRenaming:
		b.WriteString(titleStyle.Render("Rename session"))
		b.WriteString("\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter rename · esc cancel"))
	case stateConfirmDelete:
		title := ""
		if len(m.sessions) > 0 {
			title = m.sessions[m.cursor].Title
		}
		b.WriteString(titleStyle.Render("Delete session"))
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf("Delete %q? (y/n)", title))
	default:
		b.WriteString(titleStyle.Render("ANA — Research Sessions"))
		b.WriteString("\n\n")
		if len(m.sessions) == 0 {
			b.WriteString("No sessions yet. Press n to start one.\n")
		}
		activeID := m.ctrl.ActiveSessionID()
		visible := m.height - 4
		if visible < 1 {
			visible = len(m.sessions)
		}
		for i := m.listOffset; i < len(m.sessions) && i < m.listOffset+visible; i++ {
			sess := m.sessions[i]
			line := "  " + sess.Title
			if sess.ID == activeID {
				line = activeMarkStyle.Render("● ") + sess.Title
			}
			if i == m.cursor {
				line = selectedItemStyle.Render("> " + sess.Title)
			}
			b.WriteString(line)
			b.WriteString("\n")
			b.WriteString(previewStyle.Render(sess.Preview))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter open · n new · r rename · d delete · i run agent · q quit"))
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	}
	return b.String()
}

// reportMarkdown composes the session's written report as markdown.
func reportMarkdown(sess *domain.Session) string {
	var b strings.Builder
	title := sess.State.Title
	if title == "" {
		title = sess.Title
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	if len(sess.State.Sections) == 0 && sess.State.Footnotes == "" && len(sess.State.Sources) == 0 {
		b.WriteString("_Nothing written yet._\n")
		return b.String()
	}

	sections := make([]domain.Section, len(sess.State.Sections))
	copy(sections, sess.State.Sections)
	sort.Slice(sections, func(i, j int) bool { return sections[i].Idx < sections[j].Idx })

	for _, sec := range sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", sec.Title, sec.Content)
		if sec.Footer != "" {
			fmt.Fprintf(&b, "*%s*\n\n", sec.Footer)
		}
	}

	if sess.State.Footnotes != "" {
		fmt.Fprintf(&b, "---\n\n%s\n\n", sess.State.Footnotes)
	}

	if len(sess.State.Sources) > 0 {
		b.WriteString("## Sources\n\n")
		urls := make([]string, 0, len(sess.State.Sources))
		for url := range sess.State.Sources {
			urls = append(urls, url)
		}
		sort.Strings(urls)
		for _, url := range urls {
			src := sess.State.Sources[url]
			name := src.Title
			if name == "" {
				name = src.URL
			}
			fmt.Fprintf(&b, "- [%s](%s)\n", name, src.URL)
		}
	}

	return b.String()
}

func main() {
	// The TUI owns the terminal; keep logs out of it.
	logFile, err := os.OpenFile("canvas.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err == nil {
		defer logFile.Close()
		slog.SetDefault(slog.New(slog.NewTextHandler(logFile, nil)))
	}

	dataDir := os.Getenv("ANA_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	agentURL := os.Getenv("ANA_AGENT_URL")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := file.New(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	sessions, err := session.NewManager(ctx, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load sessions: %v\n", err)
		os.Exit(1)
	}
	defer sessions.Close(ctx)

	var conn agent.Connection
	if agentURL != "" {
		conn, err = ws.Dial(ctx, agentURL)
		if err != nil {
			slog.Warn("Agent unreachable, running local-only", "url", agentURL, "error", err)
			conn = agent.NewOffline()
		}
	} else {
		conn = agent.NewOffline()
	}
	defer conn.Close()

	ctrl := controller.New(sessions, conn)
	go ctrl.Start(ctx)

	p := tea.NewProgram(initialModel(ctx, ctrl), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
