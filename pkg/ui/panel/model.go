package panel

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"chatwidget/pkg/bus"
	"chatwidget/pkg/config"
	"chatwidget/pkg/transcript"
	"chatwidget/pkg/widget"
)

const maxQuickReplyKeys = 9

// controllerEventMsg carries one controller event into the bubbletea loop.
type controllerEventMsg struct {
	event bus.Event
	ok    bool
}

type model struct {
	ctrl *widget.Controller
	cfg  config.WidgetConfig

	events      <-chan bus.Event
	unsubscribe func()

	theme    theme
	spinner  spinner.Model
	input    textinput.Model
	viewport viewport.Model

	markdown      *glamour.TermRenderer
	markdownWidth int
	rendered      map[int]string

	view      widget.View
	width     int
	height    int
	isReady   bool
	followLog bool
}

func newModel(ctx context.Context, ctrl *widget.Controller) *model {
	cfg := ctrl.Config()
	t := newTheme(cfg.Color)

	spin := spinner.New()
	spin.Spinner = spinner.Ellipsis
	spin.Style = lipgloss.NewStyle().Foreground(t.accent)

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "Type a message..."
	in.Focus()
	in.CharLimit = 0

	events, unsubscribe := ctrl.Events(ctx)

	return &model{
		ctrl:        ctrl,
		cfg:         cfg,
		events:      events,
		unsubscribe: unsubscribe,
		theme:       t,
		spinner:     spin,
		input:       in,
		viewport:    viewport.New(60, 12),
		rendered:    make(map[int]string),
		view:        ctrl.Snapshot(),
		width:       80,
		height:      24,
		followLog:   true,
	}
}

func (m *model) Init() tea.Cmd {
	m.ctrl.Start()
	return tea.Batch(waitForEvent(m.events), textinput.Blink)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport(false)
		m.isReady = true
		return m, nil
	case controllerEventMsg:
		if !typed.ok {
			return m, tea.Quit
		}
		m.sync()
		cmds := []tea.Cmd{waitForEvent(m.events)}
		if typed.event.Type == bus.EventTypingShown {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)
	case spinner.TickMsg:
		if !m.view.Typing() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case tea.MouseMsg:
		if m.view.Visibility == widget.VisibilityOpen {
			m.handleViewportMouse(typed)
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(typed)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.ctrl.Toggle()
		m.sync()
		return m, nil
	}

	if m.view.Visibility == widget.VisibilityClosed {
		switch msg.String() {
		case "enter", " ":
			m.ctrl.Open()
		case "x":
			m.ctrl.DismissTeaser()
		case "q":
			return m, tea.Quit
		}
		m.sync()
		return m, nil
	}

	if m.handleViewportKey(msg) {
		return m, nil
	}

	if index, ok := quickReplyIndex(msg); ok {
		if m.ctrl.ChooseQuickReply(index) {
			m.followLog = true
		}
		m.sync()
		return m, nil
	}

	switch msg.String() {
	case "tab":
		m.ctrl.SkipReveal()
		m.sync()
		return m, nil
	case "enter":
		if m.ctrl.Submit(m.input.Value()) {
			m.input.SetValue("")
			m.followLog = true
		}
		m.sync()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport(false)
	}
	if m.view.Visibility == widget.VisibilityClosed {
		return m.closedView()
	}
	return m.openView()
}

// closedView draws the toggle button in the bottom corner with the teaser
// bubble above it.
func (m *model) closedView() string {
	parts := []string{}
	if m.view.Teaser == widget.TeaserShown {
		parts = append(parts, m.theme.teaser.Render(m.cfg.PopupMessage))
	}
	parts = append(parts, m.theme.toggle.Render("💬"))
	parts = append(parts, m.theme.hint.Render("enter open · x dismiss · q quit"))

	side := lipgloss.Right
	if m.cfg.Position == config.PositionLeft {
		side = lipgloss.Left
	}
	stack := lipgloss.JoinVertical(side, parts...)
	return lipgloss.Place(m.width, m.height, side, lipgloss.Bottom, stack)
}

func (m *model) openView() string {
	panelWidth := m.panelWidth()

	title := m.theme.headerName.Render(fmt.Sprintf("%s %s", m.cfg.BotAvatar, m.cfg.BotName))
	header := m.theme.header.Width(panelWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, m.theme.online.Render("● Online")),
	)

	parts := []string{header, m.theme.viewport.Render(m.viewport.View())}

	if m.view.Typing() {
		parts = append(parts, m.theme.typing.Render(fmt.Sprintf("%s is typing %s", m.cfg.BotName, m.spinner.View())))
	}
	if len(m.view.Choices) > 0 {
		parts = append(parts, m.renderQuickReplies(panelWidth))
	}

	parts = append(parts,
		m.theme.input.Width(panelWidth-2).Render(m.input.View()),
		m.theme.hint.Render(m.statusLine()),
	)

	panel := lipgloss.JoinVertical(lipgloss.Left, parts...)
	side := lipgloss.Right
	if m.cfg.Position == config.PositionLeft {
		side = lipgloss.Left
	}
	return lipgloss.Place(m.width, m.height, side, lipgloss.Bottom, panel)
}

func (m *model) statusLine() string {
	switch m.view.Phase {
	case widget.PhaseRevealing:
		return "tab show all · esc close"
	case widget.PhaseAwaitingReply:
		return "waiting for reply · esc close"
	default:
		return "enter send · pgup/pgdn scroll · esc close · ctrl+c quit"
	}
}

func (m *model) renderQuickReplies(width int) string {
	buttons := make([]string, 0, len(m.view.Choices))
	for i, choice := range m.view.Choices {
		label := choice
		if i < maxQuickReplyKeys {
			label = fmt.Sprintf("%d %s", i+1, choice)
		}
		buttons = append(buttons, m.theme.quickReply.Render(label))
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, buttons...)
	return lipgloss.NewStyle().MaxWidth(width).Render(row) + "\n" + m.theme.hint.Render("alt+1..9 pick a suggestion")
}

// sync re-reads the controller snapshot and redraws the transcript.
func (m *model) sync() {
	m.view = m.ctrl.Snapshot()
	m.refreshViewport(false)
}

func (m *model) panelWidth() int {
	return min(max(40, m.width-4), 72)
}

func (m *model) resizeComponents() {
	w := m.panelWidth()
	h := m.height - 12
	if h < 6 {
		h = 6
	}

	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 6

	if m.markdownWidth != w-4 {
		m.markdownWidth = w - 4
		m.markdown = newMarkdownRenderer(m.markdownWidth)
		clear(m.rendered)
	}
}

func (m *model) refreshViewport(forceBottom bool) {
	previousOffset := m.viewport.YOffset

	sections := make([]string, 0, len(m.view.Messages))
	for _, msg := range m.view.Messages {
		sections = append(sections, m.renderMessage(msg))
	}

	m.viewport.SetContent(strings.Join(sections, "\n"))
	if m.followLog || forceBottom {
		m.viewport.GotoBottom()
		m.followLog = true
		return
	}

	maxOffset := max(0, m.viewport.TotalLineCount()-m.viewport.Height)
	m.viewport.SetYOffset(min(previousOffset, maxOffset))
}

func (m *model) renderMessage(msg transcript.Message) string {
	width := m.viewport.Width - 2
	stamp := ""
	if !msg.At.IsZero() {
		stamp = m.theme.timestamp.Render(msg.At.Local().Format("15:04"))
	}

	switch msg.Role {
	case transcript.RoleUser:
		bubble := m.theme.userBox.MaxWidth(width).Render(msg.Text)
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, lipgloss.JoinVertical(lipgloss.Right, bubble, stamp))
	case transcript.RoleError:
		return m.theme.errorBox.Width(width).Render(msg.Text)
	default:
		if msg.Revealing {
			body := msg.Visible() + m.theme.cursor.Render("▌")
			return m.theme.botBox.Width(width).Render(body)
		}
		return lipgloss.JoinVertical(lipgloss.Left, m.theme.botBox.Width(width).Render(m.renderMarkdown(msg)), stamp)
	}
}

// renderMarkdown formats a completed bot message, caching by message ID.
// Revealing text is never passed through here, so partial markdown is shown raw.
func (m *model) renderMarkdown(msg transcript.Message) string {
	if cached, ok := m.rendered[msg.ID]; ok {
		return cached
	}

	out := msg.Text
	if m.markdown != nil {
		if styled, err := m.markdown.Render(msg.Text); err == nil {
			out = strings.Trim(styled, "\n")
		}
	}
	m.rendered[msg.ID] = out
	return out
}

func newMarkdownRenderer(width int) *glamour.TermRenderer {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return renderer
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b", "alt+up":
		m.viewport.PageUp()
		m.followLog = false
		return true
	case "pgdown", "ctrl+f", "alt+down":
		m.viewport.PageDown()
		m.followLog = m.viewport.AtBottom()
		return true
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
		return true
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
		return true
	default:
		return false
	}
}

func (m *model) handleViewportMouse(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.ScrollUp(3)
		m.followLog = false
		return true
	case tea.MouseButtonWheelDown:
		m.viewport.ScrollDown(3)
		m.followLog = m.viewport.AtBottom()
		return true
	default:
		return false
	}
}

// quickReplyIndex maps alt+1..alt+9 to a zero-based suggestion index.
func quickReplyIndex(msg tea.KeyMsg) (int, bool) {
	if !msg.Alt || msg.Type != tea.KeyRunes || len(msg.Runes) != 1 {
		return 0, false
	}
	r := msg.Runes[0]
	if r < '1' || r > '0'+maxQuickReplyKeys {
		return 0, false
	}
	return int(r - '1'), true
}

func waitForEvent(events <-chan bus.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		return controllerEventMsg{event: event, ok: ok}
	}
}
