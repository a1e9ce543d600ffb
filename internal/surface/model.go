// Package surface is the terminal control surface of the estimate editor. It
// renders the scanned board and turns key presses into editor operations.
package surface

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tuannvm/jira-estimate/internal/editor"
	"github.com/tuannvm/jira-estimate/internal/mode"
	"github.com/tuannvm/jira-estimate/internal/models"
)

// inputKind is the purpose of the text input line
type inputKind int

const (
	inputNone inputKind = iota
	inputCustom
	inputFill
)

// changedMsg is delivered when the editor state changed in the background
type changedMsg struct{}

// opDoneMsg reports the end of an editor operation
type opDoneMsg struct{ err error }

// fillDoneMsg reports the end of a bulk fill
type fillDoneMsg struct {
	result editor.FillResult
	err    error
}

// maxSummaryLen bounds the summary column
const maxSummaryLen = 60

// noticeMsg replaces the notice line
type noticeMsg string

// Model is the bubbletea model of the control surface
type Model struct {
	ctx       context.Context
	editor    *editor.Editor
	keys      KeyMap
	browseURL func(issueKey string) string

	cursor int
	input  textinput.Model
	kind   inputKind
	notice string
	err    error
	width  int
}

// NewModel creates the control surface for e. browseURL builds the link
// copied for a ticket and may be nil.
func NewModel(ctx context.Context, e *editor.Editor, browseURL func(string) string) Model {
	ti := textinput.New()
	ti.CharLimit = 16
	ti.Prompt = "› "
	return Model{
		ctx:       ctx,
		editor:    e,
		keys:      DefaultKeyMap,
		browseURL: browseURL,
		input:     ti,
	}
}

// Init implements tea.Model. It loads the ticket list and starts listening
// for background changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.run(m.editor.Refresh), listen(m.editor.Changes()))
}

func listen(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// run executes a blocking editor operation off the update loop
func (m Model) run(op func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{err: op(ctx)}
	}
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case changedMsg:
		m.clampCursor()
		return m, listen(m.editor.Changes())

	case opDoneMsg:
		m.err = msg.err
		m.clampCursor()
		return m, nil

	case fillDoneMsg:
		m.err = msg.err
		m.notice = fmt.Sprintf("Filled %d ticket(s)", len(msg.result.Updated))
		if n := len(msg.result.Failed); n > 0 {
			m.notice += fmt.Sprintf(", %d failed", n)
		}
		return m, nil

	case noticeMsg:
		m.notice = string(msg)
		return m, nil

	case tea.MouseMsg:
		// The terminal has no card targets, so any click lands outside the picker
		if msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft && m.machine().Is(mode.PickerOpen) {
			m.err = m.editor.ClickOutside()
		}
		return m, nil

	case tea.KeyMsg:
		if m.kind != inputNone {
			return m.handleInputKeys(msg)
		}
		return m.handleKeys(msg)
	}
	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	state := m.machine()

	switch {
	case key.Matches(msg, m.keys.Quit):
		if !state.Is(mode.Idle) {
			_ = m.editor.CloseMode()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		return m, m.run(m.editor.Toggle)

	case key.Matches(msg, m.keys.Refresh):
		return m, m.run(m.editor.Refresh)

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.editor.Tickets())-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		return m, m.copySelected()
	}

	if state.Is(mode.Idle) {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.err = m.editor.Cancel()

	case key.Matches(msg, m.keys.Close):
		m.err = m.editor.CloseMode()

	case key.Matches(msg, m.keys.Select):
		if t, ok := m.selected(); ok {
			m.err = m.editor.SelectCard(t.Key)
		}

	case key.Matches(msg, m.keys.Fill):
		return m.openInput(inputFill, "days for every unestimated ticket")

	case state.Is(mode.PickerOpen) && key.Matches(msg, m.keys.Custom):
		return m.openInput(inputCustom, "days, or none to clear")

	case state.Is(mode.PickerOpen) && key.Matches(msg, m.keys.Presets):
		presets := m.editor.Presets()
		n, _ := strconv.Atoi(msg.String())
		if n < 1 || n > len(presets) {
			return m, nil
		}
		value := presets[n-1]
		return m, m.run(func(ctx context.Context) error {
			return m.editor.ChooseValue(ctx, value)
		})
	}
	return m, nil
}

func (m Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeInput()
		return m, nil

	case tea.KeyEnter:
		text := m.input.Value()
		value, err := editor.ParseValue(text)
		if err != nil {
			// The picker stays open until the input is valid
			m.err = err
			return m, nil
		}
		kind := m.kind
		m.closeInput()

		if kind == inputCustom {
			return m, m.run(func(ctx context.Context) error {
				return m.editor.SubmitCustom(ctx, text)
			})
		}
		if value == nil {
			m.err = fmt.Errorf("%w: fill needs a number", editor.ErrInvalidValue)
			return m, nil
		}
		ctx, v := m.ctx, *value
		return m, func() tea.Msg {
			result, err := m.editor.FillUnestimated(ctx, v)
			return fillDoneMsg{result: result, err: err}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) openInput(kind inputKind, placeholder string) (tea.Model, tea.Cmd) {
	m.kind = kind
	m.input.Placeholder = placeholder
	m.input.SetValue("")
	cmd := m.input.Focus()
	return m, cmd
}

func (m *Model) closeInput() {
	m.kind = inputNone
	m.input.Blur()
	m.input.SetValue("")
}

func (m Model) copySelected() tea.Cmd {
	t, ok := m.selected()
	if !ok || m.browseURL == nil {
		return nil
	}
	link := m.browseURL(t.Key)
	return func() tea.Msg {
		if err := clipboard.WriteAll(link); err != nil {
			return noticeMsg("Clipboard unavailable: " + link)
		}
		return noticeMsg("Copied " + link)
	}
}

func (m Model) machine() mode.Machine {
	return m.editor.Machine()
}

func (m Model) selected() (models.TicketInfo, bool) {
	tickets := m.editor.Tickets()
	if m.cursor < 0 || m.cursor >= len(tickets) {
		return models.TicketInfo{}, false
	}
	return tickets[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.editor.Tickets())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0052CC"))
	modeStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#0052CC"))
	idleStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#6B778C"))
	cursorStyle  = lipgloss.NewStyle().Reverse(true)
	keyStyle     = lipgloss.NewStyle().Bold(true)
	setStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00875A")).Bold(true)
	unsetStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#97A0AF"))
	presetStyle  = lipgloss.NewStyle().Padding(0, 1)
	activeStyle  = presetStyle.Background(lipgloss.Color("#0052CC")).Foreground(lipgloss.Color("#FFFFFF"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#42526E"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00875A"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#DE350B"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B778C"))
)

var typeIcons = map[models.IssueType]string{
	models.IssueTypeStory:   "📖",
	models.IssueTypeBug:     "🐛",
	models.IssueTypeTask:    "✓",
	models.IssueTypeEpic:    "⚡",
	models.IssueTypeSubtask: "◇",
}

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder
	state := m.machine()
	tickets := m.editor.Tickets()

	b.WriteString(titleStyle.Render("Jira estimates") + " ")
	switch {
	case state.Is(mode.PickerOpen):
		b.WriteString(modeStyle.Render("ESTIMATE · " + state.PickerKey))
	case state.Is(mode.Active):
		b.WriteString(modeStyle.Render("ESTIMATE MODE"))
	default:
		b.WriteString(idleStyle.Render("press e to edit estimates"))
	}
	b.WriteString("\n\n")

	if len(tickets) == 0 {
		b.WriteString(unsetStyle.Render("No tickets found on this page. Open a board or backlog and press r."))
		b.WriteString("\n")
	}
	for i, t := range tickets {
		row := fmt.Sprintf("%s %s %s %s",
			icon(t.IssueType),
			keyStyle.Render(fmt.Sprintf("%-10s", t.Key)),
			badge(t.Estimate),
			truncate(t.Summary, m.summaryWidth()),
		)
		if i == m.cursor {
			row = cursorStyle.Render("›") + " " + row
		} else {
			row = "  " + row
		}
		b.WriteString(row + "\n")

		if state.Is(mode.PickerOpen) && state.PickerKey == t.Key {
			b.WriteString("    " + m.picker(t.Estimate) + "\n")
		}
	}

	if m.kind != inputNone {
		b.WriteString("\n" + m.input.View() + "\n")
	}

	b.WriteString("\n" + statusStyle.Render(statusLine(models.Summarize(tickets))) + "\n")

	if toast, ok := m.editor.CurrentToast(); ok {
		style := successStyle
		if toast.Kind == "error" {
			style = errorStyle
		}
		b.WriteString(style.Render(toast.Message) + "\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	} else if err := m.editor.LastError(); err != nil {
		b.WriteString(errorStyle.Render(err.Error()) + "\n")
	}
	if m.notice != "" {
		b.WriteString(helpStyle.Render(m.notice) + "\n")
	}

	b.WriteString(helpStyle.Render(m.help(state)))
	return b.String()
}

func (m Model) picker(current *float64) string {
	var parts []string
	for i, p := range m.editor.Presets() {
		label := fmt.Sprintf("%d:%s", i+1, models.FormatDays(p))
		if current != nil && *current == p {
			parts = append(parts, activeStyle.Render(label))
			continue
		}
		parts = append(parts, presetStyle.Render(label))
	}
	parts = append(parts, presetStyle.Render("c:custom"))
	return strings.Join(parts, "")
}

func (m Model) help(state mode.Machine) string {
	var bindings []key.Binding
	switch {
	case m.kind != inputNone:
		return "enter set · esc cancel"
	case state.Is(mode.Idle):
		bindings = []key.Binding{m.keys.Toggle, m.keys.Up, m.keys.Down, m.keys.Refresh, m.keys.Copy, m.keys.Quit}
	case state.Is(mode.Active):
		bindings = []key.Binding{m.keys.Select, m.keys.Fill, m.keys.Refresh, m.keys.Copy, m.keys.Cancel, m.keys.Quit}
	default:
		bindings = []key.Binding{m.keys.Presets, m.keys.Custom, m.keys.Select, m.keys.Cancel, m.keys.Quit}
	}
	var parts []string
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}

// summaryWidth fits the summary column to the terminal
func (m Model) summaryWidth() int {
	if m.width <= 0 {
		return maxSummaryLen
	}
	return max(20, min(maxSummaryLen, m.width-24))
}

func statusLine(t models.Totals) string {
	line := fmt.Sprintf("%d ticket(s) · %s total", t.Count, models.FormatDays(t.Total))
	if t.Unestimated > 0 {
		line += fmt.Sprintf(" · %d unestimated", t.Unestimated)
	}
	return line
}

func badge(estimate *float64) string {
	if estimate == nil {
		return unsetStyle.Render(fmt.Sprintf("%6s", "-"))
	}
	return setStyle.Render(fmt.Sprintf("%6s", models.FormatEstimate(estimate)))
}

func icon(t models.IssueType) string {
	if s, ok := typeIcons[t]; ok {
		return s
	}
	return typeIcons[models.IssueTypeTask]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
