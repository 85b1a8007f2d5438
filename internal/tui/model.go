// Package tui provides the Bubble Tea live run view.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/dungeonlog/internal/model"
	"github.com/verte-zerg/dungeonlog/internal/projection"
	"github.com/verte-zerg/dungeonlog/internal/stats"
)

const (
	tabRuns = iota
	tabStats
)

const refreshInterval = time.Second

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	modalStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 2)
)

// Controller is the part of the tracker the view drives. Calls take the
// tracker lock, so the model only makes them from commands.
type Controller interface {
	RemoveMany(hashes []string) int
	SetModeFilter(filter model.ModeFilter)
	ModeFilter() model.ModeFilter
	Refresh()
}

type updatedMsg struct{}

type tickMsg time.Time

type removedMsg struct {
	count int
}

type filterAppliedMsg struct {
	filter model.ModeFilter
}

// Model implements the Bubble Tea run view.
type Model struct {
	ctrl Controller
	sink *Sink

	tabs      []string
	activeTab int
	runTable  table.Model
	statsView viewport.Model

	entries   []projection.Entry
	rowHashes []string
	marked    map[string]bool

	day        model.Stats
	total      model.Stats
	closeTimer bool
	filter     model.ModeFilter

	width  int
	height int

	filterMode  bool
	filterInput textinput.Model
	filterError string

	confirmMode bool
	pending     []string

	status string
}

// NewModel constructs the run view over a tracker and the sink subscribed to it.
func NewModel(ctrl Controller, sink *Sink) *Model {
	m := &Model{
		ctrl:   ctrl,
		sink:   sink,
		tabs:   []string{"Runs", "Stats"},
		marked: map[string]bool{},
		filter: ctrl.ModeFilter(),
	}
	m.filterInput = newFilterInput("Modes: ")
	m.filterInput.Placeholder = "solo,standard,avalon,corrupted,hellgate,expedition"
	m.runTable = table.New(
		table.WithColumns(runColumns()),
		table.WithFocused(true),
		table.WithHeight(1),
	)
	m.runTable.SetStyles(runTableStyles())
	m.statsView = viewport.New(0, 0)
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), tick())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderStats()
		return m, nil
	case updatedMsg:
		m.refresh()
		return m, m.waitForUpdate()
	case tickMsg:
		if m.hasActiveRun() {
			return m, tea.Batch(m.refreshCmd(), tick())
		}
		return m, tick()
	case removedMsg:
		m.status = fmt.Sprintf("Removed %d run(s)", msg.count)
		return m, nil
	case filterAppliedMsg:
		m.filter = msg.filter
		m.status = "Mode filter: " + filterLabel(msg.filter)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.confirmMode {
			return m.updateConfirm(msg)
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "/":
			return m.startFilter()
		}
		if m.activeTab == tabRuns {
			switch msg.String() {
			case " ":
				m.toggleMark()
				return m, nil
			case "d":
				m.startConfirm()
				return m, nil
			}
			var cmd tea.Cmd
			m.runTable, cmd = m.runTable.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.statsView, cmd = m.statsView.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.confirmMode {
		return fitLines(m.renderConfirmModal(), m.width, m.height)
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) waitForUpdate() tea.Cmd {
	wakeup := m.sink.wakeup
	return func() tea.Msg {
		<-wakeup
		return updatedMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) refreshCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.Refresh()
		return nil
	}
}

// refresh re-reads the sink and rebuilds the table, keeping the cursor on
// the same run.
func (m *Model) refresh() {
	selected := m.selectedHash()
	m.entries = m.sink.View().Snapshot()
	m.day, m.total, m.closeTimer = m.sink.stats()

	present := make(map[string]bool, len(m.entries))
	for _, e := range m.entries {
		present[e.Hash] = true
	}
	for hash := range m.marked {
		if !present[hash] {
			delete(m.marked, hash)
		}
	}

	m.rebuildRows()
	cursorAt := 0
	for i, hash := range m.rowHashes {
		if hash == selected {
			cursorAt = i
			break
		}
	}
	m.runTable.SetCursor(cursorAt)
	m.renderStats()
}

func (m *Model) rebuildRows() {
	rows := make([]table.Row, 0, len(m.entries))
	hashes := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		rows = append(rows, runRow(e, m.marked[e.Hash]))
		hashes = append(hashes, e.Hash)
	}
	m.runTable.SetRows(rows)
	m.rowHashes = hashes
}

func (m *Model) selectedHash() string {
	c := m.runTable.Cursor()
	if c < 0 || c >= len(m.rowHashes) {
		return ""
	}
	return m.rowHashes[c]
}

func (m *Model) hasActiveRun() bool {
	for _, e := range m.entries {
		if e.Status == model.StatusActive {
			return true
		}
	}
	return false
}

func (m *Model) toggleMark() {
	hash := m.selectedHash()
	if hash == "" {
		return
	}
	if m.marked[hash] {
		delete(m.marked, hash)
	} else {
		m.marked[hash] = true
	}
	m.rebuildRows()
}

func (m *Model) startConfirm() {
	pending := make([]string, 0, len(m.marked))
	for _, hash := range m.rowHashes {
		if m.marked[hash] {
			pending = append(pending, hash)
		}
	}
	if len(pending) == 0 {
		if hash := m.selectedHash(); hash != "" {
			pending = append(pending, hash)
		}
	}
	if len(pending) == 0 {
		return
	}
	m.pending = pending
	m.confirmMode = true
}

func (m *Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		hashes := m.pending
		m.pending = nil
		m.confirmMode = false
		ctrl := m.ctrl
		return m, func() tea.Msg {
			return removedMsg{count: ctrl.RemoveMany(hashes)}
		}
	case "n", "N", "esc", "q":
		m.pending = nil
		m.confirmMode = false
		m.status = "Removal cancelled"
		return m, nil
	}
	return m, nil
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.filterInput.SetValue(m.filter.String())
	m.filterInput.CursorEnd()
	return m, m.filterInput.Focus()
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		m.filterInput.Blur()
		return m, nil
	case tea.KeyEnter:
		filter, err := model.ParseModes(m.filterInput.Value())
		if err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.filterInput.Blur()
		ctrl := m.ctrl
		return m, func() tea.Msg {
			ctrl.SetModeFilter(filter)
			return filterAppliedMsg{filter: filter}
		}
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabRuns {
		m.runTable.Focus()
	} else {
		m.runTable.Blur()
	}
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && m.status != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.runTable.SetWidth(m.width)
	m.runTable.SetHeight(bodyHeight)
	m.statsView.Width = m.width
	m.statsView.Height = bodyHeight
	promptWidth := lipgloss.Width(m.filterInput.Prompt)
	m.filterInput.Width = maxInt(10, m.width-promptWidth-2)
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	summary := fmt.Sprintf("Modes: %s  Runs: %d  Today: %d runs · %s fame · %s silver",
		filterLabel(m.filter),
		len(m.entries),
		m.day.Runs,
		stats.FormatAmount(m.day.Fame),
		stats.FormatAmount(m.day.Silver),
	)
	if m.closeTimer {
		summary += "  [random dungeon]"
	}
	return tabs + "\n" + headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Select: up/down  Mark: space  Remove: d  Modes: /  Quit: q"
	if m.activeTab == tabStats {
		help = "Nav: left/right  Scroll: up/down/pgup/pgdn  Modes: /  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return headerStyle.Render("enter: apply  esc: cancel  empty: all modes")
	}
	if m.status != "" {
		return m.renderHelp() + "\n" + statusStyle.Render(m.status)
	}
	return m.renderHelp()
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Mode filter (comma separated, enter to apply, esc to cancel)", m.filterInput.View()}
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		return fitLines(m.renderFilterForm(), m.width, height)
	}
	if m.activeTab == tabRuns {
		if len(m.entries) == 0 {
			return fitLines("No runs yet. Waiting for events...", m.width, height)
		}
		return fitLines(tableMutedStyle.Render(m.runTable.View()), m.width, height)
	}
	return fitLines(m.statsView.View(), m.width, height)
}

func (m *Model) renderConfirmModal() string {
	title := cardValueStyle.Render(fmt.Sprintf("Remove %d run(s)?", len(m.pending)))
	body := []string{title}
	shown := minInt(len(m.pending), 5)
	for _, hash := range m.pending[:shown] {
		body = append(body, headerStyle.Render(truncateLine("  "+hash, modalInnerWidth(m.width))))
	}
	if len(m.pending) > shown {
		body = append(body, headerStyle.Render(fmt.Sprintf("  and %d more", len(m.pending)-shown)))
	}
	body = append(body, "", headerStyle.Render("y to remove / n to cancel"))
	box := modalStyle.Width(modalWidth(m.width)).Render(strings.Join(body, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m *Model) renderStats() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.statsView.SetContent(renderOverview(m.day, m.total, m.entries, width))
}

func renderOverview(day, total model.Stats, entries []projection.Entry, width int) string {
	sections := []string{
		cardValueStyle.Render("Last 24h"),
		renderStatCards(day, width),
		cardValueStyle.Render("Total"),
		renderStatCards(total, width),
		headerStyle.Render("Chests today: " + stats.FormatChests(day.Chests)),
		headerStyle.Render("Chests total: " + stats.FormatChests(total.Chests)),
	}
	if trend := fameTrend(entries); len(trend) > 1 {
		line := stats.Sparkline(stats.Resample(trend, maxInt(10, width-2)))
		sections = append(sections, "", cardTitleStyle.Render("Fame/h per run"), line)
	}
	return strings.Join(sections, "\n")
}

func renderStatCards(st model.Stats, width int) string {
	cards := []string{
		metricCard("Runs", fmt.Sprintf("%d", st.Runs)),
		metricCard("Fame", stats.FormatAmount(st.Fame)),
		metricCard("Silver", stats.FormatAmount(st.Silver)),
		metricCard("ReSpec", stats.FormatAmount(st.ReSpec)),
		metricCard("Faction", stats.FormatAmount(st.FactionFlags+st.FactionCoins)),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

// fameTrend returns fame per hour of done runs, oldest first.
func fameTrend(entries []projection.Entry) []float64 {
	out := make([]float64, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Status == model.StatusDone {
			out = append(out, entries[i].PerHour.Fame)
		}
	}
	return out
}

func runColumns() []table.Column {
	return []table.Column{
		{Title: " ", Width: 1},
		{Title: "#", Width: 5},
		{Title: "Entered", Width: 11},
		{Title: "Mode", Width: 10},
		{Title: "Faction", Width: 9},
		{Title: "Time", Width: 8},
		{Title: "Fame", Width: 10},
		{Title: "Fame/h", Width: 10},
		{Title: "Silver", Width: 10},
		{Title: "Silver/h", Width: 10},
		{Title: "Chests", Width: 6},
		{Title: "Status", Width: 6},
	}
}

func runRow(e projection.Entry, marked bool) table.Row {
	mark := " "
	if marked {
		mark = "•"
	}
	status := "done"
	switch {
	case e.DiedInDungeon:
		status = "died"
	case e.Status == model.StatusActive:
		status = "live"
	}
	return table.Row{
		mark,
		fmt.Sprintf("%d", e.RunNumber),
		e.EnterTime.Local().Format("01-02 15:04"),
		string(e.Mode),
		string(e.Faction),
		withBest(stats.FormatDuration(e.TotalRunTime), e.Best, projection.MetricTime),
		withBest(stats.FormatAmount(e.Rewards.Fame), e.Best, projection.MetricFame),
		withBest(stats.FormatAmount(e.PerHour.Fame), e.Best, projection.MetricFamePerHour),
		withBest(stats.FormatAmount(e.Rewards.Silver), e.Best, projection.MetricSilver),
		withBest(stats.FormatAmount(e.PerHour.Silver), e.Best, projection.MetricSilverPerHour),
		fmt.Sprintf("%d", len(e.EventObjects)),
		status,
	}
}

func withBest(value string, best projection.BestFlags, m projection.Metric) string {
	if best.Has(m) {
		return value + "*"
	}
	return value
}

func runTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func filterLabel(filter model.ModeFilter) string {
	if filter == nil {
		return "all"
	}
	return filter.String()
}
