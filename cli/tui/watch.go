package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bizkut/eden-fft-agent/types"
)

// Update is one live state delivery to the watch view.
type Update struct {
	Snapshot types.PartySnapshot
	Changes  []types.FieldChange
}

// Feed delivers live snapshots to the watch view. Closing the channel
// ends the view.
type Feed struct {
	Updates <-chan Update
}

// maxChangeLines bounds the recent-changes pane.
const maxChangeLines = 5

// WatchModel is the Bubble Tea model for the live party view.
type WatchModel struct {
	feed     Feed
	table    table.Model
	snapshot types.PartySnapshot
	changes  []string
	haveData bool
	width    int
	height   int
	quitting bool
}

// NewWatchModel creates a watch model over a feed.
func NewWatchModel(feed Feed) WatchModel {
	columns := []table.Column{
		{Title: "Slot", Width: 4},
		{Title: "Job", Width: 16},
		{Title: "HP", Width: 9},
		{Title: "MP", Width: 9},
		{Title: "Brave", Width: 5},
		{Title: "Faith", Width: 5},
		{Title: "Speed", Width: 5},
		{Title: "Attack", Width: 6},
		{Title: "Status", Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(6),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(primaryColor)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(highlightColor)
	t.SetStyles(styles)

	return WatchModel{feed: feed, table: t}
}

type updateMsg Update

type feedClosedMsg struct{}

func waitForUpdate(ch <-chan Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return feedClosedMsg{}
		}
		return updateMsg(u)
	}
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd {
	return waitForUpdate(m.feed.Updates)
}

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case updateMsg:
		m.snapshot = msg.Snapshot
		m.haveData = true
		m.table.SetRows(partyRows(msg.Snapshot))
		for _, c := range msg.Changes {
			m.changes = append(m.changes, formatChange(c))
		}
		if len(m.changes) > maxChangeLines {
			m.changes = m.changes[len(m.changes)-maxChangeLines:]
		}
		return m, waitForUpdate(m.feed.Updates)

	case feedClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Party Watch"))
	b.WriteString("\n")

	if !m.haveData {
		b.WriteString(StatusStyle.Render("waiting for first snapshot..."))
	} else {
		active := m.snapshot.ActiveUnits()
		alive := 0
		worst := 1.0
		for _, u := range active {
			if u.Alive() {
				alive++
			}
			if f := u.HPFraction(); f < worst {
				worst = f
			}
		}
		b.WriteString(StatusStyle.Render(fmt.Sprintf(
			"seq %d  captured %s  ",
			m.snapshot.Seq,
			m.snapshot.CapturedAt.Format("15:04:05"),
		)))
		b.WriteString(HPStyle(worst).Render(fmt.Sprintf("%d/%d alive", alive, len(active))))
		b.WriteString("\n\n")
		b.WriteString(m.table.View())
	}

	if len(m.changes) > 0 {
		b.WriteString("\n\n")
		b.WriteString(StatusStyle.Render("Recent changes"))
		b.WriteString("\n")
		for _, line := range m.changes {
			b.WriteString(ChangeStyle.Render("  " + line))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("Press q or Ctrl+C to quit"))
	return b.String()
}

// partyRows maps occupied party slots onto table rows.
func partyRows(snap types.PartySnapshot) []table.Row {
	var rows []table.Row
	for _, u := range snap.Units {
		if !u.Present() {
			continue
		}
		job := "-"
		if u.Job.Known() {
			job = u.Job.String()
		}
		status := "-"
		if combined := uint32(u.StatusShield1) | uint32(u.StatusShield2)<<16; combined != 0 {
			status = fmt.Sprintf("0x%06x", combined)
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", u.Slot),
			job,
			fmt.Sprintf("%d/%d", u.HP, u.MaxHP),
			fmt.Sprintf("%d/%d", u.MP, u.MaxMP),
			fmt.Sprintf("%d", u.Brave),
			fmt.Sprintf("%d", u.Faith),
			fmt.Sprintf("%d", u.Speed),
			fmt.Sprintf("%d", u.Attack),
			status,
		})
	}
	return rows
}

func formatChange(c types.FieldChange) string {
	return fmt.Sprintf("slot %d %s %d -> %d", c.Slot, c.Field, c.Old, c.New)
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunWatchTUI runs the live party view until quit or feed close.
func RunWatchTUI(feed Feed) error {
	p := tea.NewProgram(NewWatchModel(feed), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Run starts the appropriate TUI based on the view type.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	if strings.HasPrefix(viewType, "watch_") {
		feed, ok := data.(Feed)
		if !ok {
			return fmt.Errorf("invalid data type for %s", viewType)
		}
		return RunWatchTUI(feed)
	}

	return fmt.Errorf("unknown view type: %s", viewType)
}

// IsTUISupported returns true if the view type supports TUI mode.
func IsTUISupported(viewType string) bool {
	return strings.HasPrefix(viewType, "watch_")
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{"watch_party"}
}
