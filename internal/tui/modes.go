package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rfsynth/internal/rational"
	"rfsynth/internal/synth"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	DetailScreen
)

// modePreview holds the realized output a mode would produce for the
// configured request.
type modePreview struct {
	mode      synth.Mode
	exactHz   float64 // frequency actually realized
	errorHz   float64 // realized minus requested
	nWords    int     // buffer length, 0 for the unbuffered mode
	nPeriods  int
	numerator uint32
	denom     uint32
}

// ModeListModel is the Bubble Tea model for browsing synthesis modes and
// previewing the frequency each one would realize.
type ModeListModel struct {
	requestHz float64
	clockHz   float64
	maxWords  int

	previews      []modePreview
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType
}

// NewModeListModel creates a mode browser for the given request.
func NewModeListModel(requestHz, clockHz float64, maxWords int) ModeListModel {
	return ModeListModel{
		requestHz:    requestHz,
		clockHz:      clockHz,
		maxWords:     maxWords,
		activeScreen: ListScreen,
	}
}

// Init initializes the Bubble Tea model
func (m ModeListModel) Init() tea.Cmd {
	return m.fetchPreviews
}

type previewsMsg struct {
	previews []modePreview
}

type errMsg struct {
	err error
}

// fetchPreviews computes the realized frequency of every mode for the
// configured request.
func (m ModeListModel) fetchPreviews() tea.Msg {
	if m.requestHz <= 0 || m.clockHz <= 0 {
		return errMsg{fmt.Errorf("invalid request: %g Hz at clock %g Hz", m.requestHz, m.clockHz)}
	}

	previews := make([]modePreview, 0, synth.NumModes)
	for mode := synth.Mode(0); mode.Valid(); mode++ {
		p := modePreview{mode: mode}

		if !mode.Buffered() {
			// Clock-divider mode quantizes the divider to 1/256 steps.
			divider := math.Round(256*m.clockHz/(2*m.requestHz)) / 256
			p.exactHz = m.clockHz / (2 * divider)
		} else {
			maxDenom := uint32(min(synth.BufferCapacityWords, m.maxWords))
			approx := rational.Approximate(m.requestHz*synth.SlotsPerWord/m.clockHz, maxDenom)
			mult := synth.BufferCapacityWords / int(approx.Denominator)
			p.numerator = approx.Numerator
			p.denom = approx.Denominator
			p.nWords = int(approx.Denominator) * mult
			p.nPeriods = int(approx.Numerator) * mult
			p.exactHz = approx.Float() * m.clockHz / synth.SlotsPerWord
		}
		p.errorHz = p.exactHz - m.requestHz
		previews = append(previews, p)
	}
	return previewsMsg{previews}
}

func (m ModeListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true

			if len(m.previews) > 0 {
				m.viewport.SetContent(m.renderModes())
			}
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case previewsMsg:
		m.previews = msg.previews
		if m.ready {
			m.viewport.SetContent(m.renderModes())
		}

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		// Keys that work everywhere first.
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c"))) {
			return m, tea.Quit
		}

		if m.activeScreen == ListScreen {
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
				if m.selectedIndex > 0 {
					m.selectedIndex--
					m.viewport.SetContent(m.renderModes())
				}

			case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
				if m.selectedIndex < len(m.previews)-1 {
					m.selectedIndex++
					m.viewport.SetContent(m.renderModes())
				}

			case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
				if len(m.previews) > 0 {
					m.activeScreen = DetailScreen
					m.viewport.SetContent(m.renderModeDetail())
				}
			}
		} else if m.activeScreen == DetailScreen {
			if key.Matches(msg, key.NewBinding(key.WithKeys("esc"))) {
				m.activeScreen = ListScreen
				m.viewport.SetContent(m.renderModes())
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the UI
func (m ModeListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	var title, help string

	if m.activeScreen == ListScreen {
		title = titleStyle.Render(fmt.Sprintf("Synthesis Modes (%.6f MHz requested)", m.requestHz/1e6))
		help = infoStyle.Render("↑/↓: Navigate • Enter: Details • q: Quit")
	} else {
		title = titleStyle.Render("Mode Details")
		help = infoStyle.Render("Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderModes formats the mode list with realized frequencies.
func (m ModeListModel) renderModes() string {
	var sb strings.Builder

	if len(m.previews) == 0 {
		return "Computing previews..."
	}

	for i, p := range m.previews {
		line := fmt.Sprintf("[%d] %s\n", int(p.mode), p.mode)
		line += fmt.Sprintf("    Realized: %.6f MHz (error %+.3f Hz)\n",
			p.exactHz/1e6, p.errorHz)

		if i == m.selectedIndex {
			line = highlightStyle.Render(line)
		}

		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return sb.String()
}

// renderModeDetail formats the detail screen for the selected mode.
func (m ModeListModel) renderModeDetail() string {
	var sb strings.Builder
	p := m.previews[m.selectedIndex]

	sb.WriteString(fmt.Sprintf("Mode %d: %s\n\n", int(p.mode), p.mode))
	sb.WriteString(fmt.Sprintf("Requested:  %.6f MHz\n", m.requestHz/1e6))
	sb.WriteString(fmt.Sprintf("Realized:   %.6f MHz\n", p.exactHz/1e6))
	sb.WriteString(fmt.Sprintf("Error:      %+.3f Hz\n\n", p.errorHz))

	if p.mode.Buffered() {
		sb.WriteString(fmt.Sprintf("Approximation: %d / %d\n", p.numerator, p.denom))
		sb.WriteString(fmt.Sprintf("Buffer:        %d words, %d carrier periods\n", p.nWords, p.nPeriods))
		sb.WriteString(fmt.Sprintf("Buffer time:   %.3f ms\n",
			float64(p.nWords*synth.SlotsPerWord)/m.clockHz*1e3))
	} else {
		sb.WriteString("Unbuffered: carrier comes straight from the clock divider.\n")
	}

	if p.mode.ClickFree() {
		sb.WriteString("\nKeying uses raised-cosine amplitude ramps.\n")
	}

	return sb.String()
}

// StartModeListUI launches the Bubble Tea TUI for browsing modes.
func StartModeListUI(requestHz, clockHz float64, maxWords int) error {
	p := tea.NewProgram(
		NewModeListModel(requestHz, clockHz, maxWords),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
