package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mescam/misra/logger"
	"github.com/mescam/misra/node"
	"github.com/mescam/misra/pingpong"
	"github.com/mescam/misra/trace"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Run a ring inside an interactive terminal UI",
	Long: `Run a ring and watch it live: per-node protocol state, token traffic
counters and the diagnostic stream.

Keyboard shortcuts:
  ↑/↓/j/k - Scroll logs
  Q       - Quit

Examples:
  misra interactive --nodes=5 --ping-loss=0.1`,
	Run: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
	registerRingFlags(interactiveCmd)
}

// ringStats summarizes the trace for the header counters.
type ringStats struct {
	sends       int
	delivers    int
	drops       int
	regenerated int
	incarnated  int
	generation  int64
}

func summarize(events []trace.Event) ringStats {
	var s ringStats
	s.generation = 1
	for _, ev := range events {
		switch ev.Kind {
		case trace.KindSend:
			s.sends++
		case trace.KindDeliver:
			s.delivers++
		case trace.KindDrop:
			s.drops++
		case trace.KindRegenerate:
			s.regenerated++
		case trace.KindIncarnate:
			s.incarnated++
			if ev.Token.Magnitude() > s.generation {
				s.generation = ev.Token.Magnitude()
			}
		}
	}
	return s
}

type model struct {
	ring      *node.Ring
	recorder  *trace.Recorder
	stats     ringStats
	logBuffer *logger.LogBuffer
	logScroll int
	width     int
	height    int
	stopping  bool
	err       error
}

func initialModel() model {
	// Interactive mode keeps stderr quiet; diagnostics go to the log
	// buffer rendered by the UI.
	logBuffer := logger.GetGlobalLogBuffer()
	logger.Init(false)
	logger.AddOutput(logger.NewLogBufferWriter(logBuffer))

	recorder := trace.NewRecorder()
	m := model{
		recorder:  recorder,
		logBuffer: logBuffer,
		stats:     ringStats{generation: 1},
	}

	ring, err := node.NewRing(ringConfig(), recorder)
	if err != nil {
		m.err = err
		return m
	}
	if err := ring.Start(); err != nil {
		m.err = err
		return m
	}
	m.ring = ring
	return m
}

func (m model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

type tickMsg struct{}

type shutdownCompleteMsg struct{}

// shutdownRing stops all nodes and sends a message when complete.
func shutdownRing(ring *node.Ring) tea.Cmd {
	return func() tea.Msg {
		if ring != nil {
			ring.Stop()
		}
		return shutdownCompleteMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.stopping {
				return m, nil
			}
			m.stopping = true
			return m, shutdownRing(m.ring)

		case "up", "k":
			maxScroll := len(m.logBuffer.GetAll()) - logLines
			if maxScroll < 0 {
				maxScroll = 0
			}
			if m.logScroll < maxScroll {
				m.logScroll++
			}
			return m, nil

		case "down", "j":
			if m.logScroll > 0 {
				m.logScroll--
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.stats = summarize(m.recorder.Snapshot())
		return m, tick()

	case shutdownCompleteMsg:
		return m, tea.Quit
	}

	return m, nil
}

const logLines = 15

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(1, 2)
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
	holdingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")).
			Bold(true)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			PaddingTop(1)
)

func (m model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Misra Token Ring"))
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n\n")
		s.WriteString(helpStyle.Render("Q to quit"))
		return s.String()
	}

	s.WriteString(fmt.Sprintf(
		"Generation %d | sent %d | delivered %d | dropped %d | regenerated %d | incarnated %d\n\n",
		m.stats.generation, m.stats.sends, m.stats.delivers, m.stats.drops,
		m.stats.regenerated, m.stats.incarnated))

	s.WriteString("Nodes:\n\n")
	for _, n := range m.ring.Nodes() {
		snap := n.Snapshot()
		line := fmt.Sprintf("[%02d] %-12s marker=%-4d t=%d",
			n.Rank(), snap.State, snap.LastForwarded, n.LogicalTime())
		if snap.State != pingpong.Idle {
			line = holdingStyle.Render(line)
		}
		s.WriteString("  " + line + "\n")
	}

	s.WriteString("\n")
	s.WriteString(m.renderLogs())
	s.WriteString("\n\n")

	if m.stopping {
		s.WriteString(helpStyle.Render("Stopping nodes..."))
	} else {
		s.WriteString(helpStyle.Render("↑/↓/j/k to scroll logs | Q to quit"))
	}

	return s.String()
}

func (m model) renderLogs() string {
	entries := m.logBuffer.GetAll()

	var lines []string
	if len(entries) == 0 {
		lines = []string{"(no logs yet)"}
	} else {
		end := len(entries) - m.logScroll
		if end < 0 {
			end = 0
		}
		start := end - logLines
		if start < 0 {
			start = 0
		}
		// Newest first.
		for i := end - 1; i >= start; i-- {
			lines = append(lines, logger.FormatLogEntry(entries[i]))
		}
	}

	boxWidth := 100
	if m.width > 0 {
		boxWidth = m.width - 4
	}

	content := "Logs:\n" + strings.Join(lines, "\n")
	return boxStyle.Height(logLines + 2).Width(boxWidth).Render(content)
}

func runInteractive(cmd *cobra.Command, args []string) {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running interactive mode: %v\n", err)
	}
}
