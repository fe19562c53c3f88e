package cli

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/promosignal/internal/models"
	"github.com/raphaelgruber/promosignal/internal/service"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// runUpdateMsg carries a run snapshot from the pipeline
type runUpdateMsg service.RunSnapshot

// runDoneMsg is sent once the pipeline returns
type runDoneMsg struct {
	report *service.RunReport
	err    error
}

// progressModel is the bubbletea model for a pipeline run.
type progressModel struct {
	run      service.RunSnapshot
	report   *service.RunReport
	progress progress.Model
	theme    Theme
	cancel   context.CancelFunc
	stopping bool
	done     bool
	err      error
}

// newProgressModel creates a new progress model.
func newProgressModel(total int, cancel context.CancelFunc) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		run:      service.RunSnapshot{Status: service.RunStatusPending, Total: total},
		progress: prog,
		theme:    defaultTheme,
		cancel:   cancel,
	}
}

// Init returns the initial command.
func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Wait for the pipeline to wind down and persist its manifest
			m.stopping = true
			m.cancel()
			return m, nil
		}

	case runUpdateMsg:
		m.run = service.RunSnapshot(msg)
		return m, nil

	case runDoneMsg:
		m.done = true
		m.report = msg.report
		m.err = msg.err
		if msg.report != nil {
			m.run = msg.report.Run
		}
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	var pct float64
	if m.run.Total > 0 {
		pct = float64(m.run.Progress) / float64(m.run.Total)
	}

	label := string(m.run.Status)
	if m.run.Stage != "" {
		label = m.run.Stage
	}
	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", label))
	bar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d employees", m.run.Progress, m.run.Total)

	hint := "Press Ctrl+C to stop"
	if m.stopping {
		hint = "Stopping..."
	}
	return fmt.Sprintf("%s %s %s\n%s\n", status, bar, counts, m.theme.hintStyle().Render(hint))
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Run %s failed: %s\n", m.run.ID, m.err))
	}

	var b strings.Builder
	b.WriteString(m.theme.completedStyle().Render("✓ Completed"))
	b.WriteString("\n\n")
	if r := m.report; r != nil {
		fmt.Fprintf(&b, "  VP patterns:     %d\n", len(r.Patterns[models.CohortVP]))
		fmt.Fprintf(&b, "  Non-VP patterns: %d\n", len(r.Patterns[models.CohortNonVP]))
		fmt.Fprintf(&b, "  Categories:      %d\n", len(r.Taxonomy))
	}
	return b.String()
}

// runWithProgress runs the pipeline while rendering its progress. The UI
// exits when the pipeline returns.
func runWithProgress(ctx context.Context, opts service.PipelineOptions, employees []models.Employee) (*service.RunReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(len(employees), cancel))
	opts.OnProgress = func(s service.RunSnapshot) {
		p.Send(runUpdateMsg(s))
	}

	pipeline, err := getPipeline(ctx, opts)
	if err != nil {
		return nil, err
	}

	done := make(chan runDoneMsg, 1)
	go func() {
		report, err := pipeline.Run(ctx, employees)
		msg := runDoneMsg{report: report, err: err}
		done <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	res := <-done
	return res.report, res.err
}
