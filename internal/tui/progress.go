package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Zuo-Peng/imlog/internal/importer"
)

// ImportFunc runs an import, reporting through progress.
type ImportFunc func(ctx context.Context, progress importer.ProgressFunc) (importer.Result, error)

type progressMsg struct {
	phase            string
	completed, total int
}

type importDoneMsg struct {
	res importer.Result
	err error
}

type importModel struct {
	ctx    context.Context
	cancel context.CancelFunc
	run    ImportFunc
	send   func(tea.Msg)

	bar     progress.Model
	spinner spinner.Model

	phase            string
	completed, total int
	cancelling       bool
	finished         bool
	res              importer.Result
	err              error
}

func newImportModel(ctx context.Context, run ImportFunc) *importModel {
	ctx, cancel := context.WithCancel(ctx)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = stylePhase
	return &importModel{
		ctx:     ctx,
		cancel:  cancel,
		run:     run,
		bar:     progress.New(progress.WithDefaultGradient()),
		spinner: sp,
		phase:   "Starting",
	}
}

// RunImport runs an import behind a progress view. Esc or Ctrl+C cancels
// the import; it stops before the next file or conversation.
func RunImport(ctx context.Context, run ImportFunc) (importer.Result, error) {
	m := newImportModel(ctx, run)
	defer m.cancel()

	p := tea.NewProgram(m)
	m.send = p.Send
	final, err := p.Run()
	if err != nil {
		return importer.Result{}, fmt.Errorf("tui: %w", err)
	}
	fm := final.(*importModel)
	return fm.res, fm.err
}

func (m *importModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

func (m *importModel) start() tea.Cmd {
	return func() tea.Msg {
		res, err := m.run(m.ctx, func(phase string, completed, total int) {
			if m.send != nil {
				m.send(progressMsg{phase, completed, total})
			}
		})
		return importDoneMsg{res, err}
	}
}

func (m *importModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-4, 10), 80)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, cancelKey) && !m.cancelling {
			m.cancelling = true
			m.cancel()
		}
		return m, nil

	case progressMsg:
		m.phase, m.completed, m.total = msg.phase, msg.completed, msg.total
		return m, nil

	case importDoneMsg:
		m.finished = true
		m.res, m.err = msg.res, msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *importModel) View() string {
	var b strings.Builder
	switch {
	case m.finished && m.err != nil:
		b.WriteString(styleError.Render("Import failed: ") + m.err.Error() + "\n")
		return b.String()
	case m.finished:
		b.WriteString(stylePhase.Render("Import complete: ") + m.res.String() + "\n")
		return b.String()
	}

	b.WriteString(m.spinner.View() + " " + stylePhase.Render(m.phase))
	if m.total > 0 {
		fmt.Fprintf(&b, " %d/%d\n", m.completed, m.total)
		b.WriteString(m.bar.ViewAs(float64(m.completed) / float64(m.total)))
	} else {
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.cancelling {
		b.WriteString(styleStatusBar.Render("cancelling..."))
	} else {
		b.WriteString(styleStatusBar.Render(cancelKey.Help().Key + " " + cancelKey.Help().Desc))
	}
	return b.String() + "\n"
}
