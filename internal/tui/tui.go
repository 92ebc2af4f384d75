// Package tui holds the interactive terminal views: a conversation browser
// over the archive database and the progress view of a running import.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Zuo-Peng/imlog/internal/index"
	"github.com/Zuo-Peng/imlog/internal/search"
)

const debounceDelay = 200 * time.Millisecond

type tuiMode int

const (
	modeSearch tuiMode = iota
	modeList
)

type searchResultMsg struct {
	query   string
	results []search.Result
	err     error
}

type debounceTickMsg struct {
	query string
}

type model struct {
	ctx         context.Context
	store       *index.Store
	searchOpts  search.Options
	mode        tuiMode
	query       string
	results     []search.Result
	cursor      int
	listOffset  int
	filterInput textinput.Model
	preview     viewport.Model
	previewKey  string
	width       int
	height      int
	ready       bool
	quitting    bool
	chosen      *search.Result
}

func newModel(ctx context.Context, s *index.Store, mode tuiMode, query string, opts search.Options) model {
	ti := textinput.New()
	ti.Placeholder = "Search..."
	if mode == modeList {
		ti.Placeholder = "Filter..."
	}
	ti.Focus()
	ti.SetValue(query)
	ti.Prompt = "> "
	ti.PromptStyle = styleInput
	ti.TextStyle = styleInput
	ti.CharLimit = 256

	return model{
		ctx:         ctx,
		store:       s,
		searchOpts:  opts,
		mode:        mode,
		query:       query,
		filterInput: ti,
		preview:     viewport.New(0, 0),
	}
}

// Browse starts the search browser and blocks until it exits. When a
// conversation is chosen, the command that previews it is copied to the
// clipboard.
func Browse(ctx context.Context, s *index.Store, query string, opts search.Options) error {
	return run(newModel(ctx, s, modeSearch, query, opts))
}

// BrowseList starts the browser listing every conversation, newest first.
func BrowseList(ctx context.Context, s *index.Store, opts search.Options) error {
	return run(newModel(ctx, s, modeList, "", opts))
}

func run(m model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(m.ctx))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	if fm := final.(model); fm.chosen != nil {
		copyPreviewCommand(fm.chosen.ConversationID)
	}
	return nil
}

func copyPreviewCommand(id string) {
	cmd := "imlog preview " + id
	if err := clipboard.WriteAll(cmd); err != nil {
		fmt.Println(cmd)
		return
	}
	fmt.Printf("Copied to clipboard: %s\n", cmd)
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.mode == modeList || m.query != "" {
		cmds = append(cmds, m.fetch(m.query))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.preview = newViewport(m.previewWidth(), m.panelHeight())
		m.previewKey = ""
		return m, m.loadCurrentPreview()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown {
			var vpCmd tea.Cmd
			m.preview, vpCmd = m.preview.Update(msg)
			return m, vpCmd
		}
		return m, nil

	case debounceTickMsg:
		// stale if the query changed while waiting
		if msg.query == m.query {
			return m, m.fetch(msg.query)
		}
		return m, nil

	case searchResultMsg:
		if msg.query != m.query {
			return m, nil
		}
		m.cursor = 0
		m.listOffset = 0
		m.previewKey = ""
		if msg.err != nil {
			m.results = nil
			m.preview.SetContent("Error: " + msg.err.Error())
			return m, nil
		}
		m.results = msg.results
		if len(m.results) == 0 {
			m.preview.SetContent("")
		}
		return m, m.loadCurrentPreview()

	case previewRenderedMsg:
		if m.cursor >= len(m.results) || previewKey(m.results[m.cursor]) != msg.key {
			return m, nil // stale
		}
		if msg.err != nil {
			m.preview.SetContent("Preview error: " + msg.err.Error())
		} else {
			m.preview.SetContent(msg.content)
			if msg.hitLine > 0 {
				m.preview.SetYOffset(msg.hitLine)
			} else {
				m.preview.GotoTop()
			}
		}
		m.previewKey = msg.key
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	half, full := m.panelHeight()/2, m.panelHeight()
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, keys.Enter) && m.cursor < len(m.results):
		chosen := m.results[m.cursor]
		m.chosen = &chosen
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, keys.Up):
		return m.move(-1)
	case key.Matches(msg, keys.Down):
		return m.move(1)
	case key.Matches(msg, keys.First):
		return m.move(-len(m.results))
	case key.Matches(msg, keys.Last):
		return m.move(len(m.results))
	case key.Matches(msg, keys.PreviewUp):
		return m.scroll(-half)
	case key.Matches(msg, keys.PreviewDn):
		return m.scroll(half)
	case key.Matches(msg, keys.PageUp):
		return m.scroll(-full)
	case key.Matches(msg, keys.PageDown):
		return m.scroll(full)
	}

	var inputCmd tea.Cmd
	m.filterInput, inputCmd = m.filterInput.Update(msg)
	q := m.filterInput.Value()
	if q == m.query {
		return m, inputCmd
	}
	m.query = q
	return m, tea.Batch(inputCmd, debounce(q))
}

// move shifts the selection by delta rows, clamped to the result list.
func (m model) move(delta int) (tea.Model, tea.Cmd) {
	next := min(max(m.cursor+delta, 0), max(len(m.results)-1, 0))
	if next != m.cursor {
		m.cursor = next
		m.adjustListScroll(m.panelHeight())
	}
	return m, m.loadCurrentPreview()
}

// scroll moves the preview by n lines, upwards when n is negative.
func (m model) scroll(n int) (tea.Model, tea.Cmd) {
	if n < 0 {
		m.preview.LineUp(-n)
	} else {
		m.preview.LineDown(n)
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting || !m.ready {
		return ""
	}

	panelH := m.panelHeight()
	listPanel := stylePanelBorder.
		Width(m.listWidth()).
		Height(panelH).
		Render(m.renderList(m.listWidth(), panelH))

	m.preview.Width = m.previewWidth()
	m.preview.Height = panelH
	previewPanel := styleActiveBorder.
		Width(m.previewWidth()).
		Height(panelH).
		Render(m.preview.View())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, listPanel, previewPanel)
	return lipgloss.JoinVertical(lipgloss.Left, m.filterInput.View(), panels, m.statusBar())
}

func (m model) listWidth() int {
	if m.width <= 0 {
		return 40
	}
	return max(m.width*40/100-4, 20)
}

func (m model) previewWidth() int {
	if m.width <= 0 {
		return 60
	}
	return max(m.width*60/100-4, 20)
}

func (m model) panelHeight() int {
	if m.height <= 0 {
		return 20
	}
	// input row, status bar and borders
	return max(m.height-6, 5)
}

func (m model) statusBar() string {
	parts := []string{
		fmt.Sprintf("%d conversations", len(m.results)),
		"up/dn/home/end navigate",
		"scroll/C-u/C-d preview",
		"Enter copy preview cmd",
		"Esc quit",
	}
	return styleStatusBar.Render(strings.Join(parts, " | "))
}

// fetch lists conversations in list mode without a filter and searches
// otherwise.
func (m model) fetch(query string) tea.Cmd {
	ctx, s, opts, mode := m.ctx, m.store, m.searchOpts, m.mode
	opts.Query = query
	return func() tea.Msg {
		var (
			results []search.Result
			err     error
		)
		switch {
		case query != "":
			results, err = search.Search(ctx, s, opts)
		case mode == modeList:
			results, err = search.ListAll(ctx, s, opts)
		}
		return searchResultMsg{query: query, results: results, err: err}
	}
}

func debounce(query string) tea.Cmd {
	return tea.Tick(debounceDelay, func(time.Time) tea.Msg {
		return debounceTickMsg{query: query}
	})
}

func (m model) loadCurrentPreview() tea.Cmd {
	if !m.ready || m.cursor >= len(m.results) {
		return nil
	}
	r := m.results[m.cursor]
	if previewKey(r) == m.previewKey {
		return nil
	}
	return loadPreviewCmd(m.ctx, m.store, r, m.query, m.previewWidth())
}
