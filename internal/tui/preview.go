package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Zuo-Peng/imlog/internal/index"
	"github.com/Zuo-Peng/imlog/internal/render"
	"github.com/Zuo-Peng/imlog/internal/search"
)

// previewRenderedMsg is sent when an async preview render completes.
type previewRenderedMsg struct {
	key     string
	content string
	hitLine int
	err     error
}

func previewKey(r search.Result) string {
	return fmt.Sprintf("%s:%d", r.ConversationID, r.Seq)
}

// loadPreviewCmd renders the conversation of r in the background.
func loadPreviewCmd(ctx context.Context, s *index.Store, r search.Result, query string, width int) tea.Cmd {
	return func() tea.Msg {
		content, hitLine, err := render.Conversation(ctx, s, r.ConversationID, render.Options{
			Hit:     query != "",
			HitSeq:  r.Seq,
			Context: -1,
			Width:   width,
			Query:   query,
		})
		return previewRenderedMsg{key: previewKey(r), content: content, hitLine: hitLine, err: err}
	}
}

func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.Style = stylePanelBorder
	return vp
}
