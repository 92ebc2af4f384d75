// Package render formats stored conversations for the terminal.
package render

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/imlog/internal/index"
)

const (
	colorReset   = "\033[0m"
	colorLocal   = "\033[1;34m" // bold blue
	colorRemote  = "\033[1;32m" // bold green
	colorDim     = "\033[2m"
	colorHit     = "\033[43m"   // yellow background
	colorBoldRed = "\033[1;31m" // bold red for keyword highlights
)

type Options struct {
	Hit     bool // center on the reply HitSeq
	HitSeq  int
	Context int    // replies before/after hit to show
	Width   int    // wrap width (0 = no wrap)
	Query   string // search query for keyword highlighting
}

// fts5Operators are FTS5 operators that should not be highlighted as keywords.
var fts5Operators = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "NEAR": true,
	"and": true, "or": true, "not": true, "near": true,
}

// highlightKeywords wraps case-insensitive matches of query terms in bold red ANSI codes.
func highlightKeywords(text, query string) string {
	if query == "" {
		return text
	}
	terms := strings.Fields(query)
	var filtered []string
	for _, t := range terms {
		if !fts5Operators[t] {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return text
	}
	for _, term := range filtered {
		lower := strings.ToLower(term)
		i := 0
		for i < len(text) {
			idx := strings.Index(strings.ToLower(text[i:]), lower)
			if idx < 0 {
				break
			}
			pos := i + idx
			orig := text[pos : pos+len(term)]
			replacement := colorBoldRed + orig + colorReset
			text = text[:pos] + replacement + text[pos+len(term):]
			i = pos + len(replacement)
		}
	}
	return text
}

// indentLines prepends each line of text with the given prefix.
func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// wrapLine breaks a single line into multiple lines that fit within maxWidth
// visible columns, correctly skipping ANSI escape sequences when measuring width.
func wrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	i := 0
	for i < len(line) {
		// check for ANSI escape sequence: ESC[ ... m
		if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++ // include 'm'
			}
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)

		if visW+rw > maxWidth {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}

		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}

	if len(result) == 0 {
		return []string{""}
	}
	return result
}

// Conversation renders a stored conversation and returns the content, the
// 0-based line number of the hit reply header (-1 if no hit), and any error.
func Conversation(ctx context.Context, s *index.Store, id string, opts Options) (string, int, error) {
	if opts.Context == 0 {
		opts.Context = 10
	}
	if opts.Context < 0 {
		opts.Context = 1000000 // no limit
	}

	conv, err := s.Conversation(ctx, id)
	if err != nil {
		return "", -1, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return "", -1, fmt.Errorf("conversation not found: %s", id)
	}
	speakers, err := s.Speakers(ctx, id)
	if err != nil {
		return "", -1, fmt.Errorf("get speakers: %w", err)
	}
	replies, err := s.Replies(ctx, id)
	if err != nil {
		return "", -1, fmt.Errorf("get replies: %w", err)
	}

	var b strings.Builder
	hitLine := -1
	lineCount := 0
	separator := colorDim + "--------------------------------------------------" + colorReset

	// wraps long lines if Width is set
	writeLine := func(s string) {
		for _, wl := range wrapLine(s, opts.Width) {
			b.WriteString(wl)
			b.WriteString("\n")
			lineCount++
		}
	}

	kind := "chat"
	if conv.IsConference {
		kind = "conference"
	}
	writeLine(fmt.Sprintf("%s--- %s [%s] %s/%s <-> %s/%s %s ---%s",
		colorDim, conv.StartedAt.Format("2006-01-02 15:04"), kind,
		conv.LocalService, conv.LocalAccount, conv.RemoteService, conv.RemoteAccount,
		colorReset))
	if len(speakers) > 0 {
		names := make([]string, len(speakers))
		for i, sp := range speakers {
			names[i] = sp.Name
			if sp.Account != sp.Name {
				names[i] += " (" + sp.Account + ")"
			}
		}
		writeLine(colorDim + "speakers: " + strings.Join(names, ", ") + colorReset)
	}

	if len(replies) == 0 {
		writeLine("(empty conversation)")
		return b.String(), -1, nil
	}

	start, end := 0, len(replies)
	hitIdx := -1
	if opts.Hit {
		for i, r := range replies {
			if r.Seq == opts.HitSeq {
				hitIdx = i
				break
			}
		}
	}
	if hitIdx >= 0 {
		start = max(hitIdx-opts.Context, 0)
		end = min(hitIdx+opts.Context+1, len(replies))
	}

	if start > 0 {
		writeLine(fmt.Sprintf("%s... (%d messages before) ...%s", colorDim, start, colorReset))
	}

	for i := start; i < end; i++ {
		r := replies[i]
		isHit := i == hitIdx

		if i > start {
			writeLine(separator)
		}
		if isHit {
			hitLine = lineCount
		}

		label, color := r.Speaker, colorRemote
		switch r.Speaker {
		case "":
			label, color = "*", colorDim
		case conv.LocalAccount:
			color = colorLocal
		}
		ts := r.Time.Format("15:04:05")

		if isHit {
			writeLine(fmt.Sprintf("%s>> %s > %s <<%s", colorHit, label, ts, colorReset))
		} else {
			writeLine(fmt.Sprintf("%s%s >%s %s%s%s", color, label, colorReset, colorDim, ts, colorReset))
		}

		text := highlightKeywords(r.Text, opts.Query)
		if r.Speaker == "" {
			text = colorDim + text + colorReset
		}
		for _, tl := range strings.Split(indentLines(text, "  "), "\n") {
			writeLine(tl)
		}
		writeLine("")
	}

	if after := len(replies) - end; after > 0 {
		writeLine(fmt.Sprintf("%s... (%d messages after) ...%s", colorDim, after, colorReset))
	}

	return b.String(), hitLine, nil
}
