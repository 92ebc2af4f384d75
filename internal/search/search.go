// Package search finds replies in the archive database.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Zuo-Peng/imlog/internal/index"
)

type Result struct {
	ConversationID string
	Seq            int
	StartedAt      string
	LocalAccount   string
	RemoteAccount  string
	Speaker        string
	Snippet        string
	Rank           float64
}

type Options struct {
	Query   string
	Account string    // "" = all, else local or remote account name
	Since   time.Time // zero = no filter
	Limit   int
}

// containsCJK returns true if the string contains any CJK Unified Ideograph.
func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// makeSnippet extracts a snippet around the first occurrence of query in text.
func makeSnippet(text, query string, contextChars int) string {
	lower := strings.ToLower(text)
	qLower := strings.ToLower(query)
	idx := strings.Index(lower, qLower)
	if query == "" || idx < 0 || len(lower) != len(text) {
		if len([]rune(text)) > contextChars*2 {
			return string([]rune(text)[:contextChars*2]) + "..."
		}
		return text
	}
	runes := []rune(text)
	qRunes := []rune(query)
	runePos := len([]rune(text[:idx]))
	start := max(runePos-contextChars, 0)
	end := min(runePos+len(qRunes)+contextChars, len(runes))

	prefix, suffix := "", ""
	if start > 0 {
		prefix = "..."
	}
	if end < len(runes) {
		suffix = "..."
	}
	snippet := string(runes[start:runePos]) +
		">>>" + string(runes[runePos:runePos+len(qRunes)]) + "<<<" +
		string(runes[runePos+len(qRunes):end])
	return prefix + snippet + suffix
}

// Search returns the best matching reply of each matching conversation.
func Search(ctx context.Context, s *index.Store, opts Options) ([]Result, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	// fetch more before dedup so enough remain after it
	origLimit := opts.Limit
	opts.Limit = origLimit * 3

	var results []Result
	var err error
	if containsCJK(opts.Query) {
		results, err = searchLike(ctx, s.Raw(), opts)
	} else {
		results, err = searchFTS(ctx, s.Raw(), opts)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var deduped []Result
	for _, r := range results {
		if seen[r.ConversationID] {
			continue
		}
		seen[r.ConversationID] = true
		deduped = append(deduped, r)
		if len(deduped) >= origLimit {
			break
		}
	}
	return deduped, nil
}

func filters(opts Options) ([]string, []any) {
	var conditions []string
	var args []any
	if opts.Account != "" {
		conditions = append(conditions, "(la.name = ? OR ra.name = ?)")
		args = append(args, opts.Account, opts.Account)
	}
	if !opts.Since.IsZero() {
		conditions = append(conditions, "c.started_at >= ?")
		args = append(args, opts.Since.UTC().Format("2006-01-02T15:04:05Z"))
	}
	return conditions, args
}

const joins = `
		JOIN conversations c ON c.id = r.conversation_id
		JOIN accounts la ON la.id = c.local_account
		JOIN accounts ra ON ra.id = c.remote_account
		LEFT JOIN speakers sp ON sp.id = r.speaker_id`

func searchFTS(ctx context.Context, db *sql.DB, opts Options) ([]Result, error) {
	conditions, args := filters(opts)
	conditions = append([]string{"replies_fts MATCH ?"}, conditions...)
	args = append([]any{opts.Query}, args...)

	query := fmt.Sprintf(`
		SELECT
			r.conversation_id,
			r.seq,
			c.started_at,
			la.name,
			ra.name,
			COALESCE(sp.name, ''),
			snippet(replies_fts, 0, '>>>', '<<<', '...', 40) AS snip,
			bm25(replies_fts, 1.0) AS rank
		FROM replies_fts
		JOIN replies r ON replies_fts.rowid = r.rowid
		%s
		WHERE %s
		ORDER BY rank
		LIMIT ?
	`, joins, strings.Join(conditions, " AND "))
	args = append(args, opts.Limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(
			&r.ConversationID, &r.Seq, &r.StartedAt,
			&r.LocalAccount, &r.RemoteAccount, &r.Speaker,
			&r.Snippet, &r.Rank,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func searchLike(ctx context.Context, db *sql.DB, opts Options) ([]Result, error) {
	conditions, args := filters(opts)
	conditions = append([]string{"r.text LIKE ?"}, conditions...)
	args = append([]any{"%" + opts.Query + "%"}, args...)

	query := fmt.Sprintf(`
		SELECT
			r.conversation_id,
			r.seq,
			c.started_at,
			la.name,
			ra.name,
			COALESCE(sp.name, ''),
			r.text
		FROM replies r
		%s
		WHERE %s
		ORDER BY c.started_at DESC, r.seq
		LIMIT ?
	`, joins, strings.Join(conditions, " AND "))
	args = append(args, opts.Limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var fullText string
		if err := rows.Scan(
			&r.ConversationID, &r.Seq, &r.StartedAt,
			&r.LocalAccount, &r.RemoteAccount, &r.Speaker,
			&fullText,
		); err != nil {
			return nil, err
		}
		r.Snippet = makeSnippet(fullText, opts.Query, 30)
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListAll returns every conversation newest first, each with its first
// reply as the snippet. Query is ignored.
func ListAll(ctx context.Context, s *index.Store, opts Options) ([]Result, error) {
	if opts.Limit <= 0 {
		opts.Limit = 500
	}
	conditions, args := filters(opts)
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT
			c.id,
			c.started_at,
			la.name,
			ra.name,
			COALESCE((SELECT sp.name FROM replies r LEFT JOIN speakers sp ON sp.id = r.speaker_id
				WHERE r.conversation_id = c.id ORDER BY r.seq LIMIT 1), ''),
			COALESCE((SELECT r.text FROM replies r
				WHERE r.conversation_id = c.id ORDER BY r.seq LIMIT 1), '')
		FROM conversations c
		JOIN accounts la ON la.id = c.local_account
		JOIN accounts ra ON ra.id = c.remote_account
		%s
		ORDER BY c.started_at DESC, c.rowid DESC
		LIMIT ?
	`, where)
	args = append(args, opts.Limit)

	rows, err := s.Raw().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var text string
		if err := rows.Scan(&r.ConversationID, &r.StartedAt, &r.LocalAccount, &r.RemoteAccount, &r.Speaker, &text); err != nil {
			return nil, err
		}
		r.Snippet = makeSnippet(text, "", 40)
		results = append(results, r)
	}
	return results, rows.Err()
}
