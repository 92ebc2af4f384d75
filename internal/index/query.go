package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Zuo-Peng/imlog/internal/parse"
)

type ConversationRow struct {
	ID            string
	StartedAt     time.Time
	LocalService  parse.Service
	LocalAccount  string
	RemoteService parse.Service
	RemoteAccount string
	IsConference  bool
	Replies       int
}

type SpeakerRow struct {
	Name    string
	Service parse.Service
	Account string
}

type ReplyRow struct {
	Seq     int
	Time    time.Time
	Speaker string // empty for system lines
	Text    string
}

// Filter narrows Conversations. Zero values mean no restriction.
type Filter struct {
	Account string // local or remote account name
	Service parse.Service
	Since   time.Time
	Limit   int
}

const conversationSelect = `
	SELECT c.id, c.started_at, la.service, la.name, ra.service, ra.name, c.is_conference,
		(SELECT COUNT(*) FROM replies r WHERE r.conversation_id = c.id)
	FROM conversations c
	JOIN accounts la ON la.id = c.local_account
	JOIN accounts ra ON ra.id = c.remote_account`

func scanConversation(sc interface{ Scan(...any) error }) (ConversationRow, error) {
	var (
		c                   ConversationRow
		started, lsvc, rsvc string
	)
	if err := sc.Scan(&c.ID, &started, &lsvc, &c.LocalAccount, &rsvc, &c.RemoteAccount, &c.IsConference, &c.Replies); err != nil {
		return c, err
	}
	t, err := parseTime(started)
	if err != nil {
		return c, err
	}
	c.StartedAt = t
	c.LocalService = parse.Service(lsvc)
	c.RemoteService = parse.Service(rsvc)
	return c, nil
}

// Conversations lists stored conversations, newest first.
func (s *Store) Conversations(ctx context.Context, f Filter) ([]ConversationRow, error) {
	var conditions []string
	var args []any

	if f.Account != "" {
		conditions = append(conditions, "(la.name = ? OR ra.name = ?)")
		args = append(args, f.Account, f.Account)
	}
	if f.Service != "" {
		conditions = append(conditions, "(la.service = ? OR ra.service = ?)")
		args = append(args, string(f.Service), string(f.Service))
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "c.started_at >= ?")
		args = append(args, formatTime(f.Since))
	}

	query := conversationSelect
	if len(conditions) > 0 {
		query += "\nWHERE " + strings.Join(conditions, " AND ")
	}
	query += "\nORDER BY c.started_at DESC, c.rowid DESC"
	if f.Limit > 0 {
		query += "\nLIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationRow
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Conversation returns one conversation, or nil if id is unknown.
func (s *Store) Conversation(ctx context.Context, id string) (*ConversationRow, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx, conversationSelect+"\nWHERE c.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) Speakers(ctx context.Context, conversationID string) ([]SpeakerRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.name, a.service, a.name
		 FROM speakers s JOIN accounts a ON a.id = s.account_id
		 WHERE s.conversation_id = ? ORDER BY s.rowid`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SpeakerRow
	for rows.Next() {
		var (
			sp  SpeakerRow
			svc string
		)
		if err := rows.Scan(&sp.Name, &svc, &sp.Account); err != nil {
			return nil, err
		}
		sp.Service = parse.Service(svc)
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *Store) Replies(ctx context.Context, conversationID string) ([]ReplyRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.seq, r.ts, COALESCE(s.name, ''), r.text
		 FROM replies r LEFT JOIN speakers s ON s.id = r.speaker_id
		 WHERE r.conversation_id = ? ORDER BY r.seq`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReplyRow
	for rows.Next() {
		var (
			r  ReplyRow
			ts string
		)
		if err := rows.Scan(&r.Seq, &ts, &r.Speaker, &r.Text); err != nil {
			return nil, err
		}
		if r.Time, err = parseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type Counts struct {
	Identities    int
	Contacts      int
	Accounts      int
	Conversations int
	Replies       int
}

func (c Counts) String() string {
	return fmt.Sprintf("identities=%d contacts=%d accounts=%d conversations=%d replies=%d",
		c.Identities, c.Contacts, c.Accounts, c.Conversations, c.Replies)
}

func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM identities),
		(SELECT COUNT(*) FROM contacts),
		(SELECT COUNT(*) FROM accounts),
		(SELECT COUNT(*) FROM conversations),
		(SELECT COUNT(*) FROM replies)`,
	).Scan(&c.Identities, &c.Contacts, &c.Accounts, &c.Conversations, &c.Replies)
	return c, err
}
