package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Zuo-Peng/imlog/internal/archive"
	"github.com/Zuo-Peng/imlog/internal/parse"
)

// Tx is an open write transaction. It implements archive.Graph so that an
// import writes straight into the database.
type Tx struct {
	ctx context.Context
	tx  *sql.Tx
}

var _ archive.Graph = (*Tx)(nil)

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. It is a no-op after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

func (t *Tx) exec(query string, args ...any) error {
	_, err := t.tx.ExecContext(t.ctx, query, args...)
	return err
}

func (t *Tx) CreateIdentity(name string) (archive.Identity, error) {
	id := uuid.NewString()
	if err := t.exec("INSERT INTO identities (id, name) VALUES (?, ?)", id, name); err != nil {
		return nil, err
	}
	return &owner{tx: t, id: id, name: name}, nil
}

func (t *Tx) CreateGroup(name string) (archive.Group, error) {
	id := uuid.NewString()
	if err := t.exec("INSERT INTO contact_groups (id, name) VALUES (?, ?)", id, name); err != nil {
		return nil, err
	}
	return &group{tx: t, id: id, name: name}, nil
}

func (t *Tx) ContactByName(name string) (archive.Contact, error) {
	var id string
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT id FROM contacts WHERE name = ? ORDER BY rowid LIMIT 1", name,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &owner{tx: t, id: id, name: name}, nil
}

func (t *Tx) AccountByName(service parse.Service, name string) (archive.Account, error) {
	var id string
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT id FROM accounts WHERE service = ? AND name = ?", string(service), name,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account{id: id, service: service, name: name}, nil
}

func (t *Tx) CreateConversation(startedAt time.Time, local, remote archive.Account, isConference bool) (archive.Conversation, error) {
	id := uuid.NewString()
	err := t.exec(
		`INSERT INTO conversations (id, started_at, local_account, remote_account, is_conference)
		 VALUES (?, ?, ?, ?, ?)`,
		id, formatTime(startedAt), local.ID(), remote.ID(), isConference,
	)
	if err != nil {
		return nil, err
	}
	return &conversation{tx: t, id: id}, nil
}

// owner is an identity or a contact; both hold accounts the same way.
type owner struct {
	tx   *Tx
	id   string
	name string
}

func (o *owner) ID() string   { return o.id }
func (o *owner) Name() string { return o.name }

func (o *owner) CreateAccount(service parse.Service, name string) (archive.Account, error) {
	id := uuid.NewString()
	err := o.tx.exec(
		"INSERT INTO accounts (id, owner_id, service, name) VALUES (?, ?, ?, ?)",
		id, o.id, string(service), name,
	)
	if err != nil {
		return nil, err
	}
	return &account{id: id, service: service, name: name}, nil
}

type group struct {
	tx   *Tx
	id   string
	name string
}

func (g *group) ID() string   { return g.id }
func (g *group) Name() string { return g.name }

func (g *group) CreateContact(name string) (archive.Contact, error) {
	id := uuid.NewString()
	if err := g.tx.exec("INSERT INTO contacts (id, group_id, name) VALUES (?, ?, ?)", id, g.id, name); err != nil {
		return nil, err
	}
	return &owner{tx: g.tx, id: id, name: name}, nil
}

type account struct {
	id      string
	service parse.Service
	name    string
}

func (a *account) ID() string             { return a.id }
func (a *account) Service() parse.Service { return a.service }
func (a *account) Name() string           { return a.name }

type speaker struct {
	id      string
	name    string
	account archive.Account
}

func (s *speaker) ID() string               { return s.id }
func (s *speaker) Name() string             { return s.name }
func (s *speaker) Account() archive.Account { return s.account }

type conversation struct {
	tx  *Tx
	id  string
	seq int
}

func (c *conversation) ID() string { return c.id }

func (c *conversation) AddSpeaker(name string, acc archive.Account) (archive.Speaker, error) {
	id := uuid.NewString()
	err := c.tx.exec(
		"INSERT INTO speakers (id, conversation_id, name, account_id) VALUES (?, ?, ?, ?)",
		id, c.id, name, acc.ID(),
	)
	if err != nil {
		return nil, err
	}
	return &speaker{id: id, name: name, account: acc}, nil
}

func (c *conversation) SpeakerByName(name string) (archive.Speaker, error) {
	var (
		id      string
		acc     account
		service string
	)
	err := c.tx.tx.QueryRowContext(c.tx.ctx,
		`SELECT s.id, a.id, a.service, a.name
		 FROM speakers s JOIN accounts a ON a.id = s.account_id
		 WHERE s.conversation_id = ? AND s.name = ?`,
		c.id, name,
	).Scan(&id, &acc.id, &service, &acc.name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	acc.service = parse.Service(service)
	return &speaker{id: id, name: name, account: &acc}, nil
}

func (c *conversation) AddReply(ts time.Time, sp archive.Speaker, text string) error {
	var speakerID any
	if sp != nil {
		speakerID = sp.ID()
	}
	err := c.tx.exec(
		"INSERT INTO replies (conversation_id, seq, ts, speaker_id, text) VALUES (?, ?, ?, ?, ?)",
		c.id, c.seq, formatTime(ts), speakerID, text,
	)
	if err != nil {
		return err
	}
	c.seq++
	return nil
}
