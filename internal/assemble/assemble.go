// Package assemble folds conversation descriptors into an archive graph.
package assemble

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Zuo-Peng/imlog/internal/archive"
	"github.com/Zuo-Peng/imlog/internal/parse"
	"github.com/Zuo-Peng/imlog/internal/segment"
)

// DefaultGroup holds every contact created by an import.
const DefaultGroup = "Imported"

// yahooMarkup matches the colour and font escapes Yahoo clients embed in
// message text: ANSI SGR sequences and a handful of pseudo-HTML tags.
var yahooMarkup = regexp.MustCompile(`(?i)\x1b\[[^m]*m|</?(font|fade|alt|b|i|u|s)(\s[^>]*)?>`)

type accountKey struct {
	service parse.Service
	name    string
}

// Assembler holds the dedup state of one fold. An Assembler must not be
// shared between goroutines or reused across graphs.
type Assembler struct {
	graph     archive.Graph
	groupName string

	group      archive.Group
	identities map[string]archive.Identity
	contacts   map[string]archive.Contact
	accounts   map[accountKey]archive.Account
}

// Stats counts what a fold wrote.
type Stats struct {
	Conversations int
	Replies       int
}

// Error reports the descriptor a fold failed on.
type Error struct {
	Index      int
	Descriptor *segment.Descriptor
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("assemble %s: %v", e.Descriptor, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Assembler writing into g. An empty group name selects
// DefaultGroup.
func New(g archive.Graph, group string) *Assembler {
	if group == "" {
		group = DefaultGroup
	}
	return &Assembler{
		graph:      g,
		groupName:  group,
		identities: make(map[string]archive.Identity),
		contacts:   make(map[string]archive.Contact),
		accounts:   make(map[accountKey]archive.Account),
	}
}

// Fold writes descriptors into the graph in three passes: local identities,
// remote contacts, then conversations with their replies. progress, when
// non-nil, is called once per materialised conversation. ctx is checked
// before each conversation is materialised.
func (a *Assembler) Fold(ctx context.Context, descs []*segment.Descriptor, progress func(completed, total int)) (Stats, error) {
	var st Stats

	for i, d := range descs {
		if _, err := a.localAccount(d.LocalService, d.LocalAccount); err != nil {
			return st, &Error{Index: i, Descriptor: d, Err: err}
		}
	}

	for i, d := range descs {
		if _, err := a.remoteAccount(d.RemoteService, d.RemoteAccount); err != nil {
			return st, &Error{Index: i, Descriptor: d, Err: err}
		}
		for _, name := range d.Speakers.Names() {
			if name == d.LocalAccount || name == d.RemoteAccount {
				continue
			}
			if _, err := a.remoteAccount(d.RemoteService, name); err != nil {
				return st, &Error{Index: i, Descriptor: d, Err: err}
			}
		}
	}

	for i, d := range descs {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		n, err := a.materialize(d)
		if err != nil {
			return st, &Error{Index: i, Descriptor: d, Err: err}
		}
		st.Conversations++
		st.Replies += n
		if progress != nil {
			progress(i+1, len(descs))
		}
	}
	return st, nil
}

// lookup checks the fold's own map before asking the graph.
func (a *Assembler) lookup(key accountKey) (archive.Account, error) {
	if acc, ok := a.accounts[key]; ok {
		return acc, nil
	}
	acc, err := a.graph.AccountByName(key.service, key.name)
	if err != nil {
		return nil, fmt.Errorf("look up account %s/%s: %w", key.service, key.name, err)
	}
	if acc != nil {
		a.accounts[key] = acc
	}
	return acc, nil
}

func (a *Assembler) localAccount(service parse.Service, name string) (archive.Account, error) {
	key := accountKey{service, name}
	acc, err := a.lookup(key)
	if err != nil || acc != nil {
		return acc, err
	}

	id, ok := a.identities[name]
	if !ok {
		id, err = a.graph.CreateIdentity(name)
		if err != nil {
			return nil, fmt.Errorf("create identity %s: %w", name, err)
		}
		a.identities[name] = id
	}
	acc, err = id.CreateAccount(service, name)
	if err != nil {
		return nil, fmt.Errorf("create account %s/%s: %w", service, name, err)
	}
	a.accounts[key] = acc
	return acc, nil
}

func (a *Assembler) remoteAccount(service parse.Service, name string) (archive.Account, error) {
	key := accountKey{service, name}
	acc, err := a.lookup(key)
	if err != nil || acc != nil {
		return acc, err
	}

	c, err := a.contact(name)
	if err != nil {
		return nil, err
	}
	acc, err = c.CreateAccount(service, name)
	if err != nil {
		return nil, fmt.Errorf("create account %s/%s: %w", service, name, err)
	}
	a.accounts[key] = acc
	return acc, nil
}

func (a *Assembler) contact(name string) (archive.Contact, error) {
	if c, ok := a.contacts[name]; ok {
		return c, nil
	}
	c, err := a.graph.ContactByName(name)
	if err != nil {
		return nil, fmt.Errorf("look up contact %s: %w", name, err)
	}
	if c == nil {
		if a.group == nil {
			a.group, err = a.graph.CreateGroup(a.groupName)
			if err != nil {
				return nil, fmt.Errorf("create group %s: %w", a.groupName, err)
			}
		}
		c, err = a.group.CreateContact(name)
		if err != nil {
			return nil, fmt.Errorf("create contact %s: %w", name, err)
		}
	}
	a.contacts[name] = c
	return c, nil
}

// speakerAccount resolves a speaker name seen in d to its account.
func (a *Assembler) speakerAccount(d *segment.Descriptor, name string) (archive.Account, error) {
	if name == d.LocalAccount {
		return a.localAccount(d.LocalService, name)
	}
	return a.remoteAccount(d.RemoteService, name)
}

func (a *Assembler) materialize(d *segment.Descriptor) (int, error) {
	local, err := a.localAccount(d.LocalService, d.LocalAccount)
	if err != nil {
		return 0, err
	}
	remote, err := a.remoteAccount(d.RemoteService, d.RemoteAccount)
	if err != nil {
		return 0, err
	}

	conv, err := a.graph.CreateConversation(d.StartedAt, local, remote, d.IsConference)
	if err != nil {
		return 0, fmt.Errorf("create conversation: %w", err)
	}
	for _, name := range d.Speakers.Names() {
		acc, err := a.speakerAccount(d, name)
		if err != nil {
			return 0, err
		}
		if _, err := conv.AddSpeaker(name, acc); err != nil {
			return 0, fmt.Errorf("add speaker %s: %w", name, err)
		}
	}

	s, err := d.Open()
	if err != nil {
		return 0, err
	}
	defer s.Close()

	n := 0
	for s.Next() {
		added, err := a.addReply(d, conv, s.Reply())
		if err != nil {
			return n, err
		}
		if added {
			n++
		}
	}
	return n, s.Err()
}

func (a *Assembler) addReply(d *segment.Descriptor, conv archive.Conversation, r parse.Reply) (bool, error) {
	var (
		speaker archive.Speaker
		text    string
	)
	switch r := r.(type) {
	case parse.Regular:
		sp, err := a.speaker(d, conv, r.Sender)
		if err != nil {
			return false, err
		}
		speaker = sp
		text = Text(d.Format, r.Text)
	case parse.StartConv:
		if r.Text == "" {
			return false, nil
		}
		text = Text(d.Format, r.Text)
	case parse.ConferenceJoin, parse.ConferenceLeave, parse.ConferenceDecline:
		text = SystemText(r)
	default:
		return false, fmt.Errorf("unexpected reply %T", r)
	}

	if err := conv.AddReply(r.Time(), speaker, text); err != nil {
		return false, fmt.Errorf("add reply: %w", err)
	}
	return true, nil
}

// speaker finds the conversation speaker for name, registering one when the
// segmenter did not see it.
func (a *Assembler) speaker(d *segment.Descriptor, conv archive.Conversation, name string) (archive.Speaker, error) {
	if name == "" {
		return nil, nil
	}
	sp, err := conv.SpeakerByName(name)
	if err != nil {
		return nil, fmt.Errorf("look up speaker %s: %w", name, err)
	}
	if sp != nil {
		return sp, nil
	}
	acc, err := a.speakerAccount(d, name)
	if err != nil {
		return nil, err
	}
	sp, err = conv.AddSpeaker(name, acc)
	if err != nil {
		return nil, fmt.Errorf("add speaker %s: %w", name, err)
	}
	return sp, nil
}

// Text post-processes the text of a regular reply. Yahoo text loses its
// colour and font escapes; Digsby text is kept as decoded.
func Text(format parse.Format, text string) string {
	if format == parse.FormatYahoo {
		return yahooMarkup.ReplaceAllString(text, "")
	}
	return text
}

// SystemText renders a conference event as a readable line.
func SystemText(r parse.Reply) string {
	switch r := r.(type) {
	case parse.ConferenceJoin:
		return r.Participant + " has joined the conference"
	case parse.ConferenceLeave:
		return r.Participant + " has left the conference"
	case parse.ConferenceDecline:
		if r.Text != "" {
			return "Conference invitation declined: " + r.Text
		}
		return "Conference invitation declined"
	}
	return ""
}
