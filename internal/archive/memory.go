package archive

import (
	"time"

	"github.com/google/uuid"

	"github.com/Zuo-Peng/imlog/internal/parse"
)

// Memory is a Graph held entirely in memory. It backs dry runs and tests.
type Memory struct {
	identities    []*MemIdentity
	groups        []*MemGroup
	contacts      []*MemContact
	accounts      []*MemAccount
	conversations []*MemConversation
}

func NewMemory() *Memory {
	return &Memory{}
}

func newID() string { return uuid.NewString() }

func (m *Memory) CreateIdentity(name string) (Identity, error) {
	id := &MemIdentity{id: newID(), name: name, graph: m}
	m.identities = append(m.identities, id)
	return id, nil
}

func (m *Memory) CreateGroup(name string) (Group, error) {
	g := &MemGroup{id: newID(), name: name, graph: m}
	m.groups = append(m.groups, g)
	return g, nil
}

func (m *Memory) ContactByName(name string) (Contact, error) {
	for _, c := range m.contacts {
		if c.name == name {
			return c, nil
		}
	}
	return nil, nil
}

func (m *Memory) AccountByName(service parse.Service, name string) (Account, error) {
	for _, a := range m.accounts {
		if a.service == service && a.name == name {
			return a, nil
		}
	}
	return nil, nil
}

func (m *Memory) CreateConversation(startedAt time.Time, local, remote Account, isConference bool) (Conversation, error) {
	c := &MemConversation{
		id:           newID(),
		startedAt:    startedAt,
		local:        local,
		remote:       remote,
		isConference: isConference,
	}
	m.conversations = append(m.conversations, c)
	return c, nil
}

func (m *Memory) createAccount(owner string, service parse.Service, name string) *MemAccount {
	a := &MemAccount{id: newID(), service: service, name: name, owner: owner}
	m.accounts = append(m.accounts, a)
	return a
}

func (m *Memory) Identities() []*MemIdentity        { return m.identities }
func (m *Memory) Groups() []*MemGroup               { return m.groups }
func (m *Memory) Contacts() []*MemContact           { return m.contacts }
func (m *Memory) Accounts() []*MemAccount           { return m.accounts }
func (m *Memory) Conversations() []*MemConversation { return m.conversations }

type MemIdentity struct {
	id    string
	name  string
	graph *Memory
}

func (i *MemIdentity) ID() string   { return i.id }
func (i *MemIdentity) Name() string { return i.name }

func (i *MemIdentity) CreateAccount(service parse.Service, name string) (Account, error) {
	return i.graph.createAccount(i.id, service, name), nil
}

type MemGroup struct {
	id    string
	name  string
	graph *Memory
}

func (g *MemGroup) ID() string   { return g.id }
func (g *MemGroup) Name() string { return g.name }

func (g *MemGroup) CreateContact(name string) (Contact, error) {
	c := &MemContact{id: newID(), name: name, group: g.id, graph: g.graph}
	g.graph.contacts = append(g.graph.contacts, c)
	return c, nil
}

type MemContact struct {
	id    string
	name  string
	group string
	graph *Memory
}

func (c *MemContact) ID() string    { return c.id }
func (c *MemContact) Name() string  { return c.name }
func (c *MemContact) Group() string { return c.group }

func (c *MemContact) CreateAccount(service parse.Service, name string) (Account, error) {
	return c.graph.createAccount(c.id, service, name), nil
}

type MemAccount struct {
	id      string
	service parse.Service
	name    string
	owner   string
}

func (a *MemAccount) ID() string             { return a.id }
func (a *MemAccount) Service() parse.Service { return a.service }
func (a *MemAccount) Name() string           { return a.name }

// Owner is the ID of the identity or contact holding the account.
func (a *MemAccount) Owner() string { return a.owner }

type MemSpeaker struct {
	id      string
	name    string
	account Account
}

func (s *MemSpeaker) ID() string       { return s.id }
func (s *MemSpeaker) Name() string     { return s.name }
func (s *MemSpeaker) Account() Account { return s.account }

// MemReply is a reply stored by MemConversation.
type MemReply struct {
	Time    time.Time
	Speaker Speaker
	Text    string
}

type MemConversation struct {
	id           string
	startedAt    time.Time
	local        Account
	remote       Account
	isConference bool
	speakers     []*MemSpeaker
	replies      []MemReply
}

func (c *MemConversation) ID() string           { return c.id }
func (c *MemConversation) StartedAt() time.Time { return c.startedAt }
func (c *MemConversation) Local() Account       { return c.local }
func (c *MemConversation) Remote() Account      { return c.remote }
func (c *MemConversation) IsConference() bool   { return c.isConference }
func (c *MemConversation) Speakers() []*MemSpeaker {
	return c.speakers
}
func (c *MemConversation) Replies() []MemReply { return c.replies }

func (c *MemConversation) AddSpeaker(name string, account Account) (Speaker, error) {
	s := &MemSpeaker{id: newID(), name: name, account: account}
	c.speakers = append(c.speakers, s)
	return s, nil
}

func (c *MemConversation) SpeakerByName(name string) (Speaker, error) {
	for _, s := range c.speakers {
		if s.name == name {
			return s, nil
		}
	}
	return nil, nil
}

func (c *MemConversation) AddReply(ts time.Time, speaker Speaker, text string) error {
	c.replies = append(c.replies, MemReply{Time: ts, Speaker: speaker, Text: text})
	return nil
}
