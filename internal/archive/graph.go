// Package archive defines the normalized archive graph that imports are
// written into: identities and their accounts on the local side, contacts
// and their accounts on the remote side, and conversations made of
// speakers and replies.
package archive

import (
	"time"

	"github.com/Zuo-Peng/imlog/internal/parse"
)

// Graph is the sink of an import. Lookups return a nil entity and a nil
// error when nothing matches.
//
// Graph does not deduplicate accounts itself; callers look up before they
// create.
type Graph interface {
	CreateIdentity(name string) (Identity, error)
	CreateGroup(name string) (Group, error)
	ContactByName(name string) (Contact, error)
	AccountByName(service parse.Service, name string) (Account, error)
	CreateConversation(startedAt time.Time, local, remote Account, isConference bool) (Conversation, error)
}

// AccountOwner is an identity or a contact.
type AccountOwner interface {
	CreateAccount(service parse.Service, name string) (Account, error)
}

type Identity interface {
	AccountOwner
	ID() string
	Name() string
}

type Group interface {
	ID() string
	Name() string
	CreateContact(name string) (Contact, error)
}

type Contact interface {
	AccountOwner
	ID() string
	Name() string
}

type Account interface {
	ID() string
	Service() parse.Service
	Name() string
}

// Speaker binds a display name to an account within one conversation.
type Speaker interface {
	ID() string
	Name() string
	Account() Account
}

type Conversation interface {
	ID() string
	AddSpeaker(name string, account Account) (Speaker, error)
	SpeakerByName(name string) (Speaker, error)
	// AddReply appends a reply; speaker is nil for system lines.
	AddReply(ts time.Time, speaker Speaker, text string) error
}
