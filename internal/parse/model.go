package parse

import (
	"strings"
	"time"
)

// Format names an archive file format.
type Format string

const (
	FormatYahoo  Format = "yahoo"
	FormatDigsby Format = "digsby"
)

// Ext returns the file extension of archive files in this format.
func (f Format) Ext() string {
	switch f {
	case FormatYahoo:
		return ".dat"
	case FormatDigsby:
		return ".html"
	default:
		return ""
	}
}

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatYahoo:
		return FormatYahoo, true
	case FormatDigsby:
		return FormatDigsby, true
	}
	return "", false
}

// Service is the IM network an account belongs to.
type Service string

const (
	ServiceDigsby Service = "digsby"
	ServiceYahoo  Service = "yahoo"
	ServiceMSN    Service = "msn"
	ServiceGTalk  Service = "gtalk"
)

// Reply is one decoded unit of conversation content. The set of
// implementations is closed: Regular, StartConv, ConferenceJoin,
// ConferenceLeave and ConferenceDecline.
type Reply interface {
	Time() time.Time
	reply()
}

// Regular is an ordinary message.
type Regular struct {
	Timestamp time.Time
	Sender    string
	Text      string
}

// StartConv marks the start of a new logical conversation (Yahoo only).
type StartConv struct {
	Timestamp time.Time
	Text      string
}

// ConferenceJoin reports a participant joining a conference.
type ConferenceJoin struct {
	Timestamp   time.Time
	Participant string
	Text        string
}

// ConferenceLeave reports a participant leaving a conference.
type ConferenceLeave struct {
	Timestamp   time.Time
	Participant string
	Text        string
}

// ConferenceDecline reports a declined conference invitation.
type ConferenceDecline struct {
	Timestamp time.Time
	Text      string
}

func (r Regular) Time() time.Time           { return r.Timestamp }
func (r StartConv) Time() time.Time         { return r.Timestamp }
func (r ConferenceJoin) Time() time.Time    { return r.Timestamp }
func (r ConferenceLeave) Time() time.Time   { return r.Timestamp }
func (r ConferenceDecline) Time() time.Time { return r.Timestamp }

func (Regular) reply()           {}
func (StartConv) reply()         {}
func (ConferenceJoin) reply()    {}
func (ConferenceLeave) reply()   {}
func (ConferenceDecline) reply() {}

// Stream is a lazy, finite, restartable sequence of replies read from one
// archive file. Usage follows bufio.Scanner:
//
//	for s.Next() {
//		r := s.Reply()
//	}
//	if err := s.Err(); err != nil { ... }
//
// Next returns false at the end of the sequence or on the first error.
type Stream interface {
	Next() bool
	Reply() Reply
	Err() error
	// Reset rewinds the stream to the start of its range so that the same
	// replies can be read again.
	Reset() error
	Close() error
}

// Metadata is what an archive file's path says about the conversation
// partners it holds.
type Metadata struct {
	LocalService  Service
	LocalAccount  string
	RemoteService Service
	RemoteAccount string
	IsConference  bool
	Date          time.Time
}
