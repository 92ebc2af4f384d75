// Package segment splits the reply stream of an archive file into
// conversations.
package segment

import (
	"fmt"
	"time"

	"github.com/Zuo-Peng/imlog/internal/parse"
)

// Span locates a conversation inside its source file.
type Span interface {
	fmt.Stringer
	span()
}

// YahooSpan is the byte range [Start, Start+Size) of a Yahoo archive.
type YahooSpan struct {
	Start int64
	Size  int64
}

// DigsbySpan is the reply ordinal range [Offset, Offset+Count) of a Digsby
// transcript.
type DigsbySpan struct {
	Offset int
	Count  int
}

func (s YahooSpan) String() string  { return fmt.Sprintf("bytes %d+%d", s.Start, s.Size) }
func (s DigsbySpan) String() string { return fmt.Sprintf("replies %d+%d", s.Offset, s.Count) }

func (YahooSpan) span()  {}
func (DigsbySpan) span() {}

// Descriptor identifies one conversation without holding its replies.
// Replies are read on demand through Open.
type Descriptor struct {
	Format parse.Format
	Path   string
	Span   Span

	StartedAt     time.Time
	LocalService  parse.Service
	LocalAccount  string
	RemoteService parse.Service
	RemoteAccount string
	IsConference  bool
	Speakers      SpeakerSet
}

// Open returns a stream bounded to exactly the descriptor's replies.
func (d *Descriptor) Open() (parse.Stream, error) {
	switch sp := d.Span.(type) {
	case YahooSpan:
		return parse.OpenYahoo(d.Path, d.LocalAccount, d.RemoteAccount, sp.Start, sp.Size)
	case DigsbySpan:
		return parse.OpenDigsby(d.Path, sp.Offset, sp.Count)
	default:
		return nil, fmt.Errorf("%s: no span to open", d.Path)
	}
}

func newDescriptor(format parse.Format, path string, meta parse.Metadata, startedAt time.Time) *Descriptor {
	return &Descriptor{
		Format:        format,
		Path:          path,
		StartedAt:     startedAt,
		LocalService:  meta.LocalService,
		LocalAccount:  meta.LocalAccount,
		RemoteService: meta.RemoteService,
		RemoteAccount: meta.RemoteAccount,
		IsConference:  meta.IsConference,
	}
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s [%s] %s/%s <-> %s/%s at %s",
		d.Path, d.Span, d.LocalService, d.LocalAccount, d.RemoteService, d.RemoteAccount,
		d.StartedAt.Format(time.RFC3339))
}

// SpeakerSet is a duplicate-free list of speaker names in first-seen order.
type SpeakerSet struct {
	names []string
	seen  map[string]struct{}
}

// NewSpeakerSet returns a set holding names.
func NewSpeakerSet(names ...string) SpeakerSet {
	var s SpeakerSet
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name and reports whether it was new. Empty names are ignored.
func (s *SpeakerSet) Add(name string) bool {
	if name == "" {
		return false
	}
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[name]; ok {
		return false
	}
	s.seen[name] = struct{}{}
	s.names = append(s.names, name)
	return true
}

func (s SpeakerSet) Contains(name string) bool {
	_, ok := s.seen[name]
	return ok
}

func (s SpeakerSet) Len() int { return len(s.names) }

// Names returns a copy of the names in insertion order.
func (s SpeakerSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}
