package segment

import (
	"time"

	"github.com/Zuo-Peng/imlog/internal/parse"
)

// Digsby merges all conversations of a day into one file and marks no
// boundaries, so they are inferred from silence between replies. Both
// values below are heuristics, not properties of the format.
const (
	// DefaultGap is the silence that starts a new conversation.
	DefaultGap = 20 * time.Minute

	// DefaultConferenceMinSpeakers is the speaker count a conversation
	// must exceed to be treated as a conference.
	DefaultConferenceMinSpeakers = 2
)

// Policy tunes Digsby conversation detection. A non-positive Gap or a
// negative ConferenceMinSpeakers selects the default. Zero is a valid
// speaker threshold: every conversation with a sender is a conference.
type Policy struct {
	Gap                   time.Duration
	ConferenceMinSpeakers int
}

// DefaultPolicy returns the policy built from the default heuristics.
func DefaultPolicy() Policy {
	return Policy{Gap: DefaultGap, ConferenceMinSpeakers: DefaultConferenceMinSpeakers}
}

func (p Policy) normalize() Policy {
	if p.Gap <= 0 {
		p.Gap = DefaultGap
	}
	if p.ConferenceMinSpeakers < 0 {
		p.ConferenceMinSpeakers = DefaultConferenceMinSpeakers
	}
	return p
}

// Digsby splits a Digsby transcript wherever two consecutive replies are
// at least p.Gap apart. A conversation with more than
// p.ConferenceMinSpeakers distinct senders is flagged as a conference.
//
// On error the descriptors completed so far are returned with it.
func Digsby(s parse.Stream, path string, meta parse.Metadata, p Policy) ([]*Descriptor, error) {
	p = p.normalize()

	var (
		out   []*Descriptor
		cur   *Descriptor
		start int
		index int
		prev  time.Time
	)

	flush := func() {
		if cur == nil {
			return
		}
		cur.Span = DigsbySpan{Offset: start, Count: index - start}
		cur.IsConference = cur.Speakers.Len() > p.ConferenceMinSpeakers
		out = append(out, cur)
		cur = nil
	}

	for s.Next() {
		r := s.Reply()
		if cur != nil && r.Time().Sub(prev) >= p.Gap {
			flush()
		}
		if cur == nil {
			cur = newDescriptor(parse.FormatDigsby, path, meta, r.Time())
			start = index
		}
		if reg, ok := r.(parse.Regular); ok {
			cur.Speakers.Add(reg.Sender)
		}
		prev = r.Time()
		index++
	}
	if err := s.Err(); err != nil {
		return out, err
	}
	flush()
	return out, nil
}
