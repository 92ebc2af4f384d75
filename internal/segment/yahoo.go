package segment

import (
	"github.com/Zuo-Peng/imlog/internal/parse"
)

// OffsetStream is a stream whose cursor is a byte offset.
type OffsetStream interface {
	parse.Stream
	Offset() int64
}

// Yahoo splits a Yahoo archive at every StartConv record. A conversation
// runs from the cursor at its StartConv (or the stream start) to the
// cursor just before the next StartConv (or the end). A span holding only
// its StartConv is still a conversation. Conference status comes from
// meta.
//
// On error the descriptors completed so far are returned with it.
func Yahoo(s OffsetStream, path string, meta parse.Metadata) ([]*Descriptor, error) {
	var (
		out   []*Descriptor
		cur   *Descriptor
		start int64
	)

	flush := func(end int64) {
		if cur != nil {
			cur.Span = YahooSpan{Start: start, Size: end - start}
			out = append(out, cur)
		}
		cur = nil
	}

	at := s.Offset()
	for s.Next() {
		r := s.Reply()
		if sc, ok := r.(parse.StartConv); ok {
			flush(at)
			cur = newDescriptor(parse.FormatYahoo, path, meta, sc.Timestamp)
			start = at
		} else {
			if cur == nil {
				cur = newDescriptor(parse.FormatYahoo, path, meta, r.Time())
				start = at
			}
			switch r := r.(type) {
			case parse.Regular:
				cur.Speakers.Add(r.Sender)
			case parse.ConferenceJoin:
				cur.Speakers.Add(r.Participant)
			case parse.ConferenceLeave:
				cur.Speakers.Add(r.Participant)
			}
		}
		at = s.Offset()
	}
	if err := s.Err(); err != nil {
		return out, err
	}
	flush(at)
	return out, nil
}
