package parse

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Unbounded is the count that reads every reply after the offset.
const Unbounded = -1

// DigsbyTimeLayout is the layout of the timestamp attribute on reply divs.
const DigsbyTimeLayout = "2006-01-02 15:04:05"

// noDepth marks a watermark that is not set.
const noDepth = -1

// DigsbyStream decodes Digsby HTML transcripts. A reply is a <div> carrying
// a timestamp attribute; inside it, <span class="buddy"> holds the sender
// and <span class="msgcontent"> holds the message. The file is processed as
// a flat token stream so arbitrarily nested markup is tolerated: the depth
// at which each region opened (its watermark) identifies its closing tag.
//
// The format has no random access, so the stream skips offset replies from
// the start of the file and stops after count replies.
type DigsbyStream struct {
	path   string
	offset int
	count  int

	f *os.File
	z *html.Tokenizer

	index   int // ordinal of the reply being read
	emitted int

	divDepth    int
	spanDepth   int
	replyDiv    int
	buddySpan   int
	contentSpan int

	ts          time.Time
	buddy       strings.Builder
	content     strings.Builder
	haveBuddy   bool
	haveContent bool

	cur  Reply
	err  error
	done bool
}

// OpenDigsby opens the transcript at path and positions the stream on the
// reply with ordinal offset.
func OpenDigsby(path string, offset, count int) (*DigsbyStream, error) {
	s := &DigsbyStream{path: path, offset: offset, count: count}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DigsbyStream) open() error {
	f, err := os.Open(s.path)
	if err != nil {
		return &FilesystemError{Op: "open", Path: s.path, Err: err}
	}
	s.f = f
	s.z = html.NewTokenizer(f)
	s.index = 0
	s.emitted = 0
	s.divDepth = 0
	s.spanDepth = 0
	s.replyDiv = noDepth
	s.buddySpan = noDepth
	s.contentSpan = noDepth
	s.clearReply()
	s.cur = nil
	s.err = nil
	s.done = false
	return nil
}

func (s *DigsbyStream) Next() bool {
	s.cur = nil
	if s.err != nil || s.done {
		return false
	}
	if s.count != Unbounded && s.emitted >= s.count {
		s.done = true
		return false
	}

	for {
		tt := s.z.Next()
		switch tt {
		case html.ErrorToken:
			return s.finish()

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := s.z.TagName()
			switch string(name) {
			case "br":
				s.appendText("\n")
			case "div":
				if tt == html.SelfClosingTagToken {
					continue
				}
				if err := s.openDiv(hasAttr); err != nil {
					s.err = err
					return false
				}
			case "span":
				if tt == html.SelfClosingTagToken {
					continue
				}
				s.openSpan(hasAttr)
			}

		case html.EndTagToken:
			name, _ := s.z.TagName()
			switch string(name) {
			case "div":
				r, err := s.closeDiv()
				if err != nil {
					s.err = err
					return false
				}
				if r != nil {
					s.cur = r
					s.emitted++
					return true
				}
			case "span":
				s.closeSpan()
			}

		case html.TextToken:
			s.appendText(string(s.z.Text()))
		}
	}
}

func (s *DigsbyStream) finish() bool {
	s.done = true
	if err := s.z.Err(); !errors.Is(err, io.EOF) {
		s.err = &FilesystemError{Op: "read", Path: s.path, Err: err}
		return false
	}
	if s.replyDiv != noDepth {
		s.err = &DecodeError{Path: s.path, Offset: int64(s.index), Err: fmt.Errorf("%w: unterminated reply", ErrTruncated)}
	}
	return false
}

// openDiv validates the timestamp of every div, nested ones included. Only
// a div opened outside a reply region starts a new reply.
func (s *DigsbyStream) openDiv(hasAttr bool) error {
	s.divDepth++

	var stamp string
	var found bool
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = s.z.TagAttr()
		if string(key) == "timestamp" {
			stamp, found = string(val), true
		}
	}
	if !found {
		return &DecodeError{Path: s.path, Offset: int64(s.index), Err: fmt.Errorf("%w: div has no timestamp attribute", ErrBadTimestamp)}
	}
	ts, err := time.Parse(DigsbyTimeLayout, strings.TrimSpace(stamp))
	if err != nil {
		return &DecodeError{Path: s.path, Offset: int64(s.index), Err: fmt.Errorf("%w: %q", ErrBadTimestamp, stamp)}
	}

	if s.replyDiv != noDepth {
		return nil
	}
	s.replyDiv = s.divDepth
	s.clearReply()
	s.ts = ts
	return nil
}

// closeDiv returns the finished reply when the reply region closes and the
// reply lies inside the requested range.
func (s *DigsbyStream) closeDiv() (Reply, error) {
	defer func() {
		if s.divDepth > 0 {
			s.divDepth--
		}
	}()
	if s.replyDiv == noDepth || s.divDepth != s.replyDiv {
		return nil, nil
	}

	s.replyDiv = noDepth
	s.buddySpan = noDepth
	s.contentSpan = noDepth
	idx := s.index
	s.index++

	if !s.haveBuddy {
		return nil, &DecodeError{Path: s.path, Offset: int64(idx), Err: fmt.Errorf("%w: buddy", ErrMissingField)}
	}
	if !s.haveContent {
		return nil, &DecodeError{Path: s.path, Offset: int64(idx), Err: fmt.Errorf("%w: msgcontent", ErrMissingField)}
	}
	if idx < s.offset {
		return nil, nil
	}
	return Regular{
		Timestamp: s.ts,
		Sender:    strings.TrimSpace(s.buddy.String()),
		Text:      s.content.String(),
	}, nil
}

func (s *DigsbyStream) openSpan(hasAttr bool) {
	s.spanDepth++
	if s.replyDiv == noDepth {
		return
	}
	var class string
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = s.z.TagAttr()
		if string(key) == "class" {
			class = string(val)
		}
	}
	for _, c := range strings.Fields(class) {
		switch c {
		case "buddy":
			if s.buddySpan == noDepth {
				s.buddySpan = s.spanDepth
				s.haveBuddy = true
			}
		case "msgcontent":
			if s.contentSpan == noDepth {
				s.contentSpan = s.spanDepth
				s.haveContent = true
			}
		}
	}
}

func (s *DigsbyStream) closeSpan() {
	if s.spanDepth == s.buddySpan {
		s.buddySpan = noDepth
	}
	if s.spanDepth == s.contentSpan {
		s.contentSpan = noDepth
	}
	if s.spanDepth > 0 {
		s.spanDepth--
	}
}

func (s *DigsbyStream) appendText(text string) {
	if s.buddySpan != noDepth {
		s.buddy.WriteString(text)
	}
	if s.contentSpan != noDepth {
		s.content.WriteString(text)
	}
}

func (s *DigsbyStream) clearReply() {
	s.ts = time.Time{}
	s.buddy.Reset()
	s.content.Reset()
	s.haveBuddy = false
	s.haveContent = false
}

func (s *DigsbyStream) Reply() Reply { return s.cur }

func (s *DigsbyStream) Err() error { return s.err }

// Reset reopens the file; the token stream cannot be rewound in place.
func (s *DigsbyStream) Reset() error {
	if err := s.Close(); err != nil {
		return err
	}
	return s.open()
}

func (s *DigsbyStream) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	if err != nil {
		return &FilesystemError{Op: "close", Path: s.path, Err: err}
	}
	return nil
}
