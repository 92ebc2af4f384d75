package parse

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Yahoo record types.
const (
	YahooStartConv         = 0
	YahooMessage           = 6
	YahooConferenceJoin    = 25
	YahooConferenceDecline = 26
	YahooConferenceLeave   = 27
	YahooConferenceMessage = 29
)

// yahooHeaderSize covers the epoch, type and direction fields.
const yahooHeaderSize = 12

// YahooStream decodes the little-endian Yahoo Messenger archive format.
// Each record is
//
//	int32 epoch seconds
//	int32 record type
//	int32 direction (0 = local)
//	int32 length, text bytes XOR-ed with the local account name
//	int32 length, extra bytes (plain)
//
// The whole requested byte range is loaded into memory; decoding never
// reads outside it.
type YahooStream struct {
	path   string
	local  string
	remote string
	start  int64
	buf    []byte
	pos    int
	cur    Reply
	err    error
}

// OpenYahoo loads size bytes of path starting at start. A negative size
// selects everything from start to the end of the file.
func OpenYahoo(path, local, remote string, start, size int64) (*YahooStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FilesystemError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	if size < 0 {
		info, err := f.Stat()
		if err != nil {
			return nil, &FilesystemError{Op: "stat", Path: path, Err: err}
		}
		size = info.Size() - start
		if size < 0 {
			size = 0
		}
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, start, size), buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, &DecodeError{Path: path, Offset: start, Err: fmt.Errorf("%w: range of %d bytes exceeds file", ErrTruncated, size)}
		}
		return nil, &FilesystemError{Op: "read", Path: path, Err: err}
	}

	return &YahooStream{
		path:   path,
		local:  local,
		remote: remote,
		start:  start,
		buf:    buf,
	}, nil
}

// Offset returns the absolute file offset of the next record.
func (s *YahooStream) Offset() int64 {
	return s.start + int64(s.pos)
}

func (s *YahooStream) Next() bool {
	if s.err != nil || s.pos >= len(s.buf) {
		s.cur = nil
		return false
	}
	r, n, err := s.decode(s.buf[s.pos:])
	if err != nil {
		s.cur = nil
		s.err = &DecodeError{Path: s.path, Offset: s.Offset(), Err: err}
		return false
	}
	s.pos += n
	s.cur = r
	return true
}

func (s *YahooStream) Reply() Reply { return s.cur }

func (s *YahooStream) Err() error { return s.err }

func (s *YahooStream) Reset() error {
	s.pos = 0
	s.cur = nil
	s.err = nil
	return nil
}

func (s *YahooStream) Close() error { return nil }

func (s *YahooStream) decode(b []byte) (Reply, int, error) {
	if len(b) < yahooHeaderSize {
		return nil, 0, fmt.Errorf("%w: %d header bytes left", ErrTruncated, len(b))
	}
	epoch := int32(binary.LittleEndian.Uint32(b[0:]))
	typ := int32(binary.LittleEndian.Uint32(b[4:]))
	dir := int32(binary.LittleEndian.Uint32(b[8:]))

	cipher, n, err := yahooField(b, yahooHeaderSize)
	if err != nil {
		return nil, 0, err
	}
	extra, n, err := yahooField(b, n)
	if err != nil {
		return nil, 0, err
	}

	ts := time.Unix(int64(epoch), 0).UTC()
	text := string(YahooCipher(cipher, s.local))
	sender := s.local
	if dir != 0 {
		sender = s.remote
	}

	switch typ {
	case YahooStartConv:
		return StartConv{Timestamp: ts, Text: text}, n, nil
	case YahooMessage:
		return Regular{Timestamp: ts, Sender: sender, Text: text}, n, nil
	case YahooConferenceMessage:
		// the extra field names the real speaker of a remote conference line
		if dir != 0 {
			sender = string(extra)
		}
		return Regular{Timestamp: ts, Sender: sender, Text: text}, n, nil
	case YahooConferenceJoin:
		return ConferenceJoin{Timestamp: ts, Participant: string(extra), Text: text}, n, nil
	case YahooConferenceLeave:
		return ConferenceLeave{Timestamp: ts, Participant: string(extra), Text: text}, n, nil
	case YahooConferenceDecline:
		return ConferenceDecline{Timestamp: ts, Text: text}, n, nil
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnsupportedRecord, typ)
	}
}

// yahooField reads a length-prefixed byte field at b[at:] and returns it
// with the offset just past it.
func yahooField(b []byte, at int) ([]byte, int, error) {
	if len(b)-at < 4 {
		return nil, 0, fmt.Errorf("%w: missing length at +%d", ErrTruncated, at)
	}
	n := int32(binary.LittleEndian.Uint32(b[at:]))
	at += 4
	if n < 0 || int64(n) > int64(len(b)-at) {
		return nil, 0, fmt.Errorf("%w: field length %d at +%d", ErrTruncated, n, at-4)
	}
	return b[at : at+int(n)], at + int(n), nil
}

// YahooCipher XORs data with key, cycling key as needed. Applying it twice
// with the same key returns the original bytes.
func YahooCipher(data []byte, key string) []byte {
	out := make([]byte, len(data))
	if key == "" {
		copy(out, data)
		return out
	}
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}
