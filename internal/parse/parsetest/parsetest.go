// Package parsetest builds synthetic Yahoo and Digsby archives for tests.
package parsetest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Zuo-Peng/imlog/internal/parse"
)

// YahooRecord is one record of a Yahoo archive before encryption.
type YahooRecord struct {
	Epoch     int32
	Type      int32
	Direction int32
	Text      string
	Extra     string
}

// EncodeYahoo serializes records, encrypting each text with key.
func EncodeYahoo(key string, recs ...YahooRecord) []byte {
	var buf bytes.Buffer
	put := func(v int32) {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	for _, r := range recs {
		put(r.Epoch)
		put(r.Type)
		put(r.Direction)
		text := parse.YahooCipher([]byte(r.Text), key)
		put(int32(len(text)))
		buf.Write(text)
		put(int32(len(r.Extra)))
		buf.WriteString(r.Extra)
	}
	return buf.Bytes()
}

// WriteYahoo writes an encoded archive to path, creating parent directories.
func WriteYahoo(t testing.TB, path, key string, recs ...YahooRecord) {
	t.Helper()
	WriteFile(t, path, EncodeYahoo(key, recs...))
}

// DigsbyReply is one reply div of a Digsby transcript. Content is inserted
// verbatim so tests can embed markup; Buddy is escaped.
type DigsbyReply struct {
	Time    time.Time
	Buddy   string
	Content string
}

// DigsbyHTML renders a transcript in the shape Digsby writes.
func DigsbyHTML(replies ...DigsbyReply) string {
	var b strings.Builder
	b.WriteString("<HTML><HEAD><meta http-equiv=\"content-type\" content=\"text/html; charset=UTF-8\" />\n")
	b.WriteString("<title>IM Logs</title></HEAD><BODY>\n")
	for _, r := range replies {
		fmt.Fprintf(&b,
			"<div class=\"message\" auto=\"False\" timestamp=\"%s\"><span class=\"buddy\">%s</span> <span class=\"time\">(%s)</span> <span class=\"msgcontent\">%s</span></div>\n",
			r.Time.Format(parse.DigsbyTimeLayout),
			html.EscapeString(r.Buddy),
			r.Time.Format("15:04"),
			r.Content,
		)
	}
	b.WriteString("</BODY></HTML>\n")
	return b.String()
}

// WriteDigsby writes a transcript to path, creating parent directories.
func WriteDigsby(t testing.TB, path string, replies ...DigsbyReply) {
	t.Helper()
	WriteFile(t, path, []byte(DigsbyHTML(replies...)))
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Drain reads every reply left in s.
func Drain(s parse.Stream) ([]parse.Reply, error) {
	var out []parse.Reply
	for s.Next() {
		out = append(out, s.Reply())
	}
	return out, s.Err()
}
