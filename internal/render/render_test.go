package render

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/imlog/internal/archive"
	"github.com/Zuo-Peng/imlog/internal/index"
	"github.com/Zuo-Peng/imlog/internal/parse"
)

func seeded(t *testing.T, replies int) (*index.Store, string) {
	t.Helper()
	ctx := context.Background()
	s, err := index.Open(ctx, filepath.Join(t.TempDir(), "imlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	base := time.Date(2009, 1, 1, 10, 0, 0, 0, time.UTC)
	var id string
	require.NoError(t, s.Update(ctx, func(tx *index.Tx) error {
		ident, _ := tx.CreateIdentity("alice")
		local, _ := ident.CreateAccount(parse.ServiceYahoo, "alice")
		grp, _ := tx.CreateGroup("Imported")
		bob, _ := grp.CreateContact("bob")
		remote, _ := bob.CreateAccount(parse.ServiceYahoo, "bob")

		conv, err := tx.CreateConversation(base, local, remote, false)
		if err != nil {
			return err
		}
		id = conv.ID()
		speakers := make([]archive.Speaker, 2)
		speakers[0], _ = conv.AddSpeaker("alice", local)
		speakers[1], _ = conv.AddSpeaker("bob", remote)
		for i := 0; i < replies; i++ {
			text := "message " + string(rune('a'+i))
			if err := conv.AddReply(base.Add(time.Duration(i)*time.Second), speakers[i%2], text); err != nil {
				return err
			}
		}
		return conv.AddReply(base.Add(time.Hour), nil, "bob has left the conference")
	}))
	return s, id
}

func TestConversation_Full(t *testing.T) {
	s, id := seeded(t, 2)

	out, hit, err := Conversation(context.Background(), s, id, Options{})
	require.NoError(t, err)
	assert.Equal(t, -1, hit)
	assert.Contains(t, out, "yahoo/alice <-> yahoo/bob")
	assert.Contains(t, out, "speakers: alice, bob")
	assert.Contains(t, out, "  message a")
	assert.Contains(t, out, "  message b")
	assert.Contains(t, out, "bob has left the conference")
	assert.NotContains(t, out, "messages before")
}

func TestConversation_WindowAroundHit(t *testing.T) {
	s, id := seeded(t, 10)

	out, hit, err := Conversation(context.Background(), s, id, Options{Hit: true, HitSeq: 5, Context: 1, Query: "message"})
	require.NoError(t, err)
	assert.Contains(t, out, "... (4 messages before) ...")
	assert.Contains(t, out, "... (4 messages after) ...")
	assert.Contains(t, out, colorBoldRed+"message"+colorReset+" f")
	assert.NotContains(t, out, "message c")

	lines := strings.Split(out, "\n")
	require.Greater(t, len(lines), hit)
	assert.Contains(t, lines[hit], ">> bob > 10:00:05 <<")
}

func TestConversation_NotFound(t *testing.T) {
	s, _ := seeded(t, 0)
	_, _, err := Conversation(context.Background(), s, "nope", Options{})
	assert.ErrorContains(t, err, "conversation not found")
}

func TestWrapLine(t *testing.T) {
	assert.Equal(t, []string{"abc", "def", "g"}, wrapLine("abcdefg", 3))
	assert.Equal(t, []string{"\033[1mab", "c\033[0m"}, wrapLine("\033[1mabc\033[0m", 2))
	assert.Equal(t, []string{"你好", "世"}, wrapLine("你好世", 4))
	assert.Equal(t, []string{"x"}, wrapLine("x", 0))
}

func TestHighlightKeywords_SkipsOperators(t *testing.T) {
	got := highlightKeywords("cats and dogs", "cats AND dogs")
	assert.Equal(t, colorBoldRed+"cats"+colorReset+" and "+colorBoldRed+"dogs"+colorReset, got)
}
