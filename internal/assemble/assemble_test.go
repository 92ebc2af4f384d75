package assemble_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/imlog/internal/archive"
	"github.com/Zuo-Peng/imlog/internal/assemble"
	"github.com/Zuo-Peng/imlog/internal/parse"
	"github.com/Zuo-Peng/imlog/internal/parse/parsetest"
	"github.com/Zuo-Peng/imlog/internal/segment"
)

func analyze(t *testing.T, format parse.Format, paths ...string) []*segment.Descriptor {
	t.Helper()
	var out []*segment.Descriptor
	for _, p := range paths {
		descs, err := segment.File(format, p, segment.DefaultPolicy())
		require.NoError(t, err)
		out = append(out, descs...)
	}
	return out
}

func rec(epoch int32, typ int32, dir int32, text, extra string) parsetest.YahooRecord {
	return parsetest.YahooRecord{Epoch: epoch, Type: typ, Direction: dir, Text: text, Extra: extra}
}

func TestFold_AccountsAreSharedAcrossConversations(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "Messages", "bob", "20090101-alice.dat")
	second := filepath.Join(root, "Messages", "bob", "20090102-alice.dat")
	parsetest.WriteYahoo(t, first, "alice",
		rec(1230768000, parse.YahooStartConv, 0, "", ""),
		rec(1230768010, parse.YahooMessage, 1, "hi alice", ""),
		rec(1230768020, parse.YahooMessage, 0, "hi bob", ""),
	)
	parsetest.WriteYahoo(t, second, "alice",
		rec(1230854400, parse.YahooStartConv, 0, "", ""),
		rec(1230854410, parse.YahooMessage, 1, "again", ""),
	)

	g := archive.NewMemory()
	st, err := assemble.New(g, "").Fold(context.Background(), analyze(t, parse.FormatYahoo, first, second), nil)
	require.NoError(t, err)
	assert.Equal(t, assemble.Stats{Conversations: 2, Replies: 3}, st)

	require.Len(t, g.Accounts(), 2)
	require.Len(t, g.Identities(), 1)
	require.Len(t, g.Contacts(), 1)
	require.Len(t, g.Groups(), 1)
	assert.Equal(t, assemble.DefaultGroup, g.Groups()[0].Name())

	convs := g.Conversations()
	require.Len(t, convs, 2)
	assert.Same(t, convs[0].Local(), convs[1].Local())
	assert.Same(t, convs[0].Remote(), convs[1].Remote())
	assert.Equal(t, "alice", convs[0].Local().Name())
	assert.Equal(t, "bob", convs[0].Remote().Name())
	assert.Equal(t, g.Identities()[0].ID(), convs[0].Local().(*archive.MemAccount).Owner())
	assert.Equal(t, g.Contacts()[0].ID(), convs[0].Remote().(*archive.MemAccount).Owner())

	replies := convs[0].Replies()
	require.Len(t, replies, 2)
	assert.Equal(t, "bob", replies[0].Speaker.Name())
	assert.Equal(t, "hi alice", replies[0].Text)
	assert.Same(t, convs[0].Remote(), replies[0].Speaker.Account())
	assert.Equal(t, "alice", replies[1].Speaker.Name())
	assert.Same(t, convs[0].Local(), replies[1].Speaker.Account())
	assert.Equal(t, time.Unix(1230768010, 0).UTC(), replies[0].Time)
}

func TestFold_ReusesAccountsAlreadyInGraph(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Messages", "bob", "20090101-alice.dat")
	parsetest.WriteYahoo(t, path, "alice",
		rec(1230768000, parse.YahooStartConv, 0, "", ""),
		rec(1230768010, parse.YahooMessage, 1, "hi", ""),
	)

	g := archive.NewMemory()
	id, _ := g.CreateIdentity("Alice")
	existing, _ := id.CreateAccount(parse.ServiceYahoo, "alice")

	_, err := assemble.New(g, "").Fold(context.Background(), analyze(t, parse.FormatYahoo, path), nil)
	require.NoError(t, err)

	assert.Len(t, g.Identities(), 1)
	assert.Len(t, g.Accounts(), 2)
	assert.Same(t, existing, g.Conversations()[0].Local())
}

func TestFold_YahooConferenceText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Conferences", "party", "20090101-alice.dat")
	parsetest.WriteYahoo(t, path, "alice",
		rec(1230768000, parse.YahooStartConv, 0, "", ""),
		rec(1230768001, parse.YahooConferenceJoin, 1, "", "carol"),
		rec(1230768002, parse.YahooConferenceMessage, 1, `<font face="Arial" size="10">hello</font>`, "carol"),
		rec(1230768003, parse.YahooConferenceMessage, 0, "\x1b[31mred\x1b[0m and <b>bold</b>", ""),
		rec(1230768004, parse.YahooConferenceLeave, 1, "", "carol"),
		rec(1230768005, parse.YahooConferenceDecline, 1, "dave", ""),
	)

	g := archive.NewMemory()
	_, err := assemble.New(g, "Friends").Fold(context.Background(), analyze(t, parse.FormatYahoo, path), nil)
	require.NoError(t, err)

	require.Len(t, g.Conversations(), 1)
	conv := g.Conversations()[0]
	assert.True(t, conv.IsConference())
	assert.Equal(t, "party", conv.Remote().Name())

	var texts []string
	for _, r := range conv.Replies() {
		texts = append(texts, r.Text)
	}
	assert.Equal(t, []string{
		"carol has joined the conference",
		"hello",
		"red and bold",
		"carol has left the conference",
		"Conference invitation declined: dave",
	}, texts)

	replies := conv.Replies()
	assert.Nil(t, replies[0].Speaker)
	require.NotNil(t, replies[1].Speaker)
	assert.Equal(t, "carol", replies[1].Speaker.Name())
	assert.Equal(t, parse.ServiceYahoo, replies[1].Speaker.Account().Service())
	assert.Equal(t, "alice", replies[2].Speaker.Name())

	var contacts []string
	for _, c := range g.Contacts() {
		contacts = append(contacts, c.Name())
	}
	assert.ElementsMatch(t, []string{"party", "carol"}, contacts)
	assert.Equal(t, "Friends", g.Groups()[0].Name())
}

func TestFold_DigsbyExtraSpeakersUseRemoteService(t *testing.T) {
	base := time.Date(2009, 1, 1, 10, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "digsby", "alice", "bob_msn", "2009-01-01.html")
	parsetest.WriteDigsby(t, path,
		parsetest.DigsbyReply{Time: base, Buddy: "alice", Content: "hi <b>all</b>"},
		parsetest.DigsbyReply{Time: base.Add(time.Minute), Buddy: "bob", Content: "hey"},
		parsetest.DigsbyReply{Time: base.Add(2 * time.Minute), Buddy: "carol", Content: "yo"},
	)

	g := archive.NewMemory()
	descs := analyze(t, parse.FormatDigsby, path)
	require.Len(t, descs, 1)
	require.True(t, descs[0].IsConference)

	st, err := assemble.New(g, "").Fold(context.Background(), descs, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Replies)

	carol, err := g.AccountByName(parse.ServiceMSN, "carol")
	require.NoError(t, err)
	require.NotNil(t, carol)

	local, err := g.AccountByName(parse.ServiceDigsby, "alice")
	require.NoError(t, err)
	require.NotNil(t, local)

	conv := g.Conversations()[0]
	assert.Len(t, conv.Speakers(), 3)
	replies := conv.Replies()
	assert.Equal(t, "hi all", replies[0].Text)
	assert.Same(t, local, replies[0].Speaker.Account())
	assert.Same(t, carol, replies[2].Speaker.Account())
}

func TestFold_ReportsProgressPerConversation(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Messages", "bob", "20090101-alice.dat")
	parsetest.WriteYahoo(t, path, "alice",
		rec(100, parse.YahooStartConv, 0, "", ""),
		rec(110, parse.YahooMessage, 1, "one", ""),
		rec(200, parse.YahooStartConv, 0, "", ""),
		rec(210, parse.YahooMessage, 1, "two", ""),
	)

	var calls [][2]int
	_, err := assemble.New(archive.NewMemory(), "").Fold(context.Background(), analyze(t, parse.FormatYahoo, path), func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, calls)
}

func TestFold_WrapsDescriptorErrors(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Messages", "bob", "20090101-alice.dat")
	parsetest.WriteYahoo(t, path, "alice",
		rec(100, parse.YahooStartConv, 0, "", ""),
		rec(110, parse.YahooMessage, 1, "one", ""),
	)
	descs := analyze(t, parse.FormatYahoo, path)
	descs[0].Span = segment.YahooSpan{Start: 0, Size: 1 << 20}

	_, err := assemble.New(archive.NewMemory(), "").Fold(context.Background(), descs, nil)
	require.Error(t, err)

	var ae *assemble.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 0, ae.Index)
	assert.ErrorIs(t, err, parse.ErrTruncated)
}

func TestText(t *testing.T) {
	assert.Equal(t, "plain", assemble.Text(parse.FormatYahoo, "<FONT COLOR=\"#ff0000\">plain</FONT>"))
	assert.Equal(t, "<b>kept</b>", assemble.Text(parse.FormatDigsby, "<b>kept</b>"))
	assert.Equal(t, "Conference invitation declined", assemble.SystemText(parse.ConferenceDecline{}))
}
