package archive_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/imlog/internal/archive"
	"github.com/Zuo-Peng/imlog/internal/parse"
)

var _ archive.Graph = (*archive.Memory)(nil)

func TestMemory_LookupsMissReturnNil(t *testing.T) {
	g := archive.NewMemory()

	c, err := g.ContactByName("bob")
	require.NoError(t, err)
	assert.Nil(t, c)

	a, err := g.AccountByName(parse.ServiceYahoo, "bob")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestMemory_AccountKeyIsServiceAndName(t *testing.T) {
	g := archive.NewMemory()
	grp, err := g.CreateGroup("Imported")
	require.NoError(t, err)
	bob, err := grp.CreateContact("bob")
	require.NoError(t, err)

	yahoo, err := bob.CreateAccount(parse.ServiceYahoo, "bob")
	require.NoError(t, err)
	msn, err := bob.CreateAccount(parse.ServiceMSN, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, yahoo.ID(), msn.ID())

	got, err := g.AccountByName(parse.ServiceMSN, "bob")
	require.NoError(t, err)
	assert.Same(t, msn, got)

	got, err = g.AccountByName(parse.ServiceYahoo, "Bob")
	require.NoError(t, err)
	assert.Nil(t, got)

	c, err := g.ContactByName("bob")
	require.NoError(t, err)
	assert.Same(t, bob, c)
	assert.Equal(t, grp.ID(), c.(*archive.MemContact).Group())
}

func TestMemory_Conversation(t *testing.T) {
	g := archive.NewMemory()
	id, _ := g.CreateIdentity("alice")
	local, _ := id.CreateAccount(parse.ServiceYahoo, "alice")
	grp, _ := g.CreateGroup("Imported")
	bob, _ := grp.CreateContact("bob")
	remote, _ := bob.CreateAccount(parse.ServiceYahoo, "bob")

	ts := time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC)
	conv, err := g.CreateConversation(ts, local, remote, false)
	require.NoError(t, err)

	sp, err := conv.AddSpeaker("bob", remote)
	require.NoError(t, err)
	got, err := conv.SpeakerByName("bob")
	require.NoError(t, err)
	assert.Same(t, sp, got)
	missing, err := conv.SpeakerByName("carol")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, conv.AddReply(ts, sp, "hi"))
	require.NoError(t, conv.AddReply(ts.Add(time.Second), nil, "carol has joined the conference"))

	mc := g.Conversations()[0]
	assert.Equal(t, ts, mc.StartedAt())
	require.Len(t, mc.Replies(), 2)
	assert.Nil(t, mc.Replies()[1].Speaker)
}
