package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/imlog/internal/assemble"
	"github.com/Zuo-Peng/imlog/internal/index"
	"github.com/Zuo-Peng/imlog/internal/parse"
	"github.com/Zuo-Peng/imlog/internal/parse/parsetest"
	"github.com/Zuo-Peng/imlog/internal/segment"
)

func seeded(t *testing.T) *index.Store {
	t.Helper()
	ctx := context.Background()
	s, err := index.Open(ctx, filepath.Join(t.TempDir(), "imlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	base := time.Date(2010, 5, 1, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	bob := filepath.Join(dir, "digsby", "alice", "bob_msn", "2010-05-01.html")
	carol := filepath.Join(dir, "digsby", "alice", "carol_msn", "2010-05-02.html")
	parsetest.WriteDigsby(t, bob,
		parsetest.DigsbyReply{Time: base, Buddy: "bob", Content: "the weather is lovely today"},
		parsetest.DigsbyReply{Time: base.Add(time.Minute), Buddy: "alice", Content: "lovely indeed"},
		parsetest.DigsbyReply{Time: base.Add(2 * time.Minute), Buddy: "bob", Content: "你好世界"},
	)
	parsetest.WriteDigsby(t, carol,
		parsetest.DigsbyReply{Time: base.Add(24 * time.Hour), Buddy: "carol", Content: "lovely party"},
	)

	var descs []*segment.Descriptor
	for _, p := range []string{bob, carol} {
		d, err := segment.File(parse.FormatDigsby, p, segment.DefaultPolicy())
		require.NoError(t, err)
		descs = append(descs, d...)
	}
	require.NoError(t, s.Update(ctx, func(tx *index.Tx) error {
		_, err := assemble.New(tx, "").Fold(ctx, descs, nil)
		return err
	}))
	return s
}

func TestSearch_FTSDedupsPerConversation(t *testing.T) {
	s := seeded(t)

	res, err := Search(context.Background(), s, Options{Query: "lovely"})
	require.NoError(t, err)
	require.Len(t, res, 2)

	var remotes []string
	for _, r := range res {
		remotes = append(remotes, r.RemoteAccount)
		assert.Contains(t, r.Snippet, ">>>lovely<<<")
		assert.Equal(t, "alice", r.LocalAccount)
	}
	assert.ElementsMatch(t, []string{"bob", "carol"}, remotes)
}

func TestSearch_Filters(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	res, err := Search(ctx, s, Options{Query: "lovely", Account: "carol"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "carol", res[0].Speaker)

	res, err = Search(ctx, s, Options{Query: "lovely", Since: time.Date(2010, 5, 2, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "carol", res[0].RemoteAccount)

	res, err = Search(ctx, s, Options{Query: "lovely", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestSearch_CJKUsesSubstringMatch(t *testing.T) {
	s := seeded(t)

	res, err := Search(context.Background(), s, Options{Query: "世界"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "bob", res[0].Speaker)
	assert.Equal(t, 2, res[0].Seq)
	assert.Equal(t, "你好>>>世界<<<", res[0].Snippet)
}

func TestMakeSnippet(t *testing.T) {
	assert.Equal(t, "...bc >>>DEF<<< gh...", makeSnippet("abc DEF ghi", "def", 3))
	assert.Equal(t, "abcdef", makeSnippet("abcdef", "zzz", 10))
	assert.Equal(t, "ab...", makeSnippet("abcdef", "zzz", 1))
}

func TestContainsCJK(t *testing.T) {
	assert.True(t, containsCJK("hi 世界"))
	assert.False(t, containsCJK("hello"))
}

func TestListAll(t *testing.T) {
	s := seeded(t)

	res, err := ListAll(context.Background(), s, Options{})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "carol", res[0].RemoteAccount)
	assert.Equal(t, "lovely party", res[0].Snippet)
	assert.Equal(t, "bob", res[1].Speaker)

	res, err = ListAll(context.Background(), s, Options{Account: "bob"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "the weather is lovely today", res[0].Snippet)
}
