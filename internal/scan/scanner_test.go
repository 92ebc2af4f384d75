package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/imlog/internal/parse"
	"github.com/Zuo-Peng/imlog/internal/parse/parsetest"
)

func touch(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		parsetest.WriteFile(t, filepath.Join(root, r), []byte("x"))
	}
}

func TestWalk_BreadthFirstCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"top.DAT",
		"messages/bob/20090101-alice.dat",
		"messages/bob/notes.txt",
		"messages/carol/20090102-alice.Dat",
		"conferences/room/deep/20090103-alice.dat",
	)

	files, err := Walk(context.Background(), root, parse.FormatYahoo, nil)
	require.NoError(t, err)

	var got []string
	for _, f := range files {
		rel, err := filepath.Rel(root, f.Path)
		require.NoError(t, err)
		got = append(got, filepath.ToSlash(rel))
		assert.Equal(t, parse.FormatYahoo, f.Format)
		assert.Equal(t, int64(1), f.Size)
	}
	assert.Equal(t, []string{
		"top.DAT",
		"messages/bob/20090101-alice.dat",
		"messages/carol/20090102-alice.Dat",
		"conferences/room/deep/20090103-alice.dat",
	}, got)
}

func TestWalk_Progress(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a/1.html", "a/2.html", "b/3.html", "c.txt")

	type call struct{ completed, total int }
	var calls []call
	files, err := Walk(context.Background(), root, parse.FormatDigsby, func(c, n int) {
		calls = append(calls, call{c, n})
	})
	require.NoError(t, err)
	assert.Len(t, files, 3)

	// root has a, b, c.txt; a has two files; b has one.
	require.Len(t, calls, 6)
	for i, c := range calls {
		assert.Equal(t, i+1, c.completed)
		assert.LessOrEqual(t, c.completed, c.total)
		if i > 0 {
			assert.GreaterOrEqual(t, c.total, calls[i-1].total)
		}
	}
	assert.Equal(t, call{6, 6}, calls[len(calls)-1])
	assert.Equal(t, 3, calls[0].total)
}

func TestWalk_MissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")
	_, err := Walk(context.Background(), root, parse.FormatYahoo, nil)

	var fe *parse.FilesystemError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, root, fe.Path)
	assert.Contains(t, err.Error(), root)
}

func TestWalk_UnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Mkdir(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	_, err := Walk(context.Background(), root, parse.FormatYahoo, nil)
	var fe *parse.FilesystemError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, locked, fe.Path)
}

func TestScanRoots_SkipsMissingRoots(t *testing.T) {
	yahoo := t.TempDir()
	touch(t, yahoo, "messages/bob/20090101-alice.dat")

	files, err := ScanRoots(context.Background(), yahoo, filepath.Join(t.TempDir(), "none"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, parse.FormatYahoo, files[0].Format)
}

func TestWalk_Cancelled(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "messages/bob/20090101-alice.dat")

	ctx, cancel := context.WithCancel(context.Background())
	visited := 0
	_, err := Walk(ctx, root, parse.FormatYahoo, func(c, n int) {
		visited++
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, visited, "walk stops before the next directory")
}
