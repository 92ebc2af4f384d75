package importer_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/imlog/internal/archive"
	"github.com/Zuo-Peng/imlog/internal/importer"
	"github.com/Zuo-Peng/imlog/internal/parse"
	"github.com/Zuo-Peng/imlog/internal/parse/parsetest"
	"github.com/Zuo-Peng/imlog/internal/segment"
)

type call struct {
	phase            string
	completed, total int
}

func rec(epoch, typ, dir int32, text string) parsetest.YahooRecord {
	return parsetest.YahooRecord{Epoch: epoch, Type: typ, Direction: dir, Text: text}
}

// yahooArchive writes n files, each holding two conversations.
func yahooArchive(t *testing.T, n int) string {
	t.Helper()
	root := t.TempDir()
	for i := 0; i < n; i++ {
		path := filepath.Join(root, "Messages", fmt.Sprintf("buddy%d", i), "20090101-alice.dat")
		epoch := int32(1230768000 + i*10000)
		parsetest.WriteYahoo(t, path, "alice",
			rec(epoch, parse.YahooStartConv, 0, ""),
			rec(epoch+1, parse.YahooMessage, 1, "hi"),
			rec(epoch+2, parse.YahooMessage, 0, "hello"),
			rec(epoch+100, parse.YahooStartConv, 0, ""),
			rec(epoch+101, parse.YahooMessage, 1, "again"),
		)
	}
	return root
}

func TestJob_YahooImport(t *testing.T) {
	root := yahooArchive(t, 2)
	g := archive.NewMemory()

	var calls []call
	job := importer.New(g, importer.Options{
		Format: parse.FormatYahoo,
		Root:   root,
		Progress: func(phase string, completed, total int) {
			calls = append(calls, call{phase, completed, total})
		},
	})
	assert.Equal(t, importer.AwaitingStart, job.State())

	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, importer.Done, job.State())
	assert.NoError(t, job.Err())
	assert.Equal(t, importer.Result{Files: 2, Conversations: 4, Replies: 6}, res)

	assert.Len(t, g.Conversations(), 4)
	assert.Len(t, g.Identities(), 1)
	assert.Len(t, g.Contacts(), 2)

	require.NotEmpty(t, calls)
	assert.Equal(t, call{importer.PhaseScanning, 0, 0}, calls[0])
	assert.Equal(t, call{importer.PhaseConverting, 4, 4}, calls[len(calls)-1])

	var phases []string
	for _, c := range calls {
		if len(phases) == 0 || phases[len(phases)-1] != c.phase {
			phases = append(phases, c.phase)
		}
	}
	assert.Equal(t, []string{importer.PhaseScanning, importer.PhaseAnalyzing, importer.PhaseConverting}, phases)
	assert.Contains(t, calls, call{importer.PhaseAnalyzing, 2, 2})
}

func TestJob_WorkerPoolKeepsScanOrder(t *testing.T) {
	root := yahooArchive(t, 8)

	starts := func(workers int) []time.Time {
		g := archive.NewMemory()
		_, err := importer.New(g, importer.Options{
			Format:  parse.FormatYahoo,
			Root:    root,
			Workers: workers,
		}).Run(context.Background())
		require.NoError(t, err)

		var out []time.Time
		for _, c := range g.Conversations() {
			out = append(out, c.StartedAt())
		}
		return out
	}

	seq := starts(1)
	require.Len(t, seq, 16)
	assert.Equal(t, seq, starts(4))
}

func TestJob_WorkerPoolProgressIsMonotonic(t *testing.T) {
	root := yahooArchive(t, 6)

	var analyzed []int
	_, err := importer.New(archive.NewMemory(), importer.Options{
		Format:  parse.FormatYahoo,
		Root:    root,
		Workers: 3,
		Progress: func(phase string, completed, total int) {
			if phase == importer.PhaseAnalyzing {
				analyzed = append(analyzed, completed)
			}
		},
	}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, analyzed)
}

func TestJob_DigsbyImport(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2010, 3, 1, 9, 0, 0, 0, time.UTC)
	parsetest.WriteDigsby(t, filepath.Join(root, "digsby", "alice", "bob_gtalk", "2010-03-01.html"),
		parsetest.DigsbyReply{Time: base, Buddy: "alice", Content: "morning"},
		parsetest.DigsbyReply{Time: base.Add(time.Minute), Buddy: "bob", Content: "hi"},
		parsetest.DigsbyReply{Time: base.Add(time.Hour), Buddy: "bob", Content: "later"},
	)

	g := archive.NewMemory()
	res, err := importer.New(g, importer.Options{
		Format: parse.FormatDigsby,
		Root:   root,
		Policy: segment.DefaultPolicy(),
	}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, importer.Result{Files: 1, Conversations: 2, Replies: 3}, res)

	bob, err := g.AccountByName(parse.ServiceGTalk, "bob")
	require.NoError(t, err)
	assert.NotNil(t, bob)
}

func TestJob_AnalyzeFailure(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Messages", "bob", "20090101-alice.dat")
	parsetest.WriteYahoo(t, path, "alice",
		rec(100, parse.YahooStartConv, 0, ""),
		rec(101, parse.YahooMessage, 1, "ok"),
		rec(200, parse.YahooStartConv, 0, ""),
		rec(201, 99, 1, "bad"),
	)

	g := archive.NewMemory()
	job := importer.New(g, importer.Options{Format: parse.FormatYahoo, Root: root})
	_, err := job.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, importer.Failed, job.State())
	assert.Equal(t, err, job.Err())

	var ae *importer.AnalyzeError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, path, ae.Path)
	assert.Equal(t, 1, ae.Conversation)

	var de *parse.DecodeError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, parse.ErrUnsupportedRecord)
	assert.Empty(t, g.Conversations())
}

func TestJob_CancelledWhileScanning(t *testing.T) {
	root := yahooArchive(t, 3)
	ctx, cancel := context.WithCancel(context.Background())

	var phases []string
	job := importer.New(archive.NewMemory(), importer.Options{
		Format: parse.FormatYahoo,
		Root:   root,
		Progress: func(phase string, completed, total int) {
			phases = append(phases, phase)
			if phase == importer.PhaseScanning && completed == 1 {
				cancel()
			}
		},
	})
	_, err := job.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, importer.Failed, job.State())
	assert.NotContains(t, phases, importer.PhaseAnalyzing)
}

func TestJob_PathLayoutFailure(t *testing.T) {
	root := t.TempDir()
	parsetest.WriteYahoo(t, filepath.Join(root, "Inbox", "bob", "20090101-alice.dat"), "alice",
		rec(100, parse.YahooStartConv, 0, ""),
	)

	_, err := importer.New(archive.NewMemory(), importer.Options{Format: parse.FormatYahoo, Root: root}).
		Run(context.Background())

	var pe *parse.PathFormatError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, parse.YahooLayout, pe.Layout)
}

func TestJob_MissingRoot(t *testing.T) {
	job := importer.New(archive.NewMemory(), importer.Options{
		Format: parse.FormatDigsby,
		Root:   filepath.Join(t.TempDir(), "missing"),
	})
	_, err := job.Run(context.Background())

	var fe *parse.FilesystemError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, importer.Failed, job.State())
}

func TestJob_RunsOnce(t *testing.T) {
	job := importer.New(archive.NewMemory(), importer.Options{Format: parse.FormatYahoo, Root: t.TempDir()})
	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, importer.Result{}, res)

	_, err = job.Run(context.Background())
	assert.ErrorIs(t, err, importer.ErrStarted)
	assert.Equal(t, importer.Done, job.State())
}

func TestJob_ConcurrentRunStartsOnce(t *testing.T) {
	job := importer.New(archive.NewMemory(), importer.Options{Format: parse.FormatYahoo, Root: yahooArchive(t, 2)})

	var started, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := job.Run(context.Background())
			if errors.Is(err, importer.ErrStarted) {
				rejected.Add(1)
				return
			}
			assert.NoError(t, err)
			started.Add(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, int32(7), rejected.Load())
	assert.Equal(t, importer.Done, job.State())
}

func TestJob_UnknownFormat(t *testing.T) {
	job := importer.New(archive.NewMemory(), importer.Options{Format: "icq", Root: t.TempDir()})
	_, err := job.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, importer.Failed, job.State())
}

func TestJob_CancelledBeforeConverting(t *testing.T) {
	root := yahooArchive(t, 3)
	ctx, cancel := context.WithCancel(context.Background())

	g := archive.NewMemory()
	job := importer.New(g, importer.Options{
		Format: parse.FormatYahoo,
		Root:   root,
		Progress: func(phase string, completed, total int) {
			if phase == importer.PhaseAnalyzing && completed == 1 {
				cancel()
			}
		},
	})
	_, err := job.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, importer.Failed, job.State())
	assert.Empty(t, g.Conversations())
}
