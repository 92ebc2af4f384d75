// Package importer runs one import job: scan a root directory for archive
// files, segment every file into conversations and fold them into an
// archive graph.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Zuo-Peng/imlog/internal/archive"
	"github.com/Zuo-Peng/imlog/internal/assemble"
	"github.com/Zuo-Peng/imlog/internal/parse"
	"github.com/Zuo-Peng/imlog/internal/scan"
	"github.com/Zuo-Peng/imlog/internal/segment"
)

type State int

const (
	AwaitingStart State = iota
	Scanning
	Analyzing
	Converting
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingStart:
		return "awaiting start"
	case Scanning:
		return "scanning"
	case Analyzing:
		return "analyzing"
	case Converting:
		return "converting"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Phase labels passed to ProgressFunc.
const (
	PhaseScanning   = "Scanning files"
	PhaseAnalyzing  = "Analyzing conversations"
	PhaseConverting = "Importing conversations"
)

// ProgressFunc receives progress notifications. A total of zero means the
// amount of work is not known yet. Calls never overlap.
type ProgressFunc func(phase string, completed, total int)

var ErrStarted = errors.New("import job already started")

type Options struct {
	Format parse.Format
	Root   string
	Policy segment.Policy
	// Workers is the number of files analysed concurrently. Values below 2
	// analyse sequentially.
	Workers int
	// Group receives every contact the import creates.
	Group    string
	Logger   *slog.Logger
	Progress ProgressFunc
}

// Result summarises a finished job.
type Result struct {
	Files         int
	Conversations int
	Replies       int
}

func (r Result) String() string {
	return fmt.Sprintf("files=%d conversations=%d replies=%d", r.Files, r.Conversations, r.Replies)
}

// Job is a single-use import. Create with New, start with Run.
type Job struct {
	opts  Options
	graph archive.Graph
	log   *slog.Logger

	mu    sync.Mutex
	state State
	err   error
}

func New(g archive.Graph, opts Options) *Job {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Job{opts: opts, graph: g, log: log}
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the error the job failed with, or nil.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
	j.log.Debug("import state", "state", s.String())
}

func (j *Job) fail(err error) error {
	j.mu.Lock()
	j.state = Failed
	j.err = err
	j.mu.Unlock()
	j.log.Error("import failed", "err", err)
	return err
}

func (j *Job) progress(phase string, completed, total int) {
	if j.opts.Progress != nil {
		j.opts.Progress(phase, completed, total)
	}
}

// Run executes the job to completion. It may be called once. The first
// error moves the job to Failed and is returned; nothing is retried.
func (j *Job) Run(ctx context.Context) (Result, error) {
	j.mu.Lock()
	if j.state != AwaitingStart {
		j.mu.Unlock()
		return Result{}, ErrStarted
	}
	j.state = Scanning
	j.mu.Unlock()
	j.log.Debug("import state", "state", Scanning.String())

	var res Result
	if _, ok := parse.ParseFormat(string(j.opts.Format)); !ok {
		return res, j.fail(fmt.Errorf("unknown format %q", j.opts.Format))
	}

	j.progress(PhaseScanning, 0, 0)
	files, err := scan.Walk(ctx, j.opts.Root, j.opts.Format, func(completed, total int) {
		j.progress(PhaseScanning, completed, total)
	})
	if err != nil {
		return res, j.fail(err)
	}
	res.Files = len(files)
	j.log.Info("scan complete", "root", j.opts.Root, "format", j.opts.Format, "files", len(files))

	if err := ctx.Err(); err != nil {
		return res, j.fail(err)
	}

	j.setState(Analyzing)
	descs, err := j.analyze(ctx, files)
	if err != nil {
		return res, j.fail(err)
	}

	j.setState(Converting)
	j.progress(PhaseConverting, 0, len(descs))
	st, err := assemble.New(j.graph, j.opts.Group).Fold(ctx, descs, func(completed, total int) {
		j.progress(PhaseConverting, completed, total)
	})
	res.Conversations, res.Replies = st.Conversations, st.Replies
	if err != nil {
		return res, j.fail(convertError(descs, err))
	}

	j.setState(Done)
	j.log.Info("import complete", "files", res.Files, "conversations", res.Conversations, "replies", res.Replies)
	return res, nil
}

// analyze segments every file and returns the descriptors in scan order.
func (j *Job) analyze(ctx context.Context, files []scan.FileInfo) ([]*segment.Descriptor, error) {
	perFile := make([][]*segment.Descriptor, len(files))
	j.progress(PhaseAnalyzing, 0, len(files))

	if j.opts.Workers < 2 {
		for i, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			descs, err := j.analyzeFile(f)
			if err != nil {
				return nil, err
			}
			perFile[i] = descs
			j.progress(PhaseAnalyzing, i+1, len(files))
		}
	} else {
		var (
			mu   sync.Mutex
			done int
		)
		grp, gctx := errgroup.WithContext(ctx)
		grp.SetLimit(j.opts.Workers)
		for i, f := range files {
			i, f := i, f
			grp.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				descs, err := j.analyzeFile(f)
				if err != nil {
					return err
				}
				perFile[i] = descs

				mu.Lock()
				defer mu.Unlock()
				done++
				j.progress(PhaseAnalyzing, done, len(files))
				return nil
			})
		}
		if err := grp.Wait(); err != nil {
			return nil, err
		}
	}

	var out []*segment.Descriptor
	for _, descs := range perFile {
		out = append(out, descs...)
	}
	return out, nil
}

func (j *Job) analyzeFile(f scan.FileInfo) ([]*segment.Descriptor, error) {
	descs, err := segment.File(j.opts.Format, f.Path, j.opts.Policy)
	if err != nil {
		return nil, &AnalyzeError{Path: f.Path, Conversation: len(descs), Err: err}
	}
	j.log.Debug("analyzed file", "path", f.Path, "conversations", len(descs))
	return descs, nil
}

// convertError locates a fold failure by file and by the conversation's
// ordinal within that file.
func convertError(descs []*segment.Descriptor, err error) error {
	var ae *assemble.Error
	if !errors.As(err, &ae) {
		return err
	}
	ordinal := 0
	for _, d := range descs[:ae.Index] {
		if d.Path == ae.Descriptor.Path {
			ordinal++
		}
	}
	return &ConvertError{Path: ae.Descriptor.Path, Conversation: ordinal, Err: ae.Err}
}
