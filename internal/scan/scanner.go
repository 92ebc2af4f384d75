package scan

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zuo-Peng/imlog/internal/parse"
)

type FileInfo struct {
	Path   string
	Format parse.Format
	Mtime  int64
	Size   int64
}

// ProgressFunc receives the number of visited entries and the number of
// entries discovered so far. total grows as directories are opened.
type ProgressFunc func(completed, total int)

// Walk collects the archive files of format below root, breadth first.
// Extensions match case-insensitively. An unreadable directory aborts the
// walk with a *parse.FilesystemError naming it. ctx is checked before
// each directory is opened.
func Walk(ctx context.Context, root string, format parse.Format, progress ProgressFunc) ([]FileInfo, error) {
	ext := format.Ext()
	if progress == nil {
		progress = func(int, int) {}
	}

	var files []FileInfo
	queue := []string{root}
	completed, total := 0, 0

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, &parse.FilesystemError{Op: "read directory", Path: dir, Err: err}
		}
		total += len(entries)

		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			switch {
			case e.IsDir():
				queue = append(queue, path)
			case e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ext):
				info, err := e.Info()
				if err != nil {
					return nil, &parse.FilesystemError{Op: "stat", Path: path, Err: err}
				}
				files = append(files, FileInfo{
					Path:   path,
					Format: format,
					Mtime:  info.ModTime().Unix(),
					Size:   info.Size(),
				})
			}
			completed++
			progress(completed, total)
		}
	}

	return files, nil
}

// ScanRoots walks both archive roots, skipping roots that are empty or do
// not exist.
func ScanRoots(ctx context.Context, yahooRoot, digsbyRoot string) ([]FileInfo, error) {
	var files []FileInfo

	for _, r := range []struct {
		root   string
		format parse.Format
	}{
		{yahooRoot, parse.FormatYahoo},
		{digsbyRoot, parse.FormatDigsby},
	} {
		if r.root == "" {
			continue
		}
		found, err := Walk(ctx, r.root, r.format, nil)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && isRoot(err, r.root) {
				continue
			}
			return nil, err
		}
		files = append(files, found...)
	}

	return files, nil
}

func isRoot(err error, root string) bool {
	var fe *parse.FilesystemError
	return errors.As(err, &fe) && fe.Path == root
}
