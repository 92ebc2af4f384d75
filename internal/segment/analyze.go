package segment

import (
	"fmt"

	"github.com/Zuo-Peng/imlog/internal/parse"
)

// File extracts the path metadata of an archive file, decodes it and
// returns its conversations in source order. On error the descriptors
// completed before the failure are returned with it, so len(result) is the
// ordinal of the conversation being read.
func File(format parse.Format, path string, p Policy) ([]*Descriptor, error) {
	meta, err := parse.PathMetadata(format, path)
	if err != nil {
		return nil, err
	}

	switch format {
	case parse.FormatYahoo:
		s, err := parse.OpenYahoo(path, meta.LocalAccount, meta.RemoteAccount, 0, -1)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return Yahoo(s, path, meta)

	case parse.FormatDigsby:
		s, err := parse.OpenDigsby(path, 0, parse.Unbounded)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return Digsby(s, path, meta, p)

	default:
		return nil, fmt.Errorf("%s: unknown format %q", path, format)
	}
}
