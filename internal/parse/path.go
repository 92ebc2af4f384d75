package parse

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	DigsbyLayout = ".../{service}/{localAccount}/{remoteAccount}_{remoteService}/{yyyy-mm-dd}.html"
	YahooLayout  = ".../{conferences|messages}/{remoteId}/{yyyymmdd}-{localId}.dat"
)

var (
	digsbyFileRe = regexp.MustCompile(`(?i)^(\d{4}-\d{2}-\d{2})\.html$`)
	yahooFileRe  = regexp.MustCompile(`(?i)^(\d{8})-(.+)\.dat$`)
)

// ParseService maps a path segment to a known service, ignoring case.
func ParseService(s string) (Service, bool) {
	switch Service(strings.ToLower(s)) {
	case ServiceDigsby:
		return ServiceDigsby, true
	case ServiceYahoo:
		return ServiceYahoo, true
	case ServiceMSN:
		return ServiceMSN, true
	case ServiceGTalk:
		return ServiceGTalk, true
	}
	return "", false
}

// segments returns the last n elements of path, or nil if it has fewer.
func segments(path string, n int) []string {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) < n {
		return nil
	}
	return out[len(out)-n:]
}

// DigsbyPath extracts account metadata from the path of a Digsby log:
// .../{service}/{localAccount}/{remoteAccount}_{remoteService}/{yyyy-mm-dd}.html
func DigsbyPath(path string) (Metadata, error) {
	fail := func(reason string) (Metadata, error) {
		return Metadata{}, &PathFormatError{Path: path, Layout: DigsbyLayout, Reason: reason}
	}

	seg := segments(path, 4)
	if seg == nil {
		return fail("too few path elements")
	}
	m := digsbyFileRe.FindStringSubmatch(seg[3])
	if m == nil {
		return fail("file name is not a yyyy-mm-dd.html date")
	}
	date, err := time.Parse("2006-01-02", m[1])
	if err != nil {
		return fail("invalid date " + m[1])
	}

	local, ok := ParseService(seg[0])
	if !ok {
		return fail("unrecognized service " + seg[0])
	}

	i := strings.LastIndex(seg[2], "_")
	if i <= 0 || i == len(seg[2])-1 {
		return fail("directory " + seg[2] + " is not remoteAccount_remoteService")
	}
	remote, ok := ParseService(seg[2][i+1:])
	if !ok {
		return fail("unrecognized service " + seg[2][i+1:])
	}

	return Metadata{
		LocalService:  local,
		LocalAccount:  seg[1],
		RemoteService: remote,
		RemoteAccount: seg[2][:i],
		Date:          date,
	}, nil
}

// YahooPath extracts account metadata from the path of a Yahoo archive:
// .../{conferences|messages}/{remoteId}/{yyyymmdd}-{localId}.dat
func YahooPath(path string) (Metadata, error) {
	fail := func(reason string) (Metadata, error) {
		return Metadata{}, &PathFormatError{Path: path, Layout: YahooLayout, Reason: reason}
	}

	seg := segments(path, 3)
	if seg == nil {
		return fail("too few path elements")
	}

	var conference bool
	switch strings.ToLower(seg[0]) {
	case "conferences":
		conference = true
	case "messages":
	default:
		return fail("directory " + seg[0] + " is neither conferences nor messages")
	}

	m := yahooFileRe.FindStringSubmatch(seg[2])
	if m == nil {
		return fail("file name is not yyyymmdd-localId.dat")
	}
	date, err := time.Parse("20060102", m[1])
	if err != nil {
		return fail("invalid date " + m[1])
	}

	return Metadata{
		LocalService:  ServiceYahoo,
		LocalAccount:  m[2],
		RemoteService: ServiceYahoo,
		RemoteAccount: seg[1],
		IsConference:  conference,
		Date:          date,
	}, nil
}

// PathMetadata dispatches to the extractor for format.
func PathMetadata(format Format, path string) (Metadata, error) {
	switch format {
	case FormatYahoo:
		return YahooPath(path)
	case FormatDigsby:
		return DigsbyPath(path)
	default:
		return Metadata{}, &PathFormatError{Path: path, Layout: "?", Reason: "unknown format " + string(format)}
	}
}
