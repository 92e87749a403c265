// Package giturl splits browser-style git hosting URLs into repository
// coordinates. It understands Bitbucket Server project/repos paths, GitHub
// blob/tree paths and a short generic {owner}/{repo}/{path} form.
package giturl

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Error reports a URL that cannot address a repository location.
type Error struct {
	URL    string
	Reason string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("url %q: %s", e.URL, e.Reason)
}

// IsInvalid reports whether err is or wraps an *Error.
func IsInvalid(err error) bool {
	var target *Error
	return errors.As(err, &target)
}

// URL is a parsed git hosting URL.
type URL struct {
	Host         string // host[:port]
	Owner        string // project key on Bitbucket Server, owner on GitHub
	Name         string
	Ref          string // branch, tag or commit; empty for the default branch
	Filepath     string // path inside the repository, no leading slash
	FilepathType string // browse, raw, blob, tree or empty
	// RootPath is the URL path that addresses the repository root, i.e. the
	// path with Filepath removed and trailing slashes trimmed.
	RootPath string
}

// FullName returns "owner/name".
func (u *URL) FullName() string {
	return u.Owner + "/" + u.Name
}

var (
	bitbucketServerMarkers = map[string]bool{"browse": true, "raw": true}
	refMarkers             = map[string]bool{"blob": true, "tree": true, "raw": true, "edit": true}
)

// Parse parses raw into repository coordinates.
func Parse(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &Error{URL: raw, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &Error{URL: raw, Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &Error{URL: raw, Reason: "missing host"}
	}

	segs := splitPath(u.Path)
	out := &URL{Host: u.Host}

	if i := bitbucketServerIndex(segs); i >= 0 {
		out.Owner = segs[i+1]
		out.Name = strings.TrimSuffix(segs[i+3], ".git")
		out.Ref = u.Query().Get("at")
		rest := segs[i+4:]
		root := segs[:i+4]
		if len(rest) > 0 && bitbucketServerMarkers[rest[0]] {
			out.FilepathType = rest[0]
			root = segs[:i+5]
			rest = rest[1:]
		}
		out.Filepath = strings.Join(rest, "/")
		out.RootPath = joinPath(root)
		return out, nil
	}

	if len(segs) < 2 {
		return nil, &Error{URL: raw, Reason: "expected an owner and repository in the path"}
	}
	base := 0
	if segs[0] == "scm" && len(segs) >= 3 {
		base = 1
	}
	out.Owner = segs[base]
	out.Name = strings.TrimSuffix(segs[base+1], ".git")

	rest := segs[base+2:]
	if len(rest) >= 2 && refMarkers[rest[0]] {
		out.FilepathType = rest[0]
		out.Ref = rest[1]
		out.Filepath = strings.Join(rest[2:], "/")
		out.RootPath = joinPath(segs[:base+4])
		return out, nil
	}

	q := u.Query()
	out.Ref = q.Get("at")
	if out.Ref == "" {
		out.Ref = q.Get("ref")
	}
	out.Filepath = strings.Join(rest, "/")
	out.RootPath = joinPath(segs[:base+2])
	return out, nil
}

// StripFilepath returns raw with the repository file path removed, keeping the
// query string. Trailing slashes left behind are trimmed.
func StripFilepath(raw string) (string, error) {
	parsed, err := Parse(raw)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	u.Path = strings.TrimRight(parsed.RootPath, "/")
	u.RawPath = ""
	return u.String(), nil
}

// bitbucketServerIndex returns the index of the "projects" segment of a
// .../projects/{key}/repos/{slug}/... path, or -1.
func bitbucketServerIndex(segs []string) int {
	for i := 0; i+3 < len(segs); i++ {
		if segs[i] == "projects" && segs[i+2] == "repos" {
			return i
		}
	}
	return -1
}

func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func joinPath(segs []string) string {
	return "/" + strings.Join(segs, "/")
}
