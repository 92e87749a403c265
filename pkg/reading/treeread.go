package reading

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tilsley/scmreader/pkg/giturl"
)

// ArchiveSource is the host-specific half of a conditional tree read: a cheap
// revision probe followed by the archive download it gates.
type ArchiveSource interface {
	// LatestRevision returns the revision fingerprint of the tree at url.
	LatestRevision(ctx context.Context, url string) (string, error)
	// OpenArchive starts the archive download for url. The caller closes it.
	OpenArchive(ctx context.Context, url string) (io.ReadCloser, error)
}

// ReadTreeFrom reads the tree at rawURL from src. When opts.ETag equals the
// latest revision it returns NotModifiedError without opening the archive.
func ReadTreeFrom(
	ctx context.Context,
	src ArchiveSource,
	factory TreeResponseFactory,
	rawURL string,
	opts *ReadTreeOptions,
) (*ReadTreeResponse, error) {
	if opts == nil {
		opts = &ReadTreeOptions{}
	}
	parsed, err := giturl.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	revision, err := src.LatestRevision(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if opts.ETag != "" && opts.ETag == revision {
		return nil, NotModifiedError{}
	}

	body, err := src.OpenArchive(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck // response body close errors are non-actionable after reading

	tree, err := factory.FromTarArchive(ctx, FromArchiveOptions{
		Stream:  body,
		Subpath: parsed.Filepath,
		ETag:    revision,
		Filter:  opts.Filter,
	})
	if err != nil {
		return nil, fmt.Errorf("extract tree from %s: %w", rawURL, err)
	}
	return tree, nil
}

// TreeReadFunc is the ReadTree method of a URLReader.
type TreeReadFunc func(ctx context.Context, url string, opts *ReadTreeOptions) (*ReadTreeResponse, error)

// ResolveFunc resolves a repository-absolute path against a base URL.
type ResolveFunc func(target, base string) (string, error)

// SearchTree runs a glob search by reading the whole tree the glob lives in
// and filtering it client side. Each match is resolved against rawURL, not
// the stripped tree URL.
//
// TODO: use the literal prefix of the glob (e.g. docs/ in docs/**/*.md) as
// the tree path so only that subtree is downloaded.
func SearchTree(
	ctx context.Context,
	readTree TreeReadFunc,
	resolve ResolveFunc,
	rawURL string,
	opts *SearchOptions,
) (*SearchResponse, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	parsed, err := giturl.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	pattern := parsed.Filepath
	if !doublestar.ValidatePattern(pattern) {
		return nil, &giturl.Error{URL: rawURL, Reason: fmt.Sprintf("invalid glob pattern %q", pattern)}
	}

	treeURL, err := giturl.StripFilepath(rawURL)
	if err != nil {
		return nil, err
	}

	tree, err := readTree(ctx, treeURL, &ReadTreeOptions{
		ETag:   opts.ETag,
		Filter: GlobFilter(pattern),
	})
	if err != nil {
		return nil, err
	}

	files := tree.Files()
	out := &SearchResponse{ETag: tree.ETag, Files: make([]SearchResponseFile, 0, len(files))}
	for _, f := range files {
		u, err := resolve("/"+f.Path, rawURL)
		if err != nil {
			return nil, fmt.Errorf("resolve %s against %s: %w", f.Path, rawURL, err)
		}
		out.Files = append(out.Files, SearchResponseFile{URL: u, Content: f.Content})
	}
	return out, nil
}

// GlobFilter returns a tree filter that keeps paths matching pattern.
// Wildcards do not match a leading dot: a dotfile or dot-directory segment is
// only kept when a pattern segment that itself starts with "." matches it.
// Invalid patterns match nothing.
func GlobFilter(pattern string) func(path string) bool {
	var dotSegments []string
	for _, seg := range strings.Split(pattern, "/") {
		if strings.HasPrefix(seg, ".") {
			dotSegments = append(dotSegments, seg)
		}
	}
	return func(path string) bool {
		ok, err := doublestar.Match(pattern, path)
		if err != nil || !ok {
			return false
		}
		for _, seg := range strings.Split(path, "/") {
			if strings.HasPrefix(seg, ".") && !matchesAny(dotSegments, seg) {
				return false
			}
		}
		return true
	}
}

func matchesAny(patterns []string, segment string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, segment); err == nil && ok {
			return true
		}
	}
	return false
}
