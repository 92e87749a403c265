package reading

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ReadTreeResponseFile is one file of a tree read.
type ReadTreeResponseFile struct {
	// Path is relative to the tree root and uses forward slashes.
	Path    string
	Content []byte
}

// ReadTreeResponse is a materialized, filtered repository tree.
type ReadTreeResponse struct {
	// ETag is the revision fingerprint the tree was read at.
	ETag  string
	files []ReadTreeResponseFile
}

// NewReadTreeResponse builds a response from already-extracted files.
func NewReadTreeResponse(etag string, files []ReadTreeResponseFile) *ReadTreeResponse {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return &ReadTreeResponse{ETag: etag, files: files}
}

// Files returns the files in path order.
func (r *ReadTreeResponse) Files() []ReadTreeResponseFile {
	out := make([]ReadTreeResponseFile, len(r.files))
	copy(out, r.files)
	return out
}

// Dir writes the tree below targetDir and returns it. An empty targetDir
// creates a fresh temporary directory which the caller owns.
func (r *ReadTreeResponse) Dir(targetDir string) (string, error) {
	if targetDir == "" {
		dir, err := os.MkdirTemp("", "scmreader-tree-")
		if err != nil {
			return "", fmt.Errorf("create temp dir: %w", err)
		}
		targetDir = dir
	}
	root, err := filepath.Abs(targetDir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", targetDir, err)
	}

	for _, f := range r.files {
		dst := filepath.Join(root, filepath.FromSlash(f.Path))
		if !strings.HasPrefix(dst, root+string(filepath.Separator)) {
			return "", fmt.Errorf("refusing to write %q outside %s", f.Path, root)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return "", fmt.Errorf("create dir for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(dst, f.Content, 0o644); err != nil { //nolint:gosec // tree content is not secret
			return "", fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	return root, nil
}

// FromArchiveOptions describes an archive to materialize.
type FromArchiveOptions struct {
	// Stream is a tar archive, optionally gzip-compressed. The first path
	// segment of every entry is a wrapper directory and is dropped.
	Stream io.Reader
	// Subpath restricts the tree to entries below it; paths are made
	// relative to it.
	Subpath string
	ETag    string
	Filter  func(path string) bool
}

// TreeResponseFactory turns an archive stream into a ReadTreeResponse.
type TreeResponseFactory interface {
	FromTarArchive(ctx context.Context, opts FromArchiveOptions) (*ReadTreeResponse, error)
}

// TarTreeFactory extracts tar and tar.gz archives. Only regular files that
// pass the filter are held in memory.
type TarTreeFactory struct{}

// NewTreeResponseFactory returns the default tar-based factory.
func NewTreeResponseFactory() *TarTreeFactory {
	return &TarTreeFactory{}
}

var gzipMagic = []byte{0x1f, 0x8b}

// FromTarArchive streams opts.Stream through gzip (when compressed) and tar.
func (f *TarTreeFactory) FromTarArchive(ctx context.Context, opts FromArchiveOptions) (*ReadTreeResponse, error) {
	br := bufio.NewReader(opts.Stream)

	var r io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close() //nolint:errcheck // close errors on readers are non-actionable
		r = gz
	}

	sub := strings.Trim(opts.Subpath, "/")
	if sub != "" {
		sub += "/"
	}

	var files []ReadTreeResponseFile
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tar next: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		rel, ok := relativeEntryPath(hdr.Name, sub)
		if !ok {
			continue
		}
		if opts.Filter != nil && !opts.Filter(rel) {
			continue
		}

		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", hdr.Name, err)
		}
		files = append(files, ReadTreeResponseFile{Path: rel, Content: content})
	}

	return NewReadTreeResponse(opts.ETag, files), nil
}

// relativeEntryPath drops the wrapper directory and subpath from an archive
// entry name. Entries outside the subpath or escaping the root are rejected.
func relativeEntryPath(name, sub string) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	idx := strings.Index(name, "/")
	if idx == -1 {
		return "", false
	}
	p := name[idx+1:]
	if p == "" {
		return "", false
	}
	p = path.Clean(p)
	if p == ".." || strings.HasPrefix(p, "../") || path.IsAbs(p) {
		return "", false
	}
	if sub != "" {
		if !strings.HasPrefix(p, sub) {
			return "", false
		}
		p = p[len(sub):]
	}
	if p == "" {
		return "", false
	}
	return p, true
}
