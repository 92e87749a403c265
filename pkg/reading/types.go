// Package reading reads files, trees and glob searches out of source-control
// hosts through one host-agnostic URLReader contract.
package reading

import (
	"context"
	"io"
	"sync"
)

// URLReader reads content addressed by a browser-style repository URL.
type URLReader interface {
	// Read returns the full content of a single file.
	Read(ctx context.Context, url string) ([]byte, error)
	// ReadURL fetches a single file. The body is not read until the caller asks.
	ReadURL(ctx context.Context, url string, opts *ReadURLOptions) (*ReadURLResponse, error)
	// ReadTree fetches every file below the URL's path.
	ReadTree(ctx context.Context, url string, opts *ReadTreeOptions) (*ReadTreeResponse, error)
	// Search treats the URL's path as a glob and returns the matching files.
	Search(ctx context.Context, url string, opts *SearchOptions) (*SearchResponse, error)
	// String is a stable diagnostic label, e.g. bitbucketServer{host=x,authed=true}.
	String() string
}

// ReadURLOptions tunes ReadURL.
type ReadURLOptions struct {
	// ETag from a previous response. A match yields NotModifiedError.
	ETag string
}

// ReadTreeOptions tunes ReadTree.
type ReadTreeOptions struct {
	// ETag from a previous ReadTree. A match yields NotModifiedError and no
	// archive is downloaded.
	ETag string
	// Filter keeps a file when it returns true. Paths are relative to the
	// tree root and use forward slashes.
	Filter func(path string) bool
}

// SearchOptions tunes Search.
type SearchOptions struct {
	ETag string
}

// ReadURLResponse is a successful single-file read. Exactly one of Buffer,
// Stream or Close should be used to release the underlying body.
type ReadURLResponse struct {
	// ETag is the response ETag header, if the host sent one.
	ETag string

	once sync.Once
	body io.ReadCloser
	data []byte
	err  error
}

// NewReadURLResponse wraps body. Buffer and Close take ownership of it.
func NewReadURLResponse(body io.ReadCloser, etag string) *ReadURLResponse {
	return &ReadURLResponse{ETag: etag, body: body}
}

// Buffer reads the whole body. It is safe to call more than once.
func (r *ReadURLResponse) Buffer() ([]byte, error) {
	r.once.Do(func() {
		defer r.body.Close() //nolint:errcheck // close errors are non-actionable after reading
		r.data, r.err = io.ReadAll(r.body)
	})
	return r.data, r.err
}

// Stream hands the raw body to the caller, who must close it.
func (r *ReadURLResponse) Stream() io.ReadCloser {
	return r.body
}

// Close releases the body without reading it.
func (r *ReadURLResponse) Close() error {
	return r.body.Close()
}

// SearchResponse is the result of a glob search.
type SearchResponse struct {
	// ETag is the revision fingerprint of the tree that was searched.
	ETag  string
	Files []SearchResponseFile
}

// SearchResponseFile is one matched file.
type SearchResponseFile struct {
	// URL is the match resolved against the original search URL.
	URL     string
	Content []byte
}
