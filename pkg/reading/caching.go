package reading

import (
	"bytes"
	"context"
	"io"
	"log/slog"
)

// CachedResponse is a file body stored alongside the ETag it was served with.
type CachedResponse struct {
	ETag string `json:"etag"`
	Body []byte `json:"body"`
}

// ResponseCache stores single-file responses keyed by URL.
type ResponseCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, key string) (*CachedResponse, error)
	Put(ctx context.Context, key string, resp CachedResponse) error
}

// Compile-time check.
var _ URLReader = (*CachingReader)(nil)

// CachingReader revalidates single-file reads against a ResponseCache using
// conditional requests. Calls that already carry an ETag, tree reads and
// searches pass straight through.
type CachingReader struct {
	inner URLReader
	cache ResponseCache
	log   *slog.Logger
}

// NewCachingReader wraps inner with cache. A nil log uses slog.Default.
func NewCachingReader(inner URLReader, cache ResponseCache, log *slog.Logger) *CachingReader {
	if log == nil {
		log = slog.Default()
	}
	return &CachingReader{inner: inner, cache: cache, log: log}
}

// Read implements URLReader.
func (c *CachingReader) Read(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.ReadURL(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return resp.Buffer()
}

// ReadURL serves the cached body when the host confirms it is still current.
// Cache failures degrade to an uncached read.
func (c *CachingReader) ReadURL(ctx context.Context, url string, opts *ReadURLOptions) (*ReadURLResponse, error) {
	if opts != nil && opts.ETag != "" {
		return c.inner.ReadURL(ctx, url, opts)
	}

	cached, err := c.cache.Get(ctx, url)
	if err != nil {
		c.log.Warn("response cache get failed", "url", url, "error", err)
		cached = nil
	}

	var innerOpts *ReadURLOptions
	if cached != nil && cached.ETag != "" {
		innerOpts = &ReadURLOptions{ETag: cached.ETag}
	}

	resp, err := c.inner.ReadURL(ctx, url, innerOpts)
	if IsNotModified(err) && innerOpts != nil {
		c.log.Debug("serving cached response", "url", url, "etag", cached.ETag)
		return bufferedResponse(cached.Body, cached.ETag), nil
	}
	if err != nil {
		return nil, err
	}
	if resp.ETag == "" {
		return resp, nil
	}

	data, err := resp.Buffer()
	if err != nil {
		return nil, err
	}
	if err := c.cache.Put(ctx, url, CachedResponse{ETag: resp.ETag, Body: data}); err != nil {
		c.log.Warn("response cache put failed", "url", url, "error", err)
	}
	return bufferedResponse(data, resp.ETag), nil
}

// ReadTree implements URLReader.
func (c *CachingReader) ReadTree(ctx context.Context, url string, opts *ReadTreeOptions) (*ReadTreeResponse, error) {
	return c.inner.ReadTree(ctx, url, opts)
}

// Search implements URLReader.
func (c *CachingReader) Search(ctx context.Context, url string, opts *SearchOptions) (*SearchResponse, error) {
	return c.inner.Search(ctx, url, opts)
}

// String implements fmt.Stringer.
func (c *CachingReader) String() string {
	return "cached(" + c.inner.String() + ")"
}

func bufferedResponse(data []byte, etag string) *ReadURLResponse {
	return NewReadURLResponse(io.NopCloser(bytes.NewReader(data)), etag)
}
