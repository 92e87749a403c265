package reading

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tilsley/scmreader/pkg/integration"
)

// shortHashLength is the number of commit id characters used as a tree etag.
const shortHashLength = 12

// Compile-time checks.
var (
	_ URLReader     = (*BitbucketServerURLReader)(nil)
	_ ArchiveSource = (*BitbucketServerURLReader)(nil)
)

// BitbucketServerURLReader reads files, trees and searches from one
// Bitbucket Server instance using its REST API.
type BitbucketServerURLReader struct {
	integration *integration.BitbucketServerIntegration
	treeFactory TreeResponseFactory
	client      *http.Client
	log         *slog.Logger
}

// NewBitbucketServerURLReader creates a reader for the given integration.
func NewBitbucketServerURLReader(i *integration.BitbucketServerIntegration, deps Deps) *BitbucketServerURLReader {
	deps = deps.withDefaults()
	return &BitbucketServerURLReader{
		integration: i,
		treeFactory: deps.TreeFactory,
		client:      deps.Client,
		log:         deps.Log.With("reader", "bitbucketServer", "host", i.Host()),
	}
}

// Read fetches a file and returns its full content.
func (r *BitbucketServerURLReader) Read(ctx context.Context, url string) ([]byte, error) {
	resp, err := r.ReadURL(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return resp.Buffer()
}

// ReadURL fetches a file from the raw content endpoint. A supplied etag is
// sent as If-None-Match and a 304 answer becomes NotModifiedError.
func (r *BitbucketServerURLReader) ReadURL(ctx context.Context, url string, opts *ReadURLOptions) (*ReadURLResponse, error) {
	cfg := r.integration.Config()
	fetchURL, err := integration.BitbucketServerFileFetchURL(url, cfg)
	if err != nil {
		return nil, err
	}

	req, err := newGetRequest(ctx, fetchURL, integration.BitbucketServerRequestOptions(cfg))
	if err != nil {
		return nil, err
	}
	if opts != nil && opts.ETag != "" {
		req.Header.Set("If-None-Match", opts.ETag)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, TransportError{URL: url, Err: err}
	}

	if resp.StatusCode == http.StatusNotModified {
		_ = resp.Body.Close() //nolint:errcheck // no body expected on 304
		return nil, NotModifiedError{}
	}
	if isSuccess(resp.StatusCode) {
		return NewReadURLResponse(resp.Body, resp.Header.Get("ETag")), nil
	}

	_ = resp.Body.Close() //nolint:errcheck // body unused on error
	msg := fmt.Sprintf("%s could not be read as %s, %s", url, fetchURL, resp.Status)
	return nil, statusError(msg, resp.StatusCode)
}

// ReadTree downloads the repository archive for url, unless opts.ETag shows
// the caller already holds the latest revision.
func (r *BitbucketServerURLReader) ReadTree(ctx context.Context, url string, opts *ReadTreeOptions) (*ReadTreeResponse, error) {
	tree, err := ReadTreeFrom(ctx, r, r.treeFactory, url, opts)
	if IsNotModified(err) {
		r.log.Debug("tree not modified", "url", url)
	}
	return tree, err
}

// Search reads the tree the glob in url lives in and keeps the matches.
func (r *BitbucketServerURLReader) Search(ctx context.Context, url string, opts *SearchOptions) (*SearchResponse, error) {
	return SearchTree(ctx, r.ReadTree, r.integration.ResolveURL, url, opts)
}

// LatestRevision returns the first 12 characters of the newest commit id of
// the repository addressed by url.
func (r *BitbucketServerURLReader) LatestRevision(ctx context.Context, url string) (string, error) {
	cfg := r.integration.Config()
	commitsURL, err := integration.BitbucketServerCommitsURL(url, cfg)
	if err != nil {
		return "", err
	}

	req, err := newGetRequest(ctx, commitsURL, integration.BitbucketServerRequestOptions(cfg))
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", TransportError{URL: commitsURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // response body close errors are non-actionable after reading

	if !isSuccess(resp.StatusCode) {
		msg := fmt.Sprintf("failed to retrieve commits from %s, %s", commitsURL, resp.Status)
		return "", statusError(msg, resp.StatusCode)
	}

	var page struct {
		Values []struct {
			ID string `json:"id"`
		} `json:"values"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil || len(page.Values) == 0 || page.Values[0].ID == "" {
		return "", UnexpectedResponseError{Message: "failed to read response from " + commitsURL}
	}

	id := page.Values[0].ID
	if len(id) > shortHashLength {
		id = id[:shortHashLength]
	}
	r.log.Debug("resolved latest revision", "url", url, "revision", id)
	return id, nil
}

// OpenArchive starts the tgz archive download for url.
func (r *BitbucketServerURLReader) OpenArchive(ctx context.Context, url string) (io.ReadCloser, error) {
	cfg := r.integration.Config()
	downloadURL, err := integration.BitbucketServerDownloadURL(url, cfg)
	if err != nil {
		return nil, err
	}

	req, err := newGetRequest(ctx, downloadURL, integration.BitbucketServerRequestOptions(cfg))
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, TransportError{URL: url, Err: err}
	}
	if !isSuccess(resp.StatusCode) {
		_ = resp.Body.Close() //nolint:errcheck // body unused on error
		msg := fmt.Sprintf("failed to read tree from %s as %s, %s", url, downloadURL, resp.Status)
		return nil, statusError(msg, resp.StatusCode)
	}
	return resp.Body, nil
}

// String implements fmt.Stringer.
func (r *BitbucketServerURLReader) String() string {
	cfg := r.integration.Config()
	return fmt.Sprintf("bitbucketServer{host=%s,authed=%t}", cfg.Host, cfg.Token != "")
}
