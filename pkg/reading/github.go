package reading

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"

	gogithub "github.com/google/go-github/v75/github"

	"github.com/tilsley/scmreader/pkg/giturl"
	"github.com/tilsley/scmreader/pkg/integration"
)

// Compile-time checks.
var (
	_ URLReader     = (*GitHubURLReader)(nil)
	_ ArchiveSource = (*GitHubURLReader)(nil)
)

const githubRawMediaType = "application/vnd.github.raw"

// GitHubURLReader implements URLReader on top of go-github. The client must
// already carry the integration's credentials.
type GitHubURLReader struct {
	integration *integration.GitHubIntegration
	gh          *gogithub.Client
	treeFactory TreeResponseFactory
	log         *slog.Logger
}

// NewGitHubURLReader creates a reader for the given integration and client.
// deps.Client is ignored; requests go through gh.
func NewGitHubURLReader(i *integration.GitHubIntegration, gh *gogithub.Client, deps Deps) *GitHubURLReader {
	deps = deps.withDefaults()
	return &GitHubURLReader{
		integration: i,
		gh:          gh,
		treeFactory: deps.TreeFactory,
		log:         deps.Log.With("reader", "github", "host", i.Host()),
	}
}

// Read fetches a file and returns its full content.
func (r *GitHubURLReader) Read(ctx context.Context, url string) ([]byte, error) {
	resp, err := r.ReadURL(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return resp.Buffer()
}

// ReadURL fetches raw file content from the contents API.
func (r *GitHubURLReader) ReadURL(ctx context.Context, rawURL string, opts *ReadURLOptions) (*ReadURLResponse, error) {
	u, err := giturl.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Filepath == "" {
		return nil, &giturl.Error{URL: rawURL, Reason: "does not point at a file"}
	}

	endpoint := (&url.URL{Path: path.Join("repos", u.Owner, u.Name, "contents", u.Filepath)}).EscapedPath()
	if u.Ref != "" {
		endpoint += "?" + url.Values{"ref": {u.Ref}}.Encode()
	}
	req, err := r.gh.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", githubRawMediaType)
	if opts != nil && opts.ETag != "" {
		req.Header.Set("If-None-Match", opts.ETag)
	}

	resp, err := r.gh.Client().Do(req)
	if err != nil {
		return nil, TransportError{URL: rawURL, Err: err}
	}
	if resp.StatusCode == http.StatusNotModified {
		_ = resp.Body.Close() //nolint:errcheck // no body expected on 304
		return nil, NotModifiedError{}
	}
	if isSuccess(resp.StatusCode) {
		return NewReadURLResponse(resp.Body, resp.Header.Get("ETag")), nil
	}

	_ = resp.Body.Close() //nolint:errcheck // body unused on error
	msg := fmt.Sprintf("%s could not be read as %s, %s", rawURL, req.URL, resp.Status)
	return nil, statusError(msg, resp.StatusCode)
}

// ReadTree downloads the repository tarball unless opts.ETag is current.
func (r *GitHubURLReader) ReadTree(ctx context.Context, url string, opts *ReadTreeOptions) (*ReadTreeResponse, error) {
	tree, err := ReadTreeFrom(ctx, r, r.treeFactory, url, opts)
	if IsNotModified(err) {
		r.log.Debug("tree not modified", "url", url)
	}
	return tree, err
}

// Search reads the tree the glob in url lives in and keeps the matches.
func (r *GitHubURLReader) Search(ctx context.Context, url string, opts *SearchOptions) (*SearchResponse, error) {
	return SearchTree(ctx, r.ReadTree, r.integration.ResolveURL, url, opts)
}

// LatestRevision returns the short sha of the newest commit on the URL's ref.
func (r *GitHubURLReader) LatestRevision(ctx context.Context, rawURL string) (string, error) {
	u, err := giturl.Parse(rawURL)
	if err != nil {
		return "", err
	}
	commits, _, err := r.gh.Repositories.ListCommits(ctx, u.Owner, u.Name, &gogithub.CommitsListOptions{
		SHA:         u.Ref,
		ListOptions: gogithub.ListOptions{PerPage: 1},
	})
	if err != nil {
		return "", githubError(rawURL, "failed to retrieve commits for "+u.FullName(), err)
	}
	if len(commits) == 0 || commits[0].GetSHA() == "" {
		return "", UnexpectedResponseError{Message: "failed to read commits response for " + u.FullName()}
	}

	sha := commits[0].GetSHA()
	if len(sha) > shortHashLength {
		sha = sha[:shortHashLength]
	}
	return sha, nil
}

// OpenArchive resolves the tarball link for the URL's ref and downloads it.
func (r *GitHubURLReader) OpenArchive(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := giturl.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	link, _, err := r.gh.Repositories.GetArchiveLink(ctx, u.Owner, u.Name, gogithub.Tarball,
		&gogithub.RepositoryContentGetOptions{Ref: u.Ref}, 10)
	if err != nil {
		return nil, githubError(rawURL, "failed to read tree from "+rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build tarball request: %w", err)
	}
	// The go-github http.Client carries the auth transport and strips the
	// Authorization header on cross-host redirects.
	resp, err := r.gh.Client().Do(req)
	if err != nil {
		return nil, TransportError{URL: rawURL, Err: err}
	}
	if !isSuccess(resp.StatusCode) {
		_ = resp.Body.Close() //nolint:errcheck // body unused on error
		msg := fmt.Sprintf("failed to read tree from %s as %s, %s", rawURL, link.Redacted(), resp.Status)
		return nil, statusError(msg, resp.StatusCode)
	}
	return resp.Body, nil
}

// String implements fmt.Stringer.
func (r *GitHubURLReader) String() string {
	return fmt.Sprintf("github{host=%s,authed=%t}", r.integration.Host(), r.integration.Authed())
}

// githubError maps a go-github error onto the reading error taxonomy.
func githubError(rawURL, message string, err error) error {
	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return statusError(fmt.Sprintf("%s, %s", message, ghErr.Response.Status), ghErr.Response.StatusCode)
	}
	return TransportError{URL: rawURL, Err: err}
}
