package reading

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	gogithub "github.com/google/go-github/v75/github"

	"github.com/tilsley/scmreader/pkg/giturl"
	"github.com/tilsley/scmreader/pkg/integration"
)

// Predicate decides whether a reader handles a URL.
type Predicate func(u *url.URL) bool

// ReaderTuple pairs a reader with the URLs it serves.
type ReaderTuple struct {
	Reader    URLReader
	Predicate Predicate
}

// FactoryOptions is what a ReaderFactory builds readers from.
type FactoryOptions struct {
	Integrations *integration.ScmIntegrations
	Deps         Deps
	// GitHubClient builds the go-github client for one integration. Nil
	// means authenticated clients are not available and GitHub is skipped.
	GitHubClient func(i *integration.GitHubIntegration) (*gogithub.Client, error)
}

// ReaderFactory creates the readers for one provider.
type ReaderFactory func(opts FactoryOptions) ([]ReaderTuple, error)

// HostPredicate matches URLs whose host equals host.
func HostPredicate(host string) Predicate {
	return func(u *url.URL) bool { return u.Host == host }
}

// BitbucketServerReaderFactory creates one reader per Bitbucket Server
// integration.
func BitbucketServerReaderFactory(opts FactoryOptions) ([]ReaderTuple, error) {
	out := make([]ReaderTuple, 0, len(opts.Integrations.BitbucketServer))
	for _, i := range opts.Integrations.BitbucketServer {
		out = append(out, ReaderTuple{
			Reader:    NewBitbucketServerURLReader(i, opts.Deps),
			Predicate: HostPredicate(i.Host()),
		})
	}
	return out, nil
}

// GitHubReaderFactory creates one reader per GitHub integration.
func GitHubReaderFactory(opts FactoryOptions) ([]ReaderTuple, error) {
	if opts.GitHubClient == nil {
		return nil, nil
	}
	out := make([]ReaderTuple, 0, len(opts.Integrations.GitHub))
	for _, i := range opts.Integrations.GitHub {
		gh, err := opts.GitHubClient(i)
		if err != nil {
			return nil, fmt.Errorf("github client for %s: %w", i.Host(), err)
		}
		out = append(out, ReaderTuple{
			Reader:    NewGitHubURLReader(i, gh, opts.Deps),
			Predicate: HostPredicate(i.Host()),
		})
	}
	return out, nil
}

// Compile-time check.
var _ URLReader = (*URLReaders)(nil)

// URLReaders dispatches each call to the first registered reader whose
// predicate matches the URL.
type URLReaders struct {
	readers []ReaderTuple
	log     *slog.Logger
}

// NewURLReaders runs every factory and registers the readers they return.
func NewURLReaders(opts FactoryOptions, factories ...ReaderFactory) (*URLReaders, error) {
	log := opts.Deps.withDefaults().Log
	m := &URLReaders{log: log}
	for _, f := range factories {
		tuples, err := f(opts)
		if err != nil {
			return nil, err
		}
		for _, t := range tuples {
			m.Register(t)
		}
	}
	return m, nil
}

// Register adds a reader. Earlier registrations take precedence.
func (m *URLReaders) Register(t ReaderTuple) {
	m.readers = append(m.readers, t)
	m.log.Debug("registered url reader", "reader", t.Reader.String())
}

// Readers returns the registered readers in dispatch order.
func (m *URLReaders) Readers() []URLReader {
	out := make([]URLReader, 0, len(m.readers))
	for _, t := range m.readers {
		out = append(out, t.Reader)
	}
	return out
}

func (m *URLReaders) pick(rawURL string) (URLReader, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &giturl.Error{URL: rawURL, Reason: err.Error()}
	}
	for _, t := range m.readers {
		if t.Predicate(u) {
			return t.Reader, nil
		}
	}
	return nil, NotAllowedError{URL: rawURL}
}

// Read implements URLReader.
func (m *URLReaders) Read(ctx context.Context, url string) ([]byte, error) {
	r, err := m.pick(url)
	if err != nil {
		return nil, err
	}
	return r.Read(ctx, url)
}

// ReadURL implements URLReader.
func (m *URLReaders) ReadURL(ctx context.Context, url string, opts *ReadURLOptions) (*ReadURLResponse, error) {
	r, err := m.pick(url)
	if err != nil {
		return nil, err
	}
	return r.ReadURL(ctx, url, opts)
}

// ReadTree implements URLReader.
func (m *URLReaders) ReadTree(ctx context.Context, url string, opts *ReadTreeOptions) (*ReadTreeResponse, error) {
	r, err := m.pick(url)
	if err != nil {
		return nil, err
	}
	return r.ReadTree(ctx, url, opts)
}

// Search implements URLReader.
func (m *URLReaders) Search(ctx context.Context, url string, opts *SearchOptions) (*SearchResponse, error) {
	r, err := m.pick(url)
	if err != nil {
		return nil, err
	}
	return r.Search(ctx, url, opts)
}

// String lists the registered readers.
func (m *URLReaders) String() string {
	labels := make([]string, 0, len(m.readers))
	for _, t := range m.readers {
		labels = append(labels, t.Reader.String())
	}
	return "urlReaders[" + strings.Join(labels, ",") + "]"
}
