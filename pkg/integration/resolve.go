package integration

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tilsley/scmreader/pkg/giturl"
)

// ResolveURL resolves target against base the way a browser would, except
// that absolute paths ("/docs/a.md") are anchored at the repository root of
// base rather than the host root. Absolute URLs are returned unchanged and the
// query string of base (e.g. ?at=) is carried over.
func ResolveURL(target, base string) (string, error) {
	if u, err := url.Parse(target); err == nil && u.IsAbs() {
		return target, nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", base, err)
	}

	var updated *url.URL
	if strings.HasPrefix(target, "/") {
		parsed, err := giturl.Parse(base)
		if err != nil {
			return "", err
		}
		updated = &url.URL{
			Scheme: baseURL.Scheme,
			User:   baseURL.User,
			Host:   baseURL.Host,
			Path:   strings.TrimRight(parsed.RootPath, "/") + target,
		}
	} else {
		ref, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("parse url %q: %w", target, err)
		}
		updated = baseURL.ResolveReference(ref)
	}

	updated.RawQuery = baseURL.RawQuery
	updated.Fragment = ""
	return updated.String(), nil
}
