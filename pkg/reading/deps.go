package reading

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Deps are the collaborators shared by the host readers. Zero values are
// replaced with defaults.
type Deps struct {
	TreeFactory TreeResponseFactory
	Client      *http.Client
	Log         *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.TreeFactory == nil {
		d.TreeFactory = NewTreeResponseFactory()
	}
	if d.Client == nil {
		d.Client = http.DefaultClient
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return d
}

func newGetRequest(ctx context.Context, url string, header http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = append([]string(nil), v...)
	}
	return req, nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
