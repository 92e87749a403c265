package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/scmreader/apps/server/internal/platform/validation"
	"github.com/tilsley/scmreader/apps/server/internal/readers/handler"
	"github.com/tilsley/scmreader/apps/server/internal/readers/store"
	"github.com/tilsley/scmreader/pkg/fakebitbucket"
	"github.com/tilsley/scmreader/pkg/integration"
	"github.com/tilsley/scmreader/pkg/logging"
	"github.com/tilsley/scmreader/pkg/reading"
	"github.com/tilsley/scmreader/schemas"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubOverview is an in-memory OverviewSource.
type stubOverview struct {
	overview *store.FetchOverview
	err      error
}

func (s *stubOverview) Overview(context.Context) (*store.FetchOverview, error) {
	return s.overview, s.err
}

type testServer struct {
	bitbucket *fakebitbucket.Store
	bbURL     string
	router    *gin.Engine
}

// newTestServer wires the real Bitbucket Server reader, behind the URL reader
// mux and request validation, to an in-memory Bitbucket Server.
func newTestServer(t *testing.T, fetches handler.OverviewSource) *testServer {
	t.Helper()

	bb := fakebitbucket.NewStore()
	srv := httptest.NewServer(fakebitbucket.NewRouter(bb, fakebitbucket.Options{Log: logging.Discard()}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	ints, err := integration.New([]integration.BitbucketServerConfig{{
		Host:       u.Host,
		APIBaseURL: srv.URL + fakebitbucket.APIPrefix,
	}}, nil)
	require.NoError(t, err)

	readers, err := reading.NewURLReaders(reading.FactoryOptions{
		Integrations: ints,
		Deps:         reading.Deps{Log: logging.Discard()},
	}, reading.BitbucketServerReaderFactory)
	require.NoError(t, err)

	mw, err := validation.New(schemas.OpenAPISpec)
	require.NoError(t, err)

	r := gin.New()
	r.Use(mw)
	handler.RegisterRoutes(r, handler.Options{
		Reader:  readers,
		Readers: readers.Readers(),
		Fetches: fetches,
		Log:     logging.Discard(),
	})
	return &testServer{bitbucket: bb, bbURL: srv.URL, router: r}
}

// browse returns the browse URL of path in PLAT/gitops.
func (ts *testServer) browse(path string) string {
	return ts.bbURL + "/projects/PLAT/repos/gitops/browse/" + path
}

func (ts *testServer) get(path string, query url.Values, header map[string]string) *httptest.ResponseRecorder {
	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}
