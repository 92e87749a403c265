package reading_test

import (
	"archive/tar"
	"bytes"
	"io"
	"net/http/httptest"
	"net/url"
	"sort"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/scmreader/pkg/fakebitbucket"
	"github.com/tilsley/scmreader/pkg/integration"
	"github.com/tilsley/scmreader/pkg/logging"
	"github.com/tilsley/scmreader/pkg/reading"
)

func init() { gin.SetMode(gin.TestMode) }

// buildTar writes files (path -> content) into a tar archive, in path order.
func buildTar(t *testing.T, files map[string]string, compress bool) []byte {
	t.Helper()
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	var gz *gzip.Writer
	var w io.Writer = &buf
	if compress {
		gz = gzip.NewWriter(&buf)
		w = gz
	}
	tw := tar.NewWriter(w)
	for _, p := range paths {
		c := files[p]
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: p, Mode: 0o644, Size: int64(len(c)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(c))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	if gz != nil {
		require.NoError(t, gz.Close())
	}
	return buf.Bytes()
}

// fakeHost is a fake Bitbucket Server plus a reader pointed at it.
type fakeHost struct {
	store  *fakebitbucket.Store
	srv    *httptest.Server
	reader *reading.BitbucketServerURLReader
}

func newFakeHost(t *testing.T, token string) *fakeHost {
	t.Helper()
	store := fakebitbucket.NewStore()
	srv := httptest.NewServer(fakebitbucket.NewRouter(store, fakebitbucket.Options{Token: token, Log: logging.Discard()}))
	t.Cleanup(srv.Close)
	return &fakeHost{store: store, srv: srv, reader: newBitbucketReader(t, srv.URL, token)}
}

// browse returns the browse URL of path in PLAT/gitops on the fake host.
func (h *fakeHost) browse(path string) string {
	return h.srv.URL + "/projects/PLAT/repos/gitops/browse/" + path
}

func newBitbucketReader(t *testing.T, serverURL, token string) *reading.BitbucketServerURLReader {
	t.Helper()
	u, err := url.Parse(serverURL)
	require.NoError(t, err)
	i, err := integration.NewBitbucketServerIntegration(integration.BitbucketServerConfig{
		Host:       u.Host,
		APIBaseURL: serverURL + fakebitbucket.APIPrefix,
		Token:      token,
	})
	require.NoError(t, err)
	return reading.NewBitbucketServerURLReader(i, reading.Deps{Log: logging.Discard()})
}

func filePaths(files []reading.ReadTreeResponseFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

func nopBody(b []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(b))
}
