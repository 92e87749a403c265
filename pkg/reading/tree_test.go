package reading_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/scmreader/pkg/reading"
)

var archiveFiles = map[string]string{
	"PLAT-gitops/README.md":            "readme",
	"PLAT-gitops/apps/web/values.yaml": "web",
	"PLAT-gitops/apps/api/values.yaml": "api",
	"PLAT-gitops/apps/api/.env":        "SECRET=1",
}

func TestFromTarArchive_Gzip(t *testing.T) {
	f := reading.NewTreeResponseFactory()
	tree, err := f.FromTarArchive(context.Background(), reading.FromArchiveOptions{
		Stream: bytes.NewReader(buildTar(t, archiveFiles, true)),
		ETag:   "abc123def456",
	})
	require.NoError(t, err)

	assert.Equal(t, "abc123def456", tree.ETag)
	assert.Equal(t, []string{"README.md", "apps/api/.env", "apps/api/values.yaml", "apps/web/values.yaml"},
		filePaths(tree.Files()))
}

func TestFromTarArchive_PlainTar(t *testing.T) {
	f := reading.NewTreeResponseFactory()
	tree, err := f.FromTarArchive(context.Background(), reading.FromArchiveOptions{
		Stream: bytes.NewReader(buildTar(t, archiveFiles, false)),
	})
	require.NoError(t, err)
	assert.Len(t, tree.Files(), 4)
}

func TestFromTarArchive_SubpathAndFilter(t *testing.T) {
	f := reading.NewTreeResponseFactory()
	tree, err := f.FromTarArchive(context.Background(), reading.FromArchiveOptions{
		Stream:  bytes.NewReader(buildTar(t, archiveFiles, true)),
		Subpath: "/apps/",
		Filter:  func(p string) bool { return strings.HasSuffix(p, ".yaml") },
	})
	require.NoError(t, err)

	files := tree.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "api/values.yaml", files[0].Path)
	assert.Equal(t, "api", string(files[0].Content))
	assert.Equal(t, "web/values.yaml", files[1].Path)
}

func TestFromTarArchive_SkipsEscapingEntries(t *testing.T) {
	f := reading.NewTreeResponseFactory()
	tree, err := f.FromTarArchive(context.Background(), reading.FromArchiveOptions{
		Stream: bytes.NewReader(buildTar(t, map[string]string{
			"wrap/../escape.txt": "x",
			"wrap/ok.txt":        "ok",
			"toplevel.txt":       "no wrapper",
		}, true)),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.txt"}, filePaths(tree.Files()))
}

func TestFromTarArchive_CorruptStream(t *testing.T) {
	f := reading.NewTreeResponseFactory()
	_, err := f.FromTarArchive(context.Background(), reading.FromArchiveOptions{
		Stream: bytes.NewReader([]byte{0x1f, 0x8b, 0x00, 0x01, 0x02}),
	})
	require.Error(t, err)
}

func TestFromTarArchive_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := reading.NewTreeResponseFactory()
	_, err := f.FromTarArchive(ctx, reading.FromArchiveOptions{
		Stream: bytes.NewReader(buildTar(t, archiveFiles, true)),
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestReadTreeResponse_Dir(t *testing.T) {
	tree := reading.NewReadTreeResponse("etag", []reading.ReadTreeResponseFile{
		{Path: "b/c.txt", Content: []byte("c")},
		{Path: "a.txt", Content: []byte("a")},
	})

	target := t.TempDir()
	dir, err := tree.Dir(target)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "b", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "c", string(got))
	assert.Equal(t, []string{"a.txt", "b/c.txt"}, filePaths(tree.Files()))
}

func TestReadTreeResponse_DirTemp(t *testing.T) {
	tree := reading.NewReadTreeResponse("", []reading.ReadTreeResponseFile{{Path: "x.txt", Content: []byte("x")}})

	dir, err := tree.Dir("")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) }) //nolint:errcheck

	_, err = os.Stat(filepath.Join(dir, "x.txt"))
	require.NoError(t, err)
}

func TestReadTreeResponse_DirRefusesTraversal(t *testing.T) {
	tree := reading.NewReadTreeResponse("", []reading.ReadTreeResponseFile{{Path: "../escape.txt", Content: []byte("x")}})

	_, err := tree.Dir(t.TempDir())
	require.Error(t, err)
}
