package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gin-gonic/gin"

	"github.com/tilsley/scmreader/pkg/giturl"
	"github.com/tilsley/scmreader/pkg/reading"
)

type treeFileJSON struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
}

type treeJSON struct {
	ETag  string         `json:"etag"`
	Files []treeFileJSON `json:"files"`
}

type searchFileJSON struct {
	URL     string `json:"url"`
	Content []byte `json:"content"`
}

type searchJSON struct {
	ETag  string           `json:"etag"`
	Files []searchFileJSON `json:"files"`
}

// Read streams one file. If-None-Match is forwarded as the caller etag.
func (h *Handler) Read(c *gin.Context) {
	target := c.Query("url")
	resp, err := h.reader.ReadURL(c.Request.Context(), target, &reading.ReadURLOptions{
		ETag: c.GetHeader("If-None-Match"),
	})
	if err != nil {
		h.fail(c, "read", target, err)
		return
	}
	body := resp.Stream()
	defer body.Close() //nolint:errcheck // response body close errors are non-actionable after reading

	if resp.ETag != "" {
		c.Header("ETag", resp.ETag)
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "application/octet-stream")
	if _, err := io.Copy(c.Writer, body); err != nil {
		h.log.Warn("read stream interrupted", "url", target, "error", err)
	}
}

// Tree returns every file below the URL, optionally filtered by ?glob.
func (h *Handler) Tree(c *gin.Context) {
	target := c.Query("url")
	opts := &reading.ReadTreeOptions{ETag: fingerprint(c.GetHeader("If-None-Match"))}
	if glob := c.Query("glob"); glob != "" {
		if !doublestar.ValidatePattern(glob) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid glob pattern " + glob})
			return
		}
		opts.Filter = reading.GlobFilter(glob)
	}

	tree, err := h.reader.ReadTree(c.Request.Context(), target, opts)
	if err != nil {
		h.fail(c, "tree", target, err)
		return
	}

	files := tree.Files()
	out := treeJSON{ETag: tree.ETag, Files: make([]treeFileJSON, 0, len(files))}
	for _, f := range files {
		out.Files = append(out.Files, treeFileJSON(f))
	}
	c.Header("ETag", strongETag(tree.ETag))
	c.JSON(http.StatusOK, out)
}

// Search returns the files matching the glob in the URL's path.
func (h *Handler) Search(c *gin.Context) {
	target := c.Query("url")
	res, err := h.reader.Search(c.Request.Context(), target, &reading.SearchOptions{
		ETag: fingerprint(c.GetHeader("If-None-Match")),
	})
	if err != nil {
		h.fail(c, "search", target, err)
		return
	}

	out := searchJSON{ETag: res.ETag, Files: make([]searchFileJSON, 0, len(res.Files))}
	for _, f := range res.Files {
		out.Files = append(out.Files, searchFileJSON(f))
	}
	c.Header("ETag", strongETag(res.ETag))
	c.JSON(http.StatusOK, out)
}

// strongETag quotes a tree fingerprint for the ETag header.
func strongETag(fp string) string {
	return `"` + fp + `"`
}

// fingerprint turns an If-None-Match value back into a tree fingerprint. Only
// the first entity tag of a list is used; weak and bare values are accepted.
func fingerprint(ifNoneMatch string) string {
	tag, _, _ := strings.Cut(ifNoneMatch, ",")
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "W/")
	return strings.Trim(tag, `"`)
}

// fail maps reader errors onto HTTP statuses.
func (h *Handler) fail(c *gin.Context, op, target string, err error) {
	switch {
	case reading.IsNotModified(err):
		c.Status(http.StatusNotModified)
		return
	case giturl.IsInvalid(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case reading.IsNotAllowed(err):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case reading.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case reading.IsTransport(err), reading.IsUnexpectedResponse(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
	h.log.Warn("reader call failed", "operation", op, "url", target, "error", err)
}
