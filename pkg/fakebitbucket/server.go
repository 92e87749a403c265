package fakebitbucket

import (
	"archive/tar"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

// APIPrefix is where the REST API is mounted.
const APIPrefix = "/rest/api/1.0"

// Options configures the fake server.
type Options struct {
	// Token, when set, must be presented as a bearer token on every API call.
	Token string
	Log   *slog.Logger
}

// NewRouter returns a gin engine serving s.
func NewRouter(s *Store, opts Options) *gin.Engine {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group(APIPrefix)
	if opts.Token != "" {
		api.Use(requireToken(opts.Token))
	}

	h := &handler{store: s, log: log}
	api.GET("/projects/:project/repos/:repo/raw/*path", h.raw)
	api.GET("/projects/:project/repos/:repo/commits", h.commits)
	api.GET("/projects/:project/repos/:repo/archive", h.archive)
	return r
}

func requireToken(token string) gin.HandlerFunc {
	want := "Bearer " + token
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != want {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Authentication failed. Please check your credentials and try again."))
			return
		}
		c.Next()
	}
}

type handler struct {
	store *Store
	log   *slog.Logger
}

// raw mirrors GET /projects/{key}/repos/{slug}/raw/{path}?at={ref}.
func (h *handler) raw(c *gin.Context) {
	h.store.hit(EndpointRaw)
	project, repo := c.Param("project"), c.Param("repo")
	path := strings.TrimPrefix(c.Param("path"), "/")

	files, ok := h.store.snapshot(project, repo, c.Query("at"))
	if !ok {
		c.JSON(http.StatusNotFound, errorBody("Repository "+project+"/"+repo+" does not exist."))
		return
	}
	content, ok := files[path]
	if !ok {
		c.JSON(http.StatusNotFound, errorBody("The path \""+path+"\" does not exist at revision \""+c.Query("at")+"\""))
		return
	}

	etag := contentETag(content)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("ETag", etag)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(content))
}

type commitJSON struct {
	ID        string `json:"id"`
	DisplayID string `json:"displayId"`
}

// commits mirrors GET /projects/{key}/repos/{slug}/commits?until={ref}.
func (h *handler) commits(c *gin.Context) {
	h.store.hit(EndpointCommits)
	project, repo := c.Param("project"), c.Param("repo")

	history, ok := h.store.history(project, repo, c.Query("until"))
	if !ok {
		c.JSON(http.StatusNotFound, errorBody("Repository "+project+"/"+repo+" does not exist."))
		return
	}

	const limit = 25
	page := history
	if len(page) > limit {
		page = page[:limit]
	}
	values := make([]commitJSON, 0, len(page))
	for _, cm := range page {
		values = append(values, commitJSON{ID: cm.id, DisplayID: cm.id[:11]})
	}
	c.JSON(http.StatusOK, gin.H{
		"values":     values,
		"size":       len(values),
		"isLastPage": len(history) <= limit,
		"start":      0,
		"limit":      limit,
	})
}

// archive mirrors GET /projects/{key}/repos/{slug}/archive with the format,
// prefix, path and at parameters. Only tar and tgz formats are served.
func (h *handler) archive(c *gin.Context) {
	h.store.hit(EndpointArchive)
	project, repo := c.Param("project"), c.Param("repo")

	files, ok := h.store.snapshot(project, repo, c.Query("at"))
	if !ok {
		c.JSON(http.StatusNotFound, errorBody("Repository "+project+"/"+repo+" does not exist."))
		return
	}

	format := c.DefaultQuery("format", "tgz")
	if format != "tgz" && format != "tar.gz" && format != "tar" {
		c.JSON(http.StatusBadRequest, errorBody("unsupported archive format "+format))
		return
	}

	prefix := strings.Trim(c.Query("prefix"), "/")
	if prefix != "" {
		prefix += "/"
	}
	var include []string
	for _, p := range c.QueryArray("path") {
		if p = strings.Trim(p, "/"); p != "" {
			include = append(include, p)
		}
	}

	var w io.Writer = c.Writer
	if format == "tar" {
		c.Header("Content-Type", "application/x-tar")
	} else {
		c.Header("Content-Type", "application/x-gzip")
		gw := gzip.NewWriter(c.Writer)
		defer gw.Close() //nolint:errcheck // nothing to do if the client went away
		w = gw
	}
	c.Status(http.StatusOK)

	if err := writeTar(w, prefix, files, include); err != nil {
		h.log.Warn("archive write failed", "project", project, "repo", repo, "error", err)
	}
}

func writeTar(w io.Writer, prefix string, files map[string]string, include []string) error {
	paths := make([]string, 0, len(files))
	for p := range files {
		if included(p, include) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	tw := tar.NewWriter(w)
	for _, p := range paths {
		content := files[p]
		hdr := &tar.Header{
			Name:     prefix + p,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return err
		}
	}
	return tw.Close()
}

func included(p string, include []string) bool {
	if len(include) == 0 {
		return true
	}
	for _, inc := range include {
		if p == inc || strings.HasPrefix(p, inc+"/") {
			return true
		}
	}
	return false
}

func errorBody(message string) gin.H {
	return gin.H{"errors": []gin.H{{"message": message}}}
}
