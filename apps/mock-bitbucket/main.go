package main

import (
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/scmreader/pkg/fakebitbucket"
	"github.com/tilsley/scmreader/pkg/logging"
)

// maxPushBytes bounds the body of a /push request.
const maxPushBytes = 1 << 20

func main() {
	log := logging.New("mock-bitbucket")
	s := fakebitbucket.NewStore()

	seedRepos(s)
	log.Info("seeded repos", "repos", len(s.Repos()))

	r := newRouter(s, os.Getenv("MOCK_BITBUCKET_TOKEN"), log)

	port := os.Getenv("PORT")
	if port == "" {
		port = "7990"
	}

	log.Info("mock-bitbucket starting", "port", port, "authed", os.Getenv("MOCK_BITBUCKET_TOKEN") != "")
	if err := r.Run(":" + port); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func newRouter(s *fakebitbucket.Store, token string, log *slog.Logger) *gin.Engine {
	r := fakebitbucket.NewRouter(s, fakebitbucket.Options{Token: token, Log: log})

	r.GET("/", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, renderDashboard(s))
	})

	// Pushes the request body as a new commit so clients can watch their
	// etags go stale.
	r.PUT("/push/:project/:repo/*path", func(c *gin.Context) {
		path := strings.TrimPrefix(c.Param("path"), "/")
		if path == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
			return
		}
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPushBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id := s.SetFile(c.Param("project"), c.Param("repo"), path, string(body))
		log.Info("commit pushed", "project", c.Param("project"), "repo", c.Param("repo"), "path", path, "commit", id)
		c.JSON(http.StatusOK, gin.H{"id": id})
	})
	return r
}

func renderDashboard(s *fakebitbucket.Store) string {
	var rows strings.Builder
	for _, key := range s.Repos() {
		project, repo, _ := strings.Cut(key, "/")
		head := s.Head(project, repo)
		if len(head) > 12 {
			head = head[:12]
		}
		fmt.Fprintf(&rows, `
        <tr>
          <td style="padding:12px 16px;border-bottom:1px solid #21262d;">/projects/%s/repos/%s/browse</td>
          <td style="padding:12px 16px;border-bottom:1px solid #21262d;font-family:monospace;font-size:13px;color:#8b949e;">%s</td>
        </tr>`, html.EscapeString(project), html.EscapeString(repo), head)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <title>Mock Bitbucket Server</title>
  <meta http-equiv="refresh" content="3">
  <style>
    * { margin:0; padding:0; box-sizing:border-box; }
    body { background:#0d1117; color:#c9d1d9; font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Helvetica,Arial,sans-serif; }
  </style>
</head>
<body>
  <div style="max-width:860px;margin:0 auto;padding:32px 16px;">
    <h1 style="font-size:20px;font-weight:600;margin-bottom:24px;">Repositories</h1>
    <table style="width:100%%;border-collapse:collapse;background:#161b22;border:1px solid #30363d;border-radius:6px;">
      <thead>
        <tr>
          <th style="padding:12px 16px;text-align:left;font-size:12px;color:#8b949e;border-bottom:1px solid #21262d;">Repository</th>
          <th style="padding:12px 16px;text-align:left;font-size:12px;color:#8b949e;border-bottom:1px solid #21262d;">Head</th>
        </tr>
      </thead>
      <tbody>%s</tbody>
    </table>
  </div>
</body>
</html>`, rows.String())
}
