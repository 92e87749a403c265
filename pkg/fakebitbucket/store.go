// Package fakebitbucket is an in-memory Bitbucket Server that speaks the
// subset of the REST API the scmreader readers use: raw file content, the
// commit list and repository archives. It backs apps/mock-bitbucket and the
// reader tests.
package fakebitbucket

import (
	"crypto/sha1" //nolint:gosec // commit ids only need to look like git ids
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Endpoint names used by Hits.
const (
	EndpointRaw     = "raw"
	EndpointCommits = "commits"
	EndpointArchive = "archive"
)

type commit struct {
	id    string
	files map[string]string
}

// Store holds repositories keyed by "PROJECT/repo". Every write creates a
// new commit on a single branch.
type Store struct {
	mu    sync.RWMutex
	repos map[string][]commit // oldest first
	hits  map[string]int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		repos: make(map[string][]commit),
		hits:  make(map[string]int),
	}
}

// Commit applies files on top of the repository head and returns the new
// commit id. An empty content deletes the file.
func (s *Store) Commit(project, repo string, files map[string]string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := project + "/" + repo
	next := make(map[string]string)
	if history := s.repos[key]; len(history) > 0 {
		for p, c := range history[len(history)-1].files {
			next[p] = c
		}
	}
	for p, c := range files {
		p = strings.TrimPrefix(p, "/")
		if c == "" {
			delete(next, p)
			continue
		}
		next[p] = c
	}

	id := commitID(key, len(s.repos[key]), next)
	s.repos[key] = append(s.repos[key], commit{id: id, files: next})
	return id
}

// SetFile commits a single file.
func (s *Store) SetFile(project, repo, path, content string) string {
	return s.Commit(project, repo, map[string]string{path: content})
}

// Head returns the newest commit id, or "" for an unknown repository.
func (s *Store) Head(project, repo string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.repos[project+"/"+repo]
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1].id
}

// Hits returns how many requests an endpoint has served.
func (s *Store) Hits(endpoint string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits[endpoint]
}

// Repos returns the repository keys in sorted order.
func (s *Store) Repos() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.repos))
	for k := range s.repos {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *Store) hit(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[endpoint]++
}

// history returns commits newest first, starting at ref. An empty or
// unknown ref (e.g. a branch name) starts at the head.
func (s *Store) history(project, repo, ref string) ([]commit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	commits, ok := s.repos[project+"/"+repo]
	if !ok {
		return nil, false
	}
	start := len(commits) - 1
	if ref != "" {
		for i := len(commits) - 1; i >= 0; i-- {
			if strings.HasPrefix(commits[i].id, ref) {
				start = i
				break
			}
		}
	}
	out := make([]commit, 0, start+1)
	for i := start; i >= 0; i-- {
		out = append(out, commits[i])
	}
	return out, true
}

// snapshot returns the files at ref.
func (s *Store) snapshot(project, repo, ref string) (map[string]string, bool) {
	history, ok := s.history(project, repo, ref)
	if !ok || len(history) == 0 {
		return nil, false
	}
	return history[0].files, true
}

func commitID(key string, seq int, files map[string]string) string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha1.New() //nolint:gosec // not used for security
	fmt.Fprintf(h, "%s\x00%d\x00", key, seq)
	for _, p := range paths {
		fmt.Fprintf(h, "%s\x00%s\x00", p, files[p])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func contentETag(content string) string {
	sum := sha1.Sum([]byte(content)) //nolint:gosec // not used for security
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
