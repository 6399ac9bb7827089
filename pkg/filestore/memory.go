package filestore

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/emergent/skillsmarket/pkg/catalog"
)

// Memory is an in-process store. Contents are lost when the process exits.
type Memory struct {
	baseURL string

	mu      sync.RWMutex
	files   map[string][]byte
	commits []Commit
}

// NewMemory creates an empty in-memory store.
func NewMemory(baseURL string) *Memory {
	return &Memory{baseURL: baseURL, files: map[string][]byte{}}
}

// CommitFiles stores all files under one commit.
func (m *Memory) CommitFiles(_ context.Context, files []File, message string) (*Commit, error) {
	if len(files) == 0 {
		return nil, ErrEmptyCommit
	}

	cleaned := make([]File, len(files))
	for i, f := range files {
		p, err := CleanPath(f.Path)
		if err != nil {
			return nil, err
		}
		cleaned[i] = File{Path: p, Content: append([]byte(nil), f.Content...)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range cleaned {
		m.files[f.Path] = f.Content
	}
	commit := Commit{SHA: fmt.Sprintf("mem-%04d", len(m.commits)+1), Message: message, Files: len(cleaned)}
	m.commits = append(m.commits, commit)
	return &commit, nil
}

// ListFiles returns every file below dir, sorted by path.
func (m *Memory) ListFiles(_ context.Context, dir string) ([]catalog.FileEntry, error) {
	clean, err := CleanPath(dir)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := []catalog.FileEntry{}
	for p, content := range m.files {
		if !Under(p, clean) {
			continue
		}
		entries = append(entries, catalog.FileEntry{
			Name:        path.Base(p),
			Path:        p,
			DownloadURL: FileURL(m.baseURL, p),
			Size:        int64(len(content)),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// ReadFile returns the content stored at p.
func (m *Memory) ReadFile(_ context.Context, p string) ([]byte, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	content, ok := m.files[clean]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), content...), nil
}

// Commits returns the commits made so far, oldest first.
func (m *Memory) Commits() []Commit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Commit(nil), m.commits...)
}
