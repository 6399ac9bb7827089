// Package filestore defines the system of record for bundle contents and
// provides directory-backed and in-memory implementations. The GitHub-backed
// implementation lives in pkg/github.
package filestore

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/catalog"
)

// File is a file to be committed, addressed by its full storage path.
type File struct {
	Path    string
	Content []byte
}

// Commit describes a successful CommitFiles call.
type Commit struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	Files   int    `json:"files"`
}

// Store holds bundle contents. CommitFiles is all-or-nothing for the files
// it is given.
type Store interface {
	CommitFiles(ctx context.Context, files []File, message string) (*Commit, error)
	ListFiles(ctx context.Context, dir string) ([]catalog.FileEntry, error)
	ReadFile(ctx context.Context, p string) ([]byte, error)
}

// ErrNotFound is returned by ReadFile for a missing path.
var ErrNotFound = errors.New("file not found")

// ErrEmptyCommit is returned when CommitFiles is called without files.
var ErrEmptyCommit = errors.New("no files to commit")

// CleanPath validates a storage path and returns it in canonical form.
func CleanPath(p string) (string, error) {
	if p == "" {
		return "", errors.New("empty storage path")
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return "", errors.Errorf("storage path %q escapes the store root", p)
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+p), "/")
	if cleaned == "" {
		return "", errors.Errorf("invalid storage path %q", p)
	}
	return cleaned, nil
}

// FileURL builds the download URL the API serves for a stored file.
func FileURL(baseURL, p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(baseURL, "/") + "/api/files/" + strings.Join(segments, "/")
}

// Under reports whether p lies strictly below dir.
func Under(p, dir string) bool {
	dir = strings.TrimSuffix(dir, "/")
	return dir == "" || strings.HasPrefix(p, dir+"/")
}
