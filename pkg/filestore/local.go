package filestore

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/catalog"
	"github.com/emergent/skillsmarket/pkg/logger"
)

const stagingPrefix = ".commit-"

// Local stores files in a directory. A commit stages every file in a
// temporary directory first, so a write failure leaves the store untouched.
type Local struct {
	root    string
	baseURL string
	mu      sync.Mutex
}

// NewLocal creates the root directory when needed. baseURL is the public
// address of the API that serves /api/files.
func NewLocal(root, baseURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create file store root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve file store root")
	}
	return &Local{root: abs, baseURL: baseURL}, nil
}

// Root returns the directory backing the store.
func (l *Local) Root() string {
	return l.root
}

// CommitFiles writes all files or none of them.
func (l *Local) CommitFiles(ctx context.Context, files []File, message string) (*Commit, error) {
	if len(files) == 0 {
		return nil, ErrEmptyCommit
	}

	cleaned := make([]File, len(files))
	for i, f := range files {
		p, err := CleanPath(f.Path)
		if err != nil {
			return nil, err
		}
		cleaned[i] = File{Path: p, Content: f.Content}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stage, err := os.MkdirTemp(l.root, stagingPrefix+"*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create staging directory")
	}
	defer os.RemoveAll(stage)

	for _, f := range cleaned {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := filepath.Join(stage, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to stage %s", f.Path)
		}
		if err := os.WriteFile(target, f.Content, 0o644); err != nil {
			return nil, errors.Wrapf(err, "failed to stage %s", f.Path)
		}
	}

	for _, f := range cleaned {
		src := filepath.Join(stage, filepath.FromSlash(f.Path))
		dst := filepath.Join(l.root, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to publish %s", f.Path)
		}
		if err := os.Rename(src, dst); err != nil {
			return nil, errors.Wrapf(err, "failed to publish %s", f.Path)
		}
	}

	commit := &Commit{SHA: uuid.NewString(), Message: message, Files: len(cleaned)}
	logger.G(ctx).WithField("sha", commit.SHA).WithField("files", commit.Files).Debug("committed files to local store")
	return commit, nil
}

// ListFiles returns every file below dir, sorted by path. A missing
// directory yields an empty listing.
func (l *Local) ListFiles(ctx context.Context, dir string) ([]catalog.FileEntry, error) {
	clean, err := CleanPath(dir)
	if err != nil {
		return nil, err
	}

	base := filepath.Join(l.root, filepath.FromSlash(clean))
	entries := []catalog.FileEntry{}

	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		storagePath := filepath.ToSlash(rel)
		entries = append(entries, catalog.FileEntry{
			Name:        path.Base(storagePath),
			Path:        storagePath,
			DownloadURL: FileURL(l.baseURL, storagePath),
			Size:        info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", clean)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// ReadFile returns the content stored at p.
func (l *Local) ReadFile(_ context.Context, p string) ([]byte, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(clean, stagingPrefix) {
		return nil, ErrNotFound
	}

	content, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(clean)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", clean)
	}
	return content, nil
}
