package github

import (
	"context"
	"encoding/base64"
	"net/http"
	"path"
	"sort"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/go-github/v57/github"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/emergent/skillsmarket/pkg/catalog"
	"github.com/emergent/skillsmarket/pkg/filestore"
	"github.com/emergent/skillsmarket/pkg/logger"
	"github.com/emergent/skillsmarket/pkg/telemetry"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 500 * time.Millisecond
	blobConcurrency      = 4
)

// Store is a filestore.Store backed by one branch of a GitHub repository.
type Store struct {
	client *github.Client
	owner  string
	repo   string
	branch string

	attempts uint
	delay    time.Duration
}

var _ filestore.Store = (*Store)(nil)

// NewStore creates a store for cfg.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{
		client:   client,
		owner:    cfg.Owner,
		repo:     cfg.Repo,
		branch:   cfg.Branch,
		attempts: cfg.RetryAttempts,
		delay:    cfg.RetryDelay,
	}
	if s.branch == "" {
		s.branch = DefaultBranch
	}
	if s.attempts == 0 {
		s.attempts = defaultRetryAttempts
	}
	if s.delay == 0 {
		s.delay = defaultRetryDelay
	}
	return s, nil
}

// CommitFiles creates one commit holding every file on top of the branch
// head and fast-forwards the branch to it.
func (s *Store) CommitFiles(ctx context.Context, files []filestore.File, message string) (*filestore.Commit, error) {
	if len(files) == 0 {
		return nil, filestore.ErrEmptyCommit
	}
	cleaned := make([]filestore.File, len(files))
	for i, f := range files {
		p, err := filestore.CleanPath(f.Path)
		if err != nil {
			return nil, err
		}
		cleaned[i] = filestore.File{Path: p, Content: f.Content}
	}
	files = cleaned

	var result *filestore.Commit
	err := telemetry.WithSpan(ctx, "github.commit", func(ctx context.Context) error {
		ref, err := s.getRef(ctx)
		if err != nil {
			return err
		}
		headSHA := ref.GetObject().GetSHA()

		var head *github.Commit
		err = s.do(ctx, "get commit", func() (*github.Response, error) {
			var resp *github.Response
			var err error
			head, resp, err = s.client.Git.GetCommit(ctx, s.owner, s.repo, headSHA)
			return resp, err
		})
		if err != nil {
			return err
		}

		entries, err := s.createBlobs(ctx, files)
		if err != nil {
			return err
		}

		var tree *github.Tree
		err = s.do(ctx, "create tree", func() (*github.Response, error) {
			var resp *github.Response
			var err error
			tree, resp, err = s.client.Git.CreateTree(ctx, s.owner, s.repo, head.GetTree().GetSHA(), entries)
			return resp, err
		})
		if err != nil {
			return err
		}

		var commit *github.Commit
		err = s.do(ctx, "create commit", func() (*github.Response, error) {
			var resp *github.Response
			var err error
			commit, resp, err = s.client.Git.CreateCommit(ctx, s.owner, s.repo, &github.Commit{
				Message: github.String(message),
				Tree:    &github.Tree{SHA: tree.SHA},
				Parents: []*github.Commit{{SHA: github.String(headSHA)}},
			}, nil)
			return resp, err
		})
		if err != nil {
			return err
		}

		ref.Object.SHA = commit.SHA
		err = s.do(ctx, "update ref", func() (*github.Response, error) {
			_, resp, err := s.client.Git.UpdateRef(ctx, s.owner, s.repo, ref, false)
			return resp, err
		})
		if err != nil {
			return err
		}

		result = &filestore.Commit{SHA: commit.GetSHA(), Message: message, Files: len(files)}
		return nil
	}, attribute.Int("github.files", len(files)), attribute.String("github.branch", s.branch))
	if err != nil {
		return nil, err
	}

	logger.G(ctx).
		WithField("sha", result.SHA).
		WithField("files", result.Files).
		WithField("repo", s.owner+"/"+s.repo).
		Info("committed files to github")
	return result, nil
}

func (s *Store) getRef(ctx context.Context) (*github.Reference, error) {
	var ref *github.Reference
	err := s.do(ctx, "get ref", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		ref, resp, err = s.client.Git.GetRef(ctx, s.owner, s.repo, "refs/heads/"+s.branch)
		return resp, err
	})
	return ref, err
}

func (s *Store) createBlobs(ctx context.Context, files []filestore.File) ([]*github.TreeEntry, error) {
	entries := make([]*github.TreeEntry, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(blobConcurrency)
	for i, f := range files {
		g.Go(func() error {
			var blob *github.Blob
			err := s.do(ctx, "create blob "+f.Path, func() (*github.Response, error) {
				var resp *github.Response
				var err error
				blob, resp, err = s.client.Git.CreateBlob(ctx, s.owner, s.repo, &github.Blob{
					Content:  github.String(base64.StdEncoding.EncodeToString(f.Content)),
					Encoding: github.String("base64"),
				})
				return resp, err
			})
			if err != nil {
				return err
			}
			entries[i] = &github.TreeEntry{
				Path: github.String(f.Path),
				Mode: github.String("100644"),
				Type: github.String("blob"),
				SHA:  blob.SHA,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListFiles walks dir through the contents API. A missing directory yields
// an empty listing.
func (s *Store) ListFiles(ctx context.Context, dir string) ([]catalog.FileEntry, error) {
	clean, err := filestore.CleanPath(dir)
	if err != nil {
		return nil, err
	}

	entries := []catalog.FileEntry{}
	if err := s.walk(ctx, clean, &entries); err != nil {
		if isNotFound(err) {
			return []catalog.FileEntry{}, nil
		}
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (s *Store) walk(ctx context.Context, dir string, entries *[]catalog.FileEntry) error {
	var file *github.RepositoryContent
	var listing []*github.RepositoryContent
	err := s.do(ctx, "get contents "+dir, func() (*github.Response, error) {
		var resp *github.Response
		var err error
		file, listing, resp, err = s.client.Repositories.GetContents(ctx, s.owner, s.repo, dir,
			&github.RepositoryContentGetOptions{Ref: s.branch})
		return resp, err
	})
	if err != nil {
		return err
	}
	if file != nil {
		// dir names a file, not a directory.
		return nil
	}

	for _, item := range listing {
		switch item.GetType() {
		case "file":
			*entries = append(*entries, catalog.FileEntry{
				Name:        item.GetName(),
				Path:        item.GetPath(),
				DownloadURL: item.GetDownloadURL(),
				Size:        int64(item.GetSize()),
			})
		case "dir":
			if err := s.walk(ctx, path.Join(dir, item.GetName()), entries); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadFile returns the content of one file on the branch.
func (s *Store) ReadFile(ctx context.Context, p string) ([]byte, error) {
	clean, err := filestore.CleanPath(p)
	if err != nil {
		return nil, err
	}

	var file *github.RepositoryContent
	err = s.do(ctx, "get contents "+clean, func() (*github.Response, error) {
		var resp *github.Response
		var err error
		file, _, resp, err = s.client.Repositories.GetContents(ctx, s.owner, s.repo, clean,
			&github.RepositoryContentGetOptions{Ref: s.branch})
		return resp, err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, filestore.ErrNotFound
		}
		return nil, err
	}
	if file == nil {
		return nil, filestore.ErrNotFound
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", clean)
	}
	return []byte(content), nil
}

// do runs one API call, retrying rate limits, server errors and transport
// failures.
func (s *Store) do(ctx context.Context, what string, call func() (*github.Response, error)) error {
	err := retry.Do(
		func() error {
			resp, err := call()
			if err != nil && !retryable(resp, err) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).WithField("call", what).Warn("retrying GitHub API call")
		}),
	)
	if err != nil {
		return errors.Wrapf(err, "github: %s", what)
	}
	return nil
}

func retryable(resp *github.Response, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}

	if resp == nil || resp.Response == nil {
		// No response at all: transport failure.
		return true
	}
	return resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
}

func isNotFound(err error) bool {
	var errResp *github.ErrorResponse
	return errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound
}
