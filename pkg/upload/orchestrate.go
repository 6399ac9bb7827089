package upload

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/emergent/skillsmarket/pkg/catalog"
	"github.com/emergent/skillsmarket/pkg/filestore"
	"github.com/emergent/skillsmarket/pkg/logger"
	"github.com/emergent/skillsmarket/pkg/telemetry"
)

// Committer writes a set of files to the file store in one atomic commit.
type Committer interface {
	CommitFiles(ctx context.Context, files []filestore.File, message string) (*filestore.Commit, error)
}

// Inserter writes index rows. Implementations fill in ID and UploadedAt.
type Inserter interface {
	InsertSkill(ctx context.Context, skill *catalog.Skill) error
	InsertAgent(ctx context.Context, agent *catalog.Agent) error
	InsertRule(ctx context.Context, rule *catalog.Rule) error
}

// Index runs fn inside one database transaction.
type Index interface {
	WithinTx(ctx context.Context, fn func(Inserter) error) error
}

// Created holds the records written by one upload.
type Created struct {
	Skills []catalog.Skill `json:"skills"`
	Agents []catalog.Agent `json:"agents"`
	Rules  []catalog.Rule  `json:"rules"`
}

// StoreError means the file store rejected the commit. No rows were written.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return "failed to commit files: " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// PersistError means the files were committed but the index rows were not.
// Revision names the commit that is now ahead of the index.
type PersistError struct {
	Revision string
	Err      error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("files were committed in %s but the index could not be updated: %s", e.Revision, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Precheck inspects one validated item before anything is committed, for
// example to reject a storage path that is already indexed.
type Precheck func(ctx context.Context, item ValidatedItem) error

// Orchestrator commits validated items and indexes them.
type Orchestrator struct {
	files    Committer
	index    Index
	precheck Precheck
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithPrecheck runs check on every item of a batch after validation.
func WithPrecheck(check Precheck) OrchestratorOption {
	return func(o *Orchestrator) {
		o.precheck = check
	}
}

// NewOrchestrator creates an orchestrator over a file store and an index.
func NewOrchestrator(files Committer, index Index, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{files: files, index: index}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// UploadBatch validates the whole batch, runs the precheck on every item
// and then uploads it. Nothing is committed or written when either fails.
func (o *Orchestrator) UploadBatch(ctx context.Context, batch Batch, uploadedBy string) (*Created, error) {
	var items []ValidatedItem
	err := telemetry.WithSpan(ctx, "upload.validate", func(ctx context.Context) error {
		var err error
		if items, err = Validate(batch); err != nil {
			return err
		}
		if o.precheck == nil {
			return nil
		}
		for _, item := range items {
			if err := o.precheck(ctx, item); err != nil {
				return err
			}
		}
		return nil
	}, attribute.Int("upload.items", batch.Len()))
	if err != nil {
		return nil, err
	}
	return o.Upload(ctx, items, uploadedBy)
}

// Upload commits every file of items in one commit, then inserts one row per
// item inside a single transaction.
func (o *Orchestrator) Upload(ctx context.Context, items []ValidatedItem, uploadedBy string) (*Created, error) {
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}
	log := logger.G(ctx).WithField("items", len(items))

	files := CommitSet(items)
	message := CommitMessage(items)

	var commit *filestore.Commit
	err := telemetry.WithSpan(ctx, "upload.commit", func(ctx context.Context) error {
		var err error
		commit, err = o.files.CommitFiles(ctx, files, message)
		return err
	}, attribute.Int("upload.files", len(files)))
	if err != nil {
		log.WithError(err).Error("file store commit failed")
		return nil, &StoreError{Err: err}
	}
	log = log.WithField("revision", commit.SHA)
	log.Info("committed upload")

	created := &Created{Skills: []catalog.Skill{}, Agents: []catalog.Agent{}, Rules: []catalog.Rule{}}
	err = telemetry.WithSpan(ctx, "upload.persist", func(ctx context.Context) error {
		return o.index.WithinTx(ctx, func(tx Inserter) error {
			for _, item := range items {
				if err := insertItem(ctx, tx, item, uploadedBy, created); err != nil {
					return errors.Wrapf(err, "failed to index %s %q", item.Kind, item.Name)
				}
			}
			return nil
		})
	})
	if err != nil {
		log.WithError(err).Error("index update failed after commit")
		return nil, &PersistError{Revision: commit.SHA, Err: err}
	}

	return created, nil
}

func insertItem(ctx context.Context, tx Inserter, item ValidatedItem, uploadedBy string, created *Created) error {
	switch item.Kind {
	case catalog.KindSkill:
		skill := catalog.Skill{
			Name:        item.Name,
			Description: item.Description,
			Category:    item.Category,
			GithubPath:  item.StoragePath,
			UploadedBy:  uploadedBy,
			IsGlobal:    true,
			Version:     catalog.DefaultVersion,
		}
		if err := tx.InsertSkill(ctx, &skill); err != nil {
			return err
		}
		created.Skills = append(created.Skills, skill)
	case catalog.KindAgent:
		agent := catalog.Agent{
			Name:        item.Name,
			Description: item.Description,
			GithubPath:  item.StoragePath,
			Color:       optional(item.Manifest.Color),
			Model:       optional(item.Manifest.Model),
			Tools:       catalog.StringList(item.Manifest.Tools),
			UploadedBy:  uploadedBy,
		}
		if err := tx.InsertAgent(ctx, &agent); err != nil {
			return err
		}
		created.Agents = append(created.Agents, agent)
	case catalog.KindRule:
		rule := catalog.Rule{
			Name:        item.Name,
			Description: item.Description,
			GithubPath:  item.StoragePath,
			Paths:       catalog.StringList(item.Manifest.Paths),
			UploadedBy:  uploadedBy,
		}
		if err := tx.InsertRule(ctx, &rule); err != nil {
			return err
		}
		created.Rules = append(created.Rules, rule)
	default:
		return errors.Errorf("unknown kind %q", item.Kind)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CommitSet flattens the files of every item into full storage paths.
func CommitSet(items []ValidatedItem) []filestore.File {
	var files []filestore.File
	for _, item := range items {
		for _, f := range item.Files {
			files = append(files, filestore.File{
				Path:    path.Join(item.StoragePath, f.Path),
				Content: f.Content,
			})
		}
	}
	return files
}

// CommitMessage summarizes the item names of an upload.
func CommitMessage(items []ValidatedItem) string {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	return "Batch upload: " + strings.Join(names, ", ")
}
