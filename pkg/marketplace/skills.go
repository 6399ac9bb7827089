package marketplace

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
	"github.com/emergent/skillsmarket/pkg/store"
	"github.com/emergent/skillsmarket/pkg/telemetry"
	"github.com/emergent/skillsmarket/pkg/upload"
)

const (
	skillNotFound   = "Skill not found"
	projectNotFound = "Project not found"
)

// CreateSkillInput describes one skill created from JSON. Without ProjectID
// the skill is global.
type CreateSkillInput struct {
	Name        string        `json:"name" jsonschema:"minLength=1,maxLength=100,pattern=^[a-z0-9-]+$"`
	Description string        `json:"description" jsonschema:"minLength=1,maxLength=500"`
	Category    string        `json:"category,omitempty"`
	ProjectID   string        `json:"projectId,omitempty" jsonschema:"format=uuid"`
	UploadedBy  string        `json:"uploadedBy,omitempty"`
	Files       []upload.File `json:"files" jsonschema:"minItems=1"`
}

// ForkInput names the target project and, optionally, a new skill name.
type ForkInput struct {
	ProjectID string `json:"projectId" jsonschema:"format=uuid"`
	NewName   string `json:"newName,omitempty" jsonschema:"maxLength=100"`
}

// MinRating and MaxRating bound a single rating.
const (
	MinRating = 1
	MaxRating = 5
)

// CreateSkill validates the bundle, commits its files under the global or
// project path with "Add skill: <name>" and indexes it.
func (s *Service) CreateSkill(ctx context.Context, in CreateSkillInput) (*catalog.Skill, error) {
	if err := catalog.ValidateName(in.Name); err != nil {
		return nil, invalid("Skill " + err.Error())
	}

	item, err := upload.ValidateItem(catalog.KindSkill, 0, upload.GroupedItem{
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Files:       in.Files,
	})
	if err != nil {
		return nil, classify(err, "")
	}

	storagePath := item.StoragePath
	var project *catalog.ProjectWithClient
	if in.ProjectID != "" {
		project, err = s.store.GetProject(ctx, in.ProjectID)
		if err != nil {
			return nil, classify(err, projectNotFound)
		}
		storagePath = catalog.ProjectPath(project.Name, item.Name)
	}

	if err := s.ensurePathFree(ctx, catalog.KindSkill, item.Name, storagePath); err != nil {
		return nil, err
	}

	files := make([]filestore.File, 0, len(item.Files))
	for _, f := range item.Files {
		files = append(files, filestore.File{Path: path.Join(storagePath, f.Path), Content: f.Content})
	}

	skill := &catalog.Skill{
		Name:        item.Name,
		Description: item.Description,
		Category:    item.Category,
		GithubPath:  storagePath,
		UploadedBy:  in.UploadedBy,
		IsGlobal:    project == nil,
		Version:     catalog.DefaultVersion,
	}

	err = s.commitAndIndex(ctx, files, "Add skill: "+item.Name, func(tx *store.Tx) error {
		if err := tx.InsertSkill(ctx, skill); err != nil {
			return err
		}
		if project != nil {
			return tx.InsertProjectSkill(ctx, project.ID, skill.ID, false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.G(ctx).WithField("skill", skill.Name).WithField("path", skill.GithubPath).Info("created skill")
	return skill, nil
}

// GetSkill returns one skill.
func (s *Service) GetSkill(ctx context.Context, id string) (*catalog.Skill, error) {
	skill, err := s.store.GetSkill(ctx, id)
	if err != nil {
		return nil, classify(err, skillNotFound)
	}
	return skill, nil
}

// ListSkills returns skills ordered by name.
func (s *Service) ListSkills(ctx context.Context, filter store.SkillFilter) ([]catalog.Skill, error) {
	if filter.Category != "" && !catalog.IsCategory(filter.Category) {
		return nil, invalid(fmt.Sprintf("unknown category %q", filter.Category))
	}
	return s.store.ListSkills(ctx, filter)
}

// DownloadSkill counts a download and returns the skill's file listing. The
// counter is incremented even when the listing cannot be fetched.
func (s *Service) DownloadSkill(ctx context.Context, id string) (*catalog.SkillDownload, error) {
	skill, err := s.store.GetSkill(ctx, id)
	if err != nil {
		return nil, classify(err, skillNotFound)
	}

	if err := s.store.IncrementSkillDownloads(ctx, id); err != nil {
		return nil, classify(err, skillNotFound)
	}
	skill.DownloadCount++

	var entries []catalog.FileEntry
	err = telemetry.WithSpan(ctx, "filestore.list", func(ctx context.Context) error {
		var err error
		entries, err = s.files.ListFiles(ctx, skill.GithubPath)
		return err
	}, attribute.String("filestore.path", skill.GithubPath))
	if err != nil {
		return nil, &Error{Kind: KindExternal, Message: "failed to list skill files", Err: err}
	}

	return &catalog.SkillDownload{Skill: *skill, GithubPath: skill.GithubPath, Files: entries}, nil
}

// RateSkill records a rating between MinRating and MaxRating.
func (s *Service) RateSkill(ctx context.Context, id string, rating int) (*catalog.Skill, error) {
	if rating < MinRating || rating > MaxRating {
		return nil, invalid(fmt.Sprintf("rating must be between %d and %d", MinRating, MaxRating))
	}
	skill, err := s.store.RateSkill(ctx, id, rating)
	if err != nil {
		return nil, classify(err, skillNotFound)
	}
	return skill, nil
}

// ForkSkill copies a skill into a project. The copy keeps the source's
// description, category, version and uploader, records the source as its
// parent and is marked customized for the project. The source's files are
// committed under the new path before the copy is indexed.
func (s *Service) ForkSkill(ctx context.Context, id string, in ForkInput) (*catalog.Skill, error) {
	source, err := s.store.GetSkill(ctx, id)
	if err != nil {
		return nil, classify(err, skillNotFound)
	}
	project, err := s.store.GetProject(ctx, in.ProjectID)
	if err != nil {
		return nil, classify(err, projectNotFound)
	}

	name := source.Name
	if in.NewName != "" {
		if err := catalog.ValidateName(in.NewName); err != nil {
			return nil, invalid("Skill " + err.Error())
		}
		name = in.NewName
	}

	storagePath := catalog.ProjectPath(project.Name, name)
	if err := s.ensurePathFree(ctx, catalog.KindSkill, name, storagePath); err != nil {
		return nil, err
	}

	files, err := s.copyFiles(ctx, source.GithubPath, storagePath)
	if err != nil {
		return nil, err
	}

	parentID := source.ID
	fork := &catalog.Skill{
		Name:          name,
		Description:   source.Description,
		Category:      source.Category,
		GithubPath:    storagePath,
		UploadedBy:    source.UploadedBy,
		IsGlobal:      false,
		ParentSkillID: &parentID,
		Version:       source.Version,
	}

	message := fmt.Sprintf("Fork skill: %s -> %s", source.GithubPath, storagePath)
	err = s.commitAndIndex(ctx, files, message, func(tx *store.Tx) error {
		if err := tx.InsertSkill(ctx, fork); err != nil {
			return err
		}
		return tx.InsertProjectSkill(ctx, project.ID, fork.ID, true)
	})
	if err != nil {
		return nil, err
	}

	logger.G(ctx).
		WithField("source", source.GithubPath).
		WithField("path", fork.GithubPath).
		WithField("files", len(files)).
		Info("forked skill")
	return fork, nil
}

// copyFiles reads every file below src and rebases it below dst.
func (s *Service) copyFiles(ctx context.Context, src, dst string) ([]filestore.File, error) {
	entries, err := s.files.ListFiles(ctx, src)
	if err != nil {
		return nil, &Error{Kind: KindExternal, Message: "failed to list skill files", Err: err}
	}

	files := make([]filestore.File, 0, len(entries))
	for _, entry := range entries {
		content, err := s.files.ReadFile(ctx, entry.Path)
		if err != nil {
			return nil, &Error{Kind: KindExternal, Message: "failed to read " + entry.Path, Err: err}
		}
		rel := strings.TrimPrefix(entry.Path, strings.TrimSuffix(src, "/")+"/")
		files = append(files, filestore.File{Path: path.Join(dst, rel), Content: content})
	}
	return files, nil
}

func (s *Service) ensurePathFree(ctx context.Context, kind catalog.Kind, name, storagePath string) error {
	taken, err := s.store.PathTaken(ctx, kind, storagePath)
	if err != nil {
		return err
	}
	if taken {
		return conflict(fmt.Sprintf("%s %q already exists at %s", kind.Title(), name, storagePath))
	}
	return nil
}

// commitAndIndex commits files in one commit and then runs index in one
// transaction. With no files only the transaction runs.
func (s *Service) commitAndIndex(ctx context.Context, files []filestore.File, message string, index func(tx *store.Tx) error) error {
	revision := ""
	if len(files) > 0 {
		var commit *filestore.Commit
		err := telemetry.WithSpan(ctx, "filestore.commit", func(ctx context.Context) error {
			var err error
			commit, err = s.files.CommitFiles(ctx, files, message)
			return err
		}, attribute.Int("filestore.files", len(files)))
		if err != nil {
			logger.G(ctx).WithError(err).Error("file store commit failed")
			return classify(&upload.StoreError{Err: err}, "")
		}
		revision = commit.SHA
	}

	if err := s.store.InTx(ctx, index); err != nil {
		if revision == "" {
			return classify(errors.Wrap(err, "failed to update index"), "")
		}
		logger.G(ctx).WithError(err).WithField("revision", revision).Error("index update failed after commit")
		return classify(&upload.PersistError{Revision: revision, Err: err}, "")
	}
	return nil
}
