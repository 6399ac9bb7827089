package marketplace

import (
	"context"

	"github.com/emergent/skillsmarket/pkg/catalog"
	"github.com/emergent/skillsmarket/pkg/frontmatter"
	"github.com/emergent/skillsmarket/pkg/logger"
	"github.com/emergent/skillsmarket/pkg/upload"
)

// Structure names reported by Upload.
const (
	StructureSingle = "single"
	StructureBatch  = "batch"
)

// UploadResult is the outcome of an unclassified upload.
type UploadResult struct {
	Structure string `json:"structure"`
	upload.Created
}

// UploadBatch validates every item, rejects items whose storage path is
// already indexed, then commits all files in one commit and indexes the
// items in one transaction.
func (s *Service) UploadBatch(ctx context.Context, batch upload.Batch, uploadedBy string) (*upload.Created, error) {
	created, err := s.uploads.UploadBatch(ctx, batch, uploadedBy)
	if err != nil {
		return nil, classify(err, "")
	}

	logger.G(ctx).
		WithField("skills", len(created.Skills)).
		WithField("agents", len(created.Agents)).
		WithField("rules", len(created.Rules)).
		Info("batch upload complete")
	return created, nil
}

// Upload classifies a raw file tree. A single bundle becomes one global
// skill named by its SKILL.md; a batch goes through UploadBatch.
func (s *Service) Upload(ctx context.Context, files []upload.File, uploadedBy string) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, invalid("no files were uploaded")
	}

	switch st := upload.DetectStructure(files).(type) {
	case upload.SingleBundle:
		skill, err := s.uploadBundle(ctx, st, uploadedBy)
		if err != nil {
			return nil, err
		}
		return &UploadResult{
			Structure: StructureSingle,
			Created:   upload.Created{Skills: []catalog.Skill{*skill}, Agents: []catalog.Agent{}, Rules: []catalog.Rule{}},
		}, nil
	case upload.Batch:
		created, err := s.UploadBatch(ctx, st, uploadedBy)
		if err != nil {
			return nil, err
		}
		return &UploadResult{Structure: StructureBatch, Created: *created}, nil
	default:
		return nil, invalid("unrecognized upload structure")
	}
}

func (s *Service) uploadBundle(ctx context.Context, bundle upload.SingleBundle, uploadedBy string) (*catalog.Skill, error) {
	label := catalog.KindSkill.ManifestLabel()

	var manifest *upload.File
	for i := range bundle.Files {
		if bundle.Files[i].Path == label {
			manifest = &bundle.Files[i]
			break
		}
	}
	if manifest == nil {
		return nil, invalid("upload must contain a " + label + " file or skills/, agents/ or rules/ folders")
	}

	parsed, err := frontmatter.ParseManifest(catalog.KindSkill, manifest.Content)
	if err != nil {
		return nil, invalid(err.Error())
	}

	name := catalog.SanitizeName(parsed.Name)
	if name == "" {
		return nil, invalid(label + " name must contain at least one letter or digit")
	}

	return s.CreateSkill(ctx, CreateSkillInput{
		Name:        name,
		Description: parsed.Description,
		UploadedBy:  uploadedBy,
		Files:       bundle.Files,
	})
}
