package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/api"
	"github.com/emergent/skillsmarket/pkg/catalog"
	"github.com/emergent/skillsmarket/pkg/logger"
	"github.com/emergent/skillsmarket/pkg/upload"
)

// Search prints the skills whose name contains term.
func (i *Installer) Search(ctx context.Context, term string) ([]catalog.Skill, error) {
	skills, err := i.client.SearchSkills(ctx, term)
	if err != nil {
		return nil, err
	}
	if len(skills) == 0 {
		i.presenter.Info("No skills found.")
		return skills, nil
	}

	rows := make([][]string, 0, len(skills))
	for _, s := range skills {
		scope := "global"
		if !s.IsGlobal {
			scope = "project"
		}
		rows = append(rows, []string{
			s.Name,
			s.Version,
			s.Category,
			scope,
			fmt.Sprintf("%.2f (%d)", s.AverageRating, s.RatingCount),
			strconv.Itoa(s.DownloadCount),
			s.ID,
		})
	}
	i.presenter.Table([]string{"NAME", "VERSION", "CATEGORY", "SCOPE", "RATING", "DOWNLOADS", "ID"}, rows)
	return skills, nil
}

// Projects prints every project with its client.
func (i *Installer) Projects(ctx context.Context) ([]catalog.ProjectWithClient, error) {
	projects, err := i.client.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		i.presenter.Info("No projects found.")
		return projects, nil
	}

	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{p.Name, p.ClientName, p.ID})
	}
	i.presenter.Table([]string{"PROJECT", "CLIENT", "ID"}, rows)
	return projects, nil
}

// UploadSummary counts what an upload created.
type UploadSummary struct {
	Structure string
	Created   upload.Created
}

// Upload reads a directory or zip archive, classifies it locally and sends
// it to the marketplace. Batches are validated before anything is sent.
func (i *Installer) Upload(ctx context.Context, src, uploadedBy string) (*UploadSummary, error) {
	files, err := readSource(src)
	if err != nil {
		return nil, err
	}
	log := logger.G(ctx).WithField("source", src).WithField("files", len(files))

	switch st := upload.DetectStructure(files).(type) {
	case upload.Batch:
		if _, err := upload.Validate(st); err != nil {
			return nil, err
		}
		log.WithField("items", st.Len()).Debug("uploading batch")
		created, err := i.client.UploadBatch(ctx, batchRequest(st, uploadedBy))
		if err != nil {
			return nil, err
		}
		return i.reportUpload(&UploadSummary{Structure: "batch", Created: *created}), nil
	default:
		log.Debug("uploading single bundle")
		result, err := i.client.UploadFiles(ctx, api.FilesUploadRequest{Files: files, UploadedBy: uploadedBy})
		if err != nil {
			return nil, err
		}
		return i.reportUpload(&UploadSummary{Structure: result.Structure, Created: result.Created}), nil
	}
}

func (i *Installer) reportUpload(s *UploadSummary) *UploadSummary {
	for _, sk := range s.Created.Skills {
		i.presenter.Success(fmt.Sprintf("Uploaded skill %s (%s)", sk.Name, sk.GithubPath))
	}
	for _, a := range s.Created.Agents {
		i.presenter.Success(fmt.Sprintf("Uploaded agent %s (%s)", a.Name, a.GithubPath))
	}
	for _, r := range s.Created.Rules {
		i.presenter.Success(fmt.Sprintf("Uploaded rule %s (%s)", r.Name, r.GithubPath))
	}
	return s
}

func readSource(src string) ([]upload.File, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", src)
	}
	limits := upload.DefaultLimits
	if info.IsDir() {
		return upload.ReadDir(src, limits)
	}
	if !strings.EqualFold(filepath.Ext(src), ".zip") {
		return nil, errors.Errorf("%s is neither a directory nor a zip archive", src)
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", src)
	}
	defer f.Close()

	archive, err := upload.ExtractZip(f, info.Size(), filepath.Base(src), limits)
	if err != nil {
		return nil, err
	}
	return archive.Files, nil
}

func batchRequest(b upload.Batch, uploadedBy string) api.BatchUploadRequest {
	convert := func(items []upload.GroupedItem) []api.BatchItemRequest {
		out := make([]api.BatchItemRequest, 0, len(items))
		for _, item := range items {
			out = append(out, api.BatchItemRequest{
				Name:        item.Name,
				Description: item.Description,
				Category:    item.Category,
				Files:       item.Files,
			})
		}
		return out
	}
	return api.BatchUploadRequest{
		Skills:     convert(b.Skills),
		Agents:     convert(b.Agents),
		Rules:      convert(b.Rules),
		UploadedBy: uploadedBy,
	}
}
