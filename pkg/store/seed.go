package store

import (
	"context"
	_ "embed"
	"math"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/emergent/skillsmarket/pkg/catalog"
	"github.com/emergent/skillsmarket/pkg/logger"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedData is the YAML document accepted by Seed.
type SeedData struct {
	Skills  []SeedSkill  `yaml:"skills"`
	Clients []SeedClient `yaml:"clients"`
}

// SeedClient is a client with its projects.
type SeedClient struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Projects    []SeedProject `yaml:"projects"`
}

// SeedProject is a project with its project-scoped skills.
type SeedProject struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Skills      []SeedSkill `yaml:"skills"`
}

// SeedSkill describes one skill. Parent names a global skill of the same
// document.
type SeedSkill struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	UploadedBy  string `yaml:"uploadedBy"`
	Version     string `yaml:"version"`
	Downloads   int    `yaml:"downloads"`
	TotalRating int    `yaml:"totalRating"`
	RatingCount int    `yaml:"ratingCount"`
	Parent      string `yaml:"parent"`
	Customized  bool   `yaml:"customized"`
}

// SeedResult counts the rows written by Seed.
type SeedResult struct {
	Clients       int `json:"clients"`
	Projects      int `json:"projects"`
	Skills        int `json:"skills"`
	ProjectSkills int `json:"projectSkills"`
}

// ParseSeed decodes a seed document. Empty input yields the built-in demo
// catalog.
func ParseSeed(content []byte) (*SeedData, error) {
	if len(content) == 0 {
		content = defaultSeed
	}
	var data SeedData
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, errors.Wrap(err, "failed to parse seed data")
	}
	return &data, nil
}

// Seed replaces every client, project and skill with data in one
// transaction. Agents and rules are left alone.
func (s *Store) Seed(ctx context.Context, data *SeedData) (*SeedResult, error) {
	result := &SeedResult{}

	err := s.InTx(ctx, func(tx *Tx) error {
		for _, stmt := range []string{
			"DELETE FROM project_skills",
			"UPDATE skills SET parent_skill_id = NULL",
			"DELETE FROM skills",
			"DELETE FROM projects",
			"DELETE FROM clients",
		} {
			if _, err := tx.q.ExecContext(ctx, stmt); err != nil {
				return errors.Wrapf(err, "failed to clear index: %s", stmt)
			}
		}

		globals := map[string]string{}
		for _, seed := range data.Skills {
			skill := seed.skill(catalog.GlobalPath(catalog.KindSkill, seed.Name), true)
			if err := tx.InsertSkill(ctx, skill); err != nil {
				return err
			}
			globals[seed.Name] = skill.ID
			result.Skills++
		}

		for _, sc := range data.Clients {
			client := &catalog.Client{Name: sc.Name, Description: optionalText(sc.Description)}
			if err := tx.InsertClient(ctx, client); err != nil {
				return err
			}
			result.Clients++

			for _, sp := range sc.Projects {
				project := &catalog.Project{
					ClientID:    client.ID,
					Name:        sp.Name,
					Description: optionalText(sp.Description),
					IsActive:    true,
				}
				if err := tx.InsertProject(ctx, project); err != nil {
					return err
				}
				result.Projects++

				for _, seed := range sp.Skills {
					skill := seed.skill(catalog.ProjectPath(sp.Name, seed.Name), false)
					if seed.Parent != "" {
						parentID, ok := globals[seed.Parent]
						if !ok {
							return errors.Errorf("skill %q names unknown parent %q", seed.Name, seed.Parent)
						}
						skill.ParentSkillID = &parentID
					}
					if err := tx.InsertSkill(ctx, skill); err != nil {
						return err
					}
					if err := tx.InsertProjectSkill(ctx, project.ID, skill.ID, seed.Customized); err != nil {
						return err
					}
					result.Skills++
					result.ProjectSkills++
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.G(ctx).
		WithField("clients", result.Clients).
		WithField("projects", result.Projects).
		WithField("skills", result.Skills).
		Info("seeded index")
	return result, nil
}

func (s SeedSkill) skill(githubPath string, global bool) *catalog.Skill {
	category := s.Category
	if category == "" {
		category = catalog.DefaultCategory
	}
	skill := &catalog.Skill{
		Name:          s.Name,
		Description:   s.Description,
		Category:      category,
		GithubPath:    githubPath,
		UploadedBy:    s.UploadedBy,
		DownloadCount: s.Downloads,
		TotalRating:   s.TotalRating,
		RatingCount:   s.RatingCount,
		IsGlobal:      global,
		Version:       s.Version,
	}
	if s.RatingCount > 0 {
		skill.AverageRating = math.Round(float64(s.TotalRating)/float64(s.RatingCount)*100) / 100
	}
	return skill
}

func optionalText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
