package marketplace

import (
	"context"
	"sort"
	"strings"

	"github.com/emergent/skillsmarket/pkg/catalog"
	"github.com/emergent/skillsmarket/pkg/store"
)

// CreateClientInput describes a new client.
type CreateClientInput struct {
	Name        string  `json:"name" jsonschema:"minLength=1,maxLength=200"`
	Description *string `json:"description,omitempty" jsonschema:"maxLength=1000"`
}

// CreateProjectInput describes a new project.
type CreateProjectInput struct {
	ClientID    string  `json:"clientId" jsonschema:"format=uuid"`
	Name        string  `json:"name" jsonschema:"minLength=1,maxLength=200"`
	Description *string `json:"description,omitempty" jsonschema:"maxLength=1000"`
}

// CreateClient adds a client.
func (s *Service) CreateClient(ctx context.Context, in CreateClientInput) (*catalog.Client, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("client name is required")
	}
	client := &catalog.Client{Name: name, Description: in.Description}
	if err := s.store.InsertClient(ctx, client); err != nil {
		return nil, classify(err, "")
	}
	return client, nil
}

// ListClients returns every client ordered by name.
func (s *Service) ListClients(ctx context.Context) ([]catalog.Client, error) {
	return s.store.ListClients(ctx)
}

// CreateProject adds an active project to an existing client.
func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (*catalog.ProjectWithClient, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("project name is required")
	}
	if _, err := s.store.GetClient(ctx, in.ClientID); err != nil {
		return nil, classify(err, "Client not found")
	}

	project := &catalog.Project{
		ClientID:    in.ClientID,
		Name:        name,
		Description: in.Description,
		IsActive:    true,
	}
	if err := s.store.InsertProject(ctx, project); err != nil {
		return nil, classify(err, "")
	}
	return s.GetProject(ctx, project.ID)
}

// GetProject returns a project with its client's name.
func (s *Service) GetProject(ctx context.Context, id string) (*catalog.ProjectWithClient, error) {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, classify(err, projectNotFound)
	}
	return project, nil
}

// ListProjects returns projects, optionally for one client.
func (s *Service) ListProjects(ctx context.Context, clientID string) ([]catalog.ProjectWithClient, error) {
	return s.store.ListProjects(ctx, clientID)
}

// ProjectSkills returns the skills a project sees: its own skills plus every
// global skill whose name the project does not override. Inherited skills
// are reported as not customized.
func (s *Service) ProjectSkills(ctx context.Context, projectID string) ([]catalog.ProjectSkill, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, classify(err, projectNotFound)
	}

	own, err := s.store.ListProjectSkills(ctx, projectID)
	if err != nil {
		return nil, err
	}
	global := true
	globals, err := s.store.ListSkills(ctx, store.SkillFilter{IsGlobal: &global})
	if err != nil {
		return nil, err
	}

	overridden := make(map[string]bool, len(own))
	for _, ps := range own {
		overridden[ps.Name] = true
	}

	merged := append([]catalog.ProjectSkill{}, own...)
	for _, skill := range globals {
		if overridden[skill.Name] {
			continue
		}
		merged = append(merged, catalog.ProjectSkill{Skill: skill, IsCustomized: false})
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Name < merged[j].Name })
	return merged, nil
}
