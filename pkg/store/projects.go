package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/catalog"
)

const projectWithClientColumns = `p.id, p.client_id, p.name, p.description, p.is_active, p.created_at, c.name AS client_name`

// InsertClient writes a new client.
func (q queries) InsertClient(ctx context.Context, client *catalog.Client) error {
	if client.ID == "" {
		client.ID = newID()
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = q.now()
	}
	return q.insert(ctx, "client "+client.Name, `
		INSERT INTO clients (id, name, description, created_at)
		VALUES (:id, :name, :description, :created_at)
	`, client)
}

// GetClient returns the client with the given id.
func (q queries) GetClient(ctx context.Context, id string) (*catalog.Client, error) {
	var client catalog.Client
	if err := q.get(ctx, &client, `SELECT id, name, description, created_at FROM clients WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &client, nil
}

// GetClientByName returns the client with the given name.
func (q queries) GetClientByName(ctx context.Context, name string) (*catalog.Client, error) {
	var client catalog.Client
	if err := q.get(ctx, &client, `SELECT id, name, description, created_at FROM clients WHERE name = ?`, name); err != nil {
		return nil, err
	}
	return &client, nil
}

// ListClients returns every client ordered by name.
func (q queries) ListClients(ctx context.Context) ([]catalog.Client, error) {
	clients := []catalog.Client{}
	if err := q.selectInto(ctx, &clients, `SELECT id, name, description, created_at FROM clients ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "failed to list clients")
	}
	return clients, nil
}

// InsertProject writes a new project. New projects are active.
func (q queries) InsertProject(ctx context.Context, project *catalog.Project) error {
	if project.ID == "" {
		project.ID = newID()
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = q.now()
	}
	return q.insert(ctx, "project "+project.Name, `
		INSERT INTO projects (id, client_id, name, description, is_active, created_at)
		VALUES (:id, :client_id, :name, :description, :is_active, :created_at)
	`, project)
}

// GetProject returns the project with the given id joined with its client.
func (q queries) GetProject(ctx context.Context, id string) (*catalog.ProjectWithClient, error) {
	var project catalog.ProjectWithClient
	err := q.get(ctx, &project, `
		SELECT `+projectWithClientColumns+`
		FROM projects p
		INNER JOIN clients c ON c.id = p.client_id
		WHERE p.id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjects returns projects ordered by name, optionally limited to one
// client.
func (q queries) ListProjects(ctx context.Context, clientID string) ([]catalog.ProjectWithClient, error) {
	query := `
		SELECT ` + projectWithClientColumns + `
		FROM projects p
		INNER JOIN clients c ON c.id = p.client_id`
	var args []interface{}
	if clientID != "" {
		query += ` WHERE p.client_id = ?`
		args = append(args, clientID)
	}
	query += ` ORDER BY p.name`

	projects := []catalog.ProjectWithClient{}
	if err := q.selectInto(ctx, &projects, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list projects")
	}
	return projects, nil
}

// InsertProjectSkill associates a skill with a project.
func (q queries) InsertProjectSkill(ctx context.Context, projectID, skillID string, customized bool) error {
	row := struct {
		ID           string    `db:"id"`
		ProjectID    string    `db:"project_id"`
		SkillID      string    `db:"skill_id"`
		IsCustomized bool      `db:"is_customized"`
		AddedAt      time.Time `db:"added_at"`
	}{newID(), projectID, skillID, customized, q.now()}

	return q.insert(ctx, "project skill", `
		INSERT INTO project_skills (id, project_id, skill_id, is_customized, added_at)
		VALUES (:id, :project_id, :skill_id, :is_customized, :added_at)
	`, row)
}

// ListProjectSkills returns the skills associated with a project, ordered by
// name.
func (q queries) ListProjectSkills(ctx context.Context, projectID string) ([]catalog.ProjectSkill, error) {
	skills := []catalog.ProjectSkill{}
	err := q.selectInto(ctx, &skills, `
		SELECT s.id, s.name, s.description, s.category, s.github_path, s.uploaded_by, s.uploaded_at,
			s.download_count, s.total_rating, s.rating_count, s.average_rating, s.is_global,
			s.parent_skill_id, s.version, ps.is_customized
		FROM project_skills ps
		INNER JOIN skills s ON s.id = ps.skill_id
		WHERE ps.project_id = ?
		ORDER BY s.name
	`, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list project skills")
	}
	return skills, nil
}
