package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/catalog"
)

const (
	agentColumns = `id, name, description, github_path, color, model, tools, uploaded_by, uploaded_at, download_count`
	ruleColumns  = `id, name, description, github_path, paths, uploaded_by, uploaded_at, download_count`
)

// InsertAgent writes a new agent, filling in ID and UploadedAt.
func (q queries) InsertAgent(ctx context.Context, agent *catalog.Agent) error {
	if agent.ID == "" {
		agent.ID = newID()
	}
	if agent.UploadedAt.IsZero() {
		agent.UploadedAt = q.now()
	}

	return q.insert(ctx, "agent "+agent.Name, `
		INSERT INTO agents (`+agentColumns+`)
		VALUES (:id, :name, :description, :github_path, :color, :model, :tools, :uploaded_by, :uploaded_at, :download_count)
	`, agent)
}

// GetAgent returns the agent with the given id.
func (q queries) GetAgent(ctx context.Context, id string) (*catalog.Agent, error) {
	var agent catalog.Agent
	if err := q.get(ctx, &agent, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &agent, nil
}

// ListAgents returns agents ordered by name, optionally filtered by a
// case-insensitive name substring.
func (q queries) ListAgents(ctx context.Context, search string) ([]catalog.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents`
	var args []interface{}
	if search != "" {
		query += ` WHERE LOWER(name) LIKE ?`
		args = append(args, likePattern(search))
	}
	query += ` ORDER BY name`

	agents := []catalog.Agent{}
	if err := q.selectInto(ctx, &agents, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list agents")
	}
	return agents, nil
}

// InsertRule writes a new rule, filling in ID and UploadedAt.
func (q queries) InsertRule(ctx context.Context, rule *catalog.Rule) error {
	if rule.ID == "" {
		rule.ID = newID()
	}
	if rule.UploadedAt.IsZero() {
		rule.UploadedAt = q.now()
	}

	return q.insert(ctx, "rule "+rule.Name, `
		INSERT INTO rules (`+ruleColumns+`)
		VALUES (:id, :name, :description, :github_path, :paths, :uploaded_by, :uploaded_at, :download_count)
	`, rule)
}

// GetRule returns the rule with the given id.
func (q queries) GetRule(ctx context.Context, id string) (*catalog.Rule, error) {
	var rule catalog.Rule
	if err := q.get(ctx, &rule, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListRules returns rules ordered by name, optionally filtered by a
// case-insensitive name substring.
func (q queries) ListRules(ctx context.Context, search string) ([]catalog.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules`
	var args []interface{}
	if search != "" {
		query += ` WHERE LOWER(name) LIKE ?`
		args = append(args, likePattern(search))
	}
	query += ` ORDER BY name`

	rules := []catalog.Rule{}
	if err := q.selectInto(ctx, &rules, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list rules")
	}
	return rules, nil
}
