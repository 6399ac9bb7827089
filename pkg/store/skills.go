package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/catalog"
)

const skillColumns = `id, name, description, category, github_path, uploaded_by, uploaded_at,
	download_count, total_rating, rating_count, average_rating, is_global, parent_skill_id, version`

// SkillFilter narrows ListSkills. Zero values do not filter.
type SkillFilter struct {
	Search   string
	Category string
	IsGlobal *bool
}

// InsertSkill writes a new skill, filling in ID, UploadedAt and Version when
// they are empty.
func (q queries) InsertSkill(ctx context.Context, skill *catalog.Skill) error {
	if skill.ID == "" {
		skill.ID = newID()
	}
	if skill.UploadedAt.IsZero() {
		skill.UploadedAt = q.now()
	}
	if skill.Version == "" {
		skill.Version = catalog.DefaultVersion
	}

	return q.insert(ctx, "skill "+skill.Name, `
		INSERT INTO skills (`+skillColumns+`)
		VALUES (:id, :name, :description, :category, :github_path, :uploaded_by, :uploaded_at,
			:download_count, :total_rating, :rating_count, :average_rating, :is_global, :parent_skill_id, :version)
	`, skill)
}

// GetSkill returns the skill with the given id.
func (q queries) GetSkill(ctx context.Context, id string) (*catalog.Skill, error) {
	var skill catalog.Skill
	if err := q.get(ctx, &skill, `SELECT `+skillColumns+` FROM skills WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &skill, nil
}

// ListSkills returns skills ordered by name. Search is a case-insensitive
// substring match on the name.
func (q queries) ListSkills(ctx context.Context, filter SkillFilter) ([]catalog.Skill, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, "LOWER(name) LIKE ?")
		args = append(args, likePattern(filter.Search))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.IsGlobal != nil {
		conditions = append(conditions, "is_global = ?")
		args = append(args, *filter.IsGlobal)
	}

	query := `SELECT ` + skillColumns + ` FROM skills`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name, uploaded_at"

	skills := []catalog.Skill{}
	if err := q.selectInto(ctx, &skills, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list skills")
	}
	return skills, nil
}

// IncrementSkillDownloads adds one to the download counter in a single
// statement.
func (q queries) IncrementSkillDownloads(ctx context.Context, id string) error {
	return q.execOne(ctx, `UPDATE skills SET download_count = download_count + 1 WHERE id = ?`, id)
}

// RateSkill records one rating. Total, count and the rounded average are
// updated by one statement, so concurrent ratings cannot lose updates. The
// average is assigned first because MySQL evaluates assignments left to
// right.
func (q queries) RateSkill(ctx context.Context, id string, rating int) (*catalog.Skill, error) {
	err := q.execOne(ctx, `
		UPDATE skills SET
			average_rating = ROUND((total_rating + ?) * 1.0 / (rating_count + 1), 2),
			total_rating = total_rating + ?,
			rating_count = rating_count + 1
		WHERE id = ?
	`, rating, rating, id)
	if err != nil {
		return nil, err
	}
	return q.GetSkill(ctx, id)
}

// PathTaken reports whether an item of the given kind is already indexed at
// githubPath.
func (q queries) PathTaken(ctx context.Context, kind catalog.Kind, githubPath string) (bool, error) {
	var table string
	switch kind {
	case catalog.KindSkill:
		table = "skills"
	case catalog.KindAgent:
		table = "agents"
	case catalog.KindRule:
		table = "rules"
	default:
		return false, errors.Errorf("unknown kind %q", kind)
	}

	var n int
	if err := q.get(ctx, &n, `SELECT COUNT(*) FROM `+table+` WHERE github_path = ?`, githubPath); err != nil {
		return false, errors.Wrapf(err, "failed to look up %s", githubPath)
	}
	return n > 0, nil
}
