package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/db"
)

// Migration20261001090100CreateSkills creates skills and project_skills tables.
// Skill names repeat across scopes, so uniqueness is on the storage path,
// which embeds both the scope and the name.
func Migration20261001090100CreateSkills() db.Migration {
	return db.Migration{
		Version:     20261001090100,
		Description: "Create skills and project_skills tables",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS skills (
					id CHAR(36) PRIMARY KEY,
					name VARCHAR(100) NOT NULL,
					description VARCHAR(500) NOT NULL,
					category VARCHAR(50) NOT NULL,
					github_path VARCHAR(255) NOT NULL UNIQUE,
					uploaded_by VARCHAR(100) NOT NULL,
					uploaded_at DATETIME NOT NULL,
					download_count INTEGER NOT NULL DEFAULT 0,
					total_rating INTEGER NOT NULL DEFAULT 0,
					rating_count INTEGER NOT NULL DEFAULT 0,
					average_rating DECIMAL(3,2) NOT NULL DEFAULT 0,
					is_global BOOLEAN NOT NULL DEFAULT TRUE,
					parent_skill_id CHAR(36),
					version VARCHAR(20) NOT NULL DEFAULT '1.0.0',
					FOREIGN KEY (parent_skill_id) REFERENCES skills(id)
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create skills table")
			}

			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS project_skills (
					id CHAR(36) PRIMARY KEY,
					project_id CHAR(36) NOT NULL,
					skill_id CHAR(36) NOT NULL,
					is_customized BOOLEAN NOT NULL DEFAULT FALSE,
					added_at DATETIME NOT NULL,
					UNIQUE (project_id, skill_id),
					FOREIGN KEY (project_id) REFERENCES projects(id),
					FOREIGN KEY (skill_id) REFERENCES skills(id)
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create project_skills table")
			}

			return nil
		},
		Down: func(tx *sql.Tx) error {
			if _, err := tx.Exec("DROP TABLE IF EXISTS project_skills"); err != nil {
				return errors.Wrap(err, "failed to drop project_skills table")
			}
			if _, err := tx.Exec("DROP TABLE IF EXISTS skills"); err != nil {
				return errors.Wrap(err, "failed to drop skills table")
			}
			return nil
		},
	}
}
