package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/db"
)

// Migration20261001090200CreateAgentsAndRules creates agents and rules tables.
// Tools and paths hold JSON arrays.
func Migration20261001090200CreateAgentsAndRules() db.Migration {
	return db.Migration{
		Version:     20261001090200,
		Description: "Create agents and rules tables",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS agents (
					id CHAR(36) PRIMARY KEY,
					name VARCHAR(100) NOT NULL UNIQUE,
					description VARCHAR(500) NOT NULL,
					github_path VARCHAR(255) NOT NULL,
					color VARCHAR(50),
					model VARCHAR(100),
					tools TEXT,
					uploaded_by VARCHAR(100) NOT NULL,
					uploaded_at DATETIME NOT NULL,
					download_count INTEGER NOT NULL DEFAULT 0
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create agents table")
			}

			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS rules (
					id CHAR(36) PRIMARY KEY,
					name VARCHAR(100) NOT NULL UNIQUE,
					description VARCHAR(500) NOT NULL,
					github_path VARCHAR(255) NOT NULL,
					paths TEXT,
					uploaded_by VARCHAR(100) NOT NULL,
					uploaded_at DATETIME NOT NULL,
					download_count INTEGER NOT NULL DEFAULT 0
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create rules table")
			}

			return nil
		},
		Down: func(tx *sql.Tx) error {
			if _, err := tx.Exec("DROP TABLE IF EXISTS rules"); err != nil {
				return errors.Wrap(err, "failed to drop rules table")
			}
			if _, err := tx.Exec("DROP TABLE IF EXISTS agents"); err != nil {
				return errors.Wrap(err, "failed to drop agents table")
			}
			return nil
		},
	}
}
