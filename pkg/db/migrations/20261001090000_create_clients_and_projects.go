package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/db"
)

// Migration20261001090000CreateClientsAndProjects creates clients and projects tables.
func Migration20261001090000CreateClientsAndProjects() db.Migration {
	return db.Migration{
		Version:     20261001090000,
		Description: "Create clients and projects tables",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS clients (
					id CHAR(36) PRIMARY KEY,
					name VARCHAR(200) NOT NULL UNIQUE,
					description TEXT,
					created_at DATETIME NOT NULL
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create clients table")
			}

			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS projects (
					id CHAR(36) PRIMARY KEY,
					client_id CHAR(36) NOT NULL,
					name VARCHAR(200) NOT NULL,
					description TEXT,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at DATETIME NOT NULL,
					FOREIGN KEY (client_id) REFERENCES clients(id)
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create projects table")
			}

			return nil
		},
		Down: func(tx *sql.Tx) error {
			if _, err := tx.Exec("DROP TABLE IF EXISTS projects"); err != nil {
				return errors.Wrap(err, "failed to drop projects table")
			}
			if _, err := tx.Exec("DROP TABLE IF EXISTS clients"); err != nil {
				return errors.Wrap(err, "failed to drop clients table")
			}
			return nil
		},
	}
}
