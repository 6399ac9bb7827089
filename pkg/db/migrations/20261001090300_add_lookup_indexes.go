package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/db"
)

// Migration20261001090300AddLookupIndexes adds indexes for list filters and joins.
func Migration20261001090300AddLookupIndexes() db.Migration {
	indexes := []struct {
		name  string
		table string
		ddl   string
	}{
		{"idx_skills_name", "skills", "CREATE INDEX idx_skills_name ON skills(name)"},
		{"idx_skills_category", "skills", "CREATE INDEX idx_skills_category ON skills(category)"},
		{"idx_projects_client_id", "projects", "CREATE INDEX idx_projects_client_id ON projects(client_id)"},
	}

	return db.Migration{
		Version:     20261001090300,
		Description: "Add lookup indexes",
		Up: func(tx *sql.Tx) error {
			for _, idx := range indexes {
				if _, err := tx.Exec(idx.ddl); err != nil {
					return errors.Wrapf(err, "failed to create %s", idx.name)
				}
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			for _, idx := range indexes {
				// MySQL requires the table name; SQLite rejects it.
				if _, err := tx.Exec("DROP INDEX " + idx.name); err != nil {
					if _, err2 := tx.Exec("DROP INDEX " + idx.name + " ON " + idx.table); err2 != nil {
						return errors.Wrapf(err, "failed to drop %s", idx.name)
					}
				}
			}
			return nil
		},
	}
}
