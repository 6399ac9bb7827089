package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent/skillsmarket/pkg/db"
)

func tableNames(t *testing.T, conn *sqlx.DB) []string {
	t.Helper()
	var names []string
	require.NoError(t, conn.Select(&names, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`))
	return names
}

func TestAll_Ordered(t *testing.T) {
	all := All()
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Version, all[i].Version)
		assert.NotNil(t, all[i].Down, "migration %d needs a rollback", all[i].Version)
	}
}

func TestAll_ApplyAndRollback(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{DSN: filepath.Join(t.TempDir(), "index.db")})
	require.NoError(t, err)
	defer conn.Close()

	runner := db.NewMigrationRunner(conn)
	require.NoError(t, runner.Run(ctx, All()))

	assert.Equal(t, []string{
		"agents", "clients", "project_skills", "projects", "rules", "schema_migrations", "skills",
	}, tableNames(t, conn))

	for range All() {
		_, err := runner.Rollback(ctx, All())
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"schema_migrations"}, tableNames(t, conn))
	versions, err := runner.GetAppliedVersions(ctx)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestProjectSkillsUnique(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{DSN: filepath.Join(t.TempDir(), "index.db")})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, db.NewMigrationRunner(conn).Run(ctx, All()))

	stmts := []string{
		`INSERT INTO clients (id, name, created_at) VALUES ('c1', 'Acme', CURRENT_TIMESTAMP)`,
		`INSERT INTO projects (id, client_id, name, created_at) VALUES ('p1', 'c1', 'Portal', CURRENT_TIMESTAMP)`,
		`INSERT INTO skills (id, name, description, category, github_path, uploaded_by, uploaded_at)
			VALUES ('s1', 'foo', 'bar', 'general', 'skills/global/foo', 'dev', CURRENT_TIMESTAMP)`,
		`INSERT INTO project_skills (id, project_id, skill_id, added_at) VALUES ('ps1', 'p1', 's1', CURRENT_TIMESTAMP)`,
	}
	for _, stmt := range stmts {
		_, err := conn.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	_, err = conn.ExecContext(ctx,
		`INSERT INTO project_skills (id, project_id, skill_id, added_at) VALUES ('ps2', 'p1', 's1', CURRENT_TIMESTAMP)`)
	assert.Error(t, err)

	_, err = conn.ExecContext(ctx,
		`INSERT INTO projects (id, client_id, name, created_at) VALUES ('p2', 'missing', 'Orphan', CURRENT_TIMESTAMP)`)
	assert.Error(t, err, "foreign keys must be enforced")
}
