// Package migrations contains the index schema.
// Migrations use Rails-style timestamp versioning (YYYYMMDDHHmmss).
package migrations

import (
	"github.com/emergent/skillsmarket/pkg/db"
)

// All returns all registered migrations in the correct order.
// New migrations should be added to this list.
func All() []db.Migration {
	return []db.Migration{
		Migration20261001090000CreateClientsAndProjects(),
		Migration20261001090100CreateSkills(),
		Migration20261001090200CreateAgentsAndRules(),
		Migration20261001090300AddLookupIndexes(),
	}
}
