// Package migrations holds the versioned schema of the expense store.
//
// Migrations are Go functions registered with goose. Each runs in its own
// transaction, and goose records applied versions in goose_db_version.
package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// step is one schema version
type step struct {
	version int64
	name    string
	up      []string
	down    []string
}

var steps = []step{
	{version: 1, name: "core_schema", up: coreSchemaUp, down: coreSchemaDown},
	{version: 2, name: "import_runs", up: importRunsUp, down: importRunsDown},
	{version: 3, name: "match_events", up: matchEventsUp, down: matchEventsDown},
}

// All returns every migration in version order.
func All() []*goose.Migration {
	out := make([]*goose.Migration, 0, len(steps))
	for _, s := range steps {
		out = append(out, goose.NewGoMigration(
			s.version,
			&goose.GoFunc{RunTx: execAll(s.name, s.up)},
			&goose.GoFunc{RunTx: execAll(s.name, s.down)},
		))
	}
	return out
}

// Count is the number of schema versions.
func Count() int {
	return len(steps)
}

func execAll(name string, queries []string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, query := range queries {
			if _, err := tx.ExecContext(ctx, query); err != nil {
				return fmt.Errorf("migration %s: %w", name, err)
			}
		}
		return nil
	}
}
