// Package migrations embeds SQL migration files into the binary.
//
// The state-history schema is applied at startup without the SQL files
// being present on the filesystem.
package migrations

import (
	"embed"

	"github.com/nerrad567/graylogic-ha/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
