// Package migrations ships the schema migration SQL inside the binary
// so a deployment needs no loose files. Importing the package (blank
// import from cmd/hearth) registers the files with the database layer.
package migrations

import (
	"embed"

	"github.com/hearth-home/hearth-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	// The embedded files sit at the root of this FS.
	database.MigrationsDir = "."
}
