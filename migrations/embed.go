// Package migrations embeds the SQL schema of the state tree database.
package migrations

import (
	"embed"

	"github.com/nerrad567/klf200-bridge/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.RegisterMigrations(files, ".")
}
