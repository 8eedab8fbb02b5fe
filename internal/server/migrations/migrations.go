// Package migrations embeds the goose schema migrations, one directory per
// SQL dialect.
package migrations

import (
	"embed"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/dbx"
)

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS

// Dir returns the directory inside Migrations holding d's scripts.
func Dir(d dbx.Dialect) string {
	if d == dbx.DialectSQLite {
		return "sqlite"
	}
	return "postgres"
}
