package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// For returns the migration filesystem for a database driver
func For(driver string) (fs.FS, error) {
	switch driver {
	case "sqlite", "postgres":
		return fs.Sub(files, driver)
	}
	return nil, fmt.Errorf("no migrations for driver: %s", driver)
}
