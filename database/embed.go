// Package database embed dosyası — migration SQL dosyalarını binary'ye gömer.
// Deploy edilen binary yanında migration dosyalarına ihtiyaç duymaz.
package database

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var embeddedFiles embed.FS

// EmbeddedMigrations, migration SQL dosyalarını kökünde içeren fs.FS.
// New'a doğrudan verilir; testler de aynı FS ile in-memory DB kurar.
var EmbeddedMigrations fs.FS

func init() {
	sub, err := fs.Sub(embeddedFiles, "migrations")
	if err != nil {
		panic("database: failed to sub migrations fs: " + err.Error())
	}
	EmbeddedMigrations = sub
}
