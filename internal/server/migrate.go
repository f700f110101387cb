package server

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"

	"github.com/clearbridge/oppgraph/internal/util"
	"github.com/clearbridge/oppgraph/pkg/logger"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations brings the schema up to date before the server starts
// accepting requests.
func RunMigrations(databaseURL string) {
	path := util.GetEnvString("MIGRATIONS_PATH", "migrations")

	m, err := migrate.New("file://"+path, databaseURL)
	if err != nil {
		logger.Fatal("Failed to open migrations", "path", path, "err", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("Failed to run migrations", "err", err)
	}
}
