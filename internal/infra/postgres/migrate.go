package postgres

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLogger adapts zerolog to migrate.Logger.
type migrationLogger struct {
	log zerolog.Logger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.log.Info().Msgf(format, v...)
}

func (l migrationLogger) Verbose() bool {
	return l.log.GetLevel() <= zerolog.DebugLevel
}

// Migrate applies all pending embedded migrations.
func Migrate(db *sqlx.DB, log zerolog.Logger) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("Migrate: open embedded migrations: %w", err)
	}

	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("Migrate: postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("Migrate: create migrate instance: %w", err)
	}
	m.Log = migrationLogger{log: log}

	before, _, _ := m.Version()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("Migrate: up: %w", err)
	}
	after, dirty, _ := m.Version()

	log.Info().Uint("from_version", before).Uint("to_version", after).Bool("dirty", dirty).Msg("Database migrations applied")
	return nil
}
