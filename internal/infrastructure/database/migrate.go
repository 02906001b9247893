package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	iofs "github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"go-directchat/internal/infrastructure/database/migrations"
)

// MigrationsTable records the applied schema version.
const MigrationsTable = "chat_schema_migrations"

// Migrate applies all pending migrations bundled in the migrations package.
// A dirty version is reported, not forced: it needs an operator to look at it.
func Migrate(pool *pgxpool.Pool, log zerolog.Logger) (err error) {
	if pool == nil {
		return errors.New("postgres: migrate: nil pool")
	}
	log = log.With().Str("component", "migrate").Logger()

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	// Closing this *sql.DB releases its connections back to the pool.
	db := stdlib.OpenDBFromPool(pool)
	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{
		MigrationsTable: MigrationsTable,
	})
	if err != nil {
		_ = source.Close()
		_ = db.Close()
		return fmt.Errorf("initialize pgx migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		_ = source.Close()
		_ = driver.Close()
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := migrator.Close()
		if err == nil {
			err = errors.Join(srcErr, dbErr)
		}
	}()

	version, dirty, err := migrator.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info().Msg("no migrations applied yet")
	case err != nil:
		return fmt.Errorf("read migration version: %w", err)
	case dirty:
		return fmt.Errorf("postgres: migration version %d is dirty", version)
	default:
		log.Info().Uint("version", version).Msg("current migration version")
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("no new migrations to apply")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	if v, _, verr := migrator.Version(); verr == nil {
		log.Info().Uint("version", v).Msg("migrations applied")
	}
	return nil
}
