package postgres

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"barberbook/migrations"
)

const (
	migrationsTable     = "barberbook_migrations"
	migrationLocksTable = "barberbook_migration_locks"
)

// Migrate applies every embedded migration that has not been applied yet.
// It returns the names it applied.
func Migrate(ctx context.Context, db *bun.DB) ([]string, error) {
	return migrateFS(ctx, db, migrations.FS)
}

func loadMigrations(fsys fs.FS) (*migrate.Migrations, error) {
	ms := migrate.NewMigrations()
	if err := ms.Discover(fsys); err != nil {
		return nil, fmt.Errorf("discover migrations: %w", err)
	}
	return ms, nil
}

func newMigrator(db *bun.DB, ms *migrate.Migrations) *migrate.Migrator {
	return migrate.NewMigrator(db, ms,
		migrate.WithTableName(migrationsTable),
		migrate.WithLocksTableName(migrationLocksTable),
		migrate.WithMarkAppliedOnSuccess(true),
	)
}

func migrateFS(ctx context.Context, db *bun.DB, fsys fs.FS) (applied []string, err error) {
	ms, err := loadMigrations(fsys)
	if err != nil {
		return nil, err
	}
	m := newMigrator(db, ms)
	if err := m.Init(ctx); err != nil {
		return nil, storeErr(err)
	}
	if err := m.Lock(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if uerr := m.Unlock(ctx); uerr != nil && err == nil {
			err = fmt.Errorf("unlock migrations: %w", uerr)
		}
	}()

	group, err := m.Migrate(ctx)
	if group != nil {
		for _, mig := range group.Migrations {
			applied = append(applied, mig.String())
		}
	}
	if err != nil {
		// The group ends with the migration that failed.
		if len(applied) > 0 {
			applied = applied[:len(applied)-1]
		}
		return applied, fmt.Errorf("migrate: %w", err)
	}
	return applied, nil
}
