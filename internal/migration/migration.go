package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/voucherportal/internal/audit/domain"
	authdomain "github.com/smallbiznis/voucherportal/internal/auth/domain"
	redemptiondomain "github.com/smallbiznis/voucherportal/internal/redemption/domain"
	voucherdomain "github.com/smallbiznis/voucherportal/internal/voucher/domain"
	recorddomain "github.com/smallbiznis/voucherportal/internal/voucherrecord/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded SQL migrations to a postgres database.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists the tables created by AutoMigrate on non-postgres databases.
func Models() []any {
	return []any{
		&authdomain.User{},
		&authdomain.Session{},
		&voucherdomain.Voucher{},
		&redemptiondomain.VoucherRedemption{},
		&recorddomain.VoucherRecord{},
		&auditdomain.AuditLog{},
	}
}

// Apply brings the schema up to date for the configured database type.
func Apply(conn *gorm.DB, dbType string) error {
	if dbType == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}

	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
