// Package database opens the relational store and keeps its schema current.
package database

import (
	"fmt"
	"strings"

	"github.com/Paladins-Inn/delphi-council/internal/config"
	"github.com/Paladins-Inn/delphi-council/internal/logging"
	"github.com/Paladins-Inn/delphi-council/internal/missions"
	"github.com/Paladins-Inn/delphi-council/internal/operatives"
	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/reports"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const sqliteForeignKeys = "_pragma=foreign_keys(1)"

// Config selects the database driver and connection.
type Config struct {
	Driver   string
	DSN      string
	LogLevel string
}

// Models lists every persisted entity in dependency order.
func Models() []any {
	return []any{
		&persons.Person{},
		&persons.Role{},
		&persons.ConfirmationToken{},
		&persons.PasswordResetToken{},
		&missions.Dispatch{},
		&missions.SpecialMission{},
		&operatives.Operative{},
		&reports.MissionReport{},
		&reports.OperativeReport{},
		&reports.OperativeSpecialReport{},
		&migrationRecord{},
	}
}

// Open connects to the configured database and performs schema migrations.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	dialector, err := newDialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logging.NewGormLogger(logger, cfg.LogLevel),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Driver == config.DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", cfg.Driver))
	}
	return db, nil
}

// Migrate brings the schema up to date and applies pending data migrations.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}

func newDialector(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return sqlite.Open(withForeignKeys(cfg.DSN)), nil
	case config.DriverPostgres:
		return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// withForeignKeys enables foreign key enforcement, which sqlite leaves off by default.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + sqliteForeignKeys
}
