package database

import (
	"errors"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/operatives"
	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/torg"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillOperativeClearance = "2026-10-01_backfill_operative_clearance"
	migrationDefaultPersonLocale        = "2026-10-02_default_person_locale"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillOperativeClearance, apply: backfillOperativeClearance},
		{name: migrationDefaultPersonLocale, apply: defaultPersonLocale},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillOperativeClearance derives every operative's clearance from its XP.
// Tiers are ascending, so the last matching update wins.
func backfillOperativeClearance(db *gorm.DB) error {
	for _, level := range torg.Clearances() {
		if level == torg.ClearanceAny {
			continue
		}
		err := db.Model(&operatives.Operative{}).
			Where("xp >= ?", level.MinXP()).
			Update("clearance", level).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func defaultPersonLocale(db *gorm.DB) error {
	return db.Model(&persons.Person{}).
		Where("locale = '' OR locale IS NULL").
		Update("locale", string(torg.LanguageEnglish)).Error
}
