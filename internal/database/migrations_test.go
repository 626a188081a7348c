package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/operatives"
	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/Paladins-Inn/delphi-council/internal/torg"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsBackfillsOperativeClearance(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&persons.Person{}, &persons.Role{}, &operatives.Operative{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	player := persons.Person{
		Base:      store.Base{ID: "player-1", Created: time.Now()},
		Username:  "kira",
		Name:      "Kira",
		FirstName: "Kira",
		LastName:  "Lind",
		Email:     "kira@example.org",
		Status:    persons.NewSecurityStatus(time.Now()),
	}
	if err := database.Create(&player).Error; err != nil {
		testContext.Fatalf("failed to insert player: %v", err)
	}
	operative := operatives.Operative{
		Base:      store.Base{ID: "operative-1", Created: time.Now()},
		PlayerID:  player.ID,
		Name:      "Lind",
		FirstName: "Kira",
		LastName:  "Lind",
		Cosm:      torg.CosmCoreEarth,
		Clearance: torg.ClearanceAlpha,
		XP:        520,
	}
	if err := database.Create(&operative).Error; err != nil {
		testContext.Fatalf("failed to insert operative: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored operatives.Operative
	if err := database.Where("id = ?", operative.ID).Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload operative: %v", err)
	}
	if stored.Clearance != torg.ClearanceDelta {
		testContext.Fatalf("expected delta clearance, got %s", stored.Clearance)
	}

	var storedPlayer persons.Person
	if err := database.Where("id = ?", player.ID).Take(&storedPlayer).Error; err != nil {
		testContext.Fatalf("failed to reload player: %v", err)
	}
	if storedPlayer.Locale != "en" {
		testContext.Fatalf("expected default locale, got %q", storedPlayer.Locale)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationBackfillOperativeClearance).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestApplyMigrationsRunsOnce(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "once.db")
	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&persons.Person{}, &persons.Role{}, &operatives.Operative{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		if err := applyMigrations(database, nil); err != nil {
			testContext.Fatalf("failed to apply migrations on attempt %d: %v", attempt, err)
		}
	}
	var count int64
	if err := database.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count migrations: %v", err)
	}
	if count != 2 {
		testContext.Fatalf("expected two migration records, got %d", count)
	}
}

func TestOpenEnforcesForeignKeys(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "open.db")
	database, err := Open(Config{Driver: "sqlite", DSN: databasePath}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	orphan := operatives.Operative{
		Base:      store.Base{ID: "orphan", Created: time.Now()},
		PlayerID:  "nobody",
		Name:      "Orphan",
		FirstName: "No",
		LastName:  "Body",
		Cosm:      torg.CosmCoreEarth,
		Clearance: torg.ClearanceAlpha,
	}
	err = database.Create(&orphan).Error
	if err == nil {
		testContext.Fatalf("expected foreign key violation")
	}
	if translated := store.Translate(err); store.Reason(translated) != "referenced" {
		testContext.Fatalf("expected referenced reason, got %v", err)
	}
}

func TestOpenRejectsUnknownDriver(testContext *testing.T) {
	if _, err := Open(Config{Driver: "oracle", DSN: "x"}, nil); err == nil {
		testContext.Fatalf("expected unsupported driver error")
	}
}

func TestWithForeignKeys(testContext *testing.T) {
	cases := map[string]string{
		"data.db":                        "data.db?_pragma=foreign_keys(1)",
		"data.db?_pragma=busy_timeout(5)": "data.db?_pragma=busy_timeout(5)&_pragma=foreign_keys(1)",
		"data.db?_pragma=foreign_keys(0)": "data.db?_pragma=foreign_keys(0)",
	}
	for input, expected := range cases {
		if actual := withForeignKeys(input); actual != expected {
			testContext.Fatalf("withForeignKeys(%q) = %q, want %q", input, actual, expected)
		}
	}
}
