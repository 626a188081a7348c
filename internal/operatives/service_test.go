package operatives

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/Paladins-Inn/delphi-council/internal/torg"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "operatives.db")), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&persons.Person{}, &persons.Role{}, &Operative{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock:    func() time.Time { return time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, db
}

func seedPlayer(t *testing.T, db *gorm.DB, id, username string) persons.Person {
	t.Helper()
	player := persons.Person{
		Base:      store.Base{ID: id, Created: time.Now()},
		Username:  username,
		Name:      "Player " + username,
		FirstName: "Player",
		LastName:  username,
		Email:     username + "@example.org",
		Locale:    "en",
		Status:    persons.NewSecurityStatus(time.Now()),
	}
	if err := db.Create(&player).Error; err != nil {
		t.Fatalf("failed to seed player: %v", err)
	}
	return player
}

func sampleOperative(playerID, first, last string, xp int) *Operative {
	operative := NewOperative(playerID)
	operative.FirstName = first
	operative.LastName = last
	operative.SetXP(xp)
	return operative
}

func TestSetXPDerivesClearance(t *testing.T) {
	operative := NewOperative("p-1")
	if operative.Clearance != torg.ClearanceAlpha || operative.Cosm != torg.CosmCoreEarth {
		t.Fatalf("unexpected defaults %+v", operative)
	}
	operative.SetXP(210)
	if operative.Clearance != torg.ClearanceGamma {
		t.Fatalf("expected gamma clearance, got %s", operative.Clearance)
	}
}

func TestDisplayNameMasksRetiredOperatives(t *testing.T) {
	operative := sampleOperative("p-1", "Tal", "Vendris", 0)
	operative.normalize()
	if operative.DisplayName() != "Tal Vendris" {
		t.Fatalf("unexpected display name %q", operative.DisplayName())
	}
	now := time.Now()
	operative.Deleted = &now
	if operative.DisplayName() != persons.DeletedName {
		t.Fatalf("expected masked name, got %q", operative.DisplayName())
	}
}

func TestSaveRecomputesClearanceAndLoadsPlayer(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()
	player := seedPlayer(t, db, "player-1", "ayla")

	operative := sampleOperative(player.ID, " Ayla ", "Stormborn", 0)
	operative.XP = 60
	operative.Clearance = torg.ClearanceOmega
	if err := service.Save(ctx, operative); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if operative.Clearance != torg.ClearanceBeta {
		t.Fatalf("expected clearance derived from xp, got %s", operative.Clearance)
	}

	loaded, err := service.Get(ctx, operative.ID)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if loaded.FirstName != "Ayla" || loaded.PlayerName() != "Player ayla" {
		t.Fatalf("unexpected loaded operative %+v", loaded)
	}
}

func TestSaveRejectsInvalidAndDuplicateOperatives(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()
	player := seedPlayer(t, db, "player-2", "bren")

	missing := sampleOperative(player.ID, "", "Nameless", 0)
	var validation *store.ValidationError
	if err := service.Save(ctx, missing); !errors.As(err, &validation) || validation.Field != "firstName" {
		t.Fatalf("expected first name validation error, got %v", err)
	}

	if err := service.Save(ctx, sampleOperative(player.ID, "Bren", "Okafor", 0)); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	err := service.Save(ctx, sampleOperative(player.ID, "Bren", "Okafor", 10))
	if store.ErrorCode(err) != "operatives.save.duplicate" {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestListFiltersByPlayerAndRetirement(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()
	first := seedPlayer(t, db, "player-3", "cato")
	second := seedPlayer(t, db, "player-4", "dara")

	keep := sampleOperative(first.ID, "Cato", "Ashdown", 0)
	retire := sampleOperative(first.ID, "Cato", "Blackwell", 0)
	other := sampleOperative(second.ID, "Dara", "Quell", 0)
	for _, operative := range []*Operative{keep, retire, other} {
		if err := service.Save(ctx, operative); err != nil {
			t.Fatalf("unexpected save error: %v", err)
		}
	}
	if err := service.MarkDeleted(ctx, retire.ID); err != nil {
		t.Fatalf("unexpected retire error: %v", err)
	}

	active, total, err := service.List(ctx, Filter{PlayerID: first.ID})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if total != 1 || active[0].ID != keep.ID {
		t.Fatalf("unexpected active operatives %+v", active)
	}

	all, total, err := service.List(ctx, Filter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if total != 3 || all[0].LastName != "Ashdown" || all[2].LastName != "Quell" {
		t.Fatalf("unexpected ordering %+v", all)
	}

	if err := service.MarkDeleted(ctx, "missing"); store.ErrorCode(err) != "operatives.mark_deleted.not_found" {
		t.Fatalf("expected not found code, got %v", err)
	}
}

func TestSetAvatarValidatesImages(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()
	player := seedPlayer(t, db, "player-5", "eris")
	operative := sampleOperative(player.ID, "Eris", "Marr", 0)
	if err := service.Save(ctx, operative); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	if err := service.SetAvatar(ctx, operative.ID, []byte("plain text")); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected invalid image error, got %v", err)
	}
	if err := service.SetAvatar(ctx, operative.ID, pngHeader); err != nil {
		t.Fatalf("unexpected avatar error: %v", err)
	}
	if err := service.SetToken(ctx, operative.ID, pngHeader); err != nil {
		t.Fatalf("unexpected token error: %v", err)
	}

	loaded, err := service.Get(ctx, operative.ID)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if loaded.AvatarURL() != "/operative/"+operative.ID+"/avatar" || loaded.TokenURL() == "" {
		t.Fatalf("expected image urls, got %q %q", loaded.AvatarURL(), loaded.TokenURL())
	}
	if ImageContentType(loaded.Avatar) != "image/png" {
		t.Fatalf("unexpected content type %s", ImageContentType(loaded.Avatar))
	}
}

func TestDeleteOperative(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()
	player := seedPlayer(t, db, "player-6", "fenn")
	operative := sampleOperative(player.ID, "Fenn", "Harrow", 0)
	if err := service.Save(ctx, operative); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if err := service.Delete(ctx, operative.ID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	count, err := service.Count(ctx)
	if err != nil || count != 0 {
		t.Fatalf("expected no operatives, got %d, %v", count, err)
	}
}
