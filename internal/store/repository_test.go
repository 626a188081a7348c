package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type testArtifact struct {
	Base
	Code  string `gorm:"column:code;size:20;not null;uniqueIndex"`
	Title string `gorm:"column:title;size:100"`
}

func (testArtifact) TableName() string {
	return "test_artifacts"
}

type sequenceProvider struct {
	next int
}

func (p *sequenceProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("artifact-%03d", p.next), nil
}

func newTestRepository(t *testing.T) (*Repository[testArtifact, *testArtifact], *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&testArtifact{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repository, err := NewRepository[testArtifact](RepositoryConfig{
		Database:     db,
		IDProvider:   &sequenceProvider{},
		Clock:        func() time.Time { return fixed },
		DefaultOrder: "code ASC",
	})
	if err != nil {
		t.Fatalf("failed to build repository: %v", err)
	}
	return repository, db
}

func TestRepositorySaveAssignsIdentityAndAudit(t *testing.T) {
	repository, _ := newTestRepository(t)
	ctx := context.Background()

	artifact := &testArtifact{Code: "MAGIC-01", Title: "Eternity Shard"}
	if err := repository.Save(ctx, artifact); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if artifact.ID != "artifact-001" {
		t.Fatalf("unexpected id %q", artifact.ID)
	}
	if artifact.Revision != 1 || artifact.Revisioned == nil {
		t.Fatalf("expected first revision, got %d", artifact.Revision)
	}
	if artifact.Created.IsZero() {
		t.Fatal("expected created timestamp")
	}

	loaded, err := repository.FindByID(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("unexpected find error: %v", err)
	}
	if loaded.Title != "Eternity Shard" || loaded.Version != 0 {
		t.Fatalf("unexpected loaded artifact %+v", loaded)
	}
}

func TestRepositorySaveRejectsStaleVersion(t *testing.T) {
	repository, _ := newTestRepository(t)
	ctx := context.Background()

	artifact := &testArtifact{Code: "MAGIC-02"}
	if err := repository.Save(ctx, artifact); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	first, _ := repository.FindByID(ctx, artifact.ID)
	second, _ := repository.FindByID(ctx, artifact.ID)

	first.Title = "first"
	if err := repository.Save(ctx, first); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if first.Version != 1 || first.Modified == nil {
		t.Fatalf("expected bumped version and modified, got %d", first.Version)
	}

	second.Title = "second"
	err := repository.Save(ctx, second)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if second.Version != 0 {
		t.Fatalf("expected version restored after conflict, got %d", second.Version)
	}
}

func TestRepositoryDuplicateCode(t *testing.T) {
	repository, _ := newTestRepository(t)
	ctx := context.Background()

	if err := repository.Save(ctx, &testArtifact{Code: "DUP"}); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	duplicate := &testArtifact{Code: "DUP"}
	err := repository.Save(ctx, duplicate)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if !duplicate.IsNew() || duplicate.Revision != 0 || duplicate.Revisioned != nil {
		t.Fatalf("expected failed create to leave the record unsaved, got %+v", duplicate.Base)
	}

	duplicate.Code = "UNIQUE"
	if err := repository.Save(ctx, duplicate); err != nil {
		t.Fatalf("unexpected save error after fixing the code: %v", err)
	}
	if duplicate.IsNew() {
		t.Fatal("expected the corrected record to be created")
	}
}

func TestRepositoryPagingAndCount(t *testing.T) {
	repository, _ := newTestRepository(t)
	ctx := context.Background()

	for _, code := range []string{"C", "A", "E", "B", "D"} {
		if err := repository.Save(ctx, &testArtifact{Code: code}); err != nil {
			t.Fatalf("unexpected save error: %v", err)
		}
	}

	records, total, err := repository.FindAll(ctx, PageAt(1, 2, ""))
	if err != nil {
		t.Fatalf("unexpected find error: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(records) != 2 || records[0].Code != "C" || records[1].Code != "D" {
		t.Fatalf("unexpected page %+v", records)
	}

	matching, matchTotal, err := repository.FindWhere(ctx, Page{}, "code IN ?", []string{"A", "B"})
	if err != nil {
		t.Fatalf("unexpected filter error: %v", err)
	}
	if matchTotal != 2 || len(matching) != 2 {
		t.Fatalf("unexpected filtered result %d/%d", len(matching), matchTotal)
	}

	count, err := repository.Count(ctx)
	if err != nil || count != 5 {
		t.Fatalf("unexpected count %d, %v", count, err)
	}
}

func TestRepositoryDeleteUnknown(t *testing.T) {
	repository, _ := newTestRepository(t)
	ctx := context.Background()

	if err := repository.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := repository.FindByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on lookup, got %v", err)
	}
}

func TestServiceErrorCode(t *testing.T) {
	err := NewServiceError("missions.save", Reason(ErrDuplicate), ErrDuplicate)
	if ErrorCode(err) != "missions.save.duplicate" {
		t.Fatalf("unexpected code %q", ErrorCode(err))
	}
	if !errors.Is(err, ErrDuplicate) {
		t.Fatal("expected wrapped sentinel")
	}
	if Reason(Invalid("code", "too short")) != "invalid" {
		t.Fatal("expected validation errors to classify as invalid")
	}
}
