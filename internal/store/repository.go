package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("store: database handle is required")
	errMissingIDProvider = errors.New("store: id provider is required")
)

// Page selects a window of a result set. A non-positive Limit means all rows.
type Page struct {
	Offset int
	Limit  int
	Order  string
}

// PageAt converts the zero-based page number and size used by list views and
// the API into a Page.
func PageAt(number, size int, order string) Page {
	if number < 0 {
		number = 0
	}
	if size <= 0 {
		return Page{Order: order}
	}
	return Page{Offset: number * size, Limit: size, Order: order}
}

// RepositoryConfig wires a Repository.
type RepositoryConfig struct {
	Database     *gorm.DB
	IDProvider   IDProvider
	Clock        func() time.Time
	Preloads     []string
	DefaultOrder string
}

// Repository is the generic CRUD access path for one entity type. PT is the
// pointer type of T and carries the embedded Base.
type Repository[T any, PT interface {
	*T
	Entity
}] struct {
	db           *gorm.DB
	ids          IDProvider
	clock        func() time.Time
	preloads     []string
	defaultOrder string
}

// NewRepository constructs a repository for T.
func NewRepository[T any, PT interface {
	*T
	Entity
}](cfg RepositoryConfig) (*Repository[T, PT], error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	order := strings.TrimSpace(cfg.DefaultOrder)
	if order == "" {
		order = "created DESC"
	}
	return &Repository[T, PT]{
		db:           cfg.Database,
		ids:          cfg.IDProvider,
		clock:        clock,
		preloads:     append([]string(nil), cfg.Preloads...),
		defaultOrder: order,
	}, nil
}

// WithTx returns a copy of the repository bound to tx.
func (r *Repository[T, PT]) WithTx(tx *gorm.DB) *Repository[T, PT] {
	clone := *r
	clone.db = tx
	return &clone
}

func (r *Repository[T, PT]) query(ctx context.Context) *gorm.DB {
	db := r.db.WithContext(ctx)
	for _, preload := range r.preloads {
		db = db.Preload(preload)
	}
	return db
}

// FindByID loads the record with the given id.
func (r *Repository[T, PT]) FindByID(ctx context.Context, id string) (PT, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	entity := PT(new(T))
	if err := r.query(ctx).Where("id = ?", id).Take(entity).Error; err != nil {
		return nil, Translate(err)
	}
	return entity, nil
}

// FindOne loads the first record matching the condition.
func (r *Repository[T, PT]) FindOne(ctx context.Context, condition string, args ...any) (PT, error) {
	entity := PT(new(T))
	if err := r.query(ctx).Where(condition, args...).Take(entity).Error; err != nil {
		return nil, Translate(err)
	}
	return entity, nil
}

// FindAll returns one page of all records and the total count.
func (r *Repository[T, PT]) FindAll(ctx context.Context, page Page) ([]T, int64, error) {
	return r.FindWhere(ctx, page, "")
}

// FindWhere returns one page of the records matching condition and the total
// number of matches. An empty condition matches everything.
func (r *Repository[T, PT]) FindWhere(ctx context.Context, page Page, condition string, args ...any) ([]T, int64, error) {
	var total int64
	counter := r.db.WithContext(ctx).Model(PT(new(T)))
	if condition != "" {
		counter = counter.Where(condition, args...)
	}
	if err := counter.Count(&total).Error; err != nil {
		return nil, 0, Translate(err)
	}

	order := page.Order
	if order == "" {
		order = r.defaultOrder
	}
	finder := r.query(ctx).Order(order)
	if condition != "" {
		finder = finder.Where(condition, args...)
	}
	if page.Limit > 0 {
		finder = finder.Offset(page.Offset).Limit(page.Limit)
	}
	var records []T
	if err := finder.Find(&records).Error; err != nil {
		return nil, 0, Translate(err)
	}
	return records, total, nil
}

// Count returns the number of stored records.
func (r *Repository[T, PT]) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(PT(new(T))).Count(&total).Error; err != nil {
		return 0, Translate(err)
	}
	return total, nil
}

// Save creates the record when it has no id or is unknown, and updates it
// otherwise. Updates are rejected with ErrConflict when the stored version
// differs from the entity's. Associations are never written. A failed save
// leaves the audit columns of entity as they were.
func (r *Repository[T, PT]) Save(ctx context.Context, entity PT) error {
	if entity == nil {
		return ErrNilEntity
	}
	record := entity.Record()
	previous := *record
	if err := r.save(ctx, entity); err != nil {
		*record = previous
		return err
	}
	return nil
}

func (r *Repository[T, PT]) save(ctx context.Context, entity PT) error {
	record := entity.Record()
	now := r.clock().UTC()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if record.ID == "" {
			id, err := r.ids.NewID()
			if err != nil {
				return err
			}
			record.ID = id
			return r.create(tx, entity, now)
		}

		var versions []int64
		if err := tx.Model(PT(new(T))).Where("id = ?", record.ID).Pluck("version", &versions).Error; err != nil {
			return Translate(err)
		}
		if len(versions) == 0 {
			return r.create(tx, entity, now)
		}
		if versions[0] != record.Version {
			return fmt.Errorf("%w: %s stored version %d, got %d", ErrConflict, record.ID, versions[0], record.Version)
		}

		record.Version++
		record.Revision++
		record.Modified = &now
		record.Revisioned = &now
		return Translate(tx.Omit(clause.Associations).Save(entity).Error)
	})
}

func (r *Repository[T, PT]) create(tx *gorm.DB, entity PT, now time.Time) error {
	record := entity.Record()
	record.Created = now
	record.Version = 0
	record.Revision = 1
	record.Revisioned = &now
	record.Modified = nil
	return Translate(tx.Omit(clause.Associations).Create(entity).Error)
}

// Delete removes the record with the given id.
func (r *Repository[T, PT]) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(PT(new(T)))
	if result.Error != nil {
		return Translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
