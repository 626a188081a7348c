// Package store provides the audited entity base and a generic gorm repository.
package store

import (
	"time"

	"github.com/google/uuid"
)

// Base carries the identity and audit columns every persisted record shares.
// Version guards against saving stale data; Revision counts saved revisions.
type Base struct {
	ID         string     `gorm:"column:id;primaryKey;size:36"`
	Version    int64      `gorm:"column:version;not null;default:0"`
	Created    time.Time  `gorm:"column:created;not null"`
	Modified   *time.Time `gorm:"column:modified"`
	Revision   int64      `gorm:"column:revid;not null;default:0"`
	Revisioned *time.Time `gorm:"column:revisioned"`
}

// Record exposes the base so generic code can reach the audit columns.
func (b *Base) Record() *Base {
	return b
}

// IsNew reports whether the record was never saved.
func (b *Base) IsNew() bool {
	return b.ID == ""
}

// SameIdentity compares two records by id.
func (b *Base) SameIdentity(other *Base) bool {
	if b == nil || other == nil {
		return false
	}
	return b.ID != "" && b.ID == other.ID
}

// Entity is implemented by every struct embedding Base.
type Entity interface {
	Record() *Base
}

// IDProvider issues identifiers for new records.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}
