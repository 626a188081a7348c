package operatives

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/store"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("operatives")

var (
	errMissingDatabase = errors.New("operatives: database handle is required")
	noOpLogger         = zap.NewNop()
)

const (
	opServiceNew   = "operatives.service.new"
	opGet          = "operatives.get"
	opList         = "operatives.list"
	opSave         = "operatives.save"
	opDelete       = "operatives.delete"
	opMarkDeleted  = "operatives.mark_deleted"
	opSetImage     = "operatives.set_image"
	maxImageBytes  = 2 << 20
	imageAvatar    = "avatar"
	imageToken     = "token"
	contentTypePNG = "image/png"
)

var allowedImageTypes = map[string]bool{
	contentTypePNG: true,
	"image/jpeg":   true,
	"image/gif":    true,
	"image/webp":   true,
}

// ServiceConfig describes the dependencies of the operative service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider store.IDProvider
	Logger     *zap.Logger
}

// Service stores operatives.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	operatives *store.Repository[Operative, *Operative]
	logger     *zap.Logger
}

// NewService constructs the operative service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, store.NewServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = store.NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	repository, err := store.NewRepository[Operative](store.RepositoryConfig{
		Database:     cfg.Database,
		IDProvider:   ids,
		Clock:        clock,
		Preloads:     []string{"Player"},
		DefaultOrder: "last_name ASC, first_name ASC",
	})
	if err != nil {
		return nil, store.NewServiceError(opServiceNew, "repository_failed", err)
	}
	return &Service{db: cfg.Database, clock: clock, operatives: repository, logger: logger}, nil
}

// Filter narrows operative lists.
type Filter struct {
	PlayerID       string
	IncludeDeleted bool
	Page           store.Page
}

// Get loads one operative with its player.
func (s *Service) Get(ctx context.Context, id string) (*Operative, error) {
	operative, err := s.operatives.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(opGet, err, zap.String("operative_id", id))
	}
	return operative, nil
}

// List returns one page of operatives.
func (s *Service) List(ctx context.Context, filter Filter) ([]Operative, int64, error) {
	condition := "deleted IS NULL"
	if filter.IncludeDeleted {
		condition = "1 = 1"
	}
	var args []any
	if filter.PlayerID != "" {
		condition += " AND player_id = ?"
		args = append(args, filter.PlayerID)
	}
	records, total, err := s.operatives.FindWhere(ctx, filter.Page, condition, args...)
	if err != nil {
		return nil, 0, s.fail(opList, err)
	}
	return records, total, nil
}

// Count returns the number of stored operatives including retired ones.
func (s *Service) Count(ctx context.Context) (int64, error) {
	count, err := s.operatives.Count(ctx)
	if err != nil {
		return 0, s.fail(opList, err)
	}
	return count, nil
}

// Save validates and stores the operative. The clearance always follows the XP.
func (s *Service) Save(ctx context.Context, operative *Operative) error {
	ctx, span := tracer.Start(ctx, opSave)
	defer span.End()

	if operative == nil {
		return store.NewServiceError(opSave, "invalid", store.ErrNilEntity)
	}
	operative.normalize()
	if err := operative.Validate(); err != nil {
		return store.NewServiceError(opSave, "invalid", err)
	}
	if err := s.operatives.Save(ctx, operative); err != nil {
		return s.fail(opSave, err, zap.String("operative_id", operative.ID))
	}
	s.logger.Info("operative saved",
		zap.String("operative_id", operative.ID),
		zap.String("clearance", operative.Clearance.String()))
	return nil
}

// MarkDeleted retires the operative; it stays referenced by old reports.
func (s *Service) MarkDeleted(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&Operative{}).Where("id = ?", id).Update("deleted", s.clock().UTC())
	if result.Error != nil {
		return s.fail(opMarkDeleted, store.Translate(result.Error), zap.String("operative_id", id))
	}
	if result.RowsAffected == 0 {
		return store.NewServiceError(opMarkDeleted, "not_found", fmt.Errorf("%w: operative %s", store.ErrNotFound, id))
	}
	s.logger.Info("operative retired", zap.String("operative_id", id))
	return nil
}

// Delete removes the operative. Operatives with reports cannot be removed.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.operatives.Delete(ctx, id); err != nil {
		return s.fail(opDelete, err, zap.String("operative_id", id))
	}
	s.logger.Info("operative deleted", zap.String("operative_id", id))
	return nil
}

// SetAvatar stores the avatar image of the operative.
func (s *Service) SetAvatar(ctx context.Context, id string, image []byte) error {
	return s.setImage(ctx, id, imageAvatar, image)
}

// SetToken stores the map token image of the operative.
func (s *Service) SetToken(ctx context.Context, id string, image []byte) error {
	return s.setImage(ctx, id, imageToken, image)
}

func (s *Service) setImage(ctx context.Context, id, column string, image []byte) error {
	if err := ValidateImage(image); err != nil {
		return store.NewServiceError(opSetImage, "invalid", err)
	}
	result := s.db.WithContext(ctx).Model(&Operative{}).Where("id = ?", id).Update(column, image)
	if result.Error != nil {
		return s.fail(opSetImage, store.Translate(result.Error), zap.String("operative_id", id))
	}
	if result.RowsAffected == 0 {
		return store.NewServiceError(opSetImage, "not_found", fmt.Errorf("%w: operative %s", store.ErrNotFound, id))
	}
	s.logger.Info("operative image stored", zap.String("operative_id", id), zap.String("image", column))
	return nil
}

// ValidateImage accepts PNG, JPEG, GIF and WebP images up to 2 MiB.
func ValidateImage(image []byte) error {
	if len(image) == 0 {
		return store.Invalid("image", "is required")
	}
	if len(image) > maxImageBytes {
		return store.Invalid("image", "must not exceed %d bytes", maxImageBytes)
	}
	if contentType := http.DetectContentType(image); !allowedImageTypes[contentType] {
		return store.Invalid("image", "unsupported content type %s", contentType)
	}
	return nil
}

// ImageContentType sniffs the content type of a stored image.
func ImageContentType(image []byte) string {
	if len(image) == 0 {
		return contentTypePNG
	}
	return http.DetectContentType(image)
}

func (s *Service) fail(operation string, err error, fields ...zap.Field) error {
	reason := store.Reason(err)
	if reason != "not_found" {
		attrs := append([]zap.Field{
			zap.String("operation", operation),
			zap.String("reason", reason),
			zap.Error(err),
		}, fields...)
		s.logger.Error("operatives service error", attrs...)
	}
	return store.NewServiceError(operation, reason, err)
}
