package missions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/Paladins-Inn/delphi-council/internal/torg"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("missions")

var (
	errMissingDatabase = errors.New("missions: database handle is required")
	noOpLogger         = zap.NewNop()
)

const (
	opServiceNew           = "missions.service.new"
	opGetDispatch          = "missions.get_dispatch"
	opListDispatches       = "missions.list_dispatches"
	opSaveDispatch         = "missions.save_dispatch"
	opDeleteDispatch       = "missions.delete_dispatch"
	opGetSpecialMission    = "missions.get_special_mission"
	opListSpecialMissions  = "missions.list_special_missions"
	opSaveSpecialMission   = "missions.save_special_mission"
	opDeleteSpecialMission = "missions.delete_special_mission"
)

// ServiceConfig describes the dependencies of the mission service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider store.IDProvider
	Logger     *zap.Logger
}

// Service stores dispatches and special missions.
type Service struct {
	clock      func() time.Time
	ids        store.IDProvider
	dispatches *store.Repository[Dispatch, *Dispatch]
	specials   *store.Repository[SpecialMission, *SpecialMission]
	logger     *zap.Logger
}

// NewService constructs the mission service.
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
	dispatches, err := store.NewRepository[Dispatch](store.RepositoryConfig{
		Database:     cfg.Database,
		IDProvider:   ids,
		Clock:        clock,
		DefaultOrder: "code ASC",
	})
	if err != nil {
		return nil, store.NewServiceError(opServiceNew, "repository_failed", err)
	}
	specials, err := store.NewRepository[SpecialMission](store.RepositoryConfig{
		Database:     cfg.Database,
		IDProvider:   ids,
		Clock:        clock,
		Preloads:     []string{"GameMaster"},
		DefaultOrder: "mission_date DESC, title ASC",
	})
	if err != nil {
		return nil, store.NewServiceError(opServiceNew, "repository_failed", err)
	}
	return &Service{
		clock:      clock,
		ids:        ids,
		dispatches: dispatches,
		specials:   specials,
		logger:     logger,
	}, nil
}

// DispatchFilter narrows dispatch lists. Zero values select everything.
type DispatchFilter struct {
	Kind Kind
	// Clearance hides dispatches requiring more than the given clearance.
	Clearance torg.Clearance
	Page      store.Page
}

// GetDispatch loads one dispatch.
func (s *Service) GetDispatch(ctx context.Context, id string) (*Dispatch, error) {
	dispatch, err := s.dispatches.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(opGetDispatch, err, zap.String("dispatch_id", id))
	}
	return dispatch, nil
}

// FindDispatchByCode loads a dispatch by its unique code.
func (s *Service) FindDispatchByCode(ctx context.Context, code string) (*Dispatch, error) {
	dispatch, err := s.dispatches.FindOne(ctx, "code = ?", strings.TrimSpace(code))
	if err != nil {
		return nil, s.fail(opGetDispatch, err, zap.String("code", code))
	}
	return dispatch, nil
}

// ListDispatches returns one page of dispatches and the number of matches.
func (s *Service) ListDispatches(ctx context.Context, filter DispatchFilter) ([]Dispatch, int64, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Clearance != "" {
		visible := make([]torg.Clearance, 0)
		for _, level := range torg.Clearances() {
			if filter.Clearance.Allows(level) {
				visible = append(visible, level)
			}
		}
		conditions = append(conditions, "clearance IN ?")
		args = append(args, visible)
	}
	records, total, err := s.dispatches.FindWhere(ctx, filter.Page, strings.Join(conditions, " AND "), args...)
	if err != nil {
		return nil, 0, s.fail(opListDispatches, err)
	}
	return records, total, nil
}

// CountDispatches returns the number of stored dispatches.
func (s *Service) CountDispatches(ctx context.Context) (int64, error) {
	count, err := s.dispatches.Count(ctx)
	if err != nil {
		return 0, s.fail(opListDispatches, err)
	}
	return count, nil
}

// SaveDispatch validates and stores the dispatch.
func (s *Service) SaveDispatch(ctx context.Context, dispatch *Dispatch) error {
	ctx, span := tracer.Start(ctx, opSaveDispatch)
	defer span.End()

	if dispatch == nil {
		return store.NewServiceError(opSaveDispatch, "invalid", store.ErrNilEntity)
	}
	dispatch.normalize()
	if err := dispatch.Validate(); err != nil {
		return store.NewServiceError(opSaveDispatch, "invalid", err)
	}
	if err := s.dispatches.Save(ctx, dispatch); err != nil {
		return s.fail(opSaveDispatch, err, zap.String("dispatch_id", dispatch.ID), zap.String("code", dispatch.Code))
	}
	s.logger.Info("dispatch saved", zap.String("dispatch_id", dispatch.ID), zap.String("code", dispatch.Code))
	return nil
}

// DeleteDispatch removes a dispatch. Dispatches with reports cannot be removed.
func (s *Service) DeleteDispatch(ctx context.Context, id string) error {
	if err := s.dispatches.Delete(ctx, id); err != nil {
		return s.fail(opDeleteDispatch, err, zap.String("dispatch_id", id))
	}
	s.logger.Info("dispatch deleted", zap.String("dispatch_id", id))
	return nil
}

// SpecialMissionFilter narrows special mission lists.
type SpecialMissionFilter struct {
	GameMasterID string
	Page         store.Page
}

// GetSpecialMission loads one special mission with its game master.
func (s *Service) GetSpecialMission(ctx context.Context, id string) (*SpecialMission, error) {
	mission, err := s.specials.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(opGetSpecialMission, err, zap.String("special_mission_id", id))
	}
	return mission, nil
}

// ListSpecialMissions returns one page of special missions.
func (s *Service) ListSpecialMissions(ctx context.Context, filter SpecialMissionFilter) ([]SpecialMission, int64, error) {
	condition := ""
	var args []any
	if filter.GameMasterID != "" {
		condition = "game_master_id = ?"
		args = append(args, filter.GameMasterID)
	}
	records, total, err := s.specials.FindWhere(ctx, filter.Page, condition, args...)
	if err != nil {
		return nil, 0, s.fail(opListSpecialMissions, err)
	}
	return records, total, nil
}

// CountSpecialMissions returns the number of stored special missions.
func (s *Service) CountSpecialMissions(ctx context.Context) (int64, error) {
	count, err := s.specials.Count(ctx)
	if err != nil {
		return 0, s.fail(opListSpecialMissions, err)
	}
	return count, nil
}

// SaveSpecialMission validates and stores the special mission. New special
// missions receive a random code.
func (s *Service) SaveSpecialMission(ctx context.Context, mission *SpecialMission) error {
	ctx, span := tracer.Start(ctx, opSaveSpecialMission)
	defer span.End()

	if mission == nil {
		return store.NewServiceError(opSaveSpecialMission, "invalid", store.ErrNilEntity)
	}
	mission.normalize()
	if strings.TrimSpace(mission.Code) == "" {
		code, err := s.ids.NewID()
		if err != nil {
			return store.NewServiceError(opSaveSpecialMission, "id_generation_failed", err)
		}
		mission.Code = code
	}
	if err := mission.Validate(); err != nil {
		return store.NewServiceError(opSaveSpecialMission, "invalid", err)
	}
	if err := s.specials.Save(ctx, mission); err != nil {
		return s.fail(opSaveSpecialMission, err, zap.String("special_mission_id", mission.ID))
	}
	s.logger.Info("special mission saved", zap.String("special_mission_id", mission.ID), zap.String("code", mission.Code))
	return nil
}

// DeleteSpecialMission removes a special mission and its operative reports.
func (s *Service) DeleteSpecialMission(ctx context.Context, id string) error {
	if err := s.specials.Delete(ctx, id); err != nil {
		return s.fail(opDeleteSpecialMission, err, zap.String("special_mission_id", id))
	}
	s.logger.Info("special mission deleted", zap.String("special_mission_id", id))
	return nil
}

func (s *Service) fail(operation string, err error, fields ...zap.Field) error {
	reason := store.Reason(err)
	if reason != "not_found" {
		attrs := append([]zap.Field{
			zap.String("operation", operation),
			zap.String("reason", reason),
			zap.Error(err),
		}, fields...)
		s.logger.Error("missions service error", attrs...)
	}
	return store.NewServiceError(operation, reason, err)
}
