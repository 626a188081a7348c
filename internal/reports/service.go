package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/missions"
	"github.com/Paladins-Inn/delphi-council/internal/operatives"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("reports")

var (
	errMissingDatabase = errors.New("reports: database handle is required")
	noOpLogger         = zap.NewNop()

	// ErrClearanceTooLow rejects operatives without the clearance a dispatch
	// or special mission requires.
	ErrClearanceTooLow = errors.New("operative clearance too low")
	// ErrOperativeRetired rejects retired operatives joining a mission.
	ErrOperativeRetired = errors.New("operative is retired")
)

const (
	opServiceNew        = "reports.service.new"
	opGet               = "reports.get"
	opList              = "reports.list"
	opSave              = "reports.save"
	opDelete            = "reports.delete"
	opAddOperative      = "reports.add_operative"
	opRemoveOperative   = "reports.remove_operative"
	opUpdateOperative   = "reports.update_operative"
	opOperativeHistory  = "reports.operative_history"
	opAddSpecial        = "reports.add_special_operative"
	opRemoveSpecial     = "reports.remove_special_operative"
	opListSpecial       = "reports.list_special_operatives"
	defaultReportsOrder = "mission_date DESC, created DESC"
)

// ServiceConfig describes the dependencies of the report service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider store.IDProvider
	Logger     *zap.Logger
}

// Service stores mission reports and operative participations.
type Service struct {
	db         *gorm.DB
	reports    *store.Repository[MissionReport, *MissionReport]
	entries    *store.Repository[OperativeReport, *OperativeReport]
	specials   *store.Repository[OperativeSpecialReport, *OperativeSpecialReport]
	dispatches *store.Repository[missions.Dispatch, *missions.Dispatch]
	missions   *store.Repository[missions.SpecialMission, *missions.SpecialMission]
	operatives *store.Repository[operatives.Operative, *operatives.Operative]
	logger     *zap.Logger
}

// NewService constructs the report service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, store.NewServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = store.NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	base := store.RepositoryConfig{Database: cfg.Database, IDProvider: ids, Clock: cfg.Clock}

	reportsConfig := base
	reportsConfig.Preloads = []string{"Dispatch", "GameMaster", "Operatives.Operative.Player"}
	reportsConfig.DefaultOrder = defaultReportsOrder
	reports, err := store.NewRepository[MissionReport](reportsConfig)
	if err != nil {
		return nil, store.NewServiceError(opServiceNew, "repository_failed", err)
	}

	entriesConfig := base
	entriesConfig.Preloads = []string{"Operative", "MissionReport.Dispatch", "MissionReport.GameMaster"}
	entries, err := store.NewRepository[OperativeReport](entriesConfig)
	if err != nil {
		return nil, store.NewServiceError(opServiceNew, "repository_failed", err)
	}

	specialsConfig := base
	specialsConfig.Preloads = []string{"Operative.Player", "SpecialMission"}
	specials, err := store.NewRepository[OperativeSpecialReport](specialsConfig)
	if err != nil {
		return nil, store.NewServiceError(opServiceNew, "repository_failed", err)
	}

	dispatches, err := store.NewRepository[missions.Dispatch](base)
	if err != nil {
		return nil, store.NewServiceError(opServiceNew, "repository_failed", err)
	}
	specialMissions, err := store.NewRepository[missions.SpecialMission](base)
	if err != nil {
		return nil, store.NewServiceError(opServiceNew, "repository_failed", err)
	}
	operativeRepository, err := store.NewRepository[operatives.Operative](base)
	if err != nil {
		return nil, store.NewServiceError(opServiceNew, "repository_failed", err)
	}

	return &Service{
		db:         cfg.Database,
		reports:    reports,
		entries:    entries,
		specials:   specials,
		dispatches: dispatches,
		missions:   specialMissions,
		operatives: operativeRepository,
		logger:     logger,
	}, nil
}

// Filter narrows mission report lists.
type Filter struct {
	DispatchID   string
	GameMasterID string
	Page         store.Page
}

// Get loads a mission report with dispatch, game master and operatives.
func (s *Service) Get(ctx context.Context, id string) (*MissionReport, error) {
	report, err := s.reports.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(opGet, err, zap.String("report_id", id))
	}
	return report, nil
}

// List returns one page of mission reports, newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]MissionReport, int64, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if filter.DispatchID != "" {
		conditions = append(conditions, "mission_id = ?")
		args = append(args, filter.DispatchID)
	}
	if filter.GameMasterID != "" {
		conditions = append(conditions, "gm_id = ?")
		args = append(args, filter.GameMasterID)
	}
	records, total, err := s.reports.FindWhere(ctx, filter.Page, strings.Join(conditions, " AND "), args...)
	if err != nil {
		return nil, 0, s.fail(opList, err)
	}
	return records, total, nil
}

// Count returns the number of stored mission reports.
func (s *Service) Count(ctx context.Context) (int64, error) {
	count, err := s.reports.Count(ctx)
	if err != nil {
		return 0, s.fail(opList, err)
	}
	return count, nil
}

// Save validates and stores the report itself. Participations are managed
// through AddOperative and RemoveOperative.
func (s *Service) Save(ctx context.Context, report *MissionReport) error {
	ctx, span := tracer.Start(ctx, opSave)
	defer span.End()

	if report == nil {
		return store.NewServiceError(opSave, "invalid", store.ErrNilEntity)
	}
	report.normalize()
	if err := report.Validate(); err != nil {
		return store.NewServiceError(opSave, "invalid", err)
	}
	if err := s.reports.Save(ctx, report); err != nil {
		return s.fail(opSave, err, zap.String("report_id", report.ID))
	}
	s.logger.Info("mission report saved",
		zap.String("report_id", report.ID),
		zap.String("dispatch_id", report.DispatchID),
		zap.String("game_master_id", report.GameMasterID))
	return nil
}

// Delete removes the report together with its participations.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("missionreport_id = ?", id).Delete(&OperativeReport{}).Error; err != nil {
			return store.Translate(err)
		}
		return s.reports.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return s.fail(opDelete, err, zap.String("report_id", id))
	}
	s.logger.Info("mission report deleted", zap.String("report_id", id))
	return nil
}

// AddOperative adds the operative to the report. The operative must be active
// and hold the clearance the dispatch requires.
func (s *Service) AddOperative(ctx context.Context, reportID, operativeID string) (*OperativeReport, error) {
	ctx, span := tracer.Start(ctx, opAddOperative)
	defer span.End()

	fields := []zap.Field{zap.String("report_id", reportID), zap.String("operative_id", operativeID)}
	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, s.fail(opAddOperative, err, fields...)
	}
	operative, err := s.operatives.FindByID(ctx, operativeID)
	if err != nil {
		return nil, s.fail(opAddOperative, err, fields...)
	}
	if operative.IsDeleted() {
		return nil, store.NewServiceError(opAddOperative, "retired", fmt.Errorf("%w: %w", store.ErrInvalid, ErrOperativeRetired))
	}
	dispatch := report.Dispatch
	if dispatch == nil {
		if dispatch, err = s.dispatches.FindByID(ctx, report.DispatchID); err != nil {
			return nil, s.fail(opAddOperative, err, fields...)
		}
	}
	if !operative.Clearance.Allows(dispatch.Clearance) {
		return nil, store.NewServiceError(opAddOperative, "clearance", fmt.Errorf("%w: %w: %s requires %s, operative holds %s",
			store.ErrInvalid, ErrClearanceTooLow, dispatch.Code, dispatch.Clearance, operative.Clearance))
	}

	entry := &OperativeReport{MissionReportID: report.ID, OperativeID: operative.ID}
	if err := s.entries.Save(ctx, entry); err != nil {
		return nil, s.fail(opAddOperative, err, fields...)
	}
	entry.Operative = operative
	entry.MissionReport = report
	s.logger.Info("operative added to mission report", fields...)
	return entry, nil
}

// RemoveOperative removes the operative from the report.
func (s *Service) RemoveOperative(ctx context.Context, reportID, operativeID string) error {
	fields := []zap.Field{zap.String("report_id", reportID), zap.String("operative_id", operativeID)}
	result := s.db.WithContext(ctx).
		Where("missionreport_id = ? AND operative_id = ?", reportID, operativeID).
		Delete(&OperativeReport{})
	if result.Error != nil {
		return s.fail(opRemoveOperative, store.Translate(result.Error), fields...)
	}
	if result.RowsAffected == 0 {
		return store.NewServiceError(opRemoveOperative, "not_found",
			fmt.Errorf("%w: operative %s not in report %s", store.ErrNotFound, operativeID, reportID))
	}
	s.logger.Info("operative removed from mission report", fields...)
	return nil
}

// UpdateOperativeReport stores the achievements and notes of one participation.
func (s *Service) UpdateOperativeReport(ctx context.Context, entry *OperativeReport) error {
	if entry == nil {
		return store.NewServiceError(opUpdateOperative, "invalid", store.ErrNilEntity)
	}
	entry.Achievements = strings.TrimSpace(entry.Achievements)
	entry.Notes = strings.TrimSpace(entry.Notes)
	if err := entry.Validate(); err != nil {
		return store.NewServiceError(opUpdateOperative, "invalid", err)
	}
	if entry.IsNew() {
		return store.NewServiceError(opUpdateOperative, "not_found", fmt.Errorf("%w: participation has no id", store.ErrNotFound))
	}
	if err := s.entries.Save(ctx, entry); err != nil {
		return s.fail(opUpdateOperative, err, zap.String("operative_report_id", entry.ID))
	}
	return nil
}

// GetOperativeReport loads one participation.
func (s *Service) GetOperativeReport(ctx context.Context, id string) (*OperativeReport, error) {
	entry, err := s.entries.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(opUpdateOperative, err, zap.String("operative_report_id", id))
	}
	return entry, nil
}

// ListForOperative returns the mission history of the operative, newest first.
func (s *Service) ListForOperative(ctx context.Context, operativeID string) ([]OperativeDispatchReport, error) {
	entries, _, err := s.entries.FindWhere(ctx, store.Page{}, "operative_id = ?", operativeID)
	if err != nil {
		return nil, s.fail(opOperativeHistory, err, zap.String("operative_id", operativeID))
	}
	history := make([]OperativeDispatchReport, 0, len(entries))
	for index := range entries {
		history = append(history, entries[index].DispatchView())
	}
	sortHistory(history)
	return history, nil
}

// AddOperativeToSpecialMission records the operative playing a special
// mission. The operative must be active and hold the mission's clearance.
func (s *Service) AddOperativeToSpecialMission(ctx context.Context, missionID, operativeID, notes string) (*OperativeSpecialReport, error) {
	ctx, span := tracer.Start(ctx, opAddSpecial)
	defer span.End()

	fields := []zap.Field{zap.String("special_mission_id", missionID), zap.String("operative_id", operativeID)}
	mission, err := s.missions.FindByID(ctx, missionID)
	if err != nil {
		return nil, s.fail(opAddSpecial, err, fields...)
	}
	operative, err := s.operatives.FindByID(ctx, operativeID)
	if err != nil {
		return nil, s.fail(opAddSpecial, err, fields...)
	}
	if operative.IsDeleted() {
		return nil, store.NewServiceError(opAddSpecial, "retired", fmt.Errorf("%w: %w", store.ErrInvalid, ErrOperativeRetired))
	}
	if !operative.Clearance.Allows(mission.Clearance) {
		return nil, store.NewServiceError(opAddSpecial, "clearance", fmt.Errorf("%w: %w: %s requires %s, operative holds %s",
			store.ErrInvalid, ErrClearanceTooLow, mission.Name, mission.Clearance, operative.Clearance))
	}
	entry := &OperativeSpecialReport{
		SpecialMissionID: mission.ID,
		OperativeID:      operativeID,
		Notes:            strings.TrimSpace(notes),
	}
	if err := checkText("notes", entry.Notes); err != nil {
		return nil, store.NewServiceError(opAddSpecial, "invalid", err)
	}
	if err := s.specials.Save(ctx, entry); err != nil {
		return nil, s.fail(opAddSpecial, err, fields...)
	}
	entry.Operative = operative
	entry.SpecialMission = mission
	s.logger.Info("operative added to special mission", fields...)
	return entry, nil
}

// RemoveOperativeFromSpecialMission removes the operative from the special mission.
func (s *Service) RemoveOperativeFromSpecialMission(ctx context.Context, missionID, operativeID string) error {
	fields := []zap.Field{zap.String("special_mission_id", missionID), zap.String("operative_id", operativeID)}
	result := s.db.WithContext(ctx).
		Where("specialmission_id = ? AND operative_id = ?", missionID, operativeID).
		Delete(&OperativeSpecialReport{})
	if result.Error != nil {
		return s.fail(opRemoveSpecial, store.Translate(result.Error), fields...)
	}
	if result.RowsAffected == 0 {
		return store.NewServiceError(opRemoveSpecial, "not_found",
			fmt.Errorf("%w: operative %s not in special mission %s", store.ErrNotFound, operativeID, missionID))
	}
	s.logger.Info("operative removed from special mission", fields...)
	return nil
}

// ListSpecialMissionOperatives returns the participations of a special mission.
func (s *Service) ListSpecialMissionOperatives(ctx context.Context, missionID string) ([]OperativeSpecialReport, error) {
	entries, _, err := s.specials.FindWhere(ctx, store.Page{Order: "created ASC"}, "specialmission_id = ?", missionID)
	if err != nil {
		return nil, s.fail(opListSpecial, err, zap.String("special_mission_id", missionID))
	}
	return entries, nil
}

// ListSpecialForOperative returns the special missions the operative played.
func (s *Service) ListSpecialForOperative(ctx context.Context, operativeID string) ([]OperativeSpecialReport, error) {
	entries, _, err := s.specials.FindWhere(ctx, store.Page{}, "operative_id = ?", operativeID)
	if err != nil {
		return nil, s.fail(opListSpecial, err, zap.String("operative_id", operativeID))
	}
	return entries, nil
}

func (s *Service) fail(operation string, err error, fields ...zap.Field) error {
	reason := store.Reason(err)
	if reason != "not_found" {
		attrs := append([]zap.Field{
			zap.String("operation", operation),
			zap.String("reason", reason),
			zap.Error(err),
		}, fields...)
		s.logger.Error("reports service error", attrs...)
	}
	return store.NewServiceError(operation, reason, err)
}
