// Package reports records who played which mission when, and how it ended.
package reports

import (
	"strings"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/missions"
	"github.com/Paladins-Inn/delphi-council/internal/operatives"
	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/Paladins-Inn/delphi-council/internal/torg"
	"gorm.io/datatypes"
)

const maxTextLength = 4000

// MissionReport is one game master's run of a dispatch with a group.
type MissionReport struct {
	store.Base
	DispatchID    string             `gorm:"column:mission_id;size:36;not null;index"`
	Dispatch      *missions.Dispatch `gorm:"foreignKey:DispatchID;constraint:OnDelete:RESTRICT"`
	GameMasterID  string             `gorm:"column:gm_id;size:36;not null;index"`
	GameMaster    *persons.Person    `gorm:"foreignKey:GameMasterID;constraint:OnDelete:RESTRICT"`
	Date          datatypes.Date     `gorm:"column:mission_date;not null;index"`
	ObjectivesMet torg.SuccessState  `gorm:"column:objectives_met;size:20;not null"`
	Achievements  string             `gorm:"column:achievements;size:4000"`
	Notes         string             `gorm:"column:notes;size:4000"`
	Operatives    []OperativeReport  `gorm:"foreignKey:MissionReportID;constraint:OnDelete:CASCADE"`
}

// TableName exposes the table backing mission reports.
func (MissionReport) TableName() string {
	return "mission_reports"
}

// NewMissionReport returns a successful report of the dispatch run by the
// game master on the given day.
func NewMissionReport(dispatchID, gameMasterID string, day time.Time) *MissionReport {
	return &MissionReport{
		DispatchID:    dispatchID,
		GameMasterID:  gameMasterID,
		Date:          datatypes.Date(day),
		ObjectivesMet: torg.Success,
	}
}

// PlayedOn returns the mission date.
func (r *MissionReport) PlayedOn() time.Time {
	return time.Time(r.Date)
}

// GameMasterName is the display name of the game master.
func (r *MissionReport) GameMasterName() string {
	if r.GameMaster == nil {
		return ""
	}
	return r.GameMaster.DisplayName()
}

// Name is "<dispatch> (<gm>, <date>)", or a generic label without dispatch.
func (r *MissionReport) Name() string {
	if r.Dispatch == nil {
		return "Mission Dispatch #" + r.ID
	}
	return r.Dispatch.ShortName() + " (" + r.GameMasterName() + ", " + r.PlayedOn().Format(time.DateOnly) + ")"
}

// HasOperative reports whether the operative is part of the report.
func (r *MissionReport) HasOperative(operativeID string) bool {
	for _, entry := range r.Operatives {
		if entry.OperativeID == operativeID {
			return true
		}
	}
	return false
}

func (r *MissionReport) normalize() {
	r.Achievements = strings.TrimSpace(r.Achievements)
	r.Notes = strings.TrimSpace(r.Notes)
	if r.ObjectivesMet == "" {
		r.ObjectivesMet = torg.Success
	}
}

// Validate checks the declared column constraints.
func (r *MissionReport) Validate() error {
	if strings.TrimSpace(r.DispatchID) == "" {
		return store.Invalid("mission", "is required")
	}
	if strings.TrimSpace(r.GameMasterID) == "" {
		return store.Invalid("gameMaster", "is required")
	}
	if r.PlayedOn().IsZero() {
		return store.Invalid("date", "is required")
	}
	if !r.ObjectivesMet.Valid() {
		return store.Invalid("objectivesMet", "unknown outcome %q", r.ObjectivesMet)
	}
	if err := checkText("achievements", r.Achievements); err != nil {
		return err
	}
	return checkText("notes", r.Notes)
}

// OperativeReport records one operative taking part in a mission report.
type OperativeReport struct {
	store.Base
	MissionReportID string                `gorm:"column:missionreport_id;size:36;not null;uniqueIndex:operative_reports_uk,priority:1"`
	MissionReport   *MissionReport        `gorm:"foreignKey:MissionReportID"`
	OperativeID     string                `gorm:"column:operative_id;size:36;not null;uniqueIndex:operative_reports_uk,priority:2;index"`
	Operative       *operatives.Operative `gorm:"foreignKey:OperativeID;constraint:OnDelete:RESTRICT"`
	Achievements    string                `gorm:"column:achievements;size:4000"`
	Notes           string                `gorm:"column:notes;size:4000"`
}

// TableName exposes the table backing operative reports.
func (OperativeReport) TableName() string {
	return "operative_reports"
}

// OperativeName is the display name of the operative.
func (r *OperativeReport) OperativeName() string {
	if r.Operative == nil {
		return ""
	}
	return r.Operative.DisplayName()
}

// Validate checks the declared column constraints.
func (r *OperativeReport) Validate() error {
	if r.MissionReportID == "" {
		return store.Invalid("report", "is required")
	}
	if r.OperativeID == "" {
		return store.Invalid("operative", "is required")
	}
	if err := checkText("achievements", r.Achievements); err != nil {
		return err
	}
	return checkText("notes", r.Notes)
}

// OperativeSpecialReport records one operative taking part in a special mission.
type OperativeSpecialReport struct {
	store.Base
	SpecialMissionID string                   `gorm:"column:specialmission_id;size:36;not null;uniqueIndex:operative_special_reports_uk,priority:1"`
	SpecialMission   *missions.SpecialMission `gorm:"foreignKey:SpecialMissionID;constraint:OnDelete:CASCADE"`
	OperativeID      string                   `gorm:"column:operative_id;size:36;not null;uniqueIndex:operative_special_reports_uk,priority:2;index"`
	Operative        *operatives.Operative    `gorm:"foreignKey:OperativeID;constraint:OnDelete:RESTRICT"`
	Notes            string                   `gorm:"column:notes;size:4000"`
}

// TableName exposes the table backing special mission participations.
func (OperativeSpecialReport) TableName() string {
	return "operative_special_reports"
}

// OperativeName is the display name of the operative.
func (r *OperativeSpecialReport) OperativeName() string {
	if r.Operative == nil {
		return ""
	}
	return r.Operative.DisplayName()
}

func checkText(field, value string) error {
	if len([]rune(value)) > maxTextLength {
		return store.Invalid(field, "must have at most %d characters", maxTextLength)
	}
	return nil
}
