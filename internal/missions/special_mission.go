package missions

import (
	"strings"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/Paladins-Inn/delphi-council/internal/torg"
	"gorm.io/datatypes"
)

// SpecialMission is a table mission run by a game master outside the
// published dispatches.
type SpecialMission struct {
	store.Base
	Code          string            `gorm:"column:code;size:40;not null;uniqueIndex"`
	Name          string            `gorm:"column:title;size:100;not null;uniqueIndex"`
	Image         string            `gorm:"column:image;size:100"`
	Clearance     torg.Clearance    `gorm:"column:clearance;size:20;not null"`
	Description   string            `gorm:"column:description;size:4000"`
	Payment       int               `gorm:"column:payment;not null"`
	XP            int               `gorm:"column:xp;not null"`
	Publication   string            `gorm:"column:publication;size:100"`
	GameMasterID  *string           `gorm:"column:game_master_id;size:36;index"`
	GameMaster    *persons.Person   `gorm:"foreignKey:GameMasterID;constraint:OnDelete:SET NULL"`
	Date          datatypes.Date    `gorm:"column:mission_date;not null"`
	ObjectivesMet torg.SuccessState `gorm:"column:objectives_met;size:20;not null"`
	Achievements  string            `gorm:"column:achievements;size:4000"`
	Notes         string            `gorm:"column:notes;size:4000"`
}

// TableName exposes the table backing special missions.
func (SpecialMission) TableName() string {
	return "special_missions"
}

// NewSpecialMission returns a special mission with the form defaults.
func NewSpecialMission(now time.Time) *SpecialMission {
	return &SpecialMission{
		Clearance:     torg.ClearanceAlpha,
		Payment:       DefaultPayment,
		XP:            DefaultXP,
		Date:          datatypes.Date(now),
		ObjectivesMet: torg.Success,
	}
}

// PlayedOn returns the mission date.
func (m *SpecialMission) PlayedOn() time.Time {
	return time.Time(m.Date)
}

// GameMasterName is the display name of the game master, "" when unset.
func (m *SpecialMission) GameMasterName() string {
	if m.GameMaster == nil {
		return ""
	}
	return m.GameMaster.DisplayName()
}

func (m *SpecialMission) normalize() {
	m.Name = strings.TrimSpace(m.Name)
	m.Image = strings.TrimSpace(m.Image)
	m.Publication = strings.TrimSpace(m.Publication)
	if m.Clearance == "" {
		m.Clearance = torg.ClearanceAlpha
	}
	if m.ObjectivesMet == "" {
		m.ObjectivesMet = torg.Success
	}
	if m.GameMasterID != nil && strings.TrimSpace(*m.GameMasterID) == "" {
		m.GameMasterID = nil
	}
}

// Validate checks the declared column constraints.
func (m *SpecialMission) Validate() error {
	if err := checkLength("name", m.Name, 1, 100); err != nil {
		return err
	}
	if err := checkLength("description", m.Description, 0, 4000); err != nil {
		return err
	}
	if err := checkLength("image", m.Image, 0, 100); err != nil {
		return err
	}
	if err := checkLength("achievements", m.Achievements, 0, 4000); err != nil {
		return err
	}
	if err := checkLength("notes", m.Notes, 0, 4000); err != nil {
		return err
	}
	if m.Payment < 0 {
		return store.Invalid("payment", "must not be negative")
	}
	if m.XP < 0 {
		return store.Invalid("xp", "must not be negative")
	}
	if !m.Clearance.Valid() {
		return store.Invalid("clearance", "unknown clearance %q", m.Clearance)
	}
	if !m.ObjectivesMet.Valid() {
		return store.Invalid("objectivesMet", "unknown success state %q", m.ObjectivesMet)
	}
	if time.Time(m.Date).IsZero() {
		return store.Invalid("date", "is required")
	}
	return nil
}
