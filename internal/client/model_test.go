package client

import (
	"testing"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/missions"
	"github.com/Paladins-Inn/delphi-council/internal/operatives"
	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/reports"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/Paladins-Inn/delphi-council/internal/torg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var (
	created  = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	modified = time.Date(2025, 3, 2, 11, 30, 0, 0, time.UTC)
)

func auditBase(id string) store.Base {
	return store.Base{ID: id, Version: 3, Created: created, Modified: &modified, Revision: 2, Revisioned: &modified}
}

func TestDispatchCopyPreservesFields(t *testing.T) {
	original := &missions.Dispatch{
		Base:                  auditBase("d-1"),
		Kind:                  missions.KindOperation,
		Language:              torg.LanguageGerman,
		Code:                  "OP-7",
		Name:                  "Nightfall",
		Image:                 "nightfall.png",
		Description:           "The lights go out.",
		Payment:               300,
		XP:                    8,
		ObjectivesSuccess:     "survive",
		ObjectivesGood:        "rescue",
		ObjectivesOutstanding: "capture",
		Clearance:             torg.ClearanceBeta,
		Publication:           "Delphi Files 2",
	}

	dto := DispatchFrom(original)
	assert.Equal(t, "d-1", dto.ID)
	assert.Equal(t, int64(3), dto.Version)

	restored := dto.Entity()
	assert.Equal(t, original, restored)

	mission := MissionFrom(original)
	assert.Equal(t, *dto, mission.Dispatch)
	assert.Nil(t, DispatchFrom(nil))
}

func TestOperativeCopyPreservesFields(t *testing.T) {
	retired := modified
	original := &operatives.Operative{
		Base:      auditBase("o-1"),
		PlayerID:  "p-1",
		Code:      "SK-1",
		Name:      "Quin",
		FirstName: "Quin",
		LastName:  "Sebastian",
		Cosm:      torg.CosmNileEmpire,
		Clearance: torg.ClearanceGamma,
		XP:        230,
		Money:     1500,
		Deleted:   &retired,
	}

	dto := OperativeFrom(original)
	assert.Empty(t, dto.Player)
	assert.Empty(t, dto.Avatar)
	assert.Equal(t, &retired, dto.Deleted)

	restored := dto.Entity()
	assert.Nil(t, restored.Deleted, "retirement is never taken from a request body")
	expected := *original
	expected.Deleted = nil
	assert.Equal(t, &expected, restored)
}

func TestMissionReportCopyPreservesFields(t *testing.T) {
	original := &reports.MissionReport{
		Base:          auditBase("r-1"),
		DispatchID:    "d-1",
		Dispatch:      &missions.Dispatch{Base: auditBase("d-1"), Code: "DC-1", Name: "Alpha"},
		GameMasterID:  "gm-1",
		GameMaster:    &persons.Person{Base: auditBase("gm-1"), Name: "Game Master"},
		Date:          datatypes.Date(time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)),
		ObjectivesMet: torg.Good,
		Achievements:  "saved the day",
		Notes:         "long night",
		Operatives: []reports.OperativeReport{
			{Base: auditBase("e-1"), MissionReportID: "r-1", OperativeID: "o-1", Notes: "brave"},
		},
	}

	dto := MissionReportFrom(original)
	assert.Equal(t, "DC-1", dto.Code)
	assert.Equal(t, "Game Master", dto.GameMaster)
	assert.Equal(t, "2025-02-14", dto.Date)
	require.Len(t, dto.Operatives, 1)
	assert.Equal(t, "brave", dto.Operatives[0].Notes)

	restored, err := dto.Entity()
	require.NoError(t, err)
	assert.Equal(t, original.Base, restored.Base)
	assert.Equal(t, original.DispatchID, restored.DispatchID)
	assert.Equal(t, original.GameMasterID, restored.GameMasterID)
	assert.Equal(t, original.PlayedOn(), restored.PlayedOn())
	assert.Equal(t, original.ObjectivesMet, restored.ObjectivesMet)
	assert.Equal(t, original.Achievements, restored.Achievements)
	assert.Equal(t, original.Notes, restored.Notes)
}

func TestMissionReportRejectsMalformedDate(t *testing.T) {
	dto := &MissionReport{Date: "14.02.2025"}
	_, err := dto.Entity()
	assert.ErrorIs(t, err, store.ErrInvalid)
}

func TestOperativeReportCopyPreservesFields(t *testing.T) {
	original := &reports.OperativeReport{
		Base:            auditBase("e-1"),
		MissionReportID: "r-1",
		OperativeID:     "o-1",
		Achievements:    "found the relic",
		Notes:           "hurt",
	}
	dto := OperativeReportFrom(original)
	restored := &reports.OperativeReport{}
	dto.CopyTo(restored)
	assert.Equal(t, original, restored)
}

func TestOperativeReportOmitsNestedOperatives(t *testing.T) {
	report := &reports.MissionReport{
		Base:       auditBase("r-1"),
		Operatives: []reports.OperativeReport{{Base: auditBase("e-1")}},
	}
	entry := &reports.OperativeReport{Base: auditBase("e-1"), MissionReportID: "r-1", MissionReport: report}

	dto := OperativeReportFrom(entry)
	require.NotNil(t, dto.Report)
	assert.Empty(t, dto.Report.Operatives)
	assert.Len(t, report.Operatives, 1)
}

func TestSpecialMissionCopyPreservesFields(t *testing.T) {
	gm := "gm-1"
	original := &missions.SpecialMission{
		Base:          auditBase("s-1"),
		Code:          "0195-code",
		Name:          "Convention Run",
		Image:         "con.png",
		Clearance:     torg.ClearanceAlpha,
		Description:   "one shot",
		Payment:       150,
		XP:            4,
		Publication:   "none",
		GameMasterID:  &gm,
		Date:          datatypes.Date(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)),
		ObjectivesMet: torg.Outstanding,
		Achievements:  "all of them",
		Notes:         "great table",
	}

	dto := SpecialMissionFrom(original)
	assert.Equal(t, "gm-1", dto.GameMasterID)

	restored, err := dto.Entity()
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestSpecialMissionWithoutGameMaster(t *testing.T) {
	dto := &SpecialMission{Name: "Open Table", Date: "2025-05-01", GameMasterID: "  "}
	restored, err := dto.Entity()
	require.NoError(t, err)
	assert.Nil(t, restored.GameMasterID)
}

func TestPersonHidesDeletedData(t *testing.T) {
	deleted := modified
	person := &persons.Person{
		Base:      auditBase("p-1"),
		Username:  "quin",
		Name:      "Quin Sebastian",
		FirstName: "Quin",
		LastName:  "Sebastian",
		Email:     "quin@example.com",
		Roles:     []persons.Role{{PersonID: "p-1", Name: persons.RoleGM}, {PersonID: "p-1", Name: persons.RolePerson}},
	}

	dto := PersonFrom(person)
	assert.Equal(t, "Quin Sebastian", dto.Name)
	assert.Equal(t, []string{"GM", "PERSON"}, dto.Roles)
	assert.Equal(t, "quin@example.com", dto.Email)

	person.Status.Deleted = &deleted
	dto = PersonFrom(person)
	assert.Equal(t, persons.DeletedName, dto.Name)
	assert.Equal(t, persons.DeletedName, dto.FirstName)
	assert.Empty(t, dto.Email)
}

func TestHistoryViewsCopyReadModels(t *testing.T) {
	report := &reports.MissionReport{
		Base:          auditBase("r-1"),
		Dispatch:      &missions.Dispatch{Code: "DC-1", Name: "Alpha"},
		GameMaster:    &persons.Person{Name: "Game Master"},
		Date:          datatypes.Date(time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)),
		ObjectivesMet: torg.Success,
	}
	entry := &reports.OperativeReport{Base: auditBase("e-1"), MissionReport: report, Notes: "n", Achievements: "a"}

	history := OperativeDispatchReportFrom(entry.DispatchView())
	assert.Equal(t, "e-1", history.ID)
	assert.Equal(t, "DC-1: Alpha (Game Master, 2025-02-14)", history.Report.Name)
	assert.Equal(t, "2025-02-14", history.Report.Date)
	assert.Equal(t, "a", history.Achievements)

	missionView := OperativeMissionReportFrom(entry.MissionView())
	assert.Equal(t, "r-1", missionView.Mission.ID)
	assert.Equal(t, "n", missionView.Notes)
}
