// Package client holds the JSON representation of the stored records and a
// typed HTTP client for the /api/v1 endpoints.
package client

import (
	"strings"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/missions"
	"github.com/Paladins-Inn/delphi-council/internal/operatives"
	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/reports"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/Paladins-Inn/delphi-council/internal/torg"
	"gorm.io/datatypes"
)

// Persisted carries the identity and audit columns of a record.
type Persisted struct {
	ID         string     `json:"id,omitempty"`
	Version    int64      `json:"version"`
	Created    time.Time  `json:"created"`
	Modified   *time.Time `json:"modified,omitempty"`
	Revision   int64      `json:"revid"`
	Revisioned *time.Time `json:"revisioned,omitempty"`
}

func persistedFrom(base store.Base) Persisted {
	return Persisted{
		ID:         base.ID,
		Version:    base.Version,
		Created:    base.Created,
		Modified:   copyTime(base.Modified),
		Revision:   base.Revision,
		Revisioned: copyTime(base.Revisioned),
	}
}

func (p Persisted) copyTo(base *store.Base) {
	base.ID = p.ID
	base.Version = p.Version
	base.Created = p.Created
	base.Modified = copyTime(p.Modified)
	base.Revision = p.Revision
	base.Revisioned = copyTime(p.Revisioned)
}

// Dispatch is a mission or operation definition.
type Dispatch struct {
	Persisted
	Kind                  missions.Kind  `json:"kind"`
	Language              torg.Language  `json:"language"`
	Code                  string         `json:"code"`
	Name                  string         `json:"name"`
	Image                 string         `json:"image,omitempty"`
	Clearance             torg.Clearance `json:"clearance"`
	Description           string         `json:"description"`
	XP                    int            `json:"xp"`
	Payment               int            `json:"payment"`
	ObjectivesSuccess     string         `json:"objectivesSuccess,omitempty"`
	ObjectivesGood        string         `json:"objectivesGood,omitempty"`
	ObjectivesOutstanding string         `json:"objectivesOutstanding,omitempty"`
	Publication           string         `json:"publication,omitempty"`
}

// Mission is a dispatch of kind mission.
type Mission struct {
	Dispatch
}

// Operation is a dispatch of kind operation.
type Operation struct {
	Dispatch
}

// DispatchFrom copies the stored dispatch.
func DispatchFrom(entity *missions.Dispatch) *Dispatch {
	if entity == nil {
		return nil
	}
	return &Dispatch{
		Persisted:             persistedFrom(entity.Base),
		Kind:                  entity.Kind,
		Language:              entity.Language,
		Code:                  entity.Code,
		Name:                  entity.Name,
		Image:                 entity.Image,
		Clearance:             entity.Clearance,
		Description:           entity.Description,
		XP:                    entity.XP,
		Payment:               entity.Payment,
		ObjectivesSuccess:     entity.ObjectivesSuccess,
		ObjectivesGood:        entity.ObjectivesGood,
		ObjectivesOutstanding: entity.ObjectivesOutstanding,
		Publication:           entity.Publication,
	}
}

// MissionFrom copies the stored dispatch as mission.
func MissionFrom(entity *missions.Dispatch) *Mission {
	if entity == nil {
		return nil
	}
	return &Mission{Dispatch: *DispatchFrom(entity)}
}

// OperationFrom copies the stored dispatch as operation.
func OperationFrom(entity *missions.Dispatch) *Operation {
	if entity == nil {
		return nil
	}
	return &Operation{Dispatch: *DispatchFrom(entity)}
}

// CopyTo writes the dispatch into the stored entity.
func (d *Dispatch) CopyTo(entity *missions.Dispatch) {
	d.Persisted.copyTo(&entity.Base)
	entity.Kind = d.Kind
	entity.Language = d.Language
	entity.Code = d.Code
	entity.Name = d.Name
	entity.Image = d.Image
	entity.Clearance = d.Clearance
	entity.Description = d.Description
	entity.XP = d.XP
	entity.Payment = d.Payment
	entity.ObjectivesSuccess = d.ObjectivesSuccess
	entity.ObjectivesGood = d.ObjectivesGood
	entity.ObjectivesOutstanding = d.ObjectivesOutstanding
	entity.Publication = d.Publication
}

// Entity returns a new stored dispatch with the values of d.
func (d *Dispatch) Entity() *missions.Dispatch {
	entity := &missions.Dispatch{}
	d.CopyTo(entity)
	return entity
}

// Operative is a player's character. Images are exposed as URLs and are
// uploaded through their own endpoints.
type Operative struct {
	Persisted
	PlayerID  string         `json:"playerId"`
	Player    string         `json:"player,omitempty"`
	Code      string         `json:"code,omitempty"`
	Name      string         `json:"name"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Cosm      torg.Cosm      `json:"cosm"`
	Clearance torg.Clearance `json:"clearance"`
	XP        int            `json:"xp"`
	Money     int            `json:"money"`
	Avatar    string         `json:"avatar,omitempty"`
	Token     string         `json:"token,omitempty"`
	Deleted   *time.Time     `json:"deleted,omitempty"`
}

// OperativeFrom copies the stored operative.
func OperativeFrom(entity *operatives.Operative) *Operative {
	if entity == nil {
		return nil
	}
	return &Operative{
		Persisted: persistedFrom(entity.Base),
		PlayerID:  entity.PlayerID,
		Player:    entity.PlayerName(),
		Code:      entity.Code,
		Name:      entity.Name,
		FirstName: entity.FirstName,
		LastName:  entity.LastName,
		Cosm:      entity.Cosm,
		Clearance: entity.Clearance,
		XP:        entity.XP,
		Money:     entity.Money,
		Avatar:    entity.AvatarURL(),
		Token:     entity.TokenURL(),
		Deleted:   copyTime(entity.Deleted),
	}
}

// CopyTo writes the operative into the stored entity. Images, the player
// relation and the retirement date are left untouched.
func (o *Operative) CopyTo(entity *operatives.Operative) {
	o.Persisted.copyTo(&entity.Base)
	entity.PlayerID = o.PlayerID
	entity.Code = o.Code
	entity.Name = o.Name
	entity.FirstName = o.FirstName
	entity.LastName = o.LastName
	entity.Cosm = o.Cosm
	entity.Clearance = o.Clearance
	entity.XP = o.XP
	entity.Money = o.Money
}

// Entity returns a new stored operative with the values of o.
func (o *Operative) Entity() *operatives.Operative {
	entity := &operatives.Operative{}
	o.CopyTo(entity)
	return entity
}

// MissionReport is a game master's report of a played dispatch.
type MissionReport struct {
	Persisted
	Code          string            `json:"code,omitempty"`
	MissionID     string            `json:"missionId"`
	Mission       *Dispatch         `json:"mission,omitempty"`
	GameMasterID  string            `json:"gameMasterId"`
	GameMaster    string            `json:"gameMaster,omitempty"`
	Date          string            `json:"date"`
	ObjectivesMet torg.SuccessState `json:"objectivesMet"`
	Achievements  string            `json:"achievements,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	Operatives    []OperativeReport `json:"operatives,omitempty"`
}

// MissionReportFrom copies the stored report with its operatives.
func MissionReportFrom(entity *reports.MissionReport) *MissionReport {
	if entity == nil {
		return nil
	}
	report := &MissionReport{
		Persisted:     persistedFrom(entity.Base),
		MissionID:     entity.DispatchID,
		Mission:       DispatchFrom(entity.Dispatch),
		GameMasterID:  entity.GameMasterID,
		GameMaster:    entity.GameMasterName(),
		Date:          formatDate(entity.Date),
		ObjectivesMet: entity.ObjectivesMet,
		Achievements:  entity.Achievements,
		Notes:         entity.Notes,
	}
	if entity.Dispatch != nil {
		report.Code = entity.Dispatch.Code
	}
	for index := range entity.Operatives {
		report.Operatives = append(report.Operatives, *OperativeReportFrom(&entity.Operatives[index]))
	}
	return report
}

// CopyTo writes the report into the stored entity. Operatives are managed
// through their own endpoints and are not copied.
func (r *MissionReport) CopyTo(entity *reports.MissionReport) error {
	date, err := parseDate(r.Date)
	if err != nil {
		return err
	}
	r.Persisted.copyTo(&entity.Base)
	entity.DispatchID = r.MissionID
	entity.GameMasterID = r.GameMasterID
	entity.Date = date
	entity.ObjectivesMet = r.ObjectivesMet
	entity.Achievements = r.Achievements
	entity.Notes = r.Notes
	return nil
}

// Entity returns a new stored report with the values of r.
func (r *MissionReport) Entity() (*reports.MissionReport, error) {
	entity := &reports.MissionReport{}
	if err := r.CopyTo(entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// DispatchReport is the flattened report shown in histories.
type DispatchReport struct {
	ID            string            `json:"id"`
	Code          string            `json:"code,omitempty"`
	Name          string            `json:"name"`
	Dispatch      *Dispatch         `json:"dispatch,omitempty"`
	GameMaster    string            `json:"gameMaster,omitempty"`
	Date          string            `json:"date"`
	ObjectivesMet torg.SuccessState `json:"objectivesMet"`
	Achievements  string            `json:"achievements,omitempty"`
	Notes         string            `json:"notes,omitempty"`
}

// DispatchReportFrom copies the read model.
func DispatchReportFrom(view reports.DispatchReport) DispatchReport {
	return DispatchReport{
		ID:            view.ID,
		Code:          view.Code,
		Name:          view.Name(),
		Dispatch:      DispatchFrom(view.Dispatch),
		GameMaster:    view.GameMaster,
		Date:          view.Date.Format(time.DateOnly),
		ObjectivesMet: view.ObjectivesMet,
		Achievements:  view.Achievements,
		Notes:         view.Notes,
	}
}

// OperativeReport is one operative's part in a mission report.
type OperativeReport struct {
	Persisted
	ReportID     string         `json:"reportId"`
	Report       *MissionReport `json:"report,omitempty"`
	OperativeID  string         `json:"operativeId"`
	Operative    *Operative     `json:"operative,omitempty"`
	Achievements string         `json:"achievements,omitempty"`
	Notes        string         `json:"notes,omitempty"`
}

// OperativeReportFrom copies the stored participation. The mission report is
// copied without its operatives.
func OperativeReportFrom(entity *reports.OperativeReport) *OperativeReport {
	if entity == nil {
		return nil
	}
	entry := &OperativeReport{
		Persisted:    persistedFrom(entity.Base),
		ReportID:     entity.MissionReportID,
		OperativeID:  entity.OperativeID,
		Operative:    OperativeFrom(entity.Operative),
		Achievements: entity.Achievements,
		Notes:        entity.Notes,
	}
	if entity.MissionReport != nil {
		shallow := *entity.MissionReport
		shallow.Operatives = nil
		entry.Report = MissionReportFrom(&shallow)
	}
	return entry
}

// CopyTo writes the participation into the stored entity.
func (r *OperativeReport) CopyTo(entity *reports.OperativeReport) {
	r.Persisted.copyTo(&entity.Base)
	entity.MissionReportID = r.ReportID
	entity.OperativeID = r.OperativeID
	entity.Achievements = r.Achievements
	entity.Notes = r.Notes
}

// OperativeMissionReport pairs an operative with a mission report.
type OperativeMissionReport struct {
	ID        string         `json:"id"`
	Mission   *MissionReport `json:"mission,omitempty"`
	Operative *Operative     `json:"operative,omitempty"`
	Notes     string         `json:"notes,omitempty"`
}

// OperativeMissionReportFrom copies the read model.
func OperativeMissionReportFrom(view reports.OperativeMissionReport) OperativeMissionReport {
	return OperativeMissionReport{
		ID:        view.ID,
		Mission:   MissionReportFrom(view.Mission),
		Operative: OperativeFrom(view.Operative),
		Notes:     view.Notes,
	}
}

// OperativeDispatchReport is one entry of an operative's mission history.
type OperativeDispatchReport struct {
	ID           string         `json:"id"`
	Report       DispatchReport `json:"report"`
	Operative    *Operative     `json:"operative,omitempty"`
	Achievements string         `json:"achievements,omitempty"`
	Notes        string         `json:"notes,omitempty"`
}

// OperativeDispatchReportFrom copies the read model.
func OperativeDispatchReportFrom(view reports.OperativeDispatchReport) OperativeDispatchReport {
	return OperativeDispatchReport{
		ID:           view.ID,
		Report:       DispatchReportFrom(view.Report),
		Operative:    OperativeFrom(view.Operative),
		Achievements: view.Achievements,
		Notes:        view.Notes,
	}
}

// SpecialMission is a game master's table mission.
type SpecialMission struct {
	Persisted
	Code          string            `json:"code,omitempty"`
	Name          string            `json:"name"`
	GameMasterID  string            `json:"gameMasterId,omitempty"`
	GameMaster    string            `json:"gameMaster,omitempty"`
	Date          string            `json:"date"`
	Image         string            `json:"image,omitempty"`
	Clearance     torg.Clearance    `json:"clearance"`
	Description   string            `json:"description,omitempty"`
	XP            int               `json:"xp"`
	Payment       int               `json:"payment"`
	ObjectivesMet torg.SuccessState `json:"objectivesMet"`
	Achievements  string            `json:"achievements,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	Publication   string            `json:"publication,omitempty"`
}

// SpecialMissionFrom copies the stored special mission.
func SpecialMissionFrom(entity *missions.SpecialMission) *SpecialMission {
	if entity == nil {
		return nil
	}
	mission := &SpecialMission{
		Persisted:     persistedFrom(entity.Base),
		Code:          entity.Code,
		Name:          entity.Name,
		GameMaster:    entity.GameMasterName(),
		Date:          formatDate(entity.Date),
		Image:         entity.Image,
		Clearance:     entity.Clearance,
		Description:   entity.Description,
		XP:            entity.XP,
		Payment:       entity.Payment,
		ObjectivesMet: entity.ObjectivesMet,
		Achievements:  entity.Achievements,
		Notes:         entity.Notes,
		Publication:   entity.Publication,
	}
	if entity.GameMasterID != nil {
		mission.GameMasterID = *entity.GameMasterID
	}
	return mission
}

// CopyTo writes the special mission into the stored entity.
func (m *SpecialMission) CopyTo(entity *missions.SpecialMission) error {
	date, err := parseDate(m.Date)
	if err != nil {
		return err
	}
	m.Persisted.copyTo(&entity.Base)
	entity.Code = m.Code
	entity.Name = m.Name
	entity.Date = date
	entity.Image = m.Image
	entity.Clearance = m.Clearance
	entity.Description = m.Description
	entity.XP = m.XP
	entity.Payment = m.Payment
	entity.ObjectivesMet = m.ObjectivesMet
	entity.Achievements = m.Achievements
	entity.Notes = m.Notes
	entity.Publication = m.Publication
	entity.GameMasterID = nil
	if gm := strings.TrimSpace(m.GameMasterID); gm != "" {
		entity.GameMasterID = &gm
	}
	return nil
}

// Entity returns a new stored special mission with the values of m.
func (m *SpecialMission) Entity() (*missions.SpecialMission, error) {
	entity := &missions.SpecialMission{}
	if err := m.CopyTo(entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// OperativeSpecialReport is one operative's part in a special mission.
type OperativeSpecialReport struct {
	Persisted
	SpecialMission *SpecialMission `json:"specialMission,omitempty"`
	Operative      *Operative      `json:"operative,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

// OperativeSpecialReportFrom copies the stored participation.
func OperativeSpecialReportFrom(entity *reports.OperativeSpecialReport) *OperativeSpecialReport {
	if entity == nil {
		return nil
	}
	return &OperativeSpecialReport{
		Persisted:      persistedFrom(entity.Base),
		SpecialMission: SpecialMissionFrom(entity.SpecialMission),
		Operative:      OperativeFrom(entity.Operative),
		Notes:          entity.Notes,
	}
}

// Person is the public view of an account. Credentials never leave the server.
type Person struct {
	Persisted
	Username  string     `json:"username"`
	Name      string     `json:"name"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email,omitempty"`
	Locale    string     `json:"locale"`
	Roles     []string   `json:"roles,omitempty"`
	Enabled   bool       `json:"enabled"`
	Locked    bool       `json:"locked"`
	Gravatar  bool       `json:"gravatar"`
	Avatar    string     `json:"avatar,omitempty"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	Deleted   *time.Time `json:"deleted,omitempty"`
}

// PersonFrom copies the stored person. Deleted persons keep only their masked name.
func PersonFrom(entity *persons.Person) *Person {
	if entity == nil {
		return nil
	}
	person := &Person{
		Persisted: persistedFrom(entity.Base),
		Username:  entity.Username,
		Name:      entity.DisplayName(),
		FirstName: entity.FirstName,
		LastName:  entity.LastName,
		Email:     entity.Email,
		Locale:    entity.Locale,
		Roles:     entity.RoleNames(),
		Enabled:   entity.Status.Enabled,
		Locked:    entity.Status.Locked,
		Gravatar:  entity.UseGravatar,
		Avatar:    entity.AvatarURL(),
		LastLogin: copyTime(entity.Status.LastLogin),
		Deleted:   copyTime(entity.Status.Deleted),
	}
	if entity.IsDeleted() {
		person.FirstName = persons.DeletedName
		person.LastName = persons.DeletedName
		person.Email = ""
	}
	return person
}

// CopyTo writes the profile fields into the stored person.
func (p *Person) CopyTo(entity *persons.Person) {
	p.Persisted.copyTo(&entity.Base)
	entity.Username = p.Username
	entity.Name = p.Name
	entity.FirstName = p.FirstName
	entity.LastName = p.LastName
	entity.Email = p.Email
	entity.Locale = p.Locale
	entity.UseGravatar = p.Gravatar
}

func copyTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func formatDate(date datatypes.Date) string {
	value := time.Time(date)
	if value.IsZero() {
		return ""
	}
	return value.Format(time.DateOnly)
}

func parseDate(value string) (datatypes.Date, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return datatypes.Date{}, nil
	}
	parsed, err := time.Parse(time.DateOnly, trimmed)
	if err != nil {
		return datatypes.Date{}, store.Invalid("date", "must look like %s", time.DateOnly)
	}
	return datatypes.Date(parsed), nil
}
