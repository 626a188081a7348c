package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/missions"
	"github.com/Paladins-Inn/delphi-council/internal/operatives"
	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/reports"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/Paladins-Inn/delphi-council/internal/torg"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// newReportID marks the report form of a report that is not stored yet.
const newReportID = "new"

type reportListView struct {
	MissionID    string
	GameMasterID string
	Reports      []reports.MissionReport
	Pager        pager
}

type reportView struct {
	Report      *reports.MissionReport
	New         bool
	ReadOnly    bool
	Dispatches  []missions.Dispatch
	GameMasters []persons.Person
	Candidates  []operatives.Operative
}

type reportForm struct {
	ID            string `form:"id"`
	Version       int64  `form:"version"`
	MissionID     string `form:"mission"`
	GameMasterID  string `form:"gm"`
	Date          string `form:"date"`
	ObjectivesMet string `form:"objectives_met"`
	Achievements  string `form:"achievements"`
	Notes         string `form:"notes"`
}

type entryForm struct {
	Version      int64  `form:"version"`
	Achievements string `form:"achievements"`
	Notes        string `form:"notes"`
}

func (f reportForm) apply(report *reports.MissionReport) error {
	day, err := time.Parse(time.DateOnly, strings.TrimSpace(f.Date))
	if err != nil {
		return store.Invalid("date", "must look like %s", time.DateOnly)
	}
	report.Version = f.Version
	report.DispatchID = f.MissionID
	report.Dispatch = nil
	report.Date = datatypes.Date(day)
	report.ObjectivesMet = torg.SuccessState(f.ObjectivesMet)
	report.Achievements = f.Achievements
	report.Notes = f.Notes
	return nil
}

func reportPath(report *reports.MissionReport) string {
	return "/missionreport/" + report.DispatchID + "/" + report.ID
}

func (h *httpHandler) listReports(c *gin.Context) {
	filter := reports.Filter{
		DispatchID:   strings.TrimSpace(c.Query("mission")),
		GameMasterID: strings.TrimSpace(c.Query("gm")),
	}
	request, nav := h.pageRequest(c, "")
	filter.Page = request
	records, total, err := h.reports.List(c.Request.Context(), filter)
	if err != nil {
		h.renderError(c, err)
		return
	}
	query := url.Values{}
	if filter.DispatchID != "" {
		query.Set("mission", filter.DispatchID)
	}
	if filter.GameMasterID != "" {
		query.Set("gm", filter.GameMasterID)
	}
	view := reportListView{
		MissionID:    filter.DispatchID,
		GameMasterID: filter.GameMasterID,
		Reports:      records,
		Pager:        nav.withTotal(total, query.Encode()),
	}
	h.render(c, http.StatusOK, "reports.html", h.newPage(c, "nav.reports", view))
}

// showReport renders a stored report, or a new one preset with the mission
// and game master from the path.
func (h *httpHandler) showReport(c *gin.Context) {
	report, err := h.loadReport(c, c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.renderReport(c, http.StatusOK, report)
}

func (h *httpHandler) loadReport(c *gin.Context, id string) (*reports.MissionReport, error) {
	id = strings.TrimSpace(id)
	if id != "" && id != newReportID {
		return h.reports.Get(c.Request.Context(), id)
	}
	principal := principalFrom(c)
	gameMaster := strings.TrimSpace(c.Param("gm"))
	if gameMaster == "" && principal.IsGM() {
		gameMaster = principal.PersonID
	}
	mission := strings.TrimSpace(c.Param("mission"))
	if mission == "" {
		mission = strings.TrimSpace(c.Query("mission"))
	}
	return reports.NewMissionReport(mission, gameMaster, h.clock()), nil
}

// mayGameMaster reports whether the principal may file mission reports and
// special missions.
func (h *httpHandler) mayGameMaster(c *gin.Context) bool {
	principal := principalFrom(c)
	return principal.IsGM() || !principal.ReadOnly(false)
}

func (h *httpHandler) renderReport(c *gin.Context, status int, report *reports.MissionReport) {
	ctx := c.Request.Context()
	view := reportView{Report: report, New: report.IsNew()}
	if view.New {
		view.ReadOnly = !h.mayGameMaster(c)
	} else {
		view.ReadOnly = !principalFrom(c).CanEdit(report.GameMasterID)
	}

	var err error
	if view.Dispatches, err = h.dispatchOptions(c); err != nil {
		h.renderError(c, err)
		return
	}
	if view.GameMasters, err = h.persons.ListWithRole(ctx, persons.RoleGM); err != nil {
		h.renderError(c, err)
		return
	}
	if !view.New && !view.ReadOnly {
		active, _, err := h.operatives.List(ctx, operatives.Filter{})
		if err != nil {
			h.renderError(c, err)
			return
		}
		for _, operative := range active {
			if !report.HasOperative(operative.ID) {
				view.Candidates = append(view.Candidates, operative)
			}
		}
	}
	h.render(c, status, "report.html", h.newPage(c, "report.title", view))
}

func (h *httpHandler) saveReport(c *gin.Context) {
	var form reportForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderError(c, errBadRequest)
		return
	}
	principal := principalFrom(c)
	report, err := h.loadReport(c, form.ID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if report.IsNew() {
		if !h.mayGameMaster(c) {
			h.renderError(c, errForbidden)
			return
		}
		report.GameMasterID = strings.TrimSpace(form.GameMasterID)
		if principal.ReadOnly(false) {
			report.GameMasterID = principal.PersonID
		}
	} else {
		if !principal.CanEdit(report.GameMasterID) {
			h.renderError(c, errForbidden)
			return
		}
		if gameMaster := strings.TrimSpace(form.GameMasterID); gameMaster != "" && !principal.ReadOnly(false) {
			report.GameMasterID = gameMaster
		}
	}
	report.GameMaster = nil

	if err := form.apply(report); err != nil {
		h.notifySaveFailed(c, h.translator.Translate(localeFrom(c).String(), "report.title"), err)
		h.renderReport(c, statusFor(err), report)
		return
	}
	if err := h.reports.Save(c.Request.Context(), report); err != nil {
		h.notifySaveFailed(c, report.Name(), err)
		h.renderReport(c, statusFor(err), report)
		return
	}
	saved, err := h.reports.Get(c.Request.Context(), report.ID)
	if err == nil {
		report = saved
	}
	h.notifySaved(c, report.Name())
	c.Redirect(http.StatusSeeOther, reportPath(report))
}

// editableReport loads the report addressed by the path and checks that the
// principal may change it.
func (h *httpHandler) editableReport(c *gin.Context) (*reports.MissionReport, bool) {
	report, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return nil, false
	}
	if !principalFrom(c).CanEdit(report.GameMasterID) {
		h.renderError(c, errForbidden)
		return nil, false
	}
	return report, true
}

func (h *httpHandler) deleteReport(c *gin.Context) {
	report, ok := h.editableReport(c)
	if !ok {
		return
	}
	if err := h.reports.Delete(c.Request.Context(), report.ID); err != nil {
		h.notifyDeleteFailed(c, report.Name(), err)
		c.Redirect(http.StatusSeeOther, reportPath(report))
		return
	}
	h.notifyDeleted(c, report.Name())
	c.Redirect(http.StatusSeeOther, "/missionreports")
}

func (h *httpHandler) addReportOperative(c *gin.Context) {
	report, ok := h.editableReport(c)
	if !ok {
		return
	}
	operativeID := strings.TrimSpace(c.PostForm("operative"))
	entry, err := h.reports.AddOperative(c.Request.Context(), report.ID, operativeID)
	if err != nil {
		h.notifySaveFailed(c, report.Name(), err)
		c.Redirect(http.StatusSeeOther, reportPath(report))
		return
	}
	h.notifySaved(c, entry.OperativeName())
	c.Redirect(http.StatusSeeOther, reportPath(report))
}

func (h *httpHandler) removeReportOperative(c *gin.Context) {
	report, ok := h.editableReport(c)
	if !ok {
		return
	}
	operativeID := c.Param("operative")
	name := operativeID
	for _, entry := range report.Operatives {
		if entry.OperativeID == operativeID {
			name = entry.OperativeName()
		}
	}
	if err := h.reports.RemoveOperative(c.Request.Context(), report.ID, operativeID); err != nil {
		h.notifyDeleteFailed(c, name, err)
		c.Redirect(http.StatusSeeOther, reportPath(report))
		return
	}
	h.notifyDeleted(c, name)
	c.Redirect(http.StatusSeeOther, reportPath(report))
}

func (h *httpHandler) saveReportEntry(c *gin.Context) {
	report, ok := h.editableReport(c)
	if !ok {
		return
	}
	entry, err := h.reports.GetOperativeReport(c.Request.Context(), c.Param("entry"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	if entry.MissionReportID != report.ID {
		h.renderError(c, errBadRequest)
		return
	}
	var form entryForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderError(c, errBadRequest)
		return
	}
	entry.Version = form.Version
	entry.Achievements = form.Achievements
	entry.Notes = form.Notes
	entry.MissionReport = nil
	if err := h.reports.UpdateOperativeReport(c.Request.Context(), entry); err != nil {
		h.notifySaveFailed(c, entry.OperativeName(), err)
	} else {
		h.notifySaved(c, entry.OperativeName())
	}
	c.Redirect(http.StatusSeeOther, reportPath(report))
}
