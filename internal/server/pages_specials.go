package server

import (
	"net/http"
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

type specialListView struct {
	Missions []missions.SpecialMission
	Pager    pager
}

type specialView struct {
	Mission      *missions.SpecialMission
	ReadOnly     bool
	GameMasters  []persons.Person
	Participants []reports.OperativeSpecialReport
	Candidates   []operatives.Operative
}

type specialForm struct {
	Version       int64  `form:"version"`
	Name          string `form:"name"`
	Image         string `form:"image"`
	Clearance     string `form:"clearance"`
	Description   string `form:"description"`
	Payment       int    `form:"payment"`
	XP            int    `form:"xp"`
	Publication   string `form:"publication"`
	GameMasterID  string `form:"gm"`
	Date          string `form:"date"`
	ObjectivesMet string `form:"objectives_met"`
	Achievements  string `form:"achievements"`
	Notes         string `form:"notes"`
}

func (f specialForm) apply(mission *missions.SpecialMission) error {
	day, err := time.Parse(time.DateOnly, strings.TrimSpace(f.Date))
	if err != nil {
		return store.Invalid("date", "must look like %s", time.DateOnly)
	}
	mission.Version = f.Version
	mission.Name = f.Name
	mission.Image = f.Image
	mission.Clearance = torg.Clearance(f.Clearance)
	mission.Description = f.Description
	mission.Payment = f.Payment
	mission.XP = f.XP
	mission.Publication = f.Publication
	mission.Date = datatypes.Date(day)
	mission.ObjectivesMet = torg.SuccessState(f.ObjectivesMet)
	mission.Achievements = f.Achievements
	mission.Notes = f.Notes
	return nil
}

func specialOwner(mission *missions.SpecialMission) string {
	if mission.GameMasterID == nil {
		return ""
	}
	return *mission.GameMasterID
}

func (h *httpHandler) listSpecialMissions(c *gin.Context) {
	request, nav := h.pageRequest(c, "")
	records, total, err := h.missions.ListSpecialMissions(c.Request.Context(), missions.SpecialMissionFilter{Page: request})
	if err != nil {
		h.renderError(c, err)
		return
	}
	view := specialListView{Missions: records, Pager: nav.withTotal(total, "")}
	h.render(c, http.StatusOK, "specialmissions.html", h.newPage(c, "nav.specialmissions", view))
}

func (h *httpHandler) showSpecialMission(c *gin.Context) {
	mission, err := h.loadSpecialMission(c)
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.renderSpecialMission(c, http.StatusOK, mission)
}

func (h *httpHandler) loadSpecialMission(c *gin.Context) (*missions.SpecialMission, error) {
	if id := c.Param("id"); id != "" {
		return h.missions.GetSpecialMission(c.Request.Context(), id)
	}
	mission := missions.NewSpecialMission(h.clock())
	if principal := principalFrom(c); principal.IsGM() {
		id := principal.PersonID
		mission.GameMasterID = &id
	}
	return mission, nil
}

func (h *httpHandler) renderSpecialMission(c *gin.Context, status int, mission *missions.SpecialMission) {
	ctx := c.Request.Context()
	view := specialView{Mission: mission}
	if mission.IsNew() {
		view.ReadOnly = !h.mayGameMaster(c)
	} else {
		view.ReadOnly = !principalFrom(c).CanEdit(specialOwner(mission))
	}
	var err error
	if view.GameMasters, err = h.persons.ListWithRole(ctx, persons.RoleGM); err != nil {
		h.renderError(c, err)
		return
	}
	if !mission.IsNew() {
		if view.Participants, err = h.reports.ListSpecialMissionOperatives(ctx, mission.ID); err != nil {
			h.renderError(c, err)
			return
		}
		if !view.ReadOnly {
			active, _, err := h.operatives.List(ctx, operatives.Filter{})
			if err != nil {
				h.renderError(c, err)
				return
			}
			taken := make(map[string]bool, len(view.Participants))
			for _, entry := range view.Participants {
				taken[entry.OperativeID] = true
			}
			for _, operative := range active {
				if !taken[operative.ID] {
					view.Candidates = append(view.Candidates, operative)
				}
			}
		}
	}
	h.render(c, status, "specialmission.html", h.newPage(c, "specialmission.title", view))
}

func (h *httpHandler) editableSpecialMission(c *gin.Context) (*missions.SpecialMission, bool) {
	mission, err := h.missions.GetSpecialMission(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return nil, false
	}
	if !principalFrom(c).CanEdit(specialOwner(mission)) {
		h.renderError(c, errForbidden)
		return nil, false
	}
	return mission, true
}

func (h *httpHandler) saveSpecialMission(c *gin.Context) {
	principal := principalFrom(c)
	var mission *missions.SpecialMission
	if c.Param("id") == "" {
		if !h.mayGameMaster(c) {
			h.renderError(c, errForbidden)
			return
		}
		mission = missions.NewSpecialMission(h.clock())
	} else {
		var ok bool
		if mission, ok = h.editableSpecialMission(c); !ok {
			return
		}
	}
	var form specialForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderError(c, errBadRequest)
		return
	}

	switch gameMaster := strings.TrimSpace(form.GameMasterID); {
	case principal.ReadOnly(false):
		id := principal.PersonID
		mission.GameMasterID = &id
	case isBlank(gameMaster):
		mission.GameMasterID = nil
	default:
		mission.GameMasterID = &gameMaster
	}
	mission.GameMaster = nil

	if err := form.apply(mission); err != nil {
		h.notifySaveFailed(c, form.Name, err)
		h.renderSpecialMission(c, statusFor(err), mission)
		return
	}
	if err := h.missions.SaveSpecialMission(c.Request.Context(), mission); err != nil {
		h.notifySaveFailed(c, mission.Name, err)
		h.renderSpecialMission(c, statusFor(err), mission)
		return
	}
	h.notifySaved(c, mission.Name)
	c.Redirect(http.StatusSeeOther, "/specialmission/"+mission.ID)
}

func (h *httpHandler) deleteSpecialMission(c *gin.Context) {
	mission, ok := h.editableSpecialMission(c)
	if !ok {
		return
	}
	if err := h.missions.DeleteSpecialMission(c.Request.Context(), mission.ID); err != nil {
		h.notifyDeleteFailed(c, mission.Name, err)
		c.Redirect(http.StatusSeeOther, "/specialmission/"+mission.ID)
		return
	}
	h.notifyDeleted(c, mission.Name)
	c.Redirect(http.StatusSeeOther, "/specialmissions")
}

func (h *httpHandler) addSpecialOperative(c *gin.Context) {
	mission, ok := h.editableSpecialMission(c)
	if !ok {
		return
	}
	entry, err := h.reports.AddOperativeToSpecialMission(c.Request.Context(), mission.ID,
		strings.TrimSpace(c.PostForm("operative")), c.PostForm("notes"))
	if err != nil {
		h.notifySaveFailed(c, mission.Name, err)
	} else {
		h.notifySaved(c, entry.OperativeName())
	}
	c.Redirect(http.StatusSeeOther, "/specialmission/"+mission.ID)
}

func (h *httpHandler) removeSpecialOperative(c *gin.Context) {
	mission, ok := h.editableSpecialMission(c)
	if !ok {
		return
	}
	if err := h.reports.RemoveOperativeFromSpecialMission(c.Request.Context(), mission.ID, c.Param("operative")); err != nil {
		h.notifyDeleteFailed(c, mission.Name, err)
	} else {
		h.notifyDeleted(c, mission.Name)
	}
	c.Redirect(http.StatusSeeOther, "/specialmission/"+mission.ID)
}
