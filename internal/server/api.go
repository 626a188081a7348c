package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Paladins-Inn/delphi-council/internal/client"
	"github.com/Paladins-Inn/delphi-council/internal/missions"
	"github.com/Paladins-Inn/delphi-council/internal/operatives"
	"github.com/Paladins-Inn/delphi-council/internal/reports"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/gin-gonic/gin"
)

const (
	kindMission        = "mission"
	kindOperation      = "operation"
	kindMissionReport  = "missionreport"
	kindOperative      = "operative"
	kindSpecialMission = "specialmission"
	kindHistory        = "operativereport"
)

func (h *httpHandler) registerAPI(v1 *gin.RouterGroup) {
	h.registerDispatchAPI(v1.Group("/dispatches"), "", kindMission, func(d *missions.Dispatch) any {
		return client.DispatchFrom(d)
	})
	h.registerDispatchAPI(v1.Group("/missions"), missions.KindMission, kindMission, func(d *missions.Dispatch) any {
		return client.MissionFrom(d)
	})
	h.registerDispatchAPI(v1.Group("/operations"), missions.KindOperation, kindOperation, func(d *missions.Dispatch) any {
		return client.OperationFrom(d)
	})

	missionReports := v1.Group("/missionreports")
	missionReports.GET("", h.apiListReports)
	missionReports.GET("/count", h.apiCountReports)
	missionReports.GET("/:id", h.apiGetReport)
	missionReports.POST("", h.apiCreateReport)
	missionReports.PUT("/:id", h.apiUpdateReport)
	missionReports.DELETE("/:id", h.apiDeleteReport)
	missionReports.PUT("/:id/operative/:operative", h.apiAddReportOperative)
	missionReports.POST("/:id/operative/:operative", h.apiUpdateReportOperative)
	missionReports.DELETE("/:id/operative/:operative", h.apiRemoveReportOperative)

	operativeGroup := v1.Group("/operatives")
	operativeGroup.GET("", h.apiListOperatives)
	operativeGroup.GET("/count", h.apiCountOperatives)
	operativeGroup.GET("/:id", h.apiGetOperative)
	operativeGroup.GET("/:id/history", h.apiOperativeHistory)
	operativeGroup.POST("", h.apiCreateOperative)
	operativeGroup.PUT("/:id", h.apiUpdateOperative)
	operativeGroup.DELETE("/:id", h.apiDeleteOperative)

	specials := v1.Group("/specialmissions")
	specials.GET("", h.apiListSpecialMissions)
	specials.GET("/count", h.apiCountSpecialMissions)
	specials.GET("/:id", h.apiGetSpecialMission)
	specials.POST("", h.apiCreateSpecialMission)
	specials.PUT("/:id", h.apiUpdateSpecialMission)
	specials.DELETE("/:id", h.apiDeleteSpecialMission)
	specials.PUT("/:id/operative/:operative", h.apiAddSpecialOperative)
	specials.DELETE("/:id/operative/:operative", h.apiRemoveSpecialOperative)
}

// apiPage reads the start and size query parameters. A missing size returns
// every record from start on.
func apiPage(c *gin.Context) (store.Page, client.Paging, error) {
	start, err := queryInt(c, "start")
	if err != nil {
		return store.Page{}, client.Paging{}, err
	}
	size, err := queryInt(c, "size")
	if err != nil {
		return store.Page{}, client.Paging{}, err
	}
	page := store.Page{Offset: int(start), Limit: int(size)}
	return page, client.Paging{Start: start, Size: size}, nil
}

func queryInt(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %w", errBadRequest, store.Invalid(name, "must be a non-negative number"))
	}
	return value, nil
}

func listOf[T any](kind string, paging client.Paging, total int64, data []T) client.BasicList[T] {
	if data == nil {
		data = []T{}
	}
	paging.Count = int64(len(data))
	paging.Total = total
	return client.BasicList[T]{Kind: kind, Page: paging, Data: data}
}

// bindJSON decodes the request body and answers malformed bodies itself.
func (h *httpHandler) bindJSON(c *gin.Context, target any) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		h.respondError(c, fmt.Errorf("%w: %w", errBadRequest, err))
		return false
	}
	return true
}

func (h *httpHandler) registerDispatchAPI(group *gin.RouterGroup, kind missions.Kind, kindName string, convert func(*missions.Dispatch) any) {
	load := func(c *gin.Context) (*missions.Dispatch, error) {
		dispatch, err := h.missions.GetDispatch(c.Request.Context(), c.Param("id"))
		if err != nil {
			return nil, err
		}
		if kind != "" && dispatch.Kind != kind {
			return nil, fmt.Errorf("%w: %s is no %s", store.ErrNotFound, dispatch.ID, kind)
		}
		return dispatch, nil
	}
	save := func(c *gin.Context, id string, status int) {
		if principalFrom(c).ReadOnly(false) {
			h.respondError(c, errForbidden)
			return
		}
		if id != "" && kind != "" {
			existing, err := h.missions.GetDispatch(c.Request.Context(), id)
			if err == nil && existing.Kind != kind {
				h.respondError(c, fmt.Errorf("%w: %s is no %s", store.ErrNotFound, id, kind))
				return
			}
		}
		var body client.Dispatch
		if !h.bindJSON(c, &body) {
			return
		}
		body.ID = id
		if id == "" {
			body.Version = 0
		}
		if kind != "" {
			body.Kind = kind
		}
		entity := body.Entity()
		if err := h.missions.SaveDispatch(c.Request.Context(), entity); err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(status, convert(entity))
	}

	group.GET("", func(c *gin.Context) {
		page, paging, err := apiPage(c)
		if err != nil {
			h.respondError(c, err)
			return
		}
		records, total, err := h.missions.ListDispatches(c.Request.Context(), missions.DispatchFilter{Kind: kind, Page: page})
		if err != nil {
			h.respondError(c, err)
			return
		}
		data := make([]any, 0, len(records))
		for index := range records {
			data = append(data, convert(&records[index]))
		}
		c.JSON(http.StatusOK, listOf(kindName, paging, total, data))
	})
	group.GET("/count", func(c *gin.Context) {
		_, total, err := h.missions.ListDispatches(c.Request.Context(), missions.DispatchFilter{Kind: kind, Page: store.Page{Limit: 1}})
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, client.CountResponse{Kind: kindName, Count: total})
	})
	group.GET("/:id", func(c *gin.Context) {
		dispatch, err := load(c)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, convert(dispatch))
	})
	group.POST("", func(c *gin.Context) {
		save(c, "", http.StatusCreated)
	})
	group.PUT("/:id", func(c *gin.Context) {
		save(c, c.Param("id"), http.StatusOK)
	})
	group.DELETE("/:id", func(c *gin.Context) {
		if principalFrom(c).ReadOnly(false) {
			h.respondError(c, errForbidden)
			return
		}
		dispatch, err := load(c)
		if err == nil {
			err = h.missions.DeleteDispatch(c.Request.Context(), dispatch.ID)
		}
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func (h *httpHandler) apiListReports(c *gin.Context) {
	page, paging, err := apiPage(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	records, total, err := h.reports.List(c.Request.Context(), reports.Filter{
		DispatchID:   c.Query("mission"),
		GameMasterID: c.Query("gm"),
		Page:         page,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	data := make([]client.MissionReport, 0, len(records))
	for index := range records {
		data = append(data, *client.MissionReportFrom(&records[index]))
	}
	c.JSON(http.StatusOK, listOf(kindMissionReport, paging, total, data))
}

func (h *httpHandler) apiCountReports(c *gin.Context) {
	count, err := h.reports.Count(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client.CountResponse{Kind: kindMissionReport, Count: count})
}

func (h *httpHandler) apiGetReport(c *gin.Context) {
	report, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client.MissionReportFrom(report))
}

func (h *httpHandler) apiCreateReport(c *gin.Context) {
	h.apiSaveReport(c, nil, http.StatusCreated)
}

// apiUpdateReport replaces the report. Unknown ids are created.
func (h *httpHandler) apiUpdateReport(c *gin.Context) {
	existing, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		if !principalFrom(c).CanEdit(existing.GameMasterID) {
			h.respondError(c, errForbidden)
			return
		}
	case store.Reason(err) == "not_found":
		existing = nil
	default:
		h.respondError(c, err)
		return
	}
	h.apiSaveReport(c, existing, http.StatusOK)
}

func (h *httpHandler) apiSaveReport(c *gin.Context, existing *reports.MissionReport, status int) {
	principal := principalFrom(c)
	if existing == nil && !h.mayGameMaster(c) {
		h.respondError(c, errForbidden)
		return
	}
	var body client.MissionReport
	if !h.bindJSON(c, &body) {
		return
	}
	body.ID = c.Param("id")
	if existing == nil {
		body.Version = 0
	}
	if principal.ReadOnly(false) {
		body.GameMasterID = principal.PersonID
		if existing != nil {
			body.GameMasterID = existing.GameMasterID
		}
	}
	report := &reports.MissionReport{}
	if err := body.CopyTo(report); err != nil {
		h.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := h.reports.Save(ctx, report); err != nil {
		h.respondError(c, err)
		return
	}
	saved, err := h.reports.Get(ctx, report.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, client.MissionReportFrom(saved))
}

// apiEditableReport loads the report of the path for a change by the principal.
func (h *httpHandler) apiEditableReport(c *gin.Context) (*reports.MissionReport, bool) {
	report, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	if !principalFrom(c).CanEdit(report.GameMasterID) {
		h.respondError(c, errForbidden)
		return nil, false
	}
	return report, true
}

func (h *httpHandler) apiDeleteReport(c *gin.Context) {
	report, ok := h.apiEditableReport(c)
	if !ok {
		return
	}
	if err := h.reports.Delete(c.Request.Context(), report.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) apiAddReportOperative(c *gin.Context) {
	report, ok := h.apiEditableReport(c)
	if !ok {
		return
	}
	entry, err := h.reports.AddOperative(c.Request.Context(), report.ID, c.Param("operative"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client.OperativeReportFrom(entry))
}

func (h *httpHandler) apiUpdateReportOperative(c *gin.Context) {
	report, ok := h.apiEditableReport(c)
	if !ok {
		return
	}
	operativeID := c.Param("operative")
	var entry *reports.OperativeReport
	for index := range report.Operatives {
		if report.Operatives[index].OperativeID == operativeID {
			entry = &report.Operatives[index]
		}
	}
	if entry == nil {
		h.respondError(c, fmt.Errorf("%w: operative %s not in report %s", store.ErrNotFound, operativeID, report.ID))
		return
	}
	var body client.OperativeReport
	if !h.bindJSON(c, &body) {
		return
	}
	entry.Version = body.Version
	entry.Achievements = body.Achievements
	entry.Notes = body.Notes
	entry.MissionReport = nil
	if err := h.reports.UpdateOperativeReport(c.Request.Context(), entry); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client.OperativeReportFrom(entry))
}

func (h *httpHandler) apiRemoveReportOperative(c *gin.Context) {
	report, ok := h.apiEditableReport(c)
	if !ok {
		return
	}
	if err := h.reports.RemoveOperative(c.Request.Context(), report.ID, c.Param("operative")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) apiListOperatives(c *gin.Context) {
	page, paging, err := apiPage(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	records, total, err := h.operatives.List(c.Request.Context(), operatives.Filter{
		PlayerID:       c.Query("player"),
		IncludeDeleted: c.Query("deleted") == "1",
		Page:           page,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	data := make([]client.Operative, 0, len(records))
	for index := range records {
		data = append(data, *client.OperativeFrom(&records[index]))
	}
	c.JSON(http.StatusOK, listOf(kindOperative, paging, total, data))
}

func (h *httpHandler) apiCountOperatives(c *gin.Context) {
	count, err := h.operatives.Count(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client.CountResponse{Kind: kindOperative, Count: count})
}

func (h *httpHandler) apiGetOperative(c *gin.Context) {
	operative, err := h.operatives.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client.OperativeFrom(operative))
}

func (h *httpHandler) apiOperativeHistory(c *gin.Context) {
	history, err := h.reports.ListForOperative(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	data := make([]client.OperativeDispatchReport, 0, len(history))
	for _, entry := range history {
		data = append(data, client.OperativeDispatchReportFrom(entry))
	}
	total := int64(len(data))
	c.JSON(http.StatusOK, listOf(kindHistory, client.Paging{Size: total}, total, data))
}

func (h *httpHandler) apiCreateOperative(c *gin.Context) {
	principal := principalFrom(c)
	var body client.Operative
	if !h.bindJSON(c, &body) {
		return
	}
	body.ID = ""
	body.Version = 0
	if !principal.CanAward() {
		body.XP = 0
		body.Money = 0
		body.PlayerID = principal.PersonID
	}
	if body.PlayerID == "" {
		body.PlayerID = principal.PersonID
	}
	operative := body.Entity()
	if err := h.operatives.Save(c.Request.Context(), operative); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client.OperativeFrom(operative))
}

func (h *httpHandler) apiUpdateOperative(c *gin.Context) {
	principal := principalFrom(c)
	ctx := c.Request.Context()
	operative, err := h.operatives.Get(ctx, c.Param("id"))
	switch {
	case err == nil:
		if operative.IsDeleted() || !principal.CanEdit(operative.PlayerID) {
			h.respondError(c, errForbidden)
			return
		}
	case store.Reason(err) == "not_found":
		operative = operatives.NewOperative(principal.PersonID)
	default:
		h.respondError(c, err)
		return
	}
	stored := *operative
	var body client.Operative
	if !h.bindJSON(c, &body) {
		return
	}
	body.ID = c.Param("id")
	body.CopyTo(operative)
	if !principal.CanAward() {
		operative.PlayerID = stored.PlayerID
		operative.Money = stored.Money
		operative.SetXP(stored.XP)
	}
	if operative.PlayerID == "" {
		operative.PlayerID = stored.PlayerID
	}
	operative.Player = nil
	if err := h.operatives.Save(ctx, operative); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client.OperativeFrom(operative))
}

func (h *httpHandler) apiDeleteOperative(c *gin.Context) {
	ctx := c.Request.Context()
	operative, err := h.operatives.Get(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !principalFrom(c).CanEdit(operative.PlayerID) {
		h.respondError(c, errForbidden)
		return
	}
	if err := h.operatives.Delete(ctx, operative.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) apiListSpecialMissions(c *gin.Context) {
	page, paging, err := apiPage(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	records, total, err := h.missions.ListSpecialMissions(c.Request.Context(), missions.SpecialMissionFilter{
		GameMasterID: c.Query("gm"),
		Page:         page,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	data := make([]client.SpecialMission, 0, len(records))
	for index := range records {
		data = append(data, *client.SpecialMissionFrom(&records[index]))
	}
	c.JSON(http.StatusOK, listOf(kindSpecialMission, paging, total, data))
}

func (h *httpHandler) apiCountSpecialMissions(c *gin.Context) {
	count, err := h.missions.CountSpecialMissions(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client.CountResponse{Kind: kindSpecialMission, Count: count})
}

func (h *httpHandler) apiGetSpecialMission(c *gin.Context) {
	mission, err := h.missions.GetSpecialMission(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client.SpecialMissionFrom(mission))
}

func (h *httpHandler) apiCreateSpecialMission(c *gin.Context) {
	h.apiSaveSpecialMission(c, nil, http.StatusCreated)
}

func (h *httpHandler) apiUpdateSpecialMission(c *gin.Context) {
	existing, err := h.missions.GetSpecialMission(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		if !principalFrom(c).CanEdit(specialOwner(existing)) {
			h.respondError(c, errForbidden)
			return
		}
	case store.Reason(err) == "not_found":
		existing = nil
	default:
		h.respondError(c, err)
		return
	}
	h.apiSaveSpecialMission(c, existing, http.StatusOK)
}

func (h *httpHandler) apiSaveSpecialMission(c *gin.Context, existing *missions.SpecialMission, status int) {
	principal := principalFrom(c)
	if existing == nil && !h.mayGameMaster(c) {
		h.respondError(c, errForbidden)
		return
	}
	var body client.SpecialMission
	if !h.bindJSON(c, &body) {
		return
	}
	body.ID = c.Param("id")
	if existing == nil {
		body.Version = 0
	}
	if principal.ReadOnly(false) {
		body.GameMasterID = principal.PersonID
		if existing != nil {
			body.GameMasterID = specialOwner(existing)
		}
	}
	mission := &missions.SpecialMission{}
	if err := body.CopyTo(mission); err != nil {
		h.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := h.missions.SaveSpecialMission(ctx, mission); err != nil {
		h.respondError(c, err)
		return
	}
	saved, err := h.missions.GetSpecialMission(ctx, mission.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, client.SpecialMissionFrom(saved))
}

func (h *httpHandler) apiEditableSpecialMission(c *gin.Context) (*missions.SpecialMission, bool) {
	mission, err := h.missions.GetSpecialMission(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	if !principalFrom(c).CanEdit(specialOwner(mission)) {
		h.respondError(c, errForbidden)
		return nil, false
	}
	return mission, true
}

func (h *httpHandler) apiDeleteSpecialMission(c *gin.Context) {
	mission, ok := h.apiEditableSpecialMission(c)
	if !ok {
		return
	}
	if err := h.missions.DeleteSpecialMission(c.Request.Context(), mission.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) apiAddSpecialOperative(c *gin.Context) {
	mission, ok := h.apiEditableSpecialMission(c)
	if !ok {
		return
	}
	var body client.OperativeSpecialReport
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &body) {
		return
	}
	entry, err := h.reports.AddOperativeToSpecialMission(c.Request.Context(), mission.ID, c.Param("operative"), body.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	entry.SpecialMission = mission
	c.JSON(http.StatusOK, client.OperativeSpecialReportFrom(entry))
}

func (h *httpHandler) apiRemoveSpecialOperative(c *gin.Context) {
	mission, ok := h.apiEditableSpecialMission(c)
	if !ok {
		return
	}
	if err := h.reports.RemoveOperativeFromSpecialMission(c.Request.Context(), mission.ID, c.Param("operative")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
