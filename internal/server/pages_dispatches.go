package server

import (
	"net/http"
	"net/url"

	"github.com/Paladins-Inn/delphi-council/internal/missions"
	"github.com/Paladins-Inn/delphi-council/internal/torg"
	"github.com/gin-gonic/gin"
)

type dispatchListView struct {
	Kind       missions.Kind
	Dispatches []missions.Dispatch
	Pager      pager
}

type dispatchView struct {
	Dispatch *missions.Dispatch
	ReadOnly bool
}

type dispatchForm struct {
	Version               int64  `form:"version"`
	Kind                  string `form:"kind"`
	Language              string `form:"language"`
	Code                  string `form:"code"`
	Name                  string `form:"name"`
	Image                 string `form:"image"`
	Description           string `form:"description"`
	Payment               int    `form:"payment"`
	XP                    int    `form:"xp"`
	ObjectivesSuccess     string `form:"objectives_success"`
	ObjectivesGood        string `form:"objectives_good"`
	ObjectivesOutstanding string `form:"objectives_outstanding"`
	Clearance             string `form:"clearance"`
	Publication           string `form:"publication"`
}

func (f dispatchForm) apply(dispatch *missions.Dispatch) {
	dispatch.Version = f.Version
	dispatch.Kind = missions.Kind(f.Kind)
	dispatch.Language = torg.Language(f.Language)
	dispatch.Code = f.Code
	dispatch.Name = f.Name
	dispatch.Image = f.Image
	dispatch.Description = f.Description
	dispatch.Payment = f.Payment
	dispatch.XP = f.XP
	dispatch.ObjectivesSuccess = f.ObjectivesSuccess
	dispatch.ObjectivesGood = f.ObjectivesGood
	dispatch.ObjectivesOutstanding = f.ObjectivesOutstanding
	dispatch.Clearance = torg.Clearance(f.Clearance)
	dispatch.Publication = f.Publication
}

func (h *httpHandler) listDispatches(c *gin.Context) {
	kind, err := missions.ParseKind(c.Query("kind"))
	if err != nil {
		h.renderError(c, errBadRequest)
		return
	}
	request, nav := h.pageRequest(c, "")
	records, total, err := h.missions.ListDispatches(c.Request.Context(), missions.DispatchFilter{Kind: kind, Page: request})
	if err != nil {
		h.renderError(c, err)
		return
	}
	view := dispatchListView{
		Kind:       kind,
		Dispatches: records,
		Pager:      nav.withTotal(total, "kind="+url.QueryEscape(string(kind))),
	}
	titleKey := "nav.missions"
	if kind == missions.KindOperation {
		titleKey = "nav.operations"
	}
	h.render(c, http.StatusOK, "dispatches.html", h.newPage(c, titleKey, view))
}

func (h *httpHandler) showDispatch(c *gin.Context) {
	dispatch, err := h.loadDispatch(c)
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.renderDispatch(c, http.StatusOK, dispatch)
}

func (h *httpHandler) loadDispatch(c *gin.Context) (*missions.Dispatch, error) {
	if id := c.Param("id"); id != "" {
		return h.missions.GetDispatch(c.Request.Context(), id)
	}
	kind, err := missions.ParseKind(c.Query("kind"))
	if err != nil {
		return nil, errBadRequest
	}
	return missions.NewDispatch(kind), nil
}

func (h *httpHandler) renderDispatch(c *gin.Context, status int, dispatch *missions.Dispatch) {
	titleKey := "dispatch.mission"
	if dispatch.Kind == missions.KindOperation {
		titleKey = "dispatch.operation"
	}
	view := dispatchView{Dispatch: dispatch, ReadOnly: principalFrom(c).ReadOnly(false)}
	h.render(c, status, "dispatch.html", h.newPage(c, titleKey, view))
}

func (h *httpHandler) saveDispatch(c *gin.Context) {
	if principalFrom(c).ReadOnly(false) {
		h.renderError(c, errForbidden)
		return
	}
	dispatch, err := h.loadDispatch(c)
	if err != nil {
		h.renderError(c, err)
		return
	}
	var form dispatchForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderError(c, errBadRequest)
		return
	}
	form.apply(dispatch)
	if err := h.missions.SaveDispatch(c.Request.Context(), dispatch); err != nil {
		h.notifySaveFailed(c, dispatch.ShortName(), err)
		h.renderDispatch(c, statusFor(err), dispatch)
		return
	}
	h.notifySaved(c, dispatch.ShortName())
	c.Redirect(http.StatusSeeOther, "/mission/"+dispatch.ID)
}

func (h *httpHandler) deleteDispatch(c *gin.Context) {
	if principalFrom(c).ReadOnly(false) {
		h.renderError(c, errForbidden)
		return
	}
	dispatch, err := h.missions.GetDispatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	if err := h.missions.DeleteDispatch(c.Request.Context(), dispatch.ID); err != nil {
		h.notifyDeleteFailed(c, dispatch.ShortName(), err)
		c.Redirect(http.StatusSeeOther, "/mission/"+dispatch.ID)
		return
	}
	h.notifyDeleted(c, dispatch.ShortName())
	c.Redirect(http.StatusSeeOther, "/missions?kind="+url.QueryEscape(string(dispatch.Kind)))
}

// dispatchOptions lists every dispatch for the selects of the report form.
func (h *httpHandler) dispatchOptions(c *gin.Context) ([]missions.Dispatch, error) {
	records, _, err := h.missions.ListDispatches(c.Request.Context(), missions.DispatchFilter{})
	return records, err
}
