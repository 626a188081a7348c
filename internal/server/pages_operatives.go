package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/Paladins-Inn/delphi-council/internal/operatives"
	"github.com/Paladins-Inn/delphi-council/internal/reports"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/Paladins-Inn/delphi-council/internal/torg"
	"github.com/gin-gonic/gin"
)

type imageKind string

const (
	imageAvatar imageKind = "avatar"
	imageToken  imageKind = "token"

	uploadField    = "image"
	maxUploadBytes = 4 << 20
)

type operativeListView struct {
	All        bool
	Operatives []operatives.Operative
	Pager      pager
}

type operativeView struct {
	Operative *operatives.Operative
	ReadOnly  bool
	Award     bool
	History   []reports.OperativeDispatchReport
	Specials  []reports.OperativeSpecialReport
}

type operativeForm struct {
	Version   int64  `form:"version"`
	Code      string `form:"code"`
	Name      string `form:"name"`
	FirstName string `form:"first_name"`
	LastName  string `form:"last_name"`
	Cosm      string `form:"cosm"`
	XP        int    `form:"xp"`
	Money     int    `form:"money"`
}

// apply copies the form. Experience and money stay untouched unless award
// is set.
func (f operativeForm) apply(operative *operatives.Operative, award bool) {
	operative.Version = f.Version
	operative.Code = f.Code
	operative.Name = f.Name
	operative.FirstName = f.FirstName
	operative.LastName = f.LastName
	operative.Cosm = torg.Cosm(f.Cosm)
	if award {
		operative.Money = f.Money
		operative.SetXP(f.XP)
	}
}

func (h *httpHandler) listOperatives(c *gin.Context) {
	principal := principalFrom(c)
	all := c.Query("all") == "1" && !principal.ReadOnly(false)
	filter := operatives.Filter{PlayerID: principal.PersonID}
	if all {
		filter = operatives.Filter{IncludeDeleted: true}
	}
	request, nav := h.pageRequest(c, "")
	filter.Page = request
	records, total, err := h.operatives.List(c.Request.Context(), filter)
	if err != nil {
		h.renderError(c, err)
		return
	}
	query := ""
	if all {
		query = "all=1"
	}
	view := operativeListView{All: all, Operatives: records, Pager: nav.withTotal(total, query)}
	h.render(c, http.StatusOK, "operatives.html", h.newPage(c, "nav.operatives", view))
}

func (h *httpHandler) showOperative(c *gin.Context) {
	operative, err := h.loadOperative(c)
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.renderOperative(c, http.StatusOK, operative)
}

func (h *httpHandler) loadOperative(c *gin.Context) (*operatives.Operative, error) {
	if id := c.Param("id"); id != "" {
		return h.operatives.Get(c.Request.Context(), id)
	}
	return operatives.NewOperative(principalFrom(c).PersonID), nil
}

func (h *httpHandler) renderOperative(c *gin.Context, status int, operative *operatives.Operative) {
	view := operativeView{
		Operative: operative,
		ReadOnly:  operative.IsDeleted() || !principalFrom(c).CanEdit(operative.PlayerID),
		Award:     principalFrom(c).CanAward(),
	}
	if !operative.IsNew() {
		var err error
		if view.History, err = h.reports.ListForOperative(c.Request.Context(), operative.ID); err != nil {
			h.renderError(c, err)
			return
		}
		if view.Specials, err = h.reports.ListSpecialForOperative(c.Request.Context(), operative.ID); err != nil {
			h.renderError(c, err)
			return
		}
	}
	h.render(c, status, "operative.html", h.newPage(c, "operative.title", view))
}

// editableOperative loads the operative addressed by the path and checks
// that the principal may change it.
func (h *httpHandler) editableOperative(c *gin.Context) (*operatives.Operative, bool) {
	operative, err := h.operatives.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return nil, false
	}
	if operative.IsDeleted() || !principalFrom(c).CanEdit(operative.PlayerID) {
		h.renderError(c, errForbidden)
		return nil, false
	}
	return operative, true
}

func (h *httpHandler) saveOperative(c *gin.Context) {
	operative := operatives.NewOperative(principalFrom(c).PersonID)
	if c.Param("id") != "" {
		var ok bool
		if operative, ok = h.editableOperative(c); !ok {
			return
		}
	}
	var form operativeForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderError(c, errBadRequest)
		return
	}
	form.apply(operative, principalFrom(c).CanAward())
	operative.Player = nil
	if err := h.operatives.Save(c.Request.Context(), operative); err != nil {
		h.notifySaveFailed(c, operative.DisplayName(), err)
		h.renderOperative(c, statusFor(err), operative)
		return
	}
	h.notifySaved(c, operative.DisplayName())
	c.Redirect(http.StatusSeeOther, "/operative/"+operative.ID)
}

func (h *httpHandler) retireOperative(c *gin.Context) {
	operative, ok := h.editableOperative(c)
	if !ok {
		return
	}
	name := operative.DisplayName()
	if err := h.operatives.MarkDeleted(c.Request.Context(), operative.ID); err != nil {
		h.notifyDeleteFailed(c, name, err)
		c.Redirect(http.StatusSeeOther, "/operative/"+operative.ID)
		return
	}
	h.notifyDeleted(c, name)
	c.Redirect(http.StatusSeeOther, "/operatives")
}

func (h *httpHandler) serveOperativeImage(kind imageKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		operative, err := h.operatives.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.Status(statusFor(err))
			return
		}
		image := operative.Avatar
		if kind == imageToken {
			image = operative.Token
		}
		serveImage(c, image)
	}
}

func (h *httpHandler) uploadOperativeImage(kind imageKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		operative, ok := h.editableOperative(c)
		if !ok {
			return
		}
		image, err := readUpload(c)
		if err == nil {
			if kind == imageToken {
				err = h.operatives.SetToken(c.Request.Context(), operative.ID, image)
			} else {
				err = h.operatives.SetAvatar(c.Request.Context(), operative.ID, image)
			}
		}
		if err != nil {
			h.notifySaveFailed(c, operative.DisplayName(), err)
		} else {
			h.notifySaved(c, operative.DisplayName())
		}
		c.Redirect(http.StatusSeeOther, "/operative/"+operative.ID)
	}
}

// readUpload returns the bytes of the uploaded image file.
func readUpload(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile(uploadField)
	if err != nil {
		return nil, store.Invalid(uploadField, "is required")
	}
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxUploadBytes {
		return nil, store.Invalid(uploadField, "must not exceed %d bytes", maxUploadBytes)
	}
	return data, nil
}

func serveImage(c *gin.Context, image []byte) {
	if len(image) == 0 {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, operatives.ImageContentType(image), image)
}

func isBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}
