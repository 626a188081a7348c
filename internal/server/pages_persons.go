package server

import (
	"net/http"
	"strings"

	"github.com/Paladins-Inn/delphi-council/internal/operatives"
	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/gin-gonic/gin"
)

const (
	statusLock    = "lock"
	statusUnlock  = "unlock"
	statusEnable  = "enable"
	statusDisable = "disable"
	statusDelete  = "delete"
)

type personListView struct {
	Persons []persons.Person
	Pager   pager
}

type personView struct {
	Person     *persons.Person
	Self       bool
	Operatives []operatives.Operative
}

type personForm struct {
	Version     int64  `form:"version"`
	Name        string `form:"name"`
	FirstName   string `form:"first_name"`
	LastName    string `form:"last_name"`
	Email       string `form:"email"`
	Locale      string `form:"locale"`
	UseGravatar bool   `form:"gravatar"`
	Password    string `form:"password"`
}

func (f personForm) apply(person *persons.Person) {
	person.Version = f.Version
	person.Name = f.Name
	person.FirstName = f.FirstName
	person.LastName = f.LastName
	person.Email = f.Email
	person.Locale = f.Locale
	person.UseGravatar = f.UseGravatar
}

func (h *httpHandler) listPersons(c *gin.Context) {
	if principalFrom(c).ReadOnly(false) {
		h.renderError(c, errForbidden)
		return
	}
	request, nav := h.pageRequest(c, "")
	records, total, err := h.persons.List(c.Request.Context(), request)
	if err != nil {
		h.renderError(c, err)
		return
	}
	view := personListView{Persons: records, Pager: nav.withTotal(total, "")}
	h.render(c, http.StatusOK, "persons.html", h.newPage(c, "nav.persons", view))
}

// accessiblePerson loads the person of the path. Persons may see themselves;
// everybody else needs the manager roles.
func (h *httpHandler) accessiblePerson(c *gin.Context) (*persons.Person, bool) {
	principal := principalFrom(c)
	id := c.Param("id")
	if principal.ReadOnly(id == principal.PersonID) {
		h.renderError(c, errForbidden)
		return nil, false
	}
	person, err := h.persons.Get(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return nil, false
	}
	return person, true
}

func (h *httpHandler) showPerson(c *gin.Context) {
	person, ok := h.accessiblePerson(c)
	if !ok {
		return
	}
	h.renderPerson(c, http.StatusOK, person)
}

func (h *httpHandler) renderPerson(c *gin.Context, status int, person *persons.Person) {
	view := personView{Person: person, Self: person.ID == principalFrom(c).PersonID}
	records, _, err := h.operatives.List(c.Request.Context(), operatives.Filter{PlayerID: person.ID, IncludeDeleted: true})
	if err != nil {
		h.renderError(c, err)
		return
	}
	view.Operatives = records
	h.render(c, status, "person.html", h.newPage(c, "person.title", view))
}

func (h *httpHandler) savePerson(c *gin.Context) {
	person, ok := h.accessiblePerson(c)
	if !ok {
		return
	}
	var form personForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderError(c, errBadRequest)
		return
	}
	form.apply(person)
	if err := h.persons.Save(c.Request.Context(), person); err != nil {
		h.notifySaveFailed(c, person.DisplayName(), err)
		h.renderPerson(c, statusFor(err), person)
		return
	}
	if password := strings.TrimSpace(form.Password); password != "" {
		if err := h.persons.SetPassword(c.Request.Context(), person.ID, password); err != nil {
			h.notifySaveFailed(c, person.DisplayName(), err)
			h.renderPerson(c, statusFor(err), person)
			return
		}
	}
	h.notifySaved(c, person.DisplayName())
	c.Redirect(http.StatusSeeOther, "/person/"+person.ID)
}

// savePersonRoles replaces the roles of a person. Only admins grant or
// revoke ADMIN; for everybody else the stored ADMIN role is kept as is.
func (h *httpHandler) savePersonRoles(c *gin.Context) {
	principal := principalFrom(c)
	if principal.ReadOnly(false) {
		h.renderError(c, errForbidden)
		return
	}
	person, err := h.persons.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	values := c.PostFormArray("roles")
	roles := make([]persons.RoleName, 0, len(values)+1)
	for _, value := range values {
		role, err := persons.ParseRole(value)
		if err != nil {
			role = persons.RoleName(value)
		}
		if role == persons.RoleAdmin && !principal.IsAdmin() {
			continue
		}
		roles = append(roles, role)
	}
	if !principal.IsAdmin() && person.HasRole(persons.RoleAdmin) {
		roles = append(roles, persons.RoleAdmin)
	}
	if err := h.persons.SetRoles(c.Request.Context(), person.ID, roles); err != nil {
		h.notifySaveFailed(c, person.DisplayName(), err)
	} else {
		h.notifySaved(c, person.DisplayName())
	}
	c.Redirect(http.StatusSeeOther, "/person/"+person.ID)
}

func (h *httpHandler) changePersonStatus(c *gin.Context) {
	principal := principalFrom(c)
	if principal.ReadOnly(false) {
		h.renderError(c, errForbidden)
		return
	}
	person, err := h.persons.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	ctx := c.Request.Context()
	name := person.DisplayName()
	switch action := c.PostForm("action"); action {
	case statusLock:
		err = h.persons.Lock(ctx, person.ID)
	case statusUnlock:
		err = h.persons.Unlock(ctx, person.ID)
	case statusEnable:
		err = h.persons.Enable(ctx, person.ID)
	case statusDisable:
		err = h.persons.Disable(ctx, person.ID)
	case statusDelete:
		if person.ID == principal.PersonID {
			err = errForbidden
			break
		}
		if err = h.persons.MarkDeleted(ctx, person.ID); err == nil {
			h.notifyDeleted(c, name)
			c.Redirect(http.StatusSeeOther, "/persons")
			return
		}
	default:
		err = errBadRequest
	}
	if err != nil {
		h.notifySaveFailed(c, name, err)
	} else {
		h.notifySaved(c, name)
	}
	c.Redirect(http.StatusSeeOther, "/person/"+person.ID)
}

func (h *httpHandler) servePersonAvatar(c *gin.Context) {
	person, err := h.persons.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Status(statusFor(err))
		return
	}
	if person.IsDeleted() {
		c.Status(http.StatusNotFound)
		return
	}
	if person.UseGravatar {
		c.Redirect(http.StatusFound, person.GravatarURL())
		return
	}
	serveImage(c, person.Avatar)
}

func (h *httpHandler) uploadPersonAvatar(c *gin.Context) {
	person, ok := h.accessiblePerson(c)
	if !ok {
		return
	}
	image, err := readUpload(c)
	if err == nil {
		err = operatives.ValidateImage(image)
	}
	if err == nil {
		err = h.persons.SetAvatar(c.Request.Context(), person.ID, image)
	}
	if err != nil {
		h.notifySaveFailed(c, person.DisplayName(), err)
	} else {
		h.notifySaved(c, person.DisplayName())
	}
	c.Redirect(http.StatusSeeOther, "/person/"+person.ID)
}
