package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/Paladins-Inn/delphi-council/internal/i18n"
	"github.com/Paladins-Inn/delphi-council/internal/operatives"
	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/reports"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginView struct {
	Username string
	Next     string
	Info     string
}

type registerForm struct {
	Username  string `form:"username"`
	FirstName string `form:"first_name"`
	LastName  string `form:"last_name"`
	Email     string `form:"email"`
	Password  string `form:"password"`
	Locale    string `form:"locale"`
}

type messageView struct {
	Text string
	Link string
}

type resetView struct {
	Token string
}

type dashboardView struct {
	Dispatches int64
	Operatives int64
	Reports    int64
	Mine       []operatives.Operative
	Latest     []reports.MissionReport
}

func (h *httpHandler) showLogin(c *gin.Context) {
	p := h.newPage(c, "login.title", nil)
	view := loginView{Next: safeNext(c.Query("next"))}
	if c.Query("out") != "" {
		view.Info = p.T("logout.success")
	}
	p.Data = view
	h.render(c, http.StatusOK, "login.html", p)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	next := safeNext(c.PostForm("next"))

	person, err := h.persons.Authenticate(c.Request.Context(), username, c.PostForm("password"))
	if err != nil {
		status := http.StatusUnauthorized
		if !errors.Is(err, persons.ErrInvalidCredentials) && store.ErrorCode(err) != "persons.authenticate.account_status" {
			status = statusFor(err)
		}
		h.logger.Info("login failed", zap.String("username", username), zap.String("code", store.ErrorCode(err)))
		p := h.newPage(c, "login.title", loginView{Username: username, Next: next})
		p.Error = p.T("login.failed")
		h.render(c, status, "login.html", p)
		return
	}

	token, expires, err := h.issuer.IssueSessionToken(c.Request.Context(), person)
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.setSessionCookie(c, token, expires)
	if tag, ok := h.translator.Match(person.Locale); ok {
		i18n.SetLanguageCookie(c.Writer, tag)
	}
	h.logger.Info("person logged in", zap.String("person_id", person.ID))
	c.Redirect(http.StatusSeeOther, next)
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	h.clearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, "/login?out=1")
}

func (h *httpHandler) showRegister(c *gin.Context) {
	h.render(c, http.StatusOK, "register.html", h.newPage(c, "register.title", registerForm{Locale: localeFrom(c).String()}))
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderError(c, errBadRequest)
		return
	}
	if form.Locale == "" {
		form.Locale = localeFrom(c).String()
	}
	_, err := h.persons.Register(c.Request.Context(), persons.Registration{
		Username:  form.Username,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		Password:  form.Password,
		Locale:    form.Locale,
	})
	if err != nil {
		form.Password = ""
		p := h.newPage(c, "register.title", form)
		p.Error = h.describeError(p.Lang, err)
		h.render(c, statusFor(err), "register.html", p)
		return
	}
	p := h.newPage(c, "register.title", nil)
	p.Data = messageView{Text: p.T("register.success"), Link: "/login"}
	h.render(c, http.StatusOK, "message.html", p)
}

func (h *httpHandler) handleConfirm(c *gin.Context) {
	p := h.newPage(c, "register.title", nil)
	if _, err := h.persons.Confirm(c.Request.Context(), c.Param("token")); err != nil {
		status := http.StatusNotFound
		if !errors.Is(err, persons.ErrUnknownToken) {
			status = statusFor(err)
		}
		p.Data = messageView{Text: p.T("confirm.failed"), Link: "/register"}
		h.render(c, status, "message.html", p)
		return
	}
	p.Data = messageView{Text: p.T("confirm.success"), Link: "/login"}
	h.render(c, http.StatusOK, "message.html", p)
}

func (h *httpHandler) showPasswordResetStart(c *gin.Context) {
	h.render(c, http.StatusOK, "reset_start.html", h.newPage(c, "password_reset.title", nil))
}

func (h *httpHandler) handlePasswordResetStart(c *gin.Context) {
	if err := h.persons.StartPasswordReset(c.Request.Context(), c.PostForm("email")); err != nil {
		h.renderError(c, err)
		return
	}
	p := h.newPage(c, "password_reset.title", nil)
	p.Data = messageView{Text: p.T("password_reset.started"), Link: "/login"}
	h.render(c, http.StatusOK, "message.html", p)
}

func (h *httpHandler) showPasswordReset(c *gin.Context) {
	h.render(c, http.StatusOK, "reset.html", h.newPage(c, "password_reset.title", resetView{Token: c.Param("token")}))
}

func (h *httpHandler) handlePasswordReset(c *gin.Context) {
	token := c.Param("token")
	err := h.persons.ResetPassword(c.Request.Context(), token, c.PostForm("password"))
	p := h.newPage(c, "password_reset.title", nil)
	switch {
	case err == nil:
		p.Data = messageView{Text: p.T("password_reset.success"), Link: "/login"}
		h.render(c, http.StatusOK, "message.html", p)
	case errors.Is(err, persons.ErrUnknownToken):
		p.Data = messageView{Text: p.T("password_reset.failed"), Link: "/password-reset"}
		h.render(c, http.StatusNotFound, "message.html", p)
	default:
		p.Data = resetView{Token: token}
		p.Error = h.describeError(p.Lang, err)
		h.render(c, statusFor(err), "reset.html", p)
	}
}

func (h *httpHandler) handleLanguage(c *gin.Context) {
	if tag, ok := h.translator.Match(c.Param("tag")); ok {
		i18n.SetLanguageCookie(c.Writer, tag)
	}
	c.Redirect(http.StatusSeeOther, safeNext(c.Query("next")))
}

func (h *httpHandler) showDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	principal := principalFrom(c)
	view := dashboardView{}
	var err error
	if view.Dispatches, err = h.missions.CountDispatches(ctx); err != nil {
		h.renderError(c, err)
		return
	}
	if view.Operatives, err = h.operatives.Count(ctx); err != nil {
		h.renderError(c, err)
		return
	}
	if view.Reports, err = h.reports.Count(ctx); err != nil {
		h.renderError(c, err)
		return
	}
	if view.Mine, _, err = h.operatives.List(ctx, operatives.Filter{PlayerID: principal.PersonID}); err != nil {
		h.renderError(c, err)
		return
	}
	if principal.IsGM() {
		view.Latest, _, err = h.reports.List(ctx, reports.Filter{
			GameMasterID: principal.PersonID,
			Page:         store.PageAt(0, 5, ""),
		})
		if err != nil {
			h.renderError(c, err)
			return
		}
	}
	h.render(c, http.StatusOK, "dashboard.html", h.newPage(c, "dashboard.title", view))
}

// safeNext only accepts local paths as redirect targets.
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/dashboard"
	}
	if parsed, err := url.Parse(next); err != nil || parsed.Host != "" || parsed.Scheme != "" {
		return "/dashboard"
	}
	return next
}
