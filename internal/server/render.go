package server

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/auth"
	"github.com/Paladins-Inn/delphi-council/internal/i18n"
	"github.com/Paladins-Inn/delphi-council/internal/notify"
	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/Paladins-Inn/delphi-council/internal/torg"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

func loadTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"date": func(value time.Time) string {
			if value.IsZero() {
				return ""
			}
			return value.Format(time.DateOnly)
		},
		"datetime": func(value *time.Time) string {
			if value == nil || value.IsZero() {
				return ""
			}
			return value.Format("2006-01-02 15:04")
		},
		"deref": func(value *string) string {
			if value == nil {
				return ""
			}
			return *value
		},
		"clearances":    torg.Clearances,
		"cosms":         torg.Cosms,
		"successStates": torg.SuccessStates,
		"languages":     torg.Languages,
		"roles":         persons.AllRoles,
	}).ParseFS(templateFS, "templates/*.html")
}

type flash struct {
	Level string
	Text  string
}

// page is the data every template receives.
type page struct {
	Title     string
	Principal auth.Principal
	Lang      string
	Languages []i18n.LanguageOption
	Flash     *flash
	Error     string
	Path      string
	Version   string
	Data      any
	translate func(key string, args ...any) string
}

// T translates key into the language of the page.
func (p page) T(key string, args ...any) string {
	return p.translate(key, args...)
}

// Editable reports whether the principal may change records owned by ownerID.
func (p page) Editable(ownerID string) bool {
	return p.Principal.CanEdit(ownerID)
}

// Manager reports whether the principal administers the council data.
func (p page) Manager() bool {
	return !p.Principal.ReadOnly(false)
}

func (h *httpHandler) newPage(c *gin.Context, titleKey string, data any) page {
	tag := localeFrom(c)
	locale := tag.String()
	principal := principalFrom(c)
	p := page{
		Principal: principal,
		Lang:      locale,
		Languages: h.translator.LanguageOptions(tag),
		Path:      c.Request.URL.Path,
		Version:   h.version.Application,
		Data:      data,
		translate: func(key string, args ...any) string {
			return h.translator.Translate(locale, key, args...)
		},
	}
	p.Title = p.T(titleKey)
	if principal.Authenticated() {
		if notification, ok := h.notifier.TakeFlash(principal.PersonID); ok {
			p.Flash = &flash{Level: string(notification.Level), Text: h.renderNotification(locale, notification)}
		}
	}
	return p
}

func (h *httpHandler) render(c *gin.Context, status int, name string, p page) {
	c.HTML(status, name, p)
}

// renderNotification translates a notification. Arguments that are message
// keys themselves are translated too.
func (h *httpHandler) renderNotification(locale string, notification notify.Notification) string {
	args := make([]any, 0, len(notification.Args))
	for _, arg := range notification.Args {
		if key, ok := arg.(string); ok && h.translator.Has(locale, key) {
			args = append(args, h.translator.Translate(locale, key))
			continue
		}
		args = append(args, arg)
	}
	return h.translator.Translate(locale, notification.Key, args...)
}

func (h *httpHandler) notifySaved(c *gin.Context, name string) {
	h.notifier.Success(principalFrom(c).PersonID, "input.data.saved.success", name)
}

func (h *httpHandler) notifyDeleted(c *gin.Context, name string) {
	h.notifier.Success(principalFrom(c).PersonID, "input.data.deleted.success", name)
}

// notifySaveFailed raises the failure notification. Forms rendered afterwards
// in the same request pick it up as their flash.
func (h *httpHandler) notifySaveFailed(c *gin.Context, name string, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		h.logError(c, err)
	}
	reason := h.describeError(localeFrom(c).String(), err)
	h.notifier.Failure(principalFrom(c).PersonID, "input.data.saved.failed", name, reason)
}

func (h *httpHandler) notifyDeleteFailed(c *gin.Context, name string, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		h.logError(c, err)
	}
	reason := h.describeError(localeFrom(c).String(), err)
	h.notifier.Failure(principalFrom(c).PersonID, "input.data.deleted.failed", name, reason)
}

// renderError shows the error page for failures outside a form.
func (h *httpHandler) renderError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logError(c, err)
	}
	p := h.newPage(c, "app.title", nil)
	p.Error = h.describeError(p.Lang, err)
	h.render(c, status, "error.html", p)
	c.Abort()
}

// pager carries list navigation for the templates.
type pager struct {
	Number   int
	Size     int
	Total    int64
	Previous int
	Next     int
	HasPrev  bool
	HasNext  bool
	Query    string
}

func (h *httpHandler) pageRequest(c *gin.Context, order string) (store.Page, pager) {
	number, err := strconv.Atoi(c.Query("page"))
	if err != nil || number < 0 {
		number = 0
	}
	return store.PageAt(number, h.pageSize, order), pager{Number: number, Size: h.pageSize}
}

func (p pager) withTotal(total int64, query string) pager {
	p.Total = total
	p.Previous = p.Number - 1
	p.Next = p.Number + 1
	p.HasPrev = p.Number > 0
	p.HasNext = int64(p.Next*p.Size) < total
	if query != "" && !strings.HasSuffix(query, "&") {
		query += "&"
	}
	p.Query = query
	return p
}
