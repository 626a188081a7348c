// Package server exposes the information system over HTTP: the server
// rendered forms, the notification stream and the JSON API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/auth"
	"github.com/Paladins-Inn/delphi-council/internal/config"
	"github.com/Paladins-Inn/delphi-council/internal/i18n"
	"github.com/Paladins-Inn/delphi-council/internal/missions"
	"github.com/Paladins-Inn/delphi-council/internal/notify"
	"github.com/Paladins-Inn/delphi-council/internal/operatives"
	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/reports"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultPageSize          = 25
	defaultHeartbeatInterval = 30 * time.Second
)

var (
	errMissingSessions   = errors.New("session validator dependency required")
	errMissingIssuer     = errors.New("session issuer dependency required")
	errMissingPersons    = errors.New("person service dependency required")
	errMissingMissions   = errors.New("mission service dependency required")
	errMissingOperatives = errors.New("operative service dependency required")
	errMissingReports    = errors.New("report service dependency required")
	errMissingTranslator = errors.New("translator dependency required")
)

// SessionValidator reads the session of a request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	CookieName() string
}

// AccountLookup loads the person behind a session.
type AccountLookup interface {
	Get(ctx context.Context, id string) (*persons.Person, error)
}

// SessionIssuer signs the session token after a successful login.
type SessionIssuer interface {
	IssueSessionToken(ctx context.Context, person *persons.Person) (string, time.Time, error)
}

// Dependencies wires the handler.
type Dependencies struct {
	Sessions          SessionValidator
	Issuer            SessionIssuer
	Persons           *persons.Service
	Missions          *missions.Service
	Operatives        *operatives.Service
	Reports           *reports.Service
	Translator        *i18n.Translator
	Notifier          *notify.Dispatcher
	Logger            *zap.Logger
	Version           config.VersionInfo
	PageSize          int
	SecureCookies     bool
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	Clock             func() time.Time
}

type httpHandler struct {
	sessions   SessionValidator
	issuer     SessionIssuer
	accounts   AccountLookup
	persons    *persons.Service
	missions   *missions.Service
	operatives *operatives.Service
	reports    *reports.Service
	translator *i18n.Translator
	notifier   *notify.Dispatcher
	logger     *zap.Logger
	version    config.VersionInfo
	pageSize   int
	secure     bool
	heartbeat  time.Duration
	clock      func() time.Time
}

// NewHTTPHandler builds the gin engine with every route registered.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errMissingSessions
	case deps.Issuer == nil:
		return nil, errMissingIssuer
	case deps.Persons == nil:
		return nil, errMissingPersons
	case deps.Missions == nil:
		return nil, errMissingMissions
	case deps.Operatives == nil:
		return nil, errMissingOperatives
	case deps.Reports == nil:
		return nil, errMissingReports
	case deps.Translator == nil:
		return nil, errMissingTranslator
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NewDispatcher()
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	handler := &httpHandler{
		sessions:   deps.Sessions,
		issuer:     deps.Issuer,
		accounts:   deps.Persons,
		persons:    deps.Persons,
		missions:   deps.Missions,
		operatives: deps.Operatives,
		reports:    deps.Reports,
		translator: deps.Translator,
		notifier:   notifier,
		logger:     logger,
		version:    deps.Version,
		pageSize:   pageSize,
		secure:     deps.SecureCookies,
		heartbeat:  heartbeat,
		clock:      clock,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(traceRequests())
	router.Use(handler.loadSession)
	router.Use(handler.resolveLocale)
	router.SetHTMLTemplate(templates)

	router.GET("/", handler.handleRoot)
	router.GET("/login", handler.showLogin)
	router.POST("/login", handler.handleLogin)
	router.GET("/logout", handler.handleLogout)
	router.POST("/logout", handler.handleLogout)
	router.GET("/register", handler.showRegister)
	router.POST("/register", handler.handleRegister)
	router.GET("/confirm/:token", handler.handleConfirm)
	router.GET("/password-reset", handler.showPasswordResetStart)
	router.POST("/password-reset", handler.handlePasswordResetStart)
	router.GET("/password-reset/:token", handler.showPasswordReset)
	router.POST("/password-reset/:token", handler.handlePasswordReset)
	router.GET("/lang/:tag", handler.handleLanguage)

	pages := router.Group("/")
	pages.Use(handler.requirePageLogin)
	{
		pages.GET("/dashboard", handler.showDashboard)
		pages.GET("/events", handler.streamEvents)

		pages.GET("/missions", handler.listDispatches)
		pages.GET("/mission", handler.showDispatch)
		pages.GET("/mission/:id", handler.showDispatch)
		pages.POST("/mission", handler.saveDispatch)
		pages.POST("/mission/:id", handler.saveDispatch)
		pages.POST("/mission/:id/delete", handler.deleteDispatch)

		pages.GET("/missionreports", handler.listReports)
		pages.GET("/missionreport", handler.showReport)
		pages.GET("/missionreport/:mission", handler.showReport)
		pages.GET("/missionreport/:mission/:id", handler.showReport)
		pages.GET("/missionreport/:mission/:id/:gm", handler.showReport)
		pages.POST("/missionreport", handler.saveReport)
		pages.POST("/missionreport/:mission/:id/delete", handler.deleteReport)
		pages.POST("/missionreport/:mission/:id/operatives", handler.addReportOperative)
		pages.POST("/missionreport/:mission/:id/operatives/:operative/delete", handler.removeReportOperative)
		pages.POST("/missionreport/:mission/:id/entries/:entry", handler.saveReportEntry)

		pages.GET("/operatives", handler.listOperatives)
		pages.GET("/operative", handler.showOperative)
		pages.GET("/operative/:id", handler.showOperative)
		pages.POST("/operative", handler.saveOperative)
		pages.POST("/operative/:id", handler.saveOperative)
		pages.POST("/operative/:id/retire", handler.retireOperative)
		pages.GET("/operative/:id/avatar", handler.serveOperativeImage(imageAvatar))
		pages.GET("/operative/:id/token", handler.serveOperativeImage(imageToken))
		pages.POST("/operative/:id/avatar", handler.uploadOperativeImage(imageAvatar))
		pages.POST("/operative/:id/token", handler.uploadOperativeImage(imageToken))

		pages.GET("/specialmissions", handler.listSpecialMissions)
		pages.GET("/specialmission", handler.showSpecialMission)
		pages.GET("/specialmission/:id", handler.showSpecialMission)
		pages.POST("/specialmission", handler.saveSpecialMission)
		pages.POST("/specialmission/:id", handler.saveSpecialMission)
		pages.POST("/specialmission/:id/delete", handler.deleteSpecialMission)
		pages.POST("/specialmission/:id/operatives", handler.addSpecialOperative)
		pages.POST("/specialmission/:id/operatives/:operative/delete", handler.removeSpecialOperative)

		pages.GET("/persons", handler.listPersons)
		pages.GET("/person/:id", handler.showPerson)
		pages.POST("/person/:id", handler.savePerson)
		pages.POST("/person/:id/roles", handler.savePersonRoles)
		pages.POST("/person/:id/status", handler.changePersonStatus)
		pages.GET("/person/:id/avatar", handler.servePersonAvatar)
		pages.POST("/person/:id/avatar", handler.uploadPersonAvatar)
	}

	api := router.Group("/api")
	api.Use(corsMiddleware(deps.AllowedOrigins))
	api.GET("/meta/version", handler.handleVersion)

	v1 := api.Group("/v1")
	v1.Use(handler.requireAPILogin)
	handler.registerAPI(v1)

	return router, nil
}

func (h *httpHandler) handleRoot(c *gin.Context) {
	if principalFrom(c).Authenticated() {
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h *httpHandler) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"application": h.version.Application,
		"api":         h.version.API,
	})
}
