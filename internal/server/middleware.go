package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/auth"
	"github.com/Paladins-Inn/delphi-council/internal/i18n"
	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

const (
	principalContextKey = "dcis_principal"
	localeContextKey    = "dcis_locale"
)

var tracer = otel.Tracer("server")

// traceRequests opens a server span per request; the services nest their
// spans below it.
func traceRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// loadSession attaches the principal of a valid session. Requests without a
// session continue anonymously. The person behind the token is reloaded on
// every request; accounts that may no longer log in lose their session.
func (h *httpHandler) loadSession(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if !errors.Is(err, auth.ErrMissingSessionToken) {
			fields := []zap.Field{zap.Error(err), zap.String("path", c.Request.URL.Path)}
			if errors.Is(err, auth.ErrExpiredSessionToken) {
				h.logger.Info("session validation failed", fields...)
			} else {
				h.logger.Warn("session validation failed", fields...)
			}
			h.clearSessionCookie(c)
		}
		c.Next()
		return
	}
	person, err := h.accounts.Get(c.Request.Context(), claims.PersonID)
	if err == nil {
		err = person.Status.CheckLogin(h.clock().UTC())
	}
	if err != nil {
		fields := []zap.Field{zap.Error(err), zap.String("person_id", claims.PersonID), zap.String("path", c.Request.URL.Path)}
		if errors.Is(err, store.ErrNotFound) || isAccountState(err) {
			h.logger.Info("session rejected", fields...)
		} else {
			h.logger.Warn("session rejected", fields...)
		}
		h.clearSessionCookie(c)
		c.Next()
		return
	}
	principal := auth.PrincipalFromPerson(person)
	c.Set(principalContextKey, principal)
	trace.SpanFromContext(c.Request.Context()).SetAttributes(attribute.String("enduser.id", principal.PersonID))
	c.Next()
}

func isAccountState(err error) bool {
	for _, state := range []error{
		persons.ErrAccountDeleted,
		persons.ErrAccountDisabled,
		persons.ErrAccountLocked,
		persons.ErrAccountExpired,
		persons.ErrCredentialsExpired,
	} {
		if errors.Is(err, state) {
			return true
		}
	}
	return false
}

// requirePageLogin sends anonymous visitors to the login form.
func (h *httpHandler) requirePageLogin(c *gin.Context) {
	if principalFrom(c).Authenticated() {
		c.Next()
		return
	}
	target := "/login"
	if c.Request.Method == http.MethodGet {
		target += "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
	}
	c.Redirect(http.StatusSeeOther, target)
	c.Abort()
}

// requireAPILogin rejects anonymous API calls.
func (h *httpHandler) requireAPILogin(c *gin.Context) {
	if principalFrom(c).Authenticated() {
		c.Next()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "auth.unauthorized"})
}

// resolveLocale picks the language of the response and remembers an explicit
// choice in the language cookie.
func (h *httpHandler) resolveLocale(c *gin.Context) {
	tag, persist := h.translator.ResolveTag(c.Request, principalFrom(c).Locale)
	if persist {
		i18n.SetLanguageCookie(c.Writer, tag)
	}
	c.Set(localeContextKey, tag)
	c.Next()
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Accept", "Accept-Language"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	cleaned := make([]string, 0, len(origins))
	for _, origin := range origins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = cleaned
	}
	return cors.New(cfg)
}

func principalFrom(c *gin.Context) auth.Principal {
	if value, ok := c.Get(principalContextKey); ok {
		if principal, ok := value.(auth.Principal); ok {
			return principal
		}
	}
	return auth.Principal{}
}

func localeFrom(c *gin.Context) language.Tag {
	if value, ok := c.Get(localeContextKey); ok {
		if tag, ok := value.(language.Tag); ok {
			return tag
		}
	}
	return language.English
}

func (h *httpHandler) setSessionCookie(c *gin.Context, token string, expires time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.sessions.CookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *httpHandler) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.sessions.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
