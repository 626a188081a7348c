package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/auth"
	"github.com/Paladins-Inn/delphi-council/internal/persons"
	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubSessions struct {
	claims auth.SessionClaims
	err    error
}

func (s stubSessions) ValidateRequest(*http.Request) (auth.SessionClaims, error) {
	return s.claims, s.err
}

func (s stubSessions) CookieName() string {
	return "dcis_session"
}

type stubAccounts map[string]*persons.Person

func (s stubAccounts) Get(_ context.Context, id string) (*persons.Person, error) {
	if person, ok := s[id]; ok {
		return person, nil
	}
	return nil, store.NewServiceError("persons.get", "not_found", store.ErrNotFound)
}

var sessionNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func activePerson(id string, roles ...persons.RoleName) *persons.Person {
	person := &persons.Person{Username: "quin", Name: "Quin Sebastian", Locale: "en"}
	person.ID = id
	person.Status = persons.SecurityStatus{
		Enabled:            true,
		Expiry:             sessionNow.Add(24 * time.Hour),
		CredentialsChanged: sessionNow,
	}
	for _, role := range roles {
		person.Roles = append(person.Roles, persons.Role{PersonID: id, Name: role})
	}
	return person
}

func runLoadSession(t *testing.T, sessions SessionValidator, accounts ...*persons.Person) (*httptest.ResponseRecorder, *gin.Context, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/dashboard", http.NoBody)

	lookup := stubAccounts{}
	for _, person := range accounts {
		lookup[person.ID] = person
	}
	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		sessions: sessions,
		accounts: lookup,
		logger:   zap.New(core),
		clock:    func() time.Time { return sessionNow },
	}
	handler.loadSession(ctx)
	return recorder, ctx, logs
}

func TestLoadSessionLogsExpiredTokenAtInfoLevel(t *testing.T) {
	recorder, ctx, logs := runLoadSession(t, stubSessions{err: auth.ErrExpiredSessionToken})

	if principalFrom(ctx).Authenticated() {
		t.Fatalf("expected anonymous principal for expired session")
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entry.Level)
	}
	if entry.Message != "session validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
	hasExpired := false
	for _, field := range entry.Context {
		if field.Type == zapcore.ErrorType && errors.Is(field.Interface.(error), auth.ErrExpiredSessionToken) {
			hasExpired = true
			break
		}
	}
	if !hasExpired {
		t.Fatalf("expected expired token error context, got %v", entry.Context)
	}
	if cookie := recorder.Header().Get("Set-Cookie"); !strings.Contains(cookie, "dcis_session=;") {
		t.Fatalf("expected the session cookie to be cleared, got %q", cookie)
	}
}

func TestLoadSessionLogsUnexpectedTokenErrorAtWarnLevel(t *testing.T) {
	_, _, logs := runLoadSession(t, stubSessions{err: errors.New("signature mismatch")})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for unexpected error, got %s", entries[0].Level)
	}
}

func TestLoadSessionIgnoresMissingToken(t *testing.T) {
	recorder, ctx, logs := runLoadSession(t, stubSessions{err: auth.ErrMissingSessionToken})

	if logs.Len() != 0 {
		t.Fatalf("expected no log entries, got %d", logs.Len())
	}
	if principalFrom(ctx).Authenticated() {
		t.Fatalf("expected anonymous principal")
	}
	if cookie := recorder.Header().Get("Set-Cookie"); cookie != "" {
		t.Fatalf("expected no cookie, got %q", cookie)
	}
}

func TestLoadSessionAttachesPrincipal(t *testing.T) {
	_, ctx, _ := runLoadSession(t, stubSessions{claims: auth.SessionClaims{
		PersonID: "person-1",
		Username: "quin",
		Roles:    []string{"GM", "ORGA"},
	}}, activePerson("person-1", persons.RoleGM))

	principal := principalFrom(ctx)
	if principal.PersonID != "person-1" || !principal.IsGM() {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	if principal.IsOrga() || len(principal.Roles) != 1 {
		t.Fatalf("expected the stored roles to win over the token, got %v", principal.Roles)
	}
}

func TestLoadSessionRejectsLockedAccounts(t *testing.T) {
	locked := activePerson("person-1", persons.RoleOrga)
	locked.Status.Locked = true

	recorder, ctx, logs := runLoadSession(t, stubSessions{claims: auth.SessionClaims{PersonID: "person-1"}}, locked)

	if principalFrom(ctx).Authenticated() {
		t.Fatalf("expected locked accounts to continue anonymously")
	}
	entries := logs.All()
	if len(entries) != 1 || entries[0].Level != zapcore.InfoLevel || entries[0].Message != "session rejected" {
		t.Fatalf("unexpected log entries %+v", entries)
	}
	if cookie := recorder.Header().Get("Set-Cookie"); !strings.Contains(cookie, "dcis_session=;") {
		t.Fatalf("expected the session cookie to be cleared, got %q", cookie)
	}
}

func TestLoadSessionRejectsUnknownPersons(t *testing.T) {
	_, ctx, logs := runLoadSession(t, stubSessions{claims: auth.SessionClaims{PersonID: "person-gone"}})

	if principalFrom(ctx).Authenticated() {
		t.Fatalf("expected anonymous principal for removed persons")
	}
	if logs.FilterMessage("session rejected").Len() != 1 {
		t.Fatalf("expected the rejection to be logged")
	}
}

func TestRequirePageLoginRedirectsAnonymousVisitors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/operatives?all=1", http.NoBody)

	(&httpHandler{}).requirePageLogin(ctx)

	if recorder.Code != http.StatusSeeOther {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusSeeOther)
	}
	if location := recorder.Header().Get("Location"); location != "/login?next=%2Foperatives%3Fall%3D1" {
		t.Fatalf("unexpected redirect target: %q", location)
	}
	if !ctx.IsAborted() {
		t.Fatalf("expected the chain to be aborted")
	}
}

func TestRequireAPILoginRejectsAnonymousCalls(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/api/v1/missions", http.NoBody)

	(&httpHandler{}).requireAPILogin(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(recorder.Body.String(), `"auth.unauthorized"`) {
		t.Fatalf("unexpected body: %s", recorder.Body.String())
	}
}

func TestSafeNextOnlyAcceptsLocalPaths(t *testing.T) {
	cases := map[string]string{
		"":                     "/dashboard",
		"/operatives":          "/operatives",
		"//evil.example.org":   "/dashboard",
		"https://evil.example": "/dashboard",
		"/\\evil":              "/dashboard",
		"/missions?kind=op":    "/missions?kind=op",
	}
	for input, want := range cases {
		if got := safeNext(input); got != want {
			t.Fatalf("safeNext(%q) = %q, want %q", input, got, want)
		}
	}
}
