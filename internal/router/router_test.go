package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/coaching-practice/internal/config"
	"github.com/iliyamo/coaching-practice/internal/handler"
	"github.com/iliyamo/coaching-practice/internal/middleware"
	"github.com/iliyamo/coaching-practice/internal/model"
	"github.com/iliyamo/coaching-practice/internal/repository/memstore"
	"github.com/iliyamo/coaching-practice/internal/service"
	"github.com/iliyamo/coaching-practice/internal/utils"
)

const ttl = 180 * time.Minute

type app struct {
	e       *echo.Echo
	store   *memstore.Store
	clients *service.ClientService
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func newApp(t *testing.T) *app {
	t.Helper()
	st := memstore.New()
	authSvc := service.NewAuthService(st.Users(), utils.NewTokenIssuer("router-test-secret"), ttl, bcrypt.MinCost)
	userSvc := service.NewUserService(st.Users(), st.Clients(), bcrypt.MinCost)
	clientSvc := service.NewClientService(st.Clients(), st.Users(), 8)
	logSvc := service.NewCoachingLogService(st.Clients(), st.Logs(), nil)

	_, err := userSvc.EnsureAdmin(context.Background(), "root", "rootpw")
	require.NoError(t, err)

	e := New(Deps{
		Sessions:  authSvc,
		Auth:      handler.NewAuthHandler(authSvc, handler.CookieConfig{TTL: ttl}),
		Users:     handler.NewUserHandler(userSvc),
		Clients:   handler.NewClientHandler(clientSvc),
		Logs:      handler.NewCoachingLogHandler(logSvc),
		RateLimit: config.RateLimitConfig{Enabled: false},
		Ready:     map[string]handler.Pinger{"mysql": pinger{}, "redis": nil},
	})
	return &app{e: e, store: st, clients: clientSvc}
}

func (a *app) do(method, path string, body string, contentType string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *app) form(path string, vals url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	return a.do(http.MethodPost, path, vals.Encode(), echo.MIMEApplicationForm, cookie)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", middleware.SessionCookie)
	return nil
}

func (a *app) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	rec := a.form("/auth/token", url.Values{"username": {username}, "password": {password}}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Detail
}

// seed creates coach1 and client 42 assigned to coach1, returning both sessions.
func (a *app) seed(t *testing.T) (admin, coach *http.Cookie) {
	t.Helper()
	admin = a.login(t, "root", "rootpw")

	rec := a.form("/users/create", url.Values{
		"username": {"coach1"}, "email": {"c1@example.com"}, "first_name": {"Casey"},
		"last_name": {"One"}, "role": {"coach"},
	}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		Password string `json:"password"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.Password, utils.OneTimePasswordLen)

	a.clients.IDGen = func() uint64 { return 42 }
	rec = a.form("/clients/create", url.Values{
		"first_name": {"Jo"}, "last_name": {"Doe"}, "email": {"jo@example.com"},
		"mobile_phone": {"555"}, "sex": {"F"}, "age": {"30"}, "current_location": {"Oslo"},
		"dq": {`[["goal","run a marathon"]]`},
	}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"client_id":42}`, rec.Body.String())

	rec = a.form("/clients/assign-coach", url.Values{"coach_username": {"coach1"}, "client_id": {"42"}}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	coach = a.login(t, "coach1", created.Password)
	return admin, coach
}

func TestCoachingLogLifecycle(t *testing.T) {
	a := newApp(t)
	_, coach := a.seed(t)

	for _, doc := range []string{`{"ansDate":"2024-01-01"}`, `{"ansDate":"2024-02-01"}`} {
		rec := a.do(http.MethodPost, "/coaching-log/create/42", doc, echo.MIMEApplicationJSON, coach)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"message":"Successfully created coaching log"}`, rec.Body.String())
	}

	rec := a.do(http.MethodGet, "/coaching-log/list/42", "", "", coach)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []model.CoachingLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs, 2)
	assert.True(t, logs[0].Locked)
	assert.False(t, logs[1].Locked)
	assert.Equal(t, "1.1", logs[1].Version)

	reimbs := a.store.Reimbursements()
	require.Len(t, reimbs, 2)
	assert.Equal(t, logs[0].ID, reimbs[0].CoachingLogID)
	assert.Equal(t, logs[1].ID, reimbs[1].CoachingLogID)
	for _, r := range reimbs {
		assert.Equal(t, "coach1", r.ReimbursedTo)
	}

	rec = a.do(http.MethodPut, "/coaching-log/edit/42", `{"ansDate":"2024-02-02"}`, echo.MIMEApplicationJSON, coach)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Successfully edited coaching log"}`, rec.Body.String())

	a.store.LockLogs(42)
	rec = a.do(http.MethodPut, "/coaching-log/edit/42", `{}`, echo.MIMEApplicationJSON, coach)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Accessing locked files", detail(t, rec))

	rec = a.do(http.MethodPost, "/coaching-log/create/42", `[1,2]`, echo.MIMEApplicationJSON, coach)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestEditWithoutLogs(t *testing.T) {
	a := newApp(t)
	_, coach := a.seed(t)
	rec := a.do(http.MethodPut, "/coaching-log/edit/42", `{}`, echo.MIMEApplicationJSON, coach)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Coaching log not found", detail(t, rec))
}

func TestAdminCannotCreateLog(t *testing.T) {
	a := newApp(t)
	admin, _ := a.seed(t)

	rec := a.do(http.MethodPost, "/coaching-log/create/42", `{}`, echo.MIMEApplicationJSON, admin)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Unauthorized access", detail(t, rec))

	rec = a.do(http.MethodGet, "/coaching-log/list/42", "", "", admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutDoesNotRevokeEarlierCookie(t *testing.T) {
	a := newApp(t)
	_, coach := a.seed(t)

	rec := a.do(http.MethodPost, "/auth/logout", "", "", coach)
	require.Equal(t, http.StatusOK, rec.Code)
	expired := sessionCookie(t, rec)
	assert.NotEqual(t, coach.Value, expired.Value)

	rec = a.do(http.MethodGet, "/clients/list", "", "", coach)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":42,"first_name":"Jo","last_name":"Doe"}]`, rec.Body.String())

	rec = a.do(http.MethodGet, "/clients/list", "", "", expired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))
	assert.Equal(t, "Could not validate credentials", detail(t, rec))
}

func TestSessionCookieAttributes(t *testing.T) {
	a := newApp(t)
	rec := a.form("/auth/token", url.Values{"username": {"root"}, "password": {"rootpw"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := sessionCookie(t, rec)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, int(ttl/time.Second), c.MaxAge)
	assert.JSONEq(t, `{"username":"root","email":"","first_name":"","last_name":"","disabled":false,"role":"admin"}`, rec.Body.String())

	rec = a.do(http.MethodPost, "/auth/login", "", "", c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int(ttl/time.Second), sessionCookie(t, rec).MaxAge)
}

func TestAuthFailures(t *testing.T) {
	a := newApp(t)
	_, coach := a.seed(t)

	rec := a.form("/auth/token", url.Values{"username": {"root"}, "password": {"nope"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect username or password", detail(t, rec))

	rec = a.do(http.MethodGet, "/clients/list", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))

	rec = a.do(http.MethodGet, "/users/list-all", "", "", coach)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Operation not permitted", detail(t, rec))

	a.store.SetDisabled("coach1", true)
	rec = a.do(http.MethodGet, "/clients/list", "", "", coach)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Inactive user", detail(t, rec))
}

func TestChangePassword(t *testing.T) {
	a := newApp(t)
	admin := a.login(t, "root", "rootpw")

	rec := a.form("/settings/change-password", url.Values{"current_password": {"bad"}, "new_password": {"x"}}, admin)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect password", detail(t, rec))

	rec = a.form("/settings/change-password", url.Values{"current_password": {"rootpw"}, "new_password": {strings.Repeat("x", 80)}}, admin)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Password must be at most 72 bytes", detail(t, rec))
	a.login(t, "root", "rootpw")

	rec = a.form("/settings/change-password", url.Values{"current_password": {"rootpw"}, "new_password": {"fresh"}}, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	a.login(t, "root", "fresh")
}

func TestUserAndClientAdmin(t *testing.T) {
	a := newApp(t)
	admin, coach := a.seed(t)

	rec := a.form("/users/create", url.Values{
		"username": {"coach1"}, "email": {"x"}, "first_name": {"x"}, "last_name": {"x"}, "role": {"coach"},
	}, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Username exists", detail(t, rec))

	rec = a.form("/users/create", url.Values{
		"username": {"coach9"}, "email": {"x"}, "first_name": {"x"}, "last_name": {"x"}, "role": {"owner"},
	}, admin)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(http.MethodGet, "/users/list-all", "", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "coach1", users[0]["username"])
	assert.NotContains(t, users[0], "hashed_password")
	assert.Len(t, users[0]["clients_list"], 1)

	rec = a.do(http.MethodGet, "/clients/details/42", "", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var view model.ClientCoachView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, model.CoachName{FirstName: "Casey", LastName: "One"}, view.Coach)

	rec = a.form("/clients/assign-coach", url.Values{"coach_username": {"ghost"}, "client_id": {"42"}}, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Username not found", detail(t, rec))
	rec = a.form("/clients/assign-coach", url.Values{"coach_username": {"coach1"}, "client_id": {"7"}}, admin)
	assert.Equal(t, "Client ID not found", detail(t, rec))

	rec = a.form("/clients/create", url.Values{
		"first_name": {"No"}, "last_name": {"Dq"}, "email": {"n@example.com"},
		"mobile_phone": {"1"}, "sex": {"M"}, "age": {"40"}, "current_location": {"Rome"},
	}, admin)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Field required: dq", detail(t, rec))

	rec = a.do(http.MethodGet, "/clients/list-all?limit=1&skip=0", "", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var clients []model.Client
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &clients))
	assert.Len(t, clients, 1)

	rec = a.do(http.MethodGet, "/clients/list-all", "", "", coach)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodGet, "/clients/details/abc", "", "", admin)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHealthRoutes(t *testing.T) {
	a := newApp(t)
	rec := a.do(http.MethodGet, "/healthz", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, "/healthz/ready", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"OK","checks":{"mysql":"up","redis":"disabled"}}`, rec.Body.String())

	e := echo.New()
	RegisterRoutes(e, map[string]handler.Pinger{"mysql": pinger{err: errors.New("down")}})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
