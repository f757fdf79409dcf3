package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"reflect"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	echoapi "github.com/trezcool/soko/apps/api/echo"
	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/analytics"
	"github.com/trezcool/soko/core/customer"
	"github.com/trezcool/soko/core/report"
	"github.com/trezcool/soko/core/sale"
	"github.com/trezcool/soko/core/task"
	"github.com/trezcool/soko/core/user"
	cachesvc "github.com/trezcool/soko/services/cache"
	emailsvc "github.com/trezcool/soko/services/email"
	logsvc "github.com/trezcool/soko/services/logger"
	sqlxrepos "github.com/trezcool/soko/storage/database/sqlx"
	testutil "github.com/trezcool/soko/tests"
)

var (
	now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// testApp is an API server over a fresh in-memory database.
type testApp struct {
	server    *echoapi.Server
	auth      *echoapi.Auth
	clock     clockwork.FakeClock
	mail      *emailsvc.ConsoleService
	users     user.Repository
	sales     sale.Repository
	customers customer.Repository
	tasks     task.Repository
	reports   report.Repository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	conf := &core.Config{
		AppName:          "Soko",
		Env:              "TEST",
		TestMode:         true,
		SecretKey:        "test-secret",
		DefaultFromEmail: mail.Address{Name: "Soko", Address: "noreply@soko.test"},
		Server: core.ServerConfig{
			JWTExpirationDelta: time.Hour,
			DisableReqLogs:     true,
		},
	}
	logger := logsvc.NewZapLogger(zaptest.NewLogger(t))
	clock := clockwork.NewFakeClockAt(now)
	validate, translator := testutil.NewValidator()

	db := testutil.PrepareDB(t)
	app := &testApp{
		clock:     clock,
		mail:      emailsvc.NewConsoleServiceMock(conf, logger),
		users:     sqlxrepos.NewUserRepository(db),
		sales:     sqlxrepos.NewSaleRepository(db),
		customers: sqlxrepos.NewCustomerRepository(db),
		tasks:     sqlxrepos.NewTaskRepository(db),
		reports:   sqlxrepos.NewReportRepository(db),
		auth:      echoapi.NewAuth(conf),
	}

	analyticsSvc := analytics.NewService(app.users, app.sales, app.customers, app.tasks, clock, validate)
	cache := analytics.NewCacheManager(cachesvc.NewMemoryStore(time.Minute), cachesvc.NewMsgpackCodec(1024), logger)
	reportSvc := report.NewService(app.reports, app.users, analyticsSvc, app.mail, clock, logger, 2)

	app.server = echoapi.NewServer(echoapi.ServerDeps{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		Clock:        clock,
		Auth:         app.auth,
		UserSvc:      user.NewService(app.users),
		AnalyticsSvc: analyticsSvc,
		Cache:        cache,
		ReportSvc:    reportSvc,
	})
	return app
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := app.auth.GenerateToken(usr)
	require.NoError(t, err)
	return token
}

// do sends the request to the server and returns the recorded response.
func (app *testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.server.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := app.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func unmarshalBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
		assert.NoError(t, err)
		assert.True(t, ok, "data = %s; want %s", rec.Body.String(), tt.wantData)
	}
}

func TestServer_home(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Soko API!", rec.Body.String())
}

func TestServer_metrics(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServer_auth(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, app.users, "alice", user.RoleUser)
	gone := testutil.CreateUser(t, app.users, "bob", user.RoleUser)
	gone.IsActive = false
	_, err := app.users.UpdateUser(ctx, gone)
	require.NoError(t, err)

	ghost := user.User{ID: "0b1c8e9e-7a0f-4d1c-9d8e-1f2a3b4c5d6e", Username: "ghost"}

	app.run(t, []httpTest{
		{name: "token required", path: "/v1/analytics/dashboard-kpis", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "malformed token", path: "/v1/analytics/dashboard-kpis", token: "not-a-jwt", wantCode: http.StatusUnauthorized},
		{
			name: "unknown user", path: "/v1/analytics/dashboard-kpis", token: app.token(t, ghost),
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "user not authenticated"}),
		},
		{
			name: "deactivated user", path: "/v1/analytics/dashboard-kpis", token: app.token(t, gone),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "active user", path: "/v1/analytics/dashboard-kpis", token: app.token(t, usr)},
	})
}
