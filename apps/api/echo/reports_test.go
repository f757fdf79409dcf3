package echoapi_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soko/core/analytics"
	"github.com/trezcool/soko/core/report"
	"github.com/trezcool/soko/core/sale"
	"github.com/trezcool/soko/core/user"
	testutil "github.com/trezcool/soko/tests"
)

func (app *testApp) createTemplate(t *testing.T, token string, data report.TemplateData) report.Template {
	t.Helper()
	rec := app.do(http.MethodPost, "/v1/reports/templates", token, marshalObj(t, data))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tmpl report.Template
	unmarshalBody(t, rec, &tmpl)
	return tmpl
}

func (app *testApp) generate(t *testing.T, token, templateID string) report.GeneratedReport {
	t.Helper()
	rec := app.do(http.MethodPost, "/v1/reports/templates/"+templateID+"/generate", token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rep report.GeneratedReport
	unmarshalBody(t, rec, &rep)
	return rep
}

func Test_reportApi_templates(t *testing.T) {
	app := newTestApp(t)
	alice := testutil.CreateUser(t, app.users, "alice", user.RoleUser)
	bob := testutil.CreateUser(t, app.users, "bob", user.RoleUser)
	admin := testutil.CreateUser(t, app.users, "root", user.RoleAdmin)
	aliceToken, bobToken := app.token(t, alice), app.token(t, bob)

	private := app.createTemplate(t, aliceToken, report.TemplateData{
		Name:       "  Weekly sales ",
		ReportType: analytics.KindSalesPerformance,
		Parameters: analytics.Params{Grouping: analytics.GroupByWeek},
	})
	assert.Equal(t, "Weekly sales", private.Name)
	assert.Equal(t, alice.ID, private.CreatedBy)
	assert.Equal(t, analytics.GroupByWeek, private.Parameters.Grouping)

	public := app.createTemplate(t, aliceToken, report.TemplateData{
		Name:       "Tasks",
		ReportType: analytics.KindTaskCompletion,
		IsPublic:   true,
	})
	assert.Equal(t, analytics.GroupByMonth, public.Parameters.Grouping)

	app.run(t, []httpTest{
		{
			name: "invalid template", method: http.MethodPost, path: "/v1/reports/templates", token: aliceToken,
			body:     []byte(`{"name": " ", "report_type": "revenue"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{
				"name":        "this field is required",
				"report_type": "report_type must be one of sales_performance, customer_engagement, task_completion, conversion_ratios or user_activity",
			}),
		},
		{
			name: "invalid parameters", method: http.MethodPost, path: "/v1/reports/templates", token: aliceToken,
			body:     []byte(`{"name": "x", "report_type": "task_completion", "parameters": {"start_date": "yesterday"}}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"start_date": "invalid date, expected YYYY-MM-DD or RFC3339"}),
		},
		{
			name: "invalid grouping", method: http.MethodPost, path: "/v1/reports/templates", token: aliceToken,
			body:     []byte(`{"name": "x", "report_type": "task_completion", "parameters": {"grouping": "Year"}}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"grouping": "grouping must be one of day, week or month"}),
		},
		{name: "owner lists own templates", path: "/v1/reports/templates?ordering=name", token: aliceToken, wantData: marshalObj(t, []report.Template{public, private})},
		{name: "others only see public templates", path: "/v1/reports/templates", token: bobToken, wantData: marshalObj(t, []report.Template{public})},
		{name: "admin sees every template", path: "/v1/reports/templates?ordering=-name", token: app.token(t, admin), wantData: marshalObj(t, []report.Template{private, public})},
		{name: "retrieve public", path: "/v1/reports/templates/" + public.ID, token: bobToken, wantData: marshalObj(t, public)},
		{
			name: "private is hidden", path: "/v1/reports/templates/" + private.ID, token: bobToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: report.ErrTemplateNotFound.Error()}),
		},
		{
			name: "unknown template", path: "/v1/reports/templates/0b1c8e9e-7a0f-4d1c-9d8e-1f2a3b4c5d6e", token: aliceToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: report.ErrTemplateNotFound.Error()}),
		},
		{
			name: "only the owner edits", method: http.MethodPut, path: "/v1/reports/templates/" + public.ID, token: bobToken,
			body:     marshalObj(t, report.TemplateData{Name: "Mine", ReportType: analytics.KindTaskCompletion}),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden),
		},
		{
			name: "only the owner deletes", method: http.MethodDelete, path: "/v1/reports/templates/" + public.ID, token: bobToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden),
		},
	})

	t.Run("update", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/reports/templates/"+private.ID, aliceToken, marshalObj(t, report.TemplateData{
			Name:       "Daily sales",
			ReportType: analytics.KindSalesPerformance,
			Parameters: analytics.Params{Grouping: analytics.GroupByDay},
			IsPublic:   true,
		}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var tmpl report.Template
		unmarshalBody(t, rec, &tmpl)
		assert.Equal(t, private.ID, tmpl.ID)
		assert.Equal(t, "Daily sales", tmpl.Name)
		assert.Equal(t, analytics.GroupByDay, tmpl.Parameters.Grouping)
		assert.True(t, tmpl.IsPublic)
	})

	t.Run("duplicate", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/reports/templates/"+public.ID+"/duplicate", bobToken)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var dup report.Template
		unmarshalBody(t, rec, &dup)
		assert.NotEqual(t, public.ID, dup.ID)
		assert.Equal(t, "Tasks (Copy)", dup.Name)
		assert.Equal(t, bob.ID, dup.CreatedBy)
		assert.False(t, dup.IsPublic)

		rec = app.do(http.MethodPost, "/v1/reports/templates/"+public.ID+"/duplicate", bobToken, []byte(`{"name": "My tasks"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshalBody(t, rec, &dup)
		assert.Equal(t, "My tasks", dup.Name)
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/reports/templates/"+public.ID, aliceToken)
		assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = app.do(http.MethodGet, "/v1/reports/templates/"+public.ID, aliceToken)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})
}

func Test_reportApi_generated(t *testing.T) {
	app := newTestApp(t)
	alice := testutil.CreateUser(t, app.users, "alice", user.RoleUser)
	bob := testutil.CreateUser(t, app.users, "bob", user.RoleUser)
	manager := testutil.CreateUser(t, app.users, "manny", user.RoleManager)
	aliceToken, bobToken := app.token(t, alice), app.token(t, bob)

	testutil.CreateSale(t, app.sales, alice.ID, sale.StatusWon, "1200", now)
	testutil.CreateSale(t, app.sales, alice.ID, sale.StatusNew, "300", now)

	sales := app.createTemplate(t, aliceToken, report.TemplateData{Name: "Sales", ReportType: analytics.KindSalesPerformance, IsPublic: true})
	activity := app.createTemplate(t, aliceToken, report.TemplateData{Name: "Activity", ReportType: analytics.KindUserActivity})

	rep := app.generate(t, aliceToken, sales.ID)
	assert.Equal(t, report.StatusCompleted, rep.Status)
	assert.Equal(t, alice.ID, rep.GeneratedBy)
	assert.Equal(t, sales.ID, rep.TemplateID.String)
	assert.Equal(t, "Sales - 2024-03-15 12:00", rep.Name)
	assert.True(t, rep.CompletedAt.Valid)
	assert.Contains(t, string(rep.Summary), `"generated_at":"2024-03-15T12:00:00Z"`)
	assert.Contains(t, string(rep.Summary), `"total_sales":2`)

	// user activity is staff only: the report is recorded as failed
	rec := app.do(http.MethodPost, "/v1/reports/templates/"+activity.ID+"/generate", aliceToken)
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	var failed []report.GeneratedReport
	rec = app.do(http.MethodGet, "/v1/reports/generated?status=failed", aliceToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshalBody(t, rec, &failed)
	require.Len(t, failed, 1)
	assert.Equal(t, "permission denied", failed[0].ErrorMessage)
	assert.Empty(t, failed[0].Data)

	app.run(t, []httpTest{
		{
			name: "bad override", method: http.MethodPost, path: "/v1/reports/templates/" + sales.ID + "/generate", token: aliceToken,
			body: []byte(`{"grouping": "year"}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"grouping": "grouping must be one of day, week or month"}),
		},
		{
			name: "others' reports are hidden", path: "/v1/reports/generated/" + rep.ID, token: bobToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: report.ErrReportNotFound.Error()}),
		},
		{name: "others list nothing", path: "/v1/reports/generated", token: bobToken, wantData: []byte(`[]`)},
		{
			name: "failed reports cannot be exported", path: "/v1/reports/generated/" + failed[0].ID + "/export", token: aliceToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: report.ErrNotCompleted.Error()}),
		},
	})

	t.Run("override", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/reports/templates/"+sales.ID+"/generate", aliceToken, []byte(`{"start_date": "2024-04-01"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var rep report.GeneratedReport
		unmarshalBody(t, rec, &rep)
		assert.Contains(t, string(rep.Summary), `"total_sales":0`)
	})

	t.Run("staff list every report", func(t *testing.T) {
		var reps []report.GeneratedReport
		rec := app.do(http.MethodGet, "/v1/reports/generated?ordering=created_at", app.token(t, manager))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshalBody(t, rec, &reps)
		assert.Len(t, reps, 3)
	})

	t.Run("export", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/reports/generated/"+rep.ID+"/export", aliceToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), report.CSVContentType))
		assert.Equal(t, `attachment; filename="report_20240315_120000.csv"`, rec.Header().Get("Content-Disposition"))

		body := rec.Body.String()
		assert.True(t, strings.HasPrefix(body, "REPORT SUMMARY\n"), body)
		assert.Contains(t, body, "SALES BY STATUS\n")
		assert.Contains(t, body, "TOP PERFORMERS\n")
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/reports/generated/"+rep.ID, aliceToken)
		assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = app.do(http.MethodGet, "/v1/reports/generated/"+rep.ID, aliceToken)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})
}

func Test_reportApi_schedules(t *testing.T) {
	app := newTestApp(t)
	alice := testutil.CreateUser(t, app.users, "alice", user.RoleUser)
	bob := testutil.CreateUser(t, app.users, "bob", user.RoleUser)
	aliceToken, bobToken := app.token(t, alice), app.token(t, bob)

	tmpl := app.createTemplate(t, aliceToken, report.TemplateData{Name: "Sales", ReportType: analytics.KindSalesPerformance})

	newSchedule := func(frequency string, dayOfWeek *int) []byte {
		return marshalObj(t, report.NewSchedule{
			TemplateID:    tmpl.ID,
			Name:          "Morning sales",
			Frequency:     frequency,
			ScheduledTime: "09:30",
			DayOfWeek:     dayOfWeek,
			Recipients:    []string{"Boss@Soko.test"},
		})
	}
	monday := 0

	app.run(t, []httpTest{
		{
			name: "unknown frequency", method: http.MethodPost, path: "/v1/reports/schedules", token: aliceToken,
			body: newSchedule("hourly", nil), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"frequency": "frequency must be one of daily, weekly, monthly or quarterly"}),
		},
		{
			name: "weekly needs a day", method: http.MethodPost, path: "/v1/reports/schedules", token: aliceToken,
			body: newSchedule(report.FrequencyWeekly, nil), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"day_of_week": report.ErrMissingDayOfWeek.Error()}),
		},
		{
			name: "template must be visible", method: http.MethodPost, path: "/v1/reports/schedules", token: bobToken,
			body: newSchedule(report.FrequencyDaily, nil), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"template_id": report.ErrTemplateNotFound.Error()}),
		},
	})

	rec := app.do(http.MethodPost, "/v1/reports/schedules", aliceToken, newSchedule(report.FrequencyWeekly, &monday))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var s report.Schedule
	unmarshalBody(t, rec, &s)
	assert.True(t, s.IsActive)
	assert.Equal(t, []string{"boss@soko.test"}, s.Recipients)
	// 2024-03-15 is a Friday
	assert.True(t, s.NextRun.Time.Equal(time.Date(2024, 3, 18, 9, 30, 0, 0, time.UTC)), s.NextRun.Time.String())

	app.run(t, []httpTest{
		{name: "list own", path: "/v1/reports/schedules", token: aliceToken, wantData: marshalObj(t, []report.Schedule{s})},
		{name: "others list nothing", path: "/v1/reports/schedules", token: bobToken, wantData: []byte(`[]`)},
		{
			name: "others' schedules are hidden", path: "/v1/reports/schedules/" + s.ID, token: bobToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: report.ErrScheduleNotFound.Error()}),
		},
	})

	t.Run("toggle", func(t *testing.T) {
		var paused report.Schedule
		rec := app.do(http.MethodPost, "/v1/reports/schedules/"+s.ID+"/toggle", aliceToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshalBody(t, rec, &paused)
		assert.False(t, paused.IsActive)
		assert.False(t, paused.NextRun.Valid)

		var resumed report.Schedule
		rec = app.do(http.MethodPost, "/v1/reports/schedules/"+s.ID+"/toggle", aliceToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshalBody(t, rec, &resumed)
		assert.True(t, resumed.IsActive)
		assert.True(t, resumed.NextRun.Time.After(now))
	})

	t.Run("run now", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/reports/schedules/"+s.ID+"/run", aliceToken)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var rep report.GeneratedReport
		unmarshalBody(t, rec, &rep)
		assert.Equal(t, report.StatusCompleted, rep.Status)

		sent := app.mail.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "boss@soko.test", sent[0].To[0].Address)
		assert.Equal(t, "Scheduled report: Morning sales", sent[0].Subject)
		require.Len(t, sent[0].Attachments, 1)
		assert.Equal(t, "report_20240315_120000.csv", sent[0].Attachments[0].Filename)

		var ran report.Schedule
		rec = app.do(http.MethodGet, "/v1/reports/schedules/"+s.ID, aliceToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshalBody(t, rec, &ran)
		assert.True(t, ran.LastRun.Time.Equal(now))
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/reports/schedules/"+s.ID, bobToken)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

		rec = app.do(http.MethodDelete, "/v1/reports/schedules/"+s.ID, aliceToken)
		assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	})
}
