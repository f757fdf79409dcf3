package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/analytics"
	"github.com/trezcool/soko/core/report"
)

const (
	templateColumns = "id, name, description, report_type, parameters, created_by, is_public, created_at, updated_at"
	reportColumns   = "id, template_id, name, status, data, summary, generated_by, error_message, execution_time, " +
		"created_at, completed_at"
	scheduleColumns = "id, template_id, name, frequency, scheduled_time, day_of_week, day_of_month, recipients, " +
		"is_active, last_run, next_run, created_by, created_at"
)

var (
	templateOrderings = map[string]string{
		"name":       "name",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	reportOrderings = map[string]string{
		"name":           "name",
		"status":         "status",
		"created_at":     "created_at",
		"completed_at":   "completed_at",
		"execution_time": "execution_time",
	}
)

type templateRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	ReportType  string    `db:"report_type"`
	Parameters  string    `db:"parameters"`
	CreatedBy   string    `db:"created_by"`
	IsPublic    bool      `db:"is_public"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r templateRow) template() (report.Template, error) {
	var params analytics.Params
	if r.Parameters != "" {
		if err := json.Unmarshal([]byte(r.Parameters), &params); err != nil {
			return report.Template{}, errors.Wrapf(err, "decoding parameters of template %s", r.ID)
		}
	}
	return report.Template{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		ReportType:  r.ReportType,
		Parameters:  params,
		CreatedBy:   r.CreatedBy,
		IsPublic:    r.IsPublic,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}, nil
}

type reportRow struct {
	ID            string      `db:"id"`
	TemplateID    null.String `db:"template_id"`
	Name          string      `db:"name"`
	Status        string      `db:"status"`
	Data          null.String `db:"data"`
	Summary       null.String `db:"summary"`
	GeneratedBy   string      `db:"generated_by"`
	ErrorMessage  string      `db:"error_message"`
	ExecutionTime float64     `db:"execution_time"`
	CreatedAt     time.Time   `db:"created_at"`
	CompletedAt   null.Time   `db:"completed_at"`
}

func (r reportRow) report() report.GeneratedReport {
	rep := report.GeneratedReport{
		ID:            r.ID,
		TemplateID:    r.TemplateID,
		Name:          r.Name,
		Status:        r.Status,
		GeneratedBy:   r.GeneratedBy,
		ErrorMessage:  r.ErrorMessage,
		ExecutionTime: r.ExecutionTime,
		CreatedAt:     r.CreatedAt.UTC(),
		CompletedAt:   utc(r.CompletedAt),
	}
	if r.Data.Valid {
		rep.Data = json.RawMessage(r.Data.String)
	}
	if r.Summary.Valid {
		rep.Summary = json.RawMessage(r.Summary.String)
	}
	return rep
}

func rawString(raw json.RawMessage) null.String {
	if len(raw) == 0 {
		return null.String{}
	}
	return null.StringFrom(string(raw))
}

type scheduleRow struct {
	ID            string    `db:"id"`
	TemplateID    string    `db:"template_id"`
	Name          string    `db:"name"`
	Frequency     string    `db:"frequency"`
	ScheduledTime string    `db:"scheduled_time"`
	DayOfWeek     null.Int  `db:"day_of_week"`
	DayOfMonth    null.Int  `db:"day_of_month"`
	Recipients    string    `db:"recipients"`
	IsActive      bool      `db:"is_active"`
	LastRun       null.Time `db:"last_run"`
	NextRun       null.Time `db:"next_run"`
	CreatedBy     string    `db:"created_by"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r scheduleRow) schedule() (report.Schedule, error) {
	recipients := make([]string, 0)
	if r.Recipients != "" {
		if err := json.Unmarshal([]byte(r.Recipients), &recipients); err != nil {
			return report.Schedule{}, errors.Wrapf(err, "decoding recipients of schedule %s", r.ID)
		}
	}
	return report.Schedule{
		ID:            r.ID,
		TemplateID:    r.TemplateID,
		Name:          r.Name,
		Frequency:     r.Frequency,
		ScheduledTime: r.ScheduledTime,
		DayOfWeek:     r.DayOfWeek,
		DayOfMonth:    r.DayOfMonth,
		Recipients:    recipients,
		IsActive:      r.IsActive,
		LastRun:       utc(r.LastRun),
		NextRun:       utc(r.NextRun),
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt.UTC(),
	}, nil
}

type reportRepository struct {
	exec core.DBExecutor
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(exec core.DBExecutor) *reportRepository {
	return &reportRepository{exec: exec}
}

// templates

func (repo reportRepository) CreateTemplate(ctx context.Context, t report.Template) (report.Template, error) {
	params, err := json.Marshal(t.Parameters)
	if err != nil {
		return report.Template{}, errors.Wrap(err, "encoding template parameters")
	}
	t.ID = uuid.New().String()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()

	_, err = repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO report_templates ("+templateColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		t.ID, t.Name, t.Description, t.ReportType, string(params), t.CreatedBy, t.IsPublic, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return report.Template{}, errors.Wrap(err, "inserting report template")
	}
	return t, nil
}

func (repo reportRepository) UpdateTemplate(ctx context.Context, t report.Template) (report.Template, error) {
	params, err := json.Marshal(t.Parameters)
	if err != nil {
		return report.Template{}, errors.Wrap(err, "encoding template parameters")
	}
	t.UpdatedAt = t.UpdatedAt.UTC()

	err = execAffecting(ctx, repo.exec, report.ErrTemplateNotFound,
		"UPDATE report_templates SET name = ?, description = ?, report_type = ?, parameters = ?, is_public = ?, "+
			"updated_at = ? WHERE id = ?",
		t.Name, t.Description, t.ReportType, string(params), t.IsPublic, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return report.Template{}, wrapExecErr(err, report.ErrTemplateNotFound, "updating report template")
	}
	return t, nil
}

func (repo reportRepository) DeleteTemplate(ctx context.Context, id string) error {
	err := execAffecting(ctx, repo.exec, report.ErrTemplateNotFound, "DELETE FROM report_templates WHERE id = ?", id)
	return wrapExecErr(err, report.ErrTemplateNotFound, "deleting report template")
}

func (repo reportRepository) GetTemplate(ctx context.Context, id string) (report.Template, error) {
	var row templateRow
	if err := get(ctx, repo.exec, &row, "SELECT "+templateColumns+" FROM report_templates WHERE id = ?", id); err != nil {
		return report.Template{}, trapNoRowsErr(err, report.ErrTemplateNotFound, "getting report template")
	}
	return row.template()
}

func (repo reportRepository) QueryTemplates(ctx context.Context, filter report.TemplateFilter) ([]report.Template, error) {
	var where conditions
	if !filter.All {
		where.add("(is_public = ? OR created_by = ?)", true, filter.VisibleTo)
	}
	orderBy := core.OrderByClause(filter.Ordering, templateOrderings, "created_at DESC, id")

	var rows []templateRow
	if err := selectAll(ctx, repo.exec, &rows, "SELECT "+templateColumns+" FROM report_templates", where, orderBy); err != nil {
		return nil, errors.Wrap(err, "querying report templates")
	}
	templates := make([]report.Template, 0, len(rows))
	for _, r := range rows {
		t, err := r.template()
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, nil
}

// generated reports

func (repo reportRepository) CreateReport(ctx context.Context, r report.GeneratedReport) (report.GeneratedReport, error) {
	r.ID = uuid.New().String()
	r.CreatedAt = r.CreatedAt.UTC()
	r.CompletedAt = utc(r.CompletedAt)

	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO generated_reports ("+reportColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		r.ID, r.TemplateID, r.Name, r.Status, rawString(r.Data), rawString(r.Summary), r.GeneratedBy, r.ErrorMessage,
		r.ExecutionTime, r.CreatedAt, r.CompletedAt,
	)
	if err != nil {
		return report.GeneratedReport{}, errors.Wrap(err, "inserting generated report")
	}
	return r, nil
}

func (repo reportRepository) UpdateReport(ctx context.Context, r report.GeneratedReport) (report.GeneratedReport, error) {
	r.CompletedAt = utc(r.CompletedAt)

	err := execAffecting(ctx, repo.exec, report.ErrReportNotFound,
		"UPDATE generated_reports SET name = ?, status = ?, data = ?, summary = ?, error_message = ?, "+
			"execution_time = ?, completed_at = ? WHERE id = ?",
		r.Name, r.Status, rawString(r.Data), rawString(r.Summary), r.ErrorMessage, r.ExecutionTime, r.CompletedAt, r.ID,
	)
	if err != nil {
		return report.GeneratedReport{}, wrapExecErr(err, report.ErrReportNotFound, "updating generated report")
	}
	return r, nil
}

func (repo reportRepository) DeleteReport(ctx context.Context, id string) error {
	err := execAffecting(ctx, repo.exec, report.ErrReportNotFound, "DELETE FROM generated_reports WHERE id = ?", id)
	return wrapExecErr(err, report.ErrReportNotFound, "deleting generated report")
}

func (repo reportRepository) GetReport(ctx context.Context, id string) (report.GeneratedReport, error) {
	var row reportRow
	if err := get(ctx, repo.exec, &row, "SELECT "+reportColumns+" FROM generated_reports WHERE id = ?", id); err != nil {
		return report.GeneratedReport{}, trapNoRowsErr(err, report.ErrReportNotFound, "getting generated report")
	}
	return row.report(), nil
}

func (repo reportRepository) QueryReports(ctx context.Context, filter report.ReportFilter) ([]report.GeneratedReport, error) {
	var where conditions
	if filter.GeneratedBy != "" {
		where.add("generated_by = ?", filter.GeneratedBy)
	}
	if filter.Status != "" {
		where.add("status = ?", filter.Status)
	}
	orderBy := core.OrderByClause(filter.Ordering, reportOrderings, "created_at DESC, id")

	var rows []reportRow
	if err := selectAll(ctx, repo.exec, &rows, "SELECT "+reportColumns+" FROM generated_reports", where, orderBy); err != nil {
		return nil, errors.Wrap(err, "querying generated reports")
	}
	reports := make([]report.GeneratedReport, 0, len(rows))
	for _, r := range rows {
		reports = append(reports, r.report())
	}
	return reports, nil
}

// schedules

func (repo reportRepository) CreateSchedule(ctx context.Context, s report.Schedule) (report.Schedule, error) {
	recipients, err := json.Marshal(s.Recipients)
	if err != nil {
		return report.Schedule{}, errors.Wrap(err, "encoding schedule recipients")
	}
	s.ID = uuid.New().String()
	s.LastRun = utc(s.LastRun)
	s.NextRun = utc(s.NextRun)
	s.CreatedAt = s.CreatedAt.UTC()

	_, err = repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO report_schedules ("+scheduleColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		s.ID, s.TemplateID, s.Name, s.Frequency, s.ScheduledTime, s.DayOfWeek, s.DayOfMonth, string(recipients),
		s.IsActive, s.LastRun, s.NextRun, s.CreatedBy, s.CreatedAt,
	)
	if err != nil {
		return report.Schedule{}, errors.Wrap(err, "inserting report schedule")
	}
	return s, nil
}

func (repo reportRepository) UpdateSchedule(ctx context.Context, s report.Schedule) (report.Schedule, error) {
	recipients, err := json.Marshal(s.Recipients)
	if err != nil {
		return report.Schedule{}, errors.Wrap(err, "encoding schedule recipients")
	}
	s.LastRun = utc(s.LastRun)
	s.NextRun = utc(s.NextRun)

	err = execAffecting(ctx, repo.exec, report.ErrScheduleNotFound,
		"UPDATE report_schedules SET name = ?, frequency = ?, scheduled_time = ?, day_of_week = ?, day_of_month = ?, "+
			"recipients = ?, is_active = ?, last_run = ?, next_run = ? WHERE id = ?",
		s.Name, s.Frequency, s.ScheduledTime, s.DayOfWeek, s.DayOfMonth, string(recipients), s.IsActive, s.LastRun,
		s.NextRun, s.ID,
	)
	if err != nil {
		return report.Schedule{}, wrapExecErr(err, report.ErrScheduleNotFound, "updating report schedule")
	}
	return s, nil
}

func (repo reportRepository) DeleteSchedule(ctx context.Context, id string) error {
	err := execAffecting(ctx, repo.exec, report.ErrScheduleNotFound, "DELETE FROM report_schedules WHERE id = ?", id)
	return wrapExecErr(err, report.ErrScheduleNotFound, "deleting report schedule")
}

func (repo reportRepository) GetSchedule(ctx context.Context, id string) (report.Schedule, error) {
	var row scheduleRow
	if err := get(ctx, repo.exec, &row, "SELECT "+scheduleColumns+" FROM report_schedules WHERE id = ?", id); err != nil {
		return report.Schedule{}, trapNoRowsErr(err, report.ErrScheduleNotFound, "getting report schedule")
	}
	return row.schedule()
}

func (repo reportRepository) QuerySchedules(ctx context.Context, filter report.ScheduleFilter) ([]report.Schedule, error) {
	var where conditions
	if filter.CreatedBy != "" {
		where.add("created_by = ?", filter.CreatedBy)
	}
	return repo.selectSchedules(ctx, where, " ORDER BY created_at DESC, id")
}

func (repo reportRepository) DueSchedules(ctx context.Context, now time.Time) ([]report.Schedule, error) {
	var where conditions
	where.add("is_active = ?", true)
	where.add("(next_run IS NULL OR next_run <= ?)", now.UTC())
	return repo.selectSchedules(ctx, where, " ORDER BY next_run, id")
}

func (repo reportRepository) selectSchedules(ctx context.Context, where conditions, orderBy string) ([]report.Schedule, error) {
	var rows []scheduleRow
	if err := selectAll(ctx, repo.exec, &rows, "SELECT "+scheduleColumns+" FROM report_schedules", where, orderBy); err != nil {
		return nil, errors.Wrap(err, "querying report schedules")
	}
	schedules := make([]report.Schedule, 0, len(rows))
	for _, r := range rows {
		s, err := r.schedule()
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, nil
}
