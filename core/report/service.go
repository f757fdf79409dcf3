package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/volatiletech/null/v8"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/analytics"
	"github.com/trezcool/soko/core/user"
)

var (
	reportsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soko",
		Subsystem: "reports",
		Name:      "generated_total",
		Help:      "Generated reports by final status.",
	}, []string{"status"})

	scheduleRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soko",
		Subsystem: "reports",
		Name:      "schedule_runs_total",
		Help:      "Scheduled report runs by result.",
	}, []string{"result"})
)

type (
	TemplateRepository interface {
		CreateTemplate(ctx context.Context, t Template) (Template, error)
		UpdateTemplate(ctx context.Context, t Template) (Template, error)
		DeleteTemplate(ctx context.Context, id string) error
		GetTemplate(ctx context.Context, id string) (Template, error)
		QueryTemplates(ctx context.Context, filter TemplateFilter) ([]Template, error)
	}

	ReportRepository interface {
		CreateReport(ctx context.Context, r GeneratedReport) (GeneratedReport, error)
		UpdateReport(ctx context.Context, r GeneratedReport) (GeneratedReport, error)
		DeleteReport(ctx context.Context, id string) error
		GetReport(ctx context.Context, id string) (GeneratedReport, error)
		QueryReports(ctx context.Context, filter ReportFilter) ([]GeneratedReport, error)
	}

	ScheduleRepository interface {
		CreateSchedule(ctx context.Context, s Schedule) (Schedule, error)
		UpdateSchedule(ctx context.Context, s Schedule) (Schedule, error)
		DeleteSchedule(ctx context.Context, id string) error
		GetSchedule(ctx context.Context, id string) (Schedule, error)
		QuerySchedules(ctx context.Context, filter ScheduleFilter) ([]Schedule, error)
		// DueSchedules returns the active schedules never planned or planned at or before now.
		DueSchedules(ctx context.Context, now time.Time) ([]Schedule, error)
	}

	Repository interface {
		TemplateRepository
		ReportRepository
		ScheduleRepository
	}

	// Generator computes the aggregated data of a report type on behalf of actor.
	Generator interface {
		Run(ctx context.Context, actor user.User, kind string, params analytics.Params) (interface{}, error)
	}

	Service struct {
		repo        Repository
		users       user.Repository
		generator   Generator
		email       core.EmailService
		clock       clockwork.Clock
		logger      core.Logger
		concurrency int
	}
)

func NewService(
	repo Repository,
	users user.Repository,
	generator Generator,
	email core.EmailService,
	clock clockwork.Clock,
	logger core.Logger,
	concurrency int,
) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		repo:        repo,
		users:       users,
		generator:   generator,
		email:       email,
		clock:       clock,
		logger:      logger,
		concurrency: concurrency,
	}
}

func (svc *Service) now() time.Time {
	return svc.clock.Now().UTC()
}

// Templates

func (svc *Service) CreateTemplate(ctx context.Context, actor user.User, data TemplateData) (Template, error) {
	now := svc.now()
	return svc.repo.CreateTemplate(ctx, Template{
		Name:        data.Name,
		Description: data.Description,
		ReportType:  data.ReportType,
		Parameters:  data.Parameters,
		CreatedBy:   actor.ID,
		IsPublic:    data.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// GetTemplate returns the template if actor may see it, ErrTemplateNotFound otherwise.
func (svc *Service) GetTemplate(ctx context.Context, actor user.User, id string) (Template, error) {
	tmpl, err := svc.repo.GetTemplate(ctx, id)
	if err != nil {
		return Template{}, err
	}
	if !tmpl.VisibleTo(actor) {
		return Template{}, ErrTemplateNotFound
	}
	return tmpl, nil
}

func (svc *Service) QueryTemplates(ctx context.Context, actor user.User, ordering ...core.DBOrdering) ([]Template, error) {
	return svc.repo.QueryTemplates(ctx, TemplateFilter{VisibleTo: actor.ID, All: actor.CanViewAll(), Ordering: ordering})
}

func (svc *Service) UpdateTemplate(ctx context.Context, actor user.User, tmpl Template, data TemplateData) (Template, error) {
	if !tmpl.EditableBy(actor) {
		return Template{}, core.ErrPermissionDenied
	}
	tmpl.Name = data.Name
	tmpl.Description = data.Description
	tmpl.ReportType = data.ReportType
	tmpl.Parameters = data.Parameters
	tmpl.IsPublic = data.IsPublic
	tmpl.UpdatedAt = svc.now()
	return svc.repo.UpdateTemplate(ctx, tmpl)
}

func (svc *Service) DeleteTemplate(ctx context.Context, actor user.User, tmpl Template) error {
	if !tmpl.EditableBy(actor) {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeleteTemplate(ctx, tmpl.ID)
}

// DuplicateTemplate copies tmpl as a private template of actor, named name or "<name> (Copy)".
func (svc *Service) DuplicateTemplate(ctx context.Context, actor user.User, tmpl Template, name string) (Template, error) {
	name = core.CleanString(name)
	if name == "" {
		name = tmpl.Name + " (Copy)"
	}
	return svc.CreateTemplate(ctx, actor, TemplateData{
		Name:        name,
		Description: tmpl.Description,
		ReportType:  tmpl.ReportType,
		Parameters:  tmpl.Parameters,
	})
}

// Generated reports

// mergeParams overrides the template parameters with every field set in override.
func mergeParams(base analytics.Params, override *analytics.Params) analytics.Params {
	if override == nil {
		return base
	}
	if override.StartDate != nil {
		base.StartDate = override.StartDate
	}
	if override.EndDate != nil {
		base.EndDate = override.EndDate
	}
	if override.Grouping != "" {
		base.Grouping = override.Grouping
	}
	if override.TargetUserID != "" {
		base.TargetUserID = override.TargetUserID
	}
	return base
}

// Generate runs tmpl as actor and records the outcome. The report is stored as pending, then
// processing, then completed or failed. On failure the failed report is returned with the error.
func (svc *Service) Generate(ctx context.Context, actor user.User, tmpl Template, override *analytics.Params) (GeneratedReport, error) {
	now := svc.now()
	rep, err := svc.repo.CreateReport(ctx, GeneratedReport{
		TemplateID:  null.StringFrom(tmpl.ID),
		Name:        fmt.Sprintf("%s - %s", tmpl.Name, now.Format("2006-01-02 15:04")),
		Status:      StatusPending,
		GeneratedBy: actor.ID,
		CreatedAt:   now,
	})
	if err != nil {
		return GeneratedReport{}, errors.Wrap(err, "creating report")
	}

	rep.Status = StatusProcessing
	if rep, err = svc.repo.UpdateReport(ctx, rep); err != nil {
		return rep, errors.Wrap(err, "updating report")
	}

	start := svc.clock.Now()
	result, genErr := svc.generator.Run(ctx, actor, tmpl.ReportType, mergeParams(tmpl.Parameters, override))
	if genErr == nil {
		rep.Data, genErr = json.Marshal(result)
	}
	if genErr == nil {
		rep.Summary, genErr = summarize(rep.Data, svc.now())
	}
	rep.ExecutionTime = svc.clock.Since(start).Round(time.Millisecond).Seconds()
	rep.CompletedAt = null.TimeFrom(svc.now())

	if genErr != nil {
		rep.Status = StatusFailed
		rep.ErrorMessage = genErr.Error()
		rep.Data = nil
		rep.Summary = nil
	} else {
		rep.Status = StatusCompleted
	}
	reportsGenerated.WithLabelValues(rep.Status).Inc()

	if rep, err = svc.repo.UpdateReport(ctx, rep); err != nil {
		return rep, errors.Wrap(err, "updating report")
	}
	return rep, genErr
}

// summarize builds the stored summary of report data: its "summary" object (if any) plus
// generated_at and data_points, the number of rows across every list of the report.
func summarize(data []byte, now time.Time) (json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, errors.Wrap(err, "decoding report data")
	}

	summary := make(map[string]interface{})
	if raw, ok := top["summary"]; ok {
		_ = json.Unmarshal(raw, &summary)
	}
	points := 0
	for _, raw := range top {
		var rows []json.RawMessage
		if json.Unmarshal(raw, &rows) == nil {
			points += len(rows)
		}
	}
	summary["generated_at"] = now.Format(time.RFC3339)
	summary["data_points"] = points
	return json.Marshal(summary)
}

// GetReport returns the report if actor may see it, ErrReportNotFound otherwise.
func (svc *Service) GetReport(ctx context.Context, actor user.User, id string) (GeneratedReport, error) {
	rep, err := svc.repo.GetReport(ctx, id)
	if err != nil {
		return GeneratedReport{}, err
	}
	if !rep.VisibleTo(actor) {
		return GeneratedReport{}, ErrReportNotFound
	}
	return rep, nil
}

// QueryReports lists the reports visible to actor, optionally only those with the given status.
func (svc *Service) QueryReports(ctx context.Context, actor user.User, status string, ordering ...core.DBOrdering) ([]GeneratedReport, error) {
	filter := ReportFilter{Status: status, Ordering: ordering}
	if !actor.CanViewAll() {
		filter.GeneratedBy = actor.ID
	}
	return svc.repo.QueryReports(ctx, filter)
}

func (svc *Service) DeleteReport(ctx context.Context, actor user.User, rep GeneratedReport) error {
	if !rep.DeletableBy(actor) {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeleteReport(ctx, rep.ID)
}

// Export writes the CSV of a completed report to w.
func (svc *Service) Export(rep GeneratedReport, w io.Writer) error {
	if rep.Status != StatusCompleted {
		return core.NewValidationError(ErrNotCompleted)
	}
	return ExportCSV(w, rep.Data)
}

// Schedules

func (svc *Service) CreateSchedule(ctx context.Context, actor user.User, ns NewSchedule) (Schedule, error) {
	if _, err := svc.GetTemplate(ctx, actor, ns.TemplateID); err != nil {
		if errors.Cause(err) == ErrTemplateNotFound {
			return Schedule{}, core.NewValidationError(nil, core.FieldError{Field: "template_id", Error: ErrTemplateNotFound.Error()})
		}
		return Schedule{}, err
	}

	now := svc.now()
	s := Schedule{
		TemplateID:    ns.TemplateID,
		Name:          ns.Name,
		Frequency:     ns.Frequency,
		ScheduledTime: ns.ScheduledTime,
		DayOfWeek:     null.IntFromPtr(ns.DayOfWeek),
		DayOfMonth:    null.IntFromPtr(ns.DayOfMonth),
		Recipients:    ns.Recipients,
		IsActive:      true,
		CreatedBy:     actor.ID,
		CreatedAt:     now,
	}
	next, err := s.ComputeNextRun(now)
	if err != nil {
		return Schedule{}, core.NewValidationError(err)
	}
	s.NextRun = null.TimeFrom(next)
	return svc.repo.CreateSchedule(ctx, s)
}

// GetSchedule returns the schedule if actor may see it, ErrScheduleNotFound otherwise.
func (svc *Service) GetSchedule(ctx context.Context, actor user.User, id string) (Schedule, error) {
	s, err := svc.repo.GetSchedule(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	if !s.VisibleTo(actor) {
		return Schedule{}, ErrScheduleNotFound
	}
	return s, nil
}

func (svc *Service) QuerySchedules(ctx context.Context, actor user.User) ([]Schedule, error) {
	var filter ScheduleFilter
	if !actor.CanViewAll() {
		filter.CreatedBy = actor.ID
	}
	return svc.repo.QuerySchedules(ctx, filter)
}

func (svc *Service) DeleteSchedule(ctx context.Context, actor user.User, s Schedule) error {
	if !s.EditableBy(actor) {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeleteSchedule(ctx, s.ID)
}

// ToggleSchedule pauses an active schedule or resumes a paused one from now on.
func (svc *Service) ToggleSchedule(ctx context.Context, actor user.User, s Schedule) (Schedule, error) {
	if !s.EditableBy(actor) {
		return Schedule{}, core.ErrPermissionDenied
	}
	s.IsActive = !s.IsActive
	if s.IsActive {
		next, err := s.ComputeNextRun(svc.now())
		if err != nil {
			return Schedule{}, core.NewValidationError(err)
		}
		s.NextRun = null.TimeFrom(next)
	} else {
		s.NextRun = null.Time{}
	}
	return svc.repo.UpdateSchedule(ctx, s)
}

// RunSchedule runs s immediately, regardless of its plan.
func (svc *Service) RunSchedule(ctx context.Context, actor user.User, s Schedule) (GeneratedReport, error) {
	if !s.EditableBy(actor) {
		return GeneratedReport{}, core.ErrPermissionDenied
	}
	return svc.run(ctx, s)
}

// RunDue runs every due schedule, at most `concurrency` at a time, and returns how many succeeded.
// A failing schedule is logged and does not stop the others.
func (svc *Service) RunDue(ctx context.Context) (int, error) {
	now := svc.now()
	due, err := svc.repo.DueSchedules(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "querying due schedules")
	}

	var ran int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(svc.concurrency)
	for _, s := range due {
		if !ShouldRun(s, now) {
			continue
		}
		s := s
		g.Go(func() error {
			if _, err := svc.run(gctx, s); err != nil {
				svc.logger.Error("scheduled report failed", err, map[string]interface{}{"schedule": s.ID})
				return nil
			}
			atomic.AddInt64(&ran, 1)
			return nil
		})
	}
	err = g.Wait()
	return int(ran), err
}

// run generates the schedule's template as its owner, emails the CSV to the recipients and plans
// the next run. The plan is updated even when generation fails.
func (svc *Service) run(ctx context.Context, s Schedule) (rep GeneratedReport, err error) {
	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		scheduleRuns.WithLabelValues(result).Inc()
	}()

	owner, err := svc.users.GetUser(ctx, user.GetFilter{ID: s.CreatedBy})
	if err != nil {
		return GeneratedReport{}, errors.Wrap(err, "getting schedule owner")
	}
	tmpl, err := svc.repo.GetTemplate(ctx, s.TemplateID)
	if err != nil {
		return GeneratedReport{}, errors.Wrap(err, "getting schedule template")
	}

	rep, genErr := svc.Generate(ctx, owner, tmpl, nil)

	now := svc.now()
	s.LastRun = null.TimeFrom(now)
	if next, err := s.ComputeNextRun(now); err == nil {
		s.NextRun = null.TimeFrom(next)
	} else {
		s.NextRun = null.Time{}
		svc.logger.Warn("cannot plan schedule", err, map[string]interface{}{"schedule": s.ID})
	}
	if _, err := svc.repo.UpdateSchedule(ctx, s); err != nil {
		return rep, errors.Wrap(err, "updating schedule")
	}

	if genErr != nil {
		return rep, errors.Wrap(genErr, "generating report")
	}
	if err := svc.deliver(s, rep, now); err != nil {
		return rep, errors.Wrap(err, "delivering report")
	}
	return rep, nil
}

func (svc *Service) deliver(s Schedule, rep GeneratedReport, now time.Time) error {
	to, err := core.ParseAddressList(s.Recipients)
	if err != nil {
		return errors.Wrap(err, "parsing recipients")
	}
	if len(to) == 0 {
		return nil
	}

	var buf bytes.Buffer
	if err := svc.Export(rep, &buf); err != nil {
		return err
	}

	msg := &core.EmailMessage{
		To:      to,
		Subject: "Scheduled report: " + s.Name,
		BodyStr: deliveryBody(s, rep),
	}
	if err := msg.Attach(&buf, Filename(now), CSVContentType); err != nil {
		return errors.Wrap(err, "attaching report")
	}
	svc.email.SendMessages(msg)
	return nil
}

func deliveryBody(s Schedule, rep GeneratedReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\nPlease find attached the %s report \"%s\".\n\n", s.Frequency, rep.Name)

	var summary map[string]interface{}
	if json.Unmarshal(rep.Summary, &summary) == nil {
		if at, ok := summary["generated_at"].(string); ok {
			fmt.Fprintf(&b, "Generated at: %s\n", at)
		}
		if n, ok := summary["data_points"].(float64); ok {
			fmt.Fprintf(&b, "Data points: %s\n", FormatCount(int64(n)))
		}
	}
	b.WriteString("\nThis is an automated message.\n")
	return b.String()
}
