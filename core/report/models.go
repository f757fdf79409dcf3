package report

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/analytics"
	"github.com/trezcool/soko/core/user"
)

// Generated report statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Schedule frequencies
const (
	FrequencyDaily     = "daily"
	FrequencyWeekly    = "weekly"
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
)

var (
	Statuses    = []string{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}
	Frequencies = []string{FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly}

	// errors
	ErrTemplateNotFound = errors.New("report template not found")
	ErrReportNotFound   = errors.New("report not found")
	ErrScheduleNotFound = errors.New("report schedule not found")
	ErrNotCompleted     = errors.New("report is not completed")
)

// Template is a saved report definition: a report type and its default parameters.
type Template struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	ReportType  string           `json:"report_type"`
	Parameters  analytics.Params `json:"parameters"`
	CreatedBy   string           `json:"created_by"`
	IsPublic    bool             `json:"is_public"`
	CreatedAt   time.Time        `json:"created_at"` // UTC
	UpdatedAt   time.Time        `json:"updated_at"` // UTC
}

// VisibleTo reports whether usr may see and generate the template.
func (t Template) VisibleTo(usr user.User) bool {
	return t.IsPublic || t.CreatedBy == usr.ID || usr.CanViewAll()
}

// EditableBy reports whether usr may modify or delete the template.
func (t Template) EditableBy(usr user.User) bool {
	return t.CreatedBy == usr.ID || usr.IsAdmin()
}

// TemplateData is the writable part of a Template, for creation and replacement.
type TemplateData struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Description string           `json:"description" validate:"max=2000"`
	ReportType  string           `json:"report_type" validate:"required,reporttype"`
	Parameters  analytics.Params `json:"parameters" validate:"-"`
	IsPublic    bool             `json:"is_public"`
}

func (td *TemplateData) Validate(validate *validator.Validate) error {
	td.Name = core.CleanString(td.Name)
	td.Description = core.CleanString(td.Description)
	td.ReportType = core.CleanString(td.ReportType, true /* lower */)
	if err := validate.Struct(td); err != nil {
		return err
	}
	td.Parameters.Clean()
	return td.Parameters.Validate(validate)
}

// GeneratedReport is one execution of a template and its result.
type GeneratedReport struct {
	ID            string          `json:"id"`
	TemplateID    null.String     `json:"template_id"`
	Name          string          `json:"name"`
	Status        string          `json:"status"`
	Data          json.RawMessage `json:"data,omitempty"`
	Summary       json.RawMessage `json:"summary,omitempty"`
	GeneratedBy   string          `json:"generated_by"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	ExecutionTime float64         `json:"execution_time"` // seconds
	CreatedAt     time.Time       `json:"created_at"`     // UTC
	CompletedAt   null.Time       `json:"completed_at"`   // UTC
}

func (r GeneratedReport) VisibleTo(usr user.User) bool {
	return r.GeneratedBy == usr.ID || usr.CanViewAll()
}

func (r GeneratedReport) DeletableBy(usr user.User) bool {
	return r.GeneratedBy == usr.ID || usr.IsAdmin()
}

// Schedule generates a template periodically and emails the result to its recipients.
type Schedule struct {
	ID            string    `json:"id"`
	TemplateID    string    `json:"template_id"`
	Name          string    `json:"name"`
	Frequency     string    `json:"frequency"`
	ScheduledTime string    `json:"scheduled_time"` // HH:MM, UTC
	DayOfWeek     null.Int  `json:"day_of_week"`    // 0 = Monday
	DayOfMonth    null.Int  `json:"day_of_month"`   // 1..28
	Recipients    []string  `json:"recipients"`
	IsActive      bool      `json:"is_active"`
	LastRun       null.Time `json:"last_run"`
	NextRun       null.Time `json:"next_run"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

func (s Schedule) VisibleTo(usr user.User) bool {
	return s.CreatedBy == usr.ID || usr.CanViewAll()
}

func (s Schedule) EditableBy(usr user.User) bool {
	return s.CreatedBy == usr.ID || usr.IsAdmin()
}

// ComputeNextRun returns the first run of s strictly after now.
func (s Schedule) ComputeNextRun(now time.Time) (time.Time, error) {
	return NextRun(s.Frequency, s.ScheduledTime, s.DayOfWeek.Ptr(), s.DayOfMonth.Ptr(), now)
}

// NewSchedule contains information needed to create a new Schedule.
type NewSchedule struct {
	TemplateID    string   `json:"template_id" validate:"required"`
	Name          string   `json:"name" validate:"required,max=200"`
	Frequency     string   `json:"frequency" validate:"required,frequency"`
	ScheduledTime string   `json:"scheduled_time" validate:"required,hhmm"`
	DayOfWeek     *int     `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	DayOfMonth    *int     `json:"day_of_month"`
	Recipients    []string `json:"recipients" validate:"required,min=1,dive,email"`
}

func (ns *NewSchedule) Validate(validate *validator.Validate) error {
	ns.TemplateID = core.CleanString(ns.TemplateID)
	ns.Name = core.CleanString(ns.Name)
	ns.Frequency = core.CleanString(ns.Frequency, true /* lower */)
	ns.ScheduledTime = core.CleanString(ns.ScheduledTime)
	for i, r := range ns.Recipients {
		ns.Recipients[i] = core.CleanString(r, true /* lower */)
	}
	if err := validate.Struct(ns); err != nil {
		return err
	}

	var flds []core.FieldError
	switch ns.Frequency {
	case FrequencyWeekly:
		if ns.DayOfWeek == nil {
			flds = append(flds, core.FieldError{Field: "day_of_week", Error: ErrMissingDayOfWeek.Error()})
		}
	case FrequencyMonthly, FrequencyQuarterly:
		if ns.DayOfMonth == nil {
			flds = append(flds, core.FieldError{Field: "day_of_month", Error: ErrMissingDayOfMonth.Error()})
		}
	}
	if ns.DayOfMonth != nil && !validDayOfMonth(*ns.DayOfMonth) {
		flds = append(flds, core.FieldError{Field: "day_of_month", Error: ErrInvalidDayOfMonth.Error()})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

type (
	// TemplateFilter selects the templates visible to VisibleTo (creator or public). All ignores it.
	TemplateFilter struct {
		VisibleTo string
		All       bool
		Ordering  []core.DBOrdering
	}

	// ReportFilter selects reports generated by GeneratedBy, or every report when empty.
	ReportFilter struct {
		GeneratedBy string
		Status      string
		Ordering    []core.DBOrdering
	}

	// ScheduleFilter selects schedules created by CreatedBy, or every schedule when empty.
	ScheduleFilter struct {
		CreatedBy string
	}
)
