package analytics

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/soko/core"
)

// Time bucket units.
const (
	GroupByDay   = "day"
	GroupByWeek  = "week"
	GroupByMonth = "month"
)

const dateLayout = "2006-01-02"

var (
	Groupings = []string{GroupByDay, GroupByWeek, GroupByMonth}

	errInvalidDate = errors.New("invalid date, expected YYYY-MM-DD or RFC3339")
)

// Params are the inputs shared by every report. The zero value means all time, grouped by month,
// for the acting user's default scope.
type Params struct {
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Grouping     string     `json:"grouping,omitempty" validate:"grouping"`
	TargetUserID string     `json:"user_id,omitempty"`
}

// ParseDate accepts either a plain date or an RFC3339 timestamp and returns the UTC calendar day.
func ParseDate(s string) (time.Time, error) {
	s = core.CleanString(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// UnmarshalJSON accepts dates in either format understood by ParseDate.
func (p *Params) UnmarshalJSON(data []byte) error {
	var raw struct {
		StartDate    string `json:"start_date"`
		EndDate      string `json:"end_date"`
		Grouping     string `json:"grouping"`
		TargetUserID string `json:"user_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var flds []core.FieldError
	dates := []struct {
		field string
		value string
		dst   **time.Time
	}{
		{"start_date", raw.StartDate, &p.StartDate},
		{"end_date", raw.EndDate, &p.EndDate},
	}
	for _, d := range dates {
		*d.dst = nil
		if core.CleanString(d.value) == "" {
			continue
		}
		t, err := ParseDate(d.value)
		if err != nil {
			flds = append(flds, core.FieldError{Field: d.field, Error: err.Error()})
			continue
		}
		*d.dst = &t
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}

	p.Grouping = raw.Grouping
	p.TargetUserID = raw.TargetUserID
	return nil
}

// Clean normalises params so that equivalent inputs serialize (and thus cache) identically.
func (p *Params) Clean() {
	p.Grouping = core.CleanString(p.Grouping, true /* lower */)
	if p.Grouping == "" {
		p.Grouping = GroupByMonth
	}
	p.TargetUserID = core.CleanString(p.TargetUserID)
	if p.StartDate != nil {
		d := truncateDay(*p.StartDate)
		p.StartDate = &d
	}
	if p.EndDate != nil {
		d := truncateDay(*p.EndDate)
		p.EndDate = &d
	}
}

// Validate checks cleaned params.
func (p Params) Validate(validate *validator.Validate) error {
	if err := validate.Struct(p); err != nil {
		return err
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "end_date must not be before start_date"})
	}
	return nil
}

// Range returns the created_at bounds of the params: [from, until). Unset bounds are zero.
func (p Params) Range() (from, until time.Time) {
	if p.StartDate != nil {
		from = *p.StartDate
	}
	if p.EndDate != nil {
		until = p.EndDate.AddDate(0, 0, 1) // end date is inclusive
	}
	return from, until
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// truncate returns the start of the bucket holding t.
func truncate(t time.Time, grouping string) time.Time {
	d := truncateDay(t)
	switch grouping {
	case GroupByDay:
		return d
	case GroupByWeek:
		offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
		return d.AddDate(0, 0, -offset)
	default:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

func periodLabel(t time.Time) string {
	return t.Format(dateLayout)
}
