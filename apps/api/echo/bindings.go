package echoapi

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/analytics"
)

var orderingParam = "ordering"

// Ordering binds "?ordering=name,-created_at" (a leading "-" sorts descending).
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// AnalyticsQuery holds the report parameters, from the query string or a JSON body.
type AnalyticsQuery struct {
	StartDate string `query:"start_date" json:"start_date"`
	EndDate   string `query:"end_date" json:"end_date"`
	Grouping  string `query:"grouping" json:"grouping"`
	UserID    string `query:"user_id" json:"user_id"`
}

// Params validates the query and converts it, dates being parsed with analytics.ParseDate.
func (q *AnalyticsQuery) Params(validate *validator.Validate) (analytics.Params, error) {
	q.Grouping = core.CleanString(q.Grouping, true /* lower */)

	params := analytics.Params{Grouping: q.Grouping, TargetUserID: q.UserID}
	var flds []core.FieldError
	if s := core.CleanString(q.StartDate); s != "" {
		if d, err := analytics.ParseDate(s); err == nil {
			params.StartDate = &d
		} else {
			flds = append(flds, core.FieldError{Field: "start_date", Error: err.Error()})
		}
	}
	if s := core.CleanString(q.EndDate); s != "" {
		if d, err := analytics.ParseDate(s); err == nil {
			params.EndDate = &d
		} else {
			flds = append(flds, core.FieldError{Field: "end_date", Error: err.Error()})
		}
	}
	if len(flds) > 0 {
		return analytics.Params{}, core.NewValidationError(nil, flds...)
	}

	params.Clean()
	return params, params.Validate(validate)
}

// Override returns the params to apply over a template's, nil when nothing is set.
func (q *AnalyticsQuery) Override(validate *validator.Validate) (*analytics.Params, error) {
	if *q == (AnalyticsQuery{}) {
		return nil, nil
	}
	params, err := q.Params(validate)
	if err != nil {
		return nil, err
	}
	if q.Grouping == "" {
		params.Grouping = "" // keep the template's
	}
	return &params, nil
}

type (
	DuplicateRequest struct {
		Name string `json:"name" validate:"max=200"`
	}

	ClearCacheResponse struct {
		Cleared int `json:"cleared"`
	}
)
