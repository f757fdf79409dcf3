package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soko/core/report"
)

const contextObjectKey = "object"

var (
	errTmplNotFoundInCtx  = errors.New("template object not found in echo.Context")
	errRepNotFoundInCtx   = errors.New("report object not found in echo.Context")
	errSchedNotFoundInCtx = errors.New("schedule object not found in echo.Context")
)

type reportApi struct {
	svc      *report.Service
	validate *validator.Validate
	clock    clockwork.Clock
}

func registerReportAPI(g *echo.Group, svc *report.Service, validate *validator.Validate, clock clockwork.Clock) {
	api := reportApi{
		svc:      svc,
		validate: validate,
		clock:    clock,
	}

	rg := g.Group("/reports")

	// templates
	tg := rg.Group("/templates")
	tg.GET("", api.queryTemplates)
	tg.POST("", api.createTemplate)
	tdg := tg.Group("/:id", api.templateMiddleware)
	tdg.GET("", api.retrieveTemplate)
	tdg.PUT("", api.updateTemplate)
	tdg.DELETE("", api.destroyTemplate)
	tdg.POST("/generate", api.generate)
	tdg.POST("/duplicate", api.duplicateTemplate)

	// generated reports
	gg := rg.Group("/generated")
	gg.GET("", api.queryReports)
	gdg := gg.Group("/:id", api.reportMiddleware)
	gdg.GET("", api.retrieveReport)
	gdg.DELETE("", api.destroyReport)
	gdg.GET("/export", api.export)

	// schedules
	sg := rg.Group("/schedules")
	sg.GET("", api.querySchedules)
	sg.POST("", api.createSchedule)
	sdg := sg.Group("/:id", api.scheduleMiddleware)
	sdg.GET("", api.retrieveSchedule)
	sdg.DELETE("", api.destroySchedule)
	sdg.POST("/toggle", api.toggleSchedule)
	sdg.POST("/run", api.runSchedule)
}

// Middlewares loading the ":id" object, if visible to the context user

func (api *reportApi) templateMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		tmpl, err := api.svc.GetTemplate(ctx.Request().Context(), usr, ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "getting template")
		}
		ctx.Set(contextObjectKey, tmpl)
		return next(ctx)
	}
}

func (api *reportApi) reportMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		rep, err := api.svc.GetReport(ctx.Request().Context(), usr, ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "getting report")
		}
		ctx.Set(contextObjectKey, rep)
		return next(ctx)
	}
}

func (api *reportApi) scheduleMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		s, err := api.svc.GetSchedule(ctx.Request().Context(), usr, ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "getting schedule")
		}
		ctx.Set(contextObjectKey, s)
		return next(ctx)
	}
}

// Templates

func (api *reportApi) queryTemplates(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	tmpls, err := api.svc.QueryTemplates(ctx.Request().Context(), usr, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying templates")
	}
	if tmpls == nil {
		tmpls = []report.Template{}
	}
	return ctx.JSON(http.StatusOK, tmpls)
}

func (api *reportApi) createTemplate(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data report.TemplateData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TemplateData")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tmpl, err := api.svc.CreateTemplate(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating template")
	}
	return ctx.JSON(http.StatusCreated, tmpl)
}

func (api *reportApi) retrieveTemplate(ctx echo.Context) error {
	tmpl, ok := ctx.Get(contextObjectKey).(report.Template)
	if !ok {
		return errors.Wrap(errTmplNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

func (api *reportApi) updateTemplate(ctx echo.Context) error {
	tmpl, ok := ctx.Get(contextObjectKey).(report.Template)
	if !ok {
		return errors.Wrap(errTmplNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data report.TemplateData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TemplateData")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tmpl, err = api.svc.UpdateTemplate(ctx.Request().Context(), usr, tmpl, data)
	if err != nil {
		return errors.Wrap(err, "updating template")
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

func (api *reportApi) destroyTemplate(ctx echo.Context) error {
	tmpl, ok := ctx.Get(contextObjectKey).(report.Template)
	if !ok {
		return errors.Wrap(errTmplNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteTemplate(ctx.Request().Context(), usr, tmpl); err != nil {
		return errors.Wrap(err, "deleting template")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// generate runs the template, with the query string or JSON body overriding its parameters.
// A failed generation is still recorded.
func (api *reportApi) generate(ctx echo.Context) error {
	tmpl, ok := ctx.Get(contextObjectKey).(report.Template)
	if !ok {
		return errors.Wrap(errTmplNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var query AnalyticsQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to AnalyticsQuery")
	}
	override, err := query.Override(api.validate)
	if err != nil {
		return err
	}

	rep, err := api.svc.Generate(ctx.Request().Context(), usr, tmpl, override)
	if err != nil {
		return errors.Wrap(err, "generating report")
	}
	return ctx.JSON(http.StatusCreated, rep)
}

func (api *reportApi) duplicateTemplate(ctx echo.Context) error {
	tmpl, ok := ctx.Get(contextObjectKey).(report.Template)
	if !ok {
		return errors.Wrap(errTmplNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data DuplicateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DuplicateRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	dup, err := api.svc.DuplicateTemplate(ctx.Request().Context(), usr, tmpl, data.Name)
	if err != nil {
		return errors.Wrap(err, "duplicating template")
	}
	return ctx.JSON(http.StatusCreated, dup)
}

// Generated reports

func (api *reportApi) queryReports(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	reps, err := api.svc.QueryReports(ctx.Request().Context(), usr, ctx.QueryParam("status"), ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying reports")
	}
	if reps == nil {
		reps = []report.GeneratedReport{}
	}
	return ctx.JSON(http.StatusOK, reps)
}

func (api *reportApi) retrieveReport(ctx echo.Context) error {
	rep, ok := ctx.Get(contextObjectKey).(report.GeneratedReport)
	if !ok {
		return errors.Wrap(errRepNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) destroyReport(ctx echo.Context) error {
	rep, ok := ctx.Get(contextObjectKey).(report.GeneratedReport)
	if !ok {
		return errors.Wrap(errRepNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteReport(ctx.Request().Context(), usr, rep); err != nil {
		return errors.Wrap(err, "deleting report")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *reportApi) export(ctx echo.Context) error {
	rep, ok := ctx.Get(contextObjectKey).(report.GeneratedReport)
	if !ok {
		return errors.Wrap(errRepNotFoundInCtx, "retrieving object from context")
	}

	var buf bytes.Buffer
	if err := api.svc.Export(rep, &buf); err != nil {
		return errors.Wrap(err, "exporting report")
	}
	ctx.Response().Header().Set(
		echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", report.Filename(api.clock.Now())),
	)
	return ctx.Blob(http.StatusOK, report.CSVContentType, buf.Bytes())
}

// Schedules

func (api *reportApi) querySchedules(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	scheds, err := api.svc.QuerySchedules(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying schedules")
	}
	if scheds == nil {
		scheds = []report.Schedule{}
	}
	return ctx.JSON(http.StatusOK, scheds)
}

func (api *reportApi) createSchedule(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data report.NewSchedule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchedule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.CreateSchedule(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating schedule")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *reportApi) retrieveSchedule(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(report.Schedule)
	if !ok {
		return errors.Wrap(errSchedNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *reportApi) destroySchedule(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(report.Schedule)
	if !ok {
		return errors.Wrap(errSchedNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteSchedule(ctx.Request().Context(), usr, s); err != nil {
		return errors.Wrap(err, "deleting schedule")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *reportApi) toggleSchedule(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(report.Schedule)
	if !ok {
		return errors.Wrap(errSchedNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	s, err = api.svc.ToggleSchedule(ctx.Request().Context(), usr, s)
	if err != nil {
		return errors.Wrap(err, "toggling schedule")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *reportApi) runSchedule(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(report.Schedule)
	if !ok {
		return errors.Wrap(errSchedNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	rep, err := api.svc.RunSchedule(ctx.Request().Context(), usr, s)
	if err != nil {
		return errors.Wrap(err, "running schedule")
	}
	return ctx.JSON(http.StatusCreated, rep)
}
