package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/analytics"
	"github.com/trezcool/soko/core/user"
)

type analyticsApi struct {
	svc      *analytics.Service
	cache    *analytics.CacheManager
	validate *validator.Validate
}

func registerAnalyticsAPI(g *echo.Group, svc *analytics.Service, cache *analytics.CacheManager, validate *validator.Validate) {
	api := analyticsApi{
		svc:      svc,
		cache:    cache,
		validate: validate,
	}

	ag := g.Group("/analytics")
	ag.GET("/dashboard-kpis", api.dashboardKPIs)
	ag.GET("/sales-performance", api.salesPerformance)
	ag.GET("/customer-engagement", api.customerEngagement)
	ag.GET("/task-completion", api.taskCompletion)
	ag.GET("/conversion-ratios", api.conversionRatios)
	ag.GET("/user-activity", api.userActivity, staffMiddleware())
	ag.GET("/sales-pipeline", api.salesPipeline)
	ag.POST("/clear-cache", api.clearCache)
}

// scopedParams keys the cached reports by the actor's role as well: the role decides the scope.
type scopedParams struct {
	Role   string      `json:"role"`
	Params interface{} `json:"params"`
}

func scoped(usr user.User, params interface{}) scopedParams {
	return scopedParams{Role: usr.Role, Params: params}
}

// bind returns the context user and the cleaned report params of the request. The user must be
// allowed to read the target's data, whether the report is cached or not.
func (api *analyticsApi) bind(ctx echo.Context) (user.User, analytics.Params, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return user.User{}, analytics.Params{}, err
	}
	var query AnalyticsQuery
	if err := ctx.Bind(&query); err != nil {
		return user.User{}, analytics.Params{}, errors.Wrap(err, "binding to AnalyticsQuery")
	}
	params, err := query.Params(api.validate)
	if err != nil {
		return user.User{}, analytics.Params{}, err
	}
	if err := analytics.Authorize(usr, params.TargetUserID); err != nil {
		return user.User{}, analytics.Params{}, err
	}
	return usr, params, nil
}

func (api *analyticsApi) dashboardKPIs(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	c := ctx.Request().Context()
	kpis, err := analytics.Cached(c, api.cache, usr.ID, analytics.KindDashboardKPIs, scoped(usr, nil), func() (analytics.KPIs, error) {
		return api.svc.DashboardKPIs(c, usr)
	})
	if err != nil {
		return errors.Wrap(err, "computing dashboard KPIs")
	}
	return ctx.JSON(http.StatusOK, kpis)
}

func (api *analyticsApi) salesPerformance(ctx echo.Context) error {
	usr, params, err := api.bind(ctx)
	if err != nil {
		return err
	}
	c := ctx.Request().Context()
	rep, err := analytics.Cached(c, api.cache, usr.ID, analytics.KindSalesPerformance, scoped(usr, params), func() (analytics.SalesReport, error) {
		return api.svc.SalesPerformance(c, usr, params)
	})
	if err != nil {
		return errors.Wrap(err, "computing sales performance")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *analyticsApi) customerEngagement(ctx echo.Context) error {
	usr, params, err := api.bind(ctx)
	if err != nil {
		return err
	}
	c := ctx.Request().Context()
	rep, err := analytics.Cached(c, api.cache, usr.ID, analytics.KindCustomerEngagement, scoped(usr, params), func() (analytics.CustomerReport, error) {
		return api.svc.CustomerEngagement(c, usr, params)
	})
	if err != nil {
		return errors.Wrap(err, "computing customer engagement")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *analyticsApi) taskCompletion(ctx echo.Context) error {
	usr, params, err := api.bind(ctx)
	if err != nil {
		return err
	}
	c := ctx.Request().Context()
	rep, err := analytics.Cached(c, api.cache, usr.ID, analytics.KindTaskCompletion, scoped(usr, params), func() (analytics.TaskReport, error) {
		return api.svc.TaskCompletion(c, usr, params)
	})
	if err != nil {
		return errors.Wrap(err, "computing task completion")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *analyticsApi) conversionRatios(ctx echo.Context) error {
	usr, params, err := api.bind(ctx)
	if err != nil {
		return err
	}
	c := ctx.Request().Context()
	rep, err := analytics.Cached(c, api.cache, usr.ID, analytics.KindConversionRatios, scoped(usr, params), func() (analytics.ConversionReport, error) {
		return api.svc.ConversionRatios(c, usr, params)
	})
	if err != nil {
		return errors.Wrap(err, "computing conversion ratios")
	}
	return ctx.JSON(http.StatusOK, rep)
}

// userActivity is the same for every staff member, hence cached under the shared actor.
func (api *analyticsApi) userActivity(ctx echo.Context) error {
	usr, params, err := api.bind(ctx)
	if err != nil {
		return err
	}
	params.TargetUserID = ""
	c := ctx.Request().Context()
	rep, err := analytics.Cached(c, api.cache, analytics.SharedActor, analytics.KindUserActivity, params, func() (analytics.UserActivityReport, error) {
		return api.svc.UserActivity(c, usr, params)
	})
	if err != nil {
		return errors.Wrap(err, "computing user activity")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *analyticsApi) salesPipeline(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	c := ctx.Request().Context()
	stages, err := analytics.Cached(c, api.cache, usr.ID, analytics.KindSalesPipeline, scoped(usr, nil), func() ([]analytics.PipelineStage, error) {
		return api.svc.SalesPipeline(c, usr)
	})
	if err != nil {
		return errors.Wrap(err, "computing sales pipeline")
	}
	return ctx.JSON(http.StatusOK, stages)
}

// clearCache drops the caller's cached reports, or every cached report with ?all=true (admins only).
func (api *analyticsApi) clearCache(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	c := ctx.Request().Context()

	var n int
	if ctx.QueryParam("all") == "true" {
		if !usr.IsAdmin() {
			return core.ErrPermissionDenied
		}
		n, err = api.cache.ClearAll(c)
	} else {
		n, err = api.cache.ClearUser(c, usr.ID)
	}
	if err != nil {
		return errors.Wrap(err, "clearing analytics cache")
	}
	return ctx.JSON(http.StatusOK, ClearCacheResponse{Cleared: n})
}
