package analytics

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/customer"
	"github.com/trezcool/soko/core/sale"
	"github.com/trezcool/soko/core/task"
	"github.com/trezcool/soko/core/user"
)

// Service fetches records through the repositories and aggregates them.
// It does not cache; see CacheManager.
type Service struct {
	users     user.Repository
	sales     sale.Repository
	customers customer.Repository
	tasks     task.Repository
	clock     clockwork.Clock
	validate  *validator.Validate
}

func NewService(
	users user.Repository,
	sales sale.Repository,
	customers customer.Repository,
	tasks task.Repository,
	clock clockwork.Clock,
	validate *validator.Validate,
) *Service {
	return &Service{
		users:     users,
		sales:     sales,
		customers: customers,
		tasks:     tasks,
		clock:     clock,
		validate:  validate,
	}
}

// prepare cleans and validates params, then resolves the personal scope of the call.
func (svc *Service) prepare(ctx context.Context, actor user.User, params *Params) (Scope, error) {
	params.Clean()
	if err := params.Validate(svc.validate); err != nil {
		return Scope{}, err
	}
	if params.TargetUserID != "" {
		if err := Authorize(actor, params.TargetUserID); err != nil {
			return Scope{}, err
		}
		if _, err := svc.users.GetUser(ctx, user.GetFilter{ID: params.TargetUserID}); err != nil {
			return Scope{}, err // user.ErrNotFound -> 404
		}
	}
	return PersonalScope(actor, params.TargetUserID), nil
}

func (svc *Service) userIndex(ctx context.Context) (map[string]user.User, error) {
	users, err := svc.users.QueryUsers(ctx, user.QueryFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	idx := make(map[string]user.User, len(users))
	for _, usr := range users {
		idx[usr.ID] = usr
	}
	return idx, nil
}

// SalesPerformance reports sales over time, per status and priority. With a target user it adds
// their personal performance, otherwise the leaderboard of all assignees.
func (svc *Service) SalesPerformance(ctx context.Context, actor user.User, params Params) (SalesReport, error) {
	scope, err := svc.prepare(ctx, actor, &params)
	if err != nil {
		return SalesReport{}, err
	}
	from, until := params.Range()

	sales, err := svc.sales.QuerySales(ctx, sale.Filter{AssignedTo: scope.UserID, From: from, Until: until})
	if err != nil {
		return SalesReport{}, errors.Wrap(err, "querying sales")
	}
	report := SummarizeSales(sales, params.Grouping)

	if params.TargetUserID != "" {
		report.PersonalPerformance = salesPersonal(sales)
		return report, nil
	}

	all, err := svc.sales.QuerySales(ctx, sale.Filter{AssignedTo: InsightScope().UserID, OnlyAssigned: true, From: from, Until: until})
	if err != nil {
		return SalesReport{}, errors.Wrap(err, "querying all sales")
	}
	users, err := svc.userIndex(ctx)
	if err != nil {
		return SalesReport{}, err
	}
	report.TopPerformers = TopPerformers(all, users, topN)
	return report, nil
}

// CustomerEngagement reports customer levels, statuses and acquisition in the personal scope,
// and the regional distribution of every customer.
func (svc *Service) CustomerEngagement(ctx context.Context, actor user.User, params Params) (CustomerReport, error) {
	scope, err := svc.prepare(ctx, actor, &params)
	if err != nil {
		return CustomerReport{}, err
	}
	from, until := params.Range()

	customers, err := svc.customers.QueryCustomers(ctx, customer.Filter{Owner: scope.UserID, From: from, Until: until})
	if err != nil {
		return CustomerReport{}, errors.Wrap(err, "querying customers")
	}

	regional := customers
	if !scope.IsAll() {
		regional, err = svc.customers.QueryCustomers(ctx, customer.Filter{Owner: InsightScope().UserID, From: from, Until: until})
		if err != nil {
			return CustomerReport{}, errors.Wrap(err, "querying all customers")
		}
	}
	return SummarizeCustomers(customers, regional, params.Grouping, svc.clock.Now()), nil
}

// TaskCompletion reports task statuses, priorities and completions over time. With a target user
// it adds their personal performance, otherwise the ranking of all assignees.
func (svc *Service) TaskCompletion(ctx context.Context, actor user.User, params Params) (TaskReport, error) {
	scope, err := svc.prepare(ctx, actor, &params)
	if err != nil {
		return TaskReport{}, err
	}
	from, until := params.Range()

	tasks, err := svc.tasks.QueryTasks(ctx, task.Filter{AssignedTo: scope.UserID, From: from, Until: until})
	if err != nil {
		return TaskReport{}, errors.Wrap(err, "querying tasks")
	}
	report := SummarizeTasks(tasks, params.Grouping)

	if params.TargetUserID != "" {
		report.PersonalPerformance = taskPersonal(tasks)
		return report, nil
	}

	all, err := svc.tasks.QueryTasks(ctx, task.Filter{AssignedTo: InsightScope().UserID, OnlyAssigned: true, From: from, Until: until})
	if err != nil {
		return TaskReport{}, errors.Wrap(err, "querying all tasks")
	}
	users, err := svc.userIndex(ctx)
	if err != nil {
		return TaskReport{}, err
	}
	report.UserPerformance = UserTaskPerformance(all, users, topN)
	return report, nil
}

func (svc *Service) ConversionRatios(ctx context.Context, actor user.User, params Params) (ConversionReport, error) {
	scope, err := svc.prepare(ctx, actor, &params)
	if err != nil {
		return ConversionReport{}, err
	}
	from, until := params.Range()

	sales, err := svc.sales.QuerySales(ctx, sale.Filter{AssignedTo: scope.UserID, From: from, Until: until})
	if err != nil {
		return ConversionReport{}, errors.Wrap(err, "querying sales")
	}
	customers, err := svc.customers.QueryCustomers(ctx, customer.Filter{Owner: scope.UserID, From: from, Until: until})
	if err != nil {
		return ConversionReport{}, errors.Wrap(err, "querying customers")
	}
	return Conversion(sales, customers), nil
}

// UserActivity summarizes every active user's records. Staff only.
func (svc *Service) UserActivity(ctx context.Context, actor user.User, params Params) (UserActivityReport, error) {
	if !actor.CanViewAll() {
		return UserActivityReport{}, core.ErrPermissionDenied
	}
	params.TargetUserID = ""
	if _, err := svc.prepare(ctx, actor, &params); err != nil {
		return UserActivityReport{}, err
	}
	from, until := params.Range()

	active := true
	users, err := svc.users.QueryUsers(ctx, user.QueryFilter{IsActive: &active})
	if err != nil {
		return UserActivityReport{}, errors.Wrap(err, "querying active users")
	}
	sales, err := svc.sales.QuerySales(ctx, sale.Filter{OnlyAssigned: true, From: from, Until: until})
	if err != nil {
		return UserActivityReport{}, errors.Wrap(err, "querying sales")
	}
	tasks, err := svc.tasks.QueryTasks(ctx, task.Filter{OnlyAssigned: true, From: from, Until: until})
	if err != nil {
		return UserActivityReport{}, errors.Wrap(err, "querying tasks")
	}
	customers, err := svc.customers.QueryCustomers(ctx, customer.Filter{From: from, Until: until})
	if err != nil {
		return UserActivityReport{}, errors.Wrap(err, "querying customers")
	}
	return BuildUserActivity(users, sales, tasks, customers), nil
}

// DashboardKPIs computes all-time KPIs in the actor's personal scope.
func (svc *Service) DashboardKPIs(ctx context.Context, actor user.User) (KPIs, error) {
	scope := PersonalScope(actor, "")

	sales, err := svc.sales.QuerySales(ctx, sale.Filter{AssignedTo: scope.UserID})
	if err != nil {
		return KPIs{}, errors.Wrap(err, "querying sales")
	}
	tasks, err := svc.tasks.QueryTasks(ctx, task.Filter{AssignedTo: scope.UserID})
	if err != nil {
		return KPIs{}, errors.Wrap(err, "querying tasks")
	}
	customers, err := svc.customers.QueryCustomers(ctx, customer.Filter{Owner: scope.UserID})
	if err != nil {
		return KPIs{}, errors.Wrap(err, "querying customers")
	}
	return DashboardKPIs(sales, tasks, customers), nil
}

// SalesPipeline groups the non-archived sales of the actor's personal scope by stage.
func (svc *Service) SalesPipeline(ctx context.Context, actor user.User) ([]PipelineStage, error) {
	scope := PersonalScope(actor, "")
	sales, err := svc.sales.QuerySales(ctx, sale.Filter{AssignedTo: scope.UserID})
	if err != nil {
		return nil, errors.Wrap(err, "querying sales")
	}
	return Pipeline(sales), nil
}

// Run computes the report of the given kind. It backs report templates.
func (svc *Service) Run(ctx context.Context, actor user.User, kind string, params Params) (interface{}, error) {
	switch kind {
	case KindSalesPerformance:
		return svc.SalesPerformance(ctx, actor, params)
	case KindCustomerEngagement:
		return svc.CustomerEngagement(ctx, actor, params)
	case KindTaskCompletion:
		return svc.TaskCompletion(ctx, actor, params)
	case KindConversionRatios:
		return svc.ConversionRatios(ctx, actor, params)
	case KindUserActivity:
		return svc.UserActivity(ctx, actor, params)
	default:
		return nil, core.NewValidationError(fmt.Errorf("unsupported report type %q", kind))
	}
}
