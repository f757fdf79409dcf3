package analytics

import "github.com/shopspring/decimal"

// Report kinds, also used as cache key kinds and report template types.
const (
	KindDashboardKPIs      = "dashboard_kpis"
	KindSalesPerformance   = "sales_performance"
	KindCustomerEngagement = "customer_engagement"
	KindTaskCompletion     = "task_completion"
	KindConversionRatios   = "conversion_ratios"
	KindUserActivity       = "user_activity"
	KindSalesPipeline      = "sales_pipeline"
)

// ReportKinds are the kinds a report template can be built from.
var ReportKinds = []string{
	KindSalesPerformance,
	KindCustomerEngagement,
	KindTaskCompletion,
	KindConversionRatios,
	KindUserActivity,
}

const topN = 10

type (
	PeriodStat struct {
		Period      string          `json:"period"`
		Count       int             `json:"count"`
		TotalAmount decimal.Decimal `json:"total_amount"`
		AvgAmount   decimal.Decimal `json:"avg_amount"`
	}

	PeriodCount struct {
		Period string `json:"period"`
		Count  int    `json:"count"`
	}

	StatusAmount struct {
		Status      string          `json:"status"`
		Count       int             `json:"count"`
		TotalAmount decimal.Decimal `json:"total_amount"`
	}

	PriorityAmount struct {
		Priority    string          `json:"priority"`
		Count       int             `json:"count"`
		TotalAmount decimal.Decimal `json:"total_amount"`
	}

	StatusCount struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}

	PriorityCount struct {
		Priority string `json:"priority"`
		Count    int    `json:"count"`
	}

	LevelCount struct {
		EngagementLevel string `json:"engagement_level"`
		Count           int    `json:"count"`
	}

	RegionCount struct {
		Region string `json:"region"`
		Count  int    `json:"count"`
	}
)

// Sales

type (
	SalesSummary struct {
		TotalSales      int             `json:"total_sales"`
		TotalAmount     decimal.Decimal `json:"total_amount"`
		WonSales        int             `json:"won_sales"`
		WonAmount       decimal.Decimal `json:"won_amount"`
		LostSales       int             `json:"lost_sales"`
		WinRate         float64         `json:"win_rate"`
		AverageDealSize decimal.Decimal `json:"average_deal_size"`
	}

	Performer struct {
		UserID      string          `json:"user_id"`
		Name        string          `json:"name"`
		Username    string          `json:"username"`
		TotalSales  int             `json:"total_sales"`
		TotalAmount decimal.Decimal `json:"total_amount"`
		WonSales    int             `json:"won_sales"`
		LostSales   int             `json:"lost_sales"`
	}

	SalesPersonal struct {
		TotalSales  int             `json:"total_sales"`
		TotalAmount decimal.Decimal `json:"total_amount"`
		WonSales    int             `json:"won_sales"`
		LostSales   int             `json:"lost_sales"`
		WinRate     float64         `json:"win_rate"`
	}

	SalesReport struct {
		Summary             SalesSummary     `json:"summary"`
		SalesOverTime       []PeriodStat     `json:"sales_over_time"`
		SalesByStatus       []StatusAmount   `json:"sales_by_status"`
		SalesByPriority     []PriorityAmount `json:"sales_by_priority"`
		TopPerformers       []Performer      `json:"top_performers,omitempty"`
		PersonalPerformance *SalesPersonal   `json:"personal_performance,omitempty"`
	}
)

// Customers

type (
	CustomerSummary struct {
		TotalCustomers  int `json:"total_customers"`
		ActiveCustomers int `json:"active_customers"`
		RecentActivity  int `json:"recent_activity"`
		VIPCustomers    int `json:"vip_customers"`
	}

	CustomerReport struct {
		Summary              CustomerSummary `json:"summary"`
		EngagementLevels     []LevelCount    `json:"engagement_levels"`
		CustomerStatus       []StatusCount   `json:"customer_status"`
		AcquisitionOverTime  []PeriodCount   `json:"acquisition_over_time"`
		RegionalDistribution []RegionCount   `json:"regional_distribution"`
	}
)

// Tasks

type (
	TaskSummary struct {
		TotalTasks      int     `json:"total_tasks"`
		CompletedTasks  int     `json:"completed_tasks"`
		PendingTasks    int     `json:"pending_tasks"`
		InProgressTasks int     `json:"in_progress_tasks"`
		OverdueTasks    int     `json:"overdue_tasks"`
		CompletionRate  float64 `json:"completion_rate"`
	}

	UserTaskStat struct {
		UserID         string  `json:"user_id"`
		Name           string  `json:"name"`
		Username       string  `json:"username"`
		TotalTasks     int     `json:"total_tasks"`
		CompletedTasks int     `json:"completed_tasks"`
		CompletionRate float64 `json:"completion_rate"`
	}

	TaskPersonal struct {
		TotalTasks     int     `json:"total_tasks"`
		CompletedTasks int     `json:"completed_tasks"`
		CompletionRate float64 `json:"completion_rate"`
	}

	TaskReport struct {
		Summary             TaskSummary     `json:"summary"`
		TasksByStatus       []StatusCount   `json:"tasks_by_status"`
		TasksByPriority     []PriorityCount `json:"tasks_by_priority"`
		CompletionOverTime  []PeriodCount   `json:"completion_over_time"`
		UserPerformance     []UserTaskStat  `json:"user_performance,omitempty"`
		PersonalPerformance *TaskPersonal   `json:"personal_performance,omitempty"`
	}
)

// Conversion

type (
	SalesConversion struct {
		TotalSales int     `json:"total_sales"`
		WonSales   int     `json:"won_sales"`
		LostSales  int     `json:"lost_sales"`
		WinRate    float64 `json:"win_rate"`
		LossRate   float64 `json:"loss_rate"`
	}

	CustomerConversion struct {
		TotalLeads     int     `json:"total_leads"`
		Converted      int     `json:"converted"`
		ConversionRate float64 `json:"conversion_rate"`
	}

	ConversionReport struct {
		SalesConversion    SalesConversion    `json:"sales_conversion"`
		CustomerConversion CustomerConversion `json:"customer_conversion"`
	}
)

// User activity

type (
	UserActivity struct {
		UserID          string          `json:"user_id"`
		Name            string          `json:"name"`
		Username        string          `json:"username"`
		Role            string          `json:"role"`
		TotalSales      int             `json:"total_sales"`
		WonSales        int             `json:"won_sales"`
		SalesAmount     decimal.Decimal `json:"sales_amount"`
		TotalTasks      int             `json:"total_tasks"`
		CompletedTasks  int             `json:"completed_tasks"`
		CompletionRate  float64         `json:"completion_rate"`
		TotalCustomers  int             `json:"total_customers"`
		ActiveCustomers int             `json:"active_customers"`
	}

	ActivitySummary struct {
		TotalUsers     int `json:"total_users"`
		TotalSales     int `json:"total_sales"`
		TotalTasks     int `json:"total_tasks"`
		TotalCustomers int `json:"total_customers"`
	}

	UserActivityReport struct {
		Summary ActivitySummary `json:"summary"`
		Users   []UserActivity  `json:"users"`
	}
)

// Dashboard

type (
	SalesKPIs struct {
		TotalCount    int             `json:"total_count"`
		TotalAmount   decimal.Decimal `json:"total_amount"`
		WonCount      int             `json:"won_count"`
		WonAmount     decimal.Decimal `json:"won_amount"`
		PipelineValue decimal.Decimal `json:"pipeline_value"`
	}

	TaskKPIs struct {
		Total          int     `json:"total"`
		Pending        int     `json:"pending"`
		Completed      int     `json:"completed"`
		Overdue        int     `json:"overdue"`
		CompletionRate float64 `json:"completion_rate"`
	}

	CustomerKPIs struct {
		Total     int `json:"total"`
		Active    int `json:"active"`
		Prospects int `json:"prospects"`
		Leads     int `json:"leads"`
		VIP       int `json:"vip"`
	}

	KPIs struct {
		Sales     SalesKPIs    `json:"sales"`
		Tasks     TaskKPIs     `json:"tasks"`
		Customers CustomerKPIs `json:"customers"`
	}

	PipelineStage struct {
		Status      string          `json:"status"`
		Count       int             `json:"count"`
		TotalAmount decimal.Decimal `json:"total_amount"`
	}
)
