package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/soko/core/customer"
	"github.com/trezcool/soko/core/sale"
	"github.com/trezcool/soko/core/task"
	"github.com/trezcool/soko/core/user"
)

const recentActivityWindow = 30 * 24 * time.Hour

// percent returns 100*part/whole rounded to 2 decimals; 0 when whole is 0.
func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return round2(100 * float64(part) / float64(whole))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func average(total decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(count))).Round(2)
}

// orderedKeys lists the keys of m following order, then any key order does not know, sorted.
func orderedKeys[V any](m map[string]V, order []string) []string {
	keys := make([]string, 0, len(m))
	known := make(map[string]bool, len(order))
	for _, k := range order {
		known[k] = true
		if _, ok := m[k]; ok {
			keys = append(keys, k)
		}
	}
	extra := make([]string, 0)
	for k := range m {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

type bucket struct {
	count  int
	amount decimal.Decimal
}

func (b *bucket) add(amount decimal.Decimal) {
	b.count++
	b.amount = b.amount.Add(amount)
}

func bucketOf[K comparable](m map[K]*bucket, k K) *bucket {
	b, ok := m[k]
	if !ok {
		b = new(bucket)
		m[k] = b
	}
	return b
}

func sortedPeriods[V any](m map[time.Time]V) []time.Time {
	periods := make([]time.Time, 0, len(m))
	for p := range m {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	return periods
}

func countSeries(times []time.Time, grouping string) []PeriodCount {
	counts := make(map[time.Time]int)
	for _, t := range times {
		counts[truncate(t, grouping)]++
	}
	series := make([]PeriodCount, 0, len(counts))
	for _, p := range sortedPeriods(counts) {
		series = append(series, PeriodCount{Period: periodLabel(p), Count: counts[p]})
	}
	return series
}

// Sales

// SummarizeSales builds the time series, breakdowns and summary of a sales report.
func SummarizeSales(sales []sale.Sale, grouping string) SalesReport {
	periods := make(map[time.Time]*bucket)
	byStatus := make(map[string]*bucket)
	byPriority := make(map[string]*bucket)
	var summary SalesSummary

	for _, s := range sales {
		amount := s.Value()
		bucketOf(periods, truncate(s.CreatedAt, grouping)).add(amount)
		bucketOf(byStatus, s.Status).add(amount)
		bucketOf(byPriority, s.Priority).add(amount)

		summary.TotalSales++
		summary.TotalAmount = summary.TotalAmount.Add(amount)
		switch s.Status {
		case sale.StatusWon:
			summary.WonSales++
			summary.WonAmount = summary.WonAmount.Add(amount)
		case sale.StatusLost:
			summary.LostSales++
		}
	}
	summary.WinRate = percent(summary.WonSales, summary.TotalSales)
	summary.AverageDealSize = average(summary.TotalAmount, summary.TotalSales)

	report := SalesReport{
		Summary:         summary,
		SalesOverTime:   make([]PeriodStat, 0, len(periods)),
		SalesByStatus:   make([]StatusAmount, 0, len(byStatus)),
		SalesByPriority: make([]PriorityAmount, 0, len(byPriority)),
	}
	for _, p := range sortedPeriods(periods) {
		b := periods[p]
		report.SalesOverTime = append(report.SalesOverTime, PeriodStat{
			Period:      periodLabel(p),
			Count:       b.count,
			TotalAmount: b.amount,
			AvgAmount:   average(b.amount, b.count),
		})
	}
	for _, st := range orderedKeys(byStatus, sale.Statuses) {
		b := byStatus[st]
		report.SalesByStatus = append(report.SalesByStatus, StatusAmount{Status: st, Count: b.count, TotalAmount: b.amount})
	}
	for _, pr := range orderedKeys(byPriority, sale.Priorities) {
		b := byPriority[pr]
		report.SalesByPriority = append(report.SalesByPriority, PriorityAmount{Priority: pr, Count: b.count, TotalAmount: b.amount})
	}
	return report
}

func salesPersonal(sales []sale.Sale) *SalesPersonal {
	p := new(SalesPersonal)
	for _, s := range sales {
		p.TotalSales++
		p.TotalAmount = p.TotalAmount.Add(s.Value())
		switch s.Status {
		case sale.StatusWon:
			p.WonSales++
		case sale.StatusLost:
			p.LostSales++
		}
	}
	p.WinRate = percent(p.WonSales, p.TotalSales)
	return p
}

// TopPerformers ranks assignees by total sale amount (ties by user ID) and keeps the first `limit`.
// Sales whose assignee is not in users are ignored.
func TopPerformers(sales []sale.Sale, users map[string]user.User, limit int) []Performer {
	stats := make(map[string]*Performer)
	for _, s := range sales {
		if !s.AssignedTo.Valid {
			continue
		}
		usr, ok := users[s.AssignedTo.String]
		if !ok {
			continue
		}
		p, ok := stats[usr.ID]
		if !ok {
			p = &Performer{UserID: usr.ID, Name: usr.DisplayName(), Username: usr.Username}
			stats[usr.ID] = p
		}
		p.TotalSales++
		p.TotalAmount = p.TotalAmount.Add(s.Value())
		switch s.Status {
		case sale.StatusWon:
			p.WonSales++
		case sale.StatusLost:
			p.LostSales++
		}
	}

	performers := make([]Performer, 0, len(stats))
	for _, p := range stats {
		performers = append(performers, *p)
	}
	sort.Slice(performers, func(i, j int) bool {
		if c := performers[i].TotalAmount.Cmp(performers[j].TotalAmount); c != 0 {
			return c > 0
		}
		return performers[i].UserID < performers[j].UserID
	})
	if len(performers) > limit {
		performers = performers[:limit]
	}
	return performers
}

// Pipeline groups open and closed sales by stage; every stage is present.
func Pipeline(sales []sale.Sale) []PipelineStage {
	byStatus := make(map[string]*bucket, len(sale.Statuses))
	for _, st := range sale.Statuses {
		byStatus[st] = new(bucket)
	}
	for _, s := range sales {
		bucketOf(byStatus, s.Status).add(s.Value())
	}

	stages := make([]PipelineStage, 0, len(byStatus))
	for _, st := range orderedKeys(byStatus, sale.Statuses) {
		b := byStatus[st]
		stages = append(stages, PipelineStage{Status: st, Count: b.count, TotalAmount: b.amount})
	}
	return stages
}

// Customers

// SummarizeCustomers builds a customer engagement report. regional feeds the regional distribution
// and may cover a wider scope than customers.
func SummarizeCustomers(customers, regional []customer.Customer, grouping string, now time.Time) CustomerReport {
	levels := make(map[string]int)
	statuses := make(map[string]int)
	created := make([]time.Time, 0, len(customers))
	var summary CustomerSummary

	recentSince := truncateDay(now.Add(-recentActivityWindow)) // contact dates are whole days
	for _, c := range customers {
		levels[c.EngagementLevel]++
		statuses[c.Status]++
		created = append(created, c.CreatedAt)

		summary.TotalCustomers++
		if c.Status == customer.StatusActive {
			summary.ActiveCustomers++
		}
		if c.EngagementLevel == customer.EngagementVIP {
			summary.VIPCustomers++
		}
		if c.LastContactDate.Valid && !c.LastContactDate.Time.Before(recentSince) {
			summary.RecentActivity++
		}
	}

	report := CustomerReport{
		Summary:              summary,
		EngagementLevels:     make([]LevelCount, 0, len(levels)),
		CustomerStatus:       make([]StatusCount, 0, len(statuses)),
		AcquisitionOverTime:  countSeries(created, grouping),
		RegionalDistribution: regionalDistribution(regional),
	}
	for _, lvl := range orderedKeys(levels, customer.EngagementLevels) {
		report.EngagementLevels = append(report.EngagementLevels, LevelCount{EngagementLevel: lvl, Count: levels[lvl]})
	}
	for _, st := range orderedKeys(statuses, customer.Statuses) {
		report.CustomerStatus = append(report.CustomerStatus, StatusCount{Status: st, Count: statuses[st]})
	}
	return report
}

func regionalDistribution(customers []customer.Customer) []RegionCount {
	regions := make(map[string]int)
	for _, c := range customers {
		regions[c.Region]++
	}
	dist := make([]RegionCount, 0, len(regions))
	for r, n := range regions {
		dist = append(dist, RegionCount{Region: r, Count: n})
	}
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Count != dist[j].Count {
			return dist[i].Count > dist[j].Count
		}
		return dist[i].Region < dist[j].Region
	})
	return dist
}

// Tasks

// SummarizeTasks builds the breakdowns, completion series and summary of a task report.
// Completions are bucketed by the task's last update.
func SummarizeTasks(tasks []task.Task, grouping string) TaskReport {
	statuses := make(map[string]int)
	priorities := make(map[string]int)
	completedAt := make([]time.Time, 0)
	var summary TaskSummary

	for _, t := range tasks {
		statuses[t.Status]++
		priorities[t.Priority]++

		summary.TotalTasks++
		switch t.Status {
		case task.StatusCompleted:
			summary.CompletedTasks++
			completedAt = append(completedAt, t.UpdatedAt)
		case task.StatusPending:
			summary.PendingTasks++
		case task.StatusInProgress:
			summary.InProgressTasks++
		case task.StatusOverdue:
			summary.OverdueTasks++
		}
	}
	summary.CompletionRate = percent(summary.CompletedTasks, summary.TotalTasks)

	report := TaskReport{
		Summary:            summary,
		TasksByStatus:      make([]StatusCount, 0, len(statuses)),
		TasksByPriority:    make([]PriorityCount, 0, len(priorities)),
		CompletionOverTime: countSeries(completedAt, grouping),
	}
	for _, st := range orderedKeys(statuses, task.Statuses) {
		report.TasksByStatus = append(report.TasksByStatus, StatusCount{Status: st, Count: statuses[st]})
	}
	for _, pr := range orderedKeys(priorities, task.Priorities) {
		report.TasksByPriority = append(report.TasksByPriority, PriorityCount{Priority: pr, Count: priorities[pr]})
	}
	return report
}

func taskPersonal(tasks []task.Task) *TaskPersonal {
	p := new(TaskPersonal)
	for _, t := range tasks {
		p.TotalTasks++
		if t.Status == task.StatusCompleted {
			p.CompletedTasks++
		}
	}
	p.CompletionRate = percent(p.CompletedTasks, p.TotalTasks)
	return p
}

// UserTaskPerformance ranks assignees by completed tasks (ties by user ID) and keeps the first `limit`.
func UserTaskPerformance(tasks []task.Task, users map[string]user.User, limit int) []UserTaskStat {
	stats := make(map[string]*UserTaskStat)
	for _, t := range tasks {
		if !t.AssignedTo.Valid {
			continue
		}
		usr, ok := users[t.AssignedTo.String]
		if !ok {
			continue
		}
		st, ok := stats[usr.ID]
		if !ok {
			st = &UserTaskStat{UserID: usr.ID, Name: usr.DisplayName(), Username: usr.Username}
			stats[usr.ID] = st
		}
		st.TotalTasks++
		if t.Status == task.StatusCompleted {
			st.CompletedTasks++
		}
	}

	perf := make([]UserTaskStat, 0, len(stats))
	for _, st := range stats {
		st.CompletionRate = percent(st.CompletedTasks, st.TotalTasks)
		perf = append(perf, *st)
	}
	sort.Slice(perf, func(i, j int) bool {
		if perf[i].CompletedTasks != perf[j].CompletedTasks {
			return perf[i].CompletedTasks > perf[j].CompletedTasks
		}
		return perf[i].UserID < perf[j].UserID
	})
	if len(perf) > limit {
		perf = perf[:limit]
	}
	return perf
}

// Conversion

// Conversion computes sales win/loss rates and the lead-to-active customer conversion rate.
func Conversion(sales []sale.Sale, customers []customer.Customer) ConversionReport {
	var sc SalesConversion
	for _, s := range sales {
		sc.TotalSales++
		switch s.Status {
		case sale.StatusWon:
			sc.WonSales++
		case sale.StatusLost:
			sc.LostSales++
		}
	}
	sc.WinRate = percent(sc.WonSales, sc.TotalSales)
	sc.LossRate = percent(sc.LostSales, sc.TotalSales)

	var cc CustomerConversion
	for _, c := range customers {
		switch c.Status {
		case customer.StatusLead, customer.StatusProspect:
			cc.TotalLeads++
		case customer.StatusActive:
			cc.Converted++
		}
	}
	cc.ConversionRate = percent(cc.Converted, cc.TotalLeads+cc.Converted)

	return ConversionReport{SalesConversion: sc, CustomerConversion: cc}
}

// User activity

// BuildUserActivity summarizes each user's sales, tasks and customers, sorted by name.
func BuildUserActivity(users []user.User, sales []sale.Sale, tasks []task.Task, customers []customer.Customer) UserActivityReport {
	stats := make(map[string]*UserActivity, len(users))
	for _, usr := range users {
		stats[usr.ID] = &UserActivity{UserID: usr.ID, Name: usr.DisplayName(), Username: usr.Username, Role: usr.Role}
	}

	for _, s := range sales {
		if st, ok := stats[s.AssignedTo.String]; ok && s.AssignedTo.Valid {
			st.TotalSales++
			st.SalesAmount = st.SalesAmount.Add(s.Value())
			if s.Status == sale.StatusWon {
				st.WonSales++
			}
		}
	}
	for _, t := range tasks {
		if st, ok := stats[t.AssignedTo.String]; ok && t.AssignedTo.Valid {
			st.TotalTasks++
			if t.Status == task.StatusCompleted {
				st.CompletedTasks++
			}
		}
	}
	for _, c := range customers {
		if st, ok := stats[c.Owner.String]; ok && c.Owner.Valid {
			st.TotalCustomers++
			if c.Status == customer.StatusActive {
				st.ActiveCustomers++
			}
		}
	}

	report := UserActivityReport{Users: make([]UserActivity, 0, len(stats))}
	for _, st := range stats {
		st.CompletionRate = percent(st.CompletedTasks, st.TotalTasks)
		report.Users = append(report.Users, *st)

		report.Summary.TotalSales += st.TotalSales
		report.Summary.TotalTasks += st.TotalTasks
		report.Summary.TotalCustomers += st.TotalCustomers
	}
	report.Summary.TotalUsers = len(report.Users)
	sort.Slice(report.Users, func(i, j int) bool {
		if report.Users[i].Name != report.Users[j].Name {
			return report.Users[i].Name < report.Users[j].Name
		}
		return report.Users[i].UserID < report.Users[j].UserID
	})
	return report
}

// Dashboard

// DashboardKPIs computes the headline numbers of the dashboard.
func DashboardKPIs(sales []sale.Sale, tasks []task.Task, customers []customer.Customer) KPIs {
	var k KPIs
	for _, s := range sales {
		amount := s.Value()
		k.Sales.TotalCount++
		k.Sales.TotalAmount = k.Sales.TotalAmount.Add(amount)
		if s.Status == sale.StatusWon {
			k.Sales.WonCount++
			k.Sales.WonAmount = k.Sales.WonAmount.Add(amount)
		}
		if s.IsOpen() {
			k.Sales.PipelineValue = k.Sales.PipelineValue.Add(amount)
		}
	}

	for _, t := range tasks {
		k.Tasks.Total++
		switch t.Status {
		case task.StatusPending:
			k.Tasks.Pending++
		case task.StatusCompleted:
			k.Tasks.Completed++
		case task.StatusOverdue:
			k.Tasks.Overdue++
		}
	}
	k.Tasks.CompletionRate = percent(k.Tasks.Completed, k.Tasks.Total)

	for _, c := range customers {
		k.Customers.Total++
		switch c.Status {
		case customer.StatusActive:
			k.Customers.Active++
		case customer.StatusProspect:
			k.Customers.Prospects++
		case customer.StatusLead:
			k.Customers.Leads++
		}
		if c.EngagementLevel == customer.EngagementVIP {
			k.Customers.VIP++
		}
	}
	return k
}
