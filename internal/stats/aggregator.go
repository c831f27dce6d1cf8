// Package stats derives dashboard aggregates from report collections. Every function is pure.
package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/civicdesk/triage-service/internal/domain"
)

const (
	// NoDataCategory names the sentinel entry returned for an empty distribution.
	NoDataCategory = "No data"
	// OthersCategory collects reports without a category.
	OthersCategory = "Others"
)

var weekdays = []time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
	time.Saturday,
	time.Sunday,
}

// ComputeStats summarises a report collection. activeUsers comes from the profile collection.
func ComputeStats(reports []domain.Report, activeUsers int) domain.DashboardStats {
	stats := domain.DashboardStats{
		TotalReports: len(reports),
		ActiveUsers:  activeUsers,
	}

	var (
		totalResponse decimal.Decimal
		responded     int64
	)
	for i := range reports {
		r := &reports[i]
		switch {
		case r.Status.IsResolved():
			stats.ResolvedReports++
		case r.Status.IsPending():
			stats.PendingReports++
		}
		if d, ok := r.ResponseTime(); ok {
			totalResponse = totalResponse.Add(hours(d))
			responded++
		}
	}

	if responded > 0 {
		stats.AverageResponseTime = roundOne(totalResponse.Div(decimal.NewFromInt(responded)))
	}
	if stats.TotalReports > 0 {
		rate := decimal.NewFromInt(int64(stats.ResolvedReports)).
			Div(decimal.NewFromInt(int64(stats.TotalReports))).
			Mul(decimal.NewFromInt(100))
		stats.ResolutionRate = roundOne(rate)
	}
	return stats
}

// CategoryDistribution returns category shares in first-seen order.
func CategoryDistribution(reports []domain.Report) []domain.CategoryShare {
	if len(reports) == 0 {
		return []domain.CategoryShare{{Name: NoDataCategory, Percentage: 0, ColorIndex: -1}}
	}

	var order []string
	counts := make(map[string]int)
	for i := range reports {
		name := reports[i].Category
		if name == "" {
			name = OthersCategory
		}
		if _, seen := counts[name]; !seen {
			order = append(order, name)
		}
		counts[name]++
	}

	total := decimal.NewFromInt(int64(len(reports)))
	shares := make([]domain.CategoryShare, 0, len(order))
	for idx, name := range order {
		pct := decimal.NewFromInt(int64(counts[name])).Div(total).Mul(decimal.NewFromInt(100)).Round(0)
		shares = append(shares, domain.CategoryShare{
			Name:       name,
			Percentage: int(pct.IntPart()),
			ColorIndex: idx,
		})
	}
	return shares
}

// StatusCounts counts reports per status. Every lifecycle state is present.
// Reports with a status outside the vocabulary are not counted.
func StatusCounts(reports []domain.Report) map[domain.ReportStatus]int {
	counts := make(map[domain.ReportStatus]int, len(domain.AllStatuses))
	for _, status := range domain.AllStatuses {
		counts[status] = 0
	}
	for i := range reports {
		if _, ok := counts[reports[i].Status]; ok {
			counts[reports[i].Status]++
		}
	}
	return counts
}

// WeeklyResponseTime averages resolution time per creation weekday, Monday first, over reports
// created within the trailing window.
func WeeklyResponseTime(reports []domain.Report, windowDays int, now time.Time) []domain.DailyResponseTime {
	cutoff := now.AddDate(0, 0, -windowDays)

	sums := make(map[time.Weekday]decimal.Decimal, len(weekdays))
	counts := make(map[time.Weekday]int64, len(weekdays))
	for i := range reports {
		r := &reports[i]
		if r.CreatedAt.Before(cutoff) || r.CreatedAt.After(now) {
			continue
		}
		d, ok := r.ResponseTime()
		if !ok {
			continue
		}
		day := r.CreatedAt.In(now.Location()).Weekday()
		sums[day] = sums[day].Add(hours(d))
		counts[day]++
	}

	out := make([]domain.DailyResponseTime, 0, len(weekdays))
	for _, day := range weekdays {
		entry := domain.DailyResponseTime{Day: day.String()[:3]}
		if n := counts[day]; n > 0 {
			entry.AverageHours = roundOne(sums[day].Div(decimal.NewFromInt(n)))
		}
		out = append(out, entry)
	}
	return out
}

// MonthlyVolume buckets reports by creation month over the trailing months, oldest first.
// Months without reports are included with zero counts.
func MonthlyVolume(reports []domain.Report, months int, now time.Time) []domain.MonthlyVolume {
	if months <= 0 {
		return []domain.MonthlyVolume{}
	}

	loc := now.Location()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	start := current.AddDate(0, -(months - 1), 0)

	out := make([]domain.MonthlyVolume, months)
	for i := range out {
		out[i].Month = start.AddDate(0, i, 0).Format("Jan 2006")
	}

	for i := range reports {
		r := &reports[i]
		created := r.CreatedAt.In(loc)
		if created.Before(start) || created.After(now) {
			continue
		}
		idx := (created.Year()-start.Year())*12 + int(created.Month()-start.Month())
		if idx < 0 || idx >= months {
			continue
		}
		out[idx].Total++
		switch {
		case r.Status.IsResolved():
			out[idx].Resolved++
		case r.Status.IsPending():
			out[idx].Pending++
		}
	}
	return out
}

func hours(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d)).Div(decimal.NewFromInt(int64(time.Hour)))
}

func roundOne(d decimal.Decimal) float64 {
	f, _ := d.Round(1).Float64()
	return f
}
