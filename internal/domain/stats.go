package domain

// DashboardStats is derived from the report collection and never persisted.
type DashboardStats struct {
	TotalReports        int     `json:"totalReports"`
	ResolvedReports     int     `json:"resolvedReports"`
	PendingReports      int     `json:"pendingReports"`
	ActiveUsers         int     `json:"activeUsers"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	ResolutionRate      float64 `json:"resolutionRate"`
}

// CategoryShare is one slice of the category distribution chart.
type CategoryShare struct {
	Name       string `json:"name"`
	Percentage int    `json:"percentage"`
	ColorIndex int    `json:"colorIndex"`
}

// DailyResponseTime is the average resolution time for one weekday.
type DailyResponseTime struct {
	Day          string  `json:"day"`
	AverageHours float64 `json:"averageHours"`
}

// MonthlyVolume counts reports created in a calendar month.
type MonthlyVolume struct {
	Month    string `json:"month"`
	Resolved int    `json:"resolved"`
	Pending  int    `json:"pending"`
	Total    int    `json:"total"`
}
