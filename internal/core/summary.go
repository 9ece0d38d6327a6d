package core

// DefaultCategoryColor is used for categories missing from CategoryColors.
const DefaultCategoryColor = "#0A84FF"

// CategoryColors maps the default categories to their display colour.
var CategoryColors = map[string]string{
	"Food & Dining":  "#30D158",
	"Transportation": "#FF9F0A",
	"Entertainment":  "#5E5CE6",
	"Housing":        "#0A84FF",
	"Utilities":      "#FF453A",
	"Healthcare":     "#64D2FF",
	"Shopping":       "#BF5AF2",
	"Personal":       "#FF2D55",
	"Education":      "#FFD60A",
	"Travel":         "#30B0C7",
	"Salary":         "#30D158",
	"Investment":     "#5E5CE6",
	"Gift":           "#FF2D55",
	"Other":          "#86868B",
}

// ColorFor returns the display colour for a category.
func ColorFor(category string) string {
	if c, ok := CategoryColors[category]; ok {
		return c
	}
	return DefaultCategoryColor
}

// ReportSummary totals a filtered set of ledger entries.
type ReportSummary struct {
	TotalIncome  float64 `json:"totalIncome"`
	TotalExpense float64 `json:"totalExpense"`
	Balance      float64 `json:"balance"`
}

// CategorySpending is the expense total of one category.
type CategorySpending struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Color    string  `json:"color"`
}

// MonthlySpending is the expense total of one calendar month. Key is YYYY-MM,
// Month the short English label.
type MonthlySpending struct {
	Key    string  `json:"key"`
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// Trends bundles the analytics series.
type Trends struct {
	Monthly    []MonthlySpending  `json:"monthly"`
	Categories []CategorySpending `json:"categories"`
}
