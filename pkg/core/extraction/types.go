// Package extraction turns combined document text into raw per-category extraction JSON.
// The service behind it is a black box; this package owns the request shape, the lenient
// response parsing and the per-category bookkeeping.
package extraction

import (
	"context"

	"snf_underwriting/pkg/models"
)

// Categories requested from the extraction service, in request order.
const (
	CategoryFacility   = "facility"
	CategoryFinancials = "financials"
	CategoryCensus     = "census"
	CategoryExpenses   = "expenses"
	CategoryRates      = "rates"
)

// Categories is the fixed request order.
var Categories = []string{CategoryFacility, CategoryFinancials, CategoryCensus, CategoryExpenses, CategoryRates}

// Invoker is the extraction service contract.
type Invoker interface {
	Invoke(ctx context.Context, combinedText string, periodGuidance string) (*Result, error)
}

// Financials wraps the monthly P&L array as returned by the service.
type Financials struct {
	MonthlyFinancials []models.MonthlyFinancialRecord `json:"monthly_financials"`
}

// Census wraps the monthly census array.
type Census struct {
	MonthlyCensus []models.MonthlyCensusRecord `json:"monthly_census"`
}

// Expenses wraps the monthly department expense array.
type Expenses struct {
	MonthlyExpenses []models.MonthlyExpenseRecord `json:"monthly_expenses"`
}

// CategoryError records a category the service failed to produce.
type CategoryError struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Metadata summarizes one invocation.
type Metadata struct {
	TotalDuration int64 `json:"totalDuration"` // milliseconds
	SuccessCount  int   `json:"successCount"`
	FailureCount  int   `json:"failureCount"`
	Model         string `json:"model,omitempty"`
}

// Result is the raw, unreconciled extraction for one facility.
type Result struct {
	Facility   models.Facility `json:"facility"`
	Financials Financials      `json:"financials"`
	Census     Census          `json:"census"`
	Expenses   Expenses        `json:"expenses"`
	Rates      models.Rates    `json:"rates"`
	Errors     []CategoryError `json:"errors"`
	Metadata   Metadata        `json:"metadata"`
}
