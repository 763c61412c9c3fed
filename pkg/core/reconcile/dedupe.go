// Package reconcile merges overlapping per-document monthly extractions into one canonical
// timeline per category and derives the trailing-twelve-month views from it.
//
// Rules:
//  1. Completeness wins: among candidates for the same month (or month+department) the one
//     with the most known values in the category's scoring table is kept.
//  2. First wins on ties: input order breaks ties so re-runs are reproducible.
//  3. Unknown stays unknown: sums and derived P&L lines are nil unless backed by data.
package reconcile

import (
	"sort"

	"snf_underwriting/pkg/models"
)

// =============================================================================
// DEDUPLICATION
// =============================================================================

// Dedupe groups records by key and keeps the candidate with the highest score in each group.
// Ties keep the earliest candidate. The output is sorted ascending by key.
func Dedupe[T any](records []T, key func(*T) string, score func(*T) int) []T {
	best := make(map[string]int, len(records)) // key -> index into records
	bestScore := make(map[string]int, len(records))
	keys := make([]string, 0, len(records))

	for i := range records {
		k := key(&records[i])
		s := score(&records[i])
		if _, seen := best[k]; !seen {
			best[k] = i
			bestScore[k] = s
			keys = append(keys, k)
			continue
		}
		if s > bestScore[k] {
			best[k] = i
			bestScore[k] = s
		}
	}

	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, records[best[k]])
	}
	return out
}

var (
	financialScoring = models.Select(models.FinancialFields, models.FinancialCompletenessFields)
	censusScoring    = models.Select(models.CensusFields, models.CensusCompletenessFields)
	expenseScoring   = models.Select(models.ExpenseFields, models.ExpenseCompletenessFields)
)

// FinancialScore is the completeness score of a financial record (0..12).
func FinancialScore(r *models.MonthlyFinancialRecord) int {
	return models.Completeness(r, financialScoring)
}

// CensusScore is the completeness score of a census record (0..9).
func CensusScore(r *models.MonthlyCensusRecord) int {
	return models.Completeness(r, censusScoring)
}

// ExpenseScore is the completeness score of an expense record (0..6).
func ExpenseScore(r *models.MonthlyExpenseRecord) int {
	return models.Completeness(r, expenseScoring)
}

// DedupeFinancials keeps the most complete record per month.
func DedupeFinancials(records []models.MonthlyFinancialRecord) []models.MonthlyFinancialRecord {
	return Dedupe(records, func(r *models.MonthlyFinancialRecord) string { return r.Month }, FinancialScore)
}

// DedupeCensus keeps the most complete record per month.
func DedupeCensus(records []models.MonthlyCensusRecord) []models.MonthlyCensusRecord {
	return Dedupe(records, func(r *models.MonthlyCensusRecord) string { return r.Month }, CensusScore)
}

// DedupeExpenses keeps the most complete record per (month, department), sorted by month
// then department.
func DedupeExpenses(records []models.MonthlyExpenseRecord) []models.MonthlyExpenseRecord {
	return Dedupe(records, expenseKey, ExpenseScore)
}

// expenseKey joins month and department with a byte that sorts below every printable
// character, so "2024-01|a" orders before "2024-02|...".
func expenseKey(r *models.MonthlyExpenseRecord) string {
	return r.Month + "\x00" + r.Department
}
