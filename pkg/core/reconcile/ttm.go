package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"

	"snf_underwriting/pkg/models"
)

// TTMMonths is the trailing window length.
const TTMMonths = 12

// SumField adds f across records. The result is nil when no record has a value for f;
// otherwise nil entries count as zero.
func SumField[T any](records []T, f models.Field[T]) *float64 {
	total := decimal.Zero
	found := false
	for i := range records {
		v := f.Get(&records[i])
		if v == nil {
			continue
		}
		found = true
		total = total.Add(decimal.NewFromFloat(*v))
	}
	if !found {
		return nil
	}
	return models.Float(total.InexactFloat64())
}

// latest returns up to n records with the greatest months, newest first.
func latest[T any](records []T, month func(*T) string, n int) []T {
	sorted := make([]T, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return month(&sorted[i]) > month(&sorted[j])
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// ComputeTTM sums the latest twelve months of deduplicated financials and derives
// EBIT, EBITDA and EBITDAR from the summed components.
func ComputeTTM(records []models.MonthlyFinancialRecord) *models.TTMFinancials {
	if len(records) == 0 {
		return nil
	}
	window := latest(records, func(r *models.MonthlyFinancialRecord) string { return r.Month }, TTMMonths)

	sum := func(name string) *float64 {
		for _, f := range models.FinancialFields {
			if f.Name == name {
				return SumField(window, f)
			}
		}
		return nil
	}

	ttm := &models.TTMFinancials{
		PeriodStart:       window[len(window)-1].Month,
		PeriodEnd:         window[0].Month,
		MonthsIncluded:    len(window),
		TotalRevenue:      sum("total_revenue"),
		MedicaidRevenue:   sum("medicaid_revenue"),
		MedicareRevenue:   sum("medicare_revenue"),
		PrivatePayRevenue: sum("private_pay_revenue"),
		OtherRevenue:      sum("other_revenue"),
		TotalExpenses:     sum("total_expenses"),
		OperatingExpenses: sum("operating_expenses"),
		Depreciation:      sum("depreciation"),
		Amortization:      sum("amortization"),
		InterestExpense:   sum("interest_expense"),
		RentExpense:       sum("rent_expense"),
		PropertyTaxes:     sum("property_taxes"),
		PropertyInsurance: sum("property_insurance"),
		NetIncome:         sum("net_income"),
	}
	ttm.EBIT, ttm.EBITDA, ttm.EBITDAR = DeriveChain(ttm.NetIncome, ttm.InterestExpense, ttm.Depreciation, ttm.Amortization, ttm.RentExpense)
	return ttm
}

// DeriveChain computes EBIT, EBITDA and EBITDAR. A missing link nils every later line:
//
//	ebit    = net_income + interest          (both known)
//	ebitda  = ebit + depreciation + amort    (ebit, depreciation known; amort nil counts 0)
//	ebitdar = ebitda + rent                  (both known)
func DeriveChain(netIncome, interest, depreciation, amortization, rent *float64) (ebit, ebitda, ebitdar *float64) {
	if netIncome == nil || interest == nil {
		return nil, nil, nil
	}
	e := decimal.NewFromFloat(*netIncome).Add(decimal.NewFromFloat(*interest))
	ebit = models.Float(e.InexactFloat64())

	if depreciation == nil {
		return ebit, nil, nil
	}
	d := e.Add(decimal.NewFromFloat(*depreciation))
	if amortization != nil {
		d = d.Add(decimal.NewFromFloat(*amortization))
	}
	ebitda = models.Float(d.InexactFloat64())

	if rent == nil {
		return ebit, ebitda, nil
	}
	ebitdar = models.Float(d.Add(decimal.NewFromFloat(*rent)).InexactFloat64())
	return ebit, ebitda, ebitdar
}

// DepartmentTTM rolls the latest twelve months of each department into one summary,
// ordered by department name.
func DepartmentTTM(records []models.MonthlyExpenseRecord) []models.DepartmentSummary {
	byDept := make(map[string][]models.MonthlyExpenseRecord)
	for _, r := range records {
		byDept[r.Department] = append(byDept[r.Department], r)
	}
	names := make([]string, 0, len(byDept))
	for d := range byDept {
		names = append(names, d)
	}
	sort.Strings(names)

	out := make([]models.DepartmentSummary, 0, len(names))
	for _, dept := range names {
		window := latest(byDept[dept], func(r *models.MonthlyExpenseRecord) string { return r.Month }, TTMMonths)
		s := models.DepartmentSummary{Department: dept, MonthsIncluded: len(window)}
		for _, f := range models.ExpenseFields {
			v := SumField(window, f)
			switch f.Name {
			case "salaries_wages":
				s.SalariesWages = v
			case "benefits":
				s.Benefits = v
			case "agency_labor":
				s.AgencyLabor = v
			case "total_labor":
				s.TotalLabor = v
			case "supplies":
				s.Supplies = v
			case "food_cost":
				s.FoodCost = v
			case "utilities":
				s.Utilities = v
			case "insurance":
				s.Insurance = v
			case "management_fees":
				s.ManagementFees = v
			case "bad_debt":
				s.BadDebt = v
			case "other_expenses":
				s.OtherExpenses = v
			case "total_department_expense":
				s.TotalDepartmentExpense = v
			}
		}
		out = append(out, s)
	}
	return out
}
