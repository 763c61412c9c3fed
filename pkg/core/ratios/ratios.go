// Package ratios derives expense ratios, margins and per-unit figures from reconciled TTM data
// and scores them against industry benchmarks.
package ratios

import (
	"github.com/shopspring/decimal"

	"snf_underwriting/pkg/models"
)

// Inputs are the reconciled roll-ups a ratio run reads.
type Inputs struct {
	TTM         *models.TTMFinancials
	Census      *models.CensusSummary
	Departments []models.DepartmentSummary
	// Beds overrides the census bed count when set (facility or deal record).
	Beds *float64
}

// Ratios are nil whenever a numerator or denominator is unknown or zero.
type Ratios struct {
	LaborPct               *float64 `json:"labor_pct"`
	AgencyPct              *float64 `json:"agency_pct"` // of labor
	FoodPct                *float64 `json:"food_pct"`
	FoodCostPerResidentDay *float64 `json:"food_cost_per_resident_day"`
	ManagementFeePct       *float64 `json:"management_fee_pct"`
	BadDebtPct             *float64 `json:"bad_debt_pct"`
	UtilitiesPct           *float64 `json:"utilities_pct"`
	InsurancePct           *float64 `json:"insurance_pct"`
	EBITDAMargin           *float64 `json:"ebitda_margin"`
	EBITDARMargin          *float64 `json:"ebitdar_margin"`
	RevenuePerBed          *float64 `json:"revenue_per_bed"`
	RevenuePerResidentDay  *float64 `json:"revenue_per_resident_day"`

	// Totals the ratios were computed from.
	TotalLabor     *float64 `json:"total_labor"`
	AgencyLabor    *float64 `json:"agency_labor"`
	FoodCost       *float64 `json:"food_cost"`
	ManagementFees *float64 `json:"management_fees"`
	BadDebt        *float64 `json:"bad_debt"`
	ResidentDays   *float64 `json:"resident_days"`
}

// Value returns the ratio named metric (its JSON name), or nil.
func (r *Ratios) Value(metric string) *float64 {
	switch metric {
	case "labor_pct":
		return r.LaborPct
	case "agency_pct":
		return r.AgencyPct
	case "food_pct":
		return r.FoodPct
	case "food_cost_per_resident_day":
		return r.FoodCostPerResidentDay
	case "management_fee_pct":
		return r.ManagementFeePct
	case "bad_debt_pct":
		return r.BadDebtPct
	case "utilities_pct":
		return r.UtilitiesPct
	case "insurance_pct":
		return r.InsurancePct
	case "ebitda_margin":
		return r.EBITDAMargin
	case "ebitdar_margin":
		return r.EBITDARMargin
	case "revenue_per_bed":
		return r.RevenuePerBed
	case "revenue_per_resident_day":
		return r.RevenuePerResidentDay
	}
	return nil
}

// Calculate computes every ratio it has data for.
func Calculate(in Inputs) *Ratios {
	r := &Ratios{}
	dept := func(get func(*models.DepartmentSummary) *float64) *float64 {
		return sumDepartments(in.Departments, get)
	}

	r.TotalLabor = dept(func(d *models.DepartmentSummary) *float64 { return d.TotalLabor })
	if r.TotalLabor == nil {
		r.TotalLabor = addKnown(
			dept(func(d *models.DepartmentSummary) *float64 { return d.SalariesWages }),
			dept(func(d *models.DepartmentSummary) *float64 { return d.Benefits }),
			dept(func(d *models.DepartmentSummary) *float64 { return d.AgencyLabor }),
		)
	}
	r.AgencyLabor = dept(func(d *models.DepartmentSummary) *float64 { return d.AgencyLabor })
	r.FoodCost = dept(func(d *models.DepartmentSummary) *float64 { return d.FoodCost })
	r.ManagementFees = dept(func(d *models.DepartmentSummary) *float64 { return d.ManagementFees })
	r.BadDebt = dept(func(d *models.DepartmentSummary) *float64 { return d.BadDebt })
	utilities := dept(func(d *models.DepartmentSummary) *float64 { return d.Utilities })
	insurance := dept(func(d *models.DepartmentSummary) *float64 { return d.Insurance })

	var revenue, ebitda, ebitdar *float64
	if in.TTM != nil {
		revenue, ebitda, ebitdar = in.TTM.TotalRevenue, in.TTM.EBITDA, in.TTM.EBITDAR
		if insurance == nil {
			insurance = in.TTM.PropertyInsurance
		}
	}

	r.LaborPct = Pct(r.TotalLabor, revenue)
	r.AgencyPct = Pct(r.AgencyLabor, r.TotalLabor)
	r.FoodPct = Pct(r.FoodCost, revenue)
	r.ManagementFeePct = Pct(r.ManagementFees, revenue)
	r.BadDebtPct = Pct(r.BadDebt, revenue)
	r.UtilitiesPct = Pct(utilities, revenue)
	r.InsurancePct = Pct(insurance, revenue)
	r.EBITDAMargin = Pct(ebitda, revenue)
	r.EBITDARMargin = Pct(ebitdar, revenue)

	beds := in.Beds
	if beds == nil && in.Census != nil {
		beds = in.Census.TotalBeds
	}
	r.RevenuePerBed = annualPer(revenue, beds, in.TTM)

	r.ResidentDays = residentDays(in.Census)
	r.FoodCostPerResidentDay = Div(r.FoodCost, r.ResidentDays)
	r.RevenuePerResidentDay = Div(revenue, r.ResidentDays)
	return r
}

// Apply copies the ratios onto a flat summary so the validator can range-check them.
func Apply(s *models.FacilitySummary, r *Ratios) {
	if s == nil || r == nil {
		return
	}
	s.LaborPct = r.LaborPct
	s.AgencyPct = r.AgencyPct
	s.FoodPct = r.FoodPct
	s.ManagementFeePct = r.ManagementFeePct
	s.BadDebtPct = r.BadDebtPct
	s.UtilitiesPct = r.UtilitiesPct
	s.InsurancePct = r.InsurancePct
	s.EBITDAMarginPct = r.EBITDAMargin
	s.EBITDARMarginPct = r.EBITDARMargin
	s.FoodCostPerResidentDay = r.FoodCostPerResidentDay
}

// Pct is num/den*100 rounded to two decimals; nil if either side is nil or zero.
func Pct(num, den *float64) *float64 {
	if !usable(num) || !usable(den) {
		return nil
	}
	return models.Float(decimal.NewFromFloat(*num).
		Div(decimal.NewFromFloat(*den)).
		Mul(decimal.NewFromInt(100)).
		Round(2).InexactFloat64())
}

// Div is num/den rounded to two decimals; nil if either side is nil or zero.
func Div(num, den *float64) *float64 {
	if !usable(num) || !usable(den) {
		return nil
	}
	return models.Float(decimal.NewFromFloat(*num).Div(decimal.NewFromFloat(*den)).Round(2).InexactFloat64())
}

func usable(v *float64) bool {
	return v != nil && *v != 0
}

func sumDepartments(depts []models.DepartmentSummary, get func(*models.DepartmentSummary) *float64) *float64 {
	total := decimal.Zero
	found := false
	for i := range depts {
		if v := get(&depts[i]); v != nil {
			total = total.Add(decimal.NewFromFloat(*v))
			found = true
		}
	}
	if !found {
		return nil
	}
	return models.Float(total.InexactFloat64())
}

// addKnown sums the non-nil values; nil when all are nil.
func addKnown(vals ...*float64) *float64 {
	total := decimal.Zero
	found := false
	for _, v := range vals {
		if v != nil {
			total = total.Add(decimal.NewFromFloat(*v))
			found = true
		}
	}
	if !found {
		return nil
	}
	return models.Float(total.InexactFloat64())
}

// annualPer scales a partial-year revenue to twelve months before dividing by beds.
func annualPer(revenue, beds *float64, ttm *models.TTMFinancials) *float64 {
	if !usable(revenue) || !usable(beds) {
		return nil
	}
	annual := decimal.NewFromFloat(*revenue)
	if ttm != nil && ttm.MonthsIncluded > 0 && ttm.MonthsIncluded < 12 {
		annual = annual.Mul(decimal.NewFromInt(12)).Div(decimal.NewFromInt(int64(ttm.MonthsIncluded)))
	}
	return models.Float(annual.Div(decimal.NewFromFloat(*beds)).Round(0).InexactFloat64())
}

// residentDays prefers reported census days, then ADC times the days in the window.
func residentDays(c *models.CensusSummary) *float64 {
	if c == nil {
		return nil
	}
	if usable(c.TotalCensusDays) {
		return c.TotalCensusDays
	}
	if usable(c.AverageDailyCensus) && c.MonthsIncluded > 0 {
		days := decimal.NewFromInt(365).Mul(decimal.NewFromInt(int64(c.MonthsIncluded))).Div(decimal.NewFromInt(12))
		return models.Float(decimal.NewFromFloat(*c.AverageDailyCensus).Mul(days).Round(0).InexactFloat64())
	}
	return nil
}
