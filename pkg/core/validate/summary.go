package validate

import (
	"math"
	"strings"

	"snf_underwriting/pkg/models"
)

// =============================================================================
// RULE TABLES
// =============================================================================

type summaryField struct {
	Name  string
	Label string
	Get   func(*models.FacilitySummary) *float64
}

// PercentageFields are range-checked: below 0 is an error, above 100 a warning. Occupancy
// above 100 happens with swing beds, so it is a warning like the rest.
var PercentageFields = []summaryField{
	{"occupancy_percentage", "Occupancy", func(s *models.FacilitySummary) *float64 { return s.OccupancyPercentage }},
	{"medicare_pct", "Medicare %", func(s *models.FacilitySummary) *float64 { return s.MedicarePercentage }},
	{"medicaid_pct", "Medicaid %", func(s *models.FacilitySummary) *float64 { return s.MedicaidPercentage }},
	{"private_pay_pct", "Private pay %", func(s *models.FacilitySummary) *float64 { return s.PrivatePayPercentage }},
	{"ebitda_margin", "EBITDA margin", func(s *models.FacilitySummary) *float64 { return s.EBITDAMarginPct }},
	{"ebitdar_margin", "EBITDAR margin", func(s *models.FacilitySummary) *float64 { return s.EBITDARMarginPct }},
	{"labor_pct", "Labor %", func(s *models.FacilitySummary) *float64 { return s.LaborPct }},
	{"agency_pct", "Agency %", func(s *models.FacilitySummary) *float64 { return s.AgencyPct }},
	{"food_pct", "Food %", func(s *models.FacilitySummary) *float64 { return s.FoodPct }},
	{"management_fee_pct", "Management fee %", func(s *models.FacilitySummary) *float64 { return s.ManagementFeePct }},
	{"bad_debt_pct", "Bad debt %", func(s *models.FacilitySummary) *float64 { return s.BadDebtPct }},
	{"utilities_pct", "Utilities %", func(s *models.FacilitySummary) *float64 { return s.UtilitiesPct }},
	{"insurance_pct", "Insurance %", func(s *models.FacilitySummary) *float64 { return s.InsurancePct }},
}

type requiredField struct {
	Name  string
	Label string
	Get   func(*models.FacilitySummary, Options) string
}

// RequiredFields must be non-blank.
var RequiredFields = []requiredField{
	{"facility_name", "Facility name", func(s *models.FacilitySummary, o Options) string {
		if strings.TrimSpace(s.FacilityName) != "" {
			return s.FacilityName
		}
		return o.DealName
	}},
	{"state", "State", func(s *models.FacilitySummary, _ Options) string { return s.State }},
}

// Thresholds.
const (
	MinBeds              = 1
	MaxBeds              = 2000
	MinRevenuePerBed     = 30000
	MaxRevenuePerBed     = 150000
	MinLaborPct          = 40
	MaxLaborPct          = 75
	PayerMixTolerance    = 5
	OccupancyTolerance   = 5
	ExpenseGapRevenuePct = 0.15
	ExpenseGapMinEBITDA  = 100000
)

// =============================================================================
// SUMMARY VALIDATION
// =============================================================================

// Validate runs the full rule battery over a reconciled flat summary.
func Validate(s *models.FacilitySummary, opts Options) *Result {
	c := newCollector(opts)
	if s == nil {
		c.errorf("data", "No extraction data to validate")
		return c.done()
	}

	checkRequired(c, s)
	checkBeds(c, s)
	checkPercentages(c, s)
	checkHierarchy(c, s)
	checkRevenuePerBed(c, s)
	checkLabor(c, s)
	checkPayerMix(c, s)
	checkOccupancy(c, s)
	checkExpenseConsistency(c, s)
	return c.done()
}

func checkRequired(c *collector, s *models.FacilitySummary) {
	for _, f := range RequiredFields {
		if strings.TrimSpace(f.Get(s, c.opts)) == "" {
			c.errorf(f.Name, "%s is required", f.Label)
		}
	}
}

func checkBeds(c *collector, s *models.FacilitySummary) {
	if s.BedCount == nil {
		return
	}
	if beds := *s.BedCount; beds < MinBeds || beds > MaxBeds {
		c.errorf("bed_count", "Bed count %.0f is outside the plausible range %d-%d", beds, MinBeds, MaxBeds)
	}
}

func checkPercentages(c *collector, s *models.FacilitySummary) {
	for _, f := range PercentageFields {
		v := f.Get(s)
		if v == nil {
			continue
		}
		switch {
		case *v < 0:
			c.errorf(f.Name, "%s cannot be negative: %.1f%%", f.Label, *v)
		case *v > 100:
			c.warnf(f.Name, "%s exceeds 100%%: %.1f%%", f.Label, *v)
		}
	}
}

func checkHierarchy(c *collector, s *models.FacilitySummary) {
	rev, ebitda, ebitdar, ebit, ni := s.TotalRevenue, s.EBITDA, s.EBITDAR, s.EBIT, s.NetIncome

	if rev != nil && *rev < 0 {
		c.warnf("total_revenue", "Revenue is negative: %s", money(*rev))
	}
	if rev != nil && ebitda != nil && *ebitda > *rev {
		c.warnf("ebitda", "EBITDA (%s) exceeds revenue (%s)", money(*ebitda), money(*rev))
	}
	if ni != nil && ebitda != nil && *ni > *ebitda {
		c.warnf("net_income", "Net income (%s) exceeds EBITDA (%s)", money(*ni), money(*ebitda))
	}
	if ebitdar != nil && ebitda != nil && *ebitdar < *ebitda {
		c.warnf("ebitdar", "EBITDAR (%s) is less than EBITDA (%s)", money(*ebitdar), money(*ebitda))
	}
	if ebitda != nil && ebit != nil && *ebitda < *ebit {
		c.warnf("ebitda", "EBITDA (%s) is less than EBIT (%s)", money(*ebitda), money(*ebit))
	}
	if ebit != nil && ni != nil && *ebit < *ni {
		c.warnf("ebit", "EBIT (%s) is less than net income (%s)", money(*ebit), money(*ni))
	}
}

// checkRevenuePerBed annualizes revenue when fewer than twelve months were summed.
func checkRevenuePerBed(c *collector, s *models.FacilitySummary) {
	if s.TotalRevenue == nil || s.BedCount == nil || *s.BedCount <= 0 || *s.TotalRevenue <= 0 {
		return
	}
	annual := *s.TotalRevenue
	if s.MonthsIncluded > 0 && s.MonthsIncluded < 12 {
		annual = annual * 12 / float64(s.MonthsIncluded)
	}
	perBed := annual / *s.BedCount
	if perBed < MinRevenuePerBed || perBed > MaxRevenuePerBed {
		c.warnf("revenue_per_bed", "Annual revenue per bed %s is outside the typical range %s-%s",
			money(perBed), money(MinRevenuePerBed), money(MaxRevenuePerBed))
	}
}

func checkLabor(c *collector, s *models.FacilitySummary) {
	if s.LaborPct == nil {
		return
	}
	if v := *s.LaborPct; v < MinLaborPct || v > MaxLaborPct {
		c.warnf("labor_pct", "Labor cost %.1f%% of revenue is outside the typical range %d-%d%%", v, MinLaborPct, MaxLaborPct)
	}
}

func checkPayerMix(c *collector, s *models.FacilitySummary) {
	sum, present := 0.0, false
	for _, v := range []*float64{s.MedicaidPercentage, s.MedicarePercentage, s.PrivatePayPercentage, s.OtherPayerPercentage} {
		if v != nil {
			sum += *v
			present = true
		}
	}
	if present && math.Abs(sum-100) >= PayerMixTolerance {
		c.warnf("payer_mix", "Payer mix sums to %.1f%%, expected ~100%%", sum)
	}
}

func checkOccupancy(c *collector, s *models.FacilitySummary) {
	if s.AverageDailyCensus == nil || s.BedCount == nil || *s.BedCount <= 0 {
		return
	}
	adc, beds := *s.AverageDailyCensus, *s.BedCount
	if s.OccupancyPercentage != nil {
		calc := adc / beds * 100
		if math.Abs(*s.OccupancyPercentage-calc) > OccupancyTolerance {
			c.warnf("occupancy_percentage", "Stated occupancy %.1f%% differs from census-derived %.1f%% (ADC %.1f / %.0f beds)",
				*s.OccupancyPercentage, calc, adc, beds)
		}
	}
	if adc > beds {
		c.warnf("average_daily_census", "Average daily census %.1f exceeds bed count %.0f", adc, beds)
	}
}

func checkExpenseConsistency(c *collector, s *models.FacilitySummary) {
	if s.TotalRevenue == nil || s.TotalExpenses == nil || s.EBITDA == nil {
		return
	}
	rev, exp, ebitda := *s.TotalRevenue, *s.TotalExpenses, *s.EBITDA
	implied := rev - exp
	gap := math.Abs(ebitda - implied)
	if gap > math.Abs(rev)*ExpenseGapRevenuePct && math.Abs(ebitda) > ExpenseGapMinEBITDA {
		c.warnf("ebitda", "EBITDA %s differs from revenue minus expenses (%s) by %s",
			money(ebitda), money(implied), money(gap))
	}
}
