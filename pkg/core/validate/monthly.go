package validate

import (
	"regexp"

	"snf_underwriting/pkg/models"
)

// =============================================================================
// MONTHLY SERIES VALIDATION
// =============================================================================

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// RevenueSwingLimit is the max/min monthly revenue ratio above which a series is flagged.
const RevenueSwingLimit = 3.0

// ValidateMonthlyData dispatches on the record type. Unknown types yield an error finding.
func ValidateMonthlyData(records any, opts Options) *Result {
	switch r := records.(type) {
	case []models.MonthlyFinancialRecord:
		return ValidateMonthlyFinancials(r, opts)
	case []models.MonthlyCensusRecord:
		return ValidateMonthlyCensus(r, opts)
	case []models.MonthlyExpenseRecord:
		return ValidateMonthlyExpenses(r, opts)
	}
	c := newCollector(opts)
	c.errorf("data_type", "Unsupported monthly data type %T", records)
	return c.done()
}

// checkKeys flags duplicate keys and malformed months.
func checkKeys(c *collector, prefix string, months []string, keys []string) {
	seen := make(map[string]bool, len(keys))
	for i, m := range months {
		if !monthPattern.MatchString(m) {
			c.errorf(prefix+".month", "Invalid month format %q, expected YYYY-MM", m)
		}
		if seen[keys[i]] {
			c.errorf(prefix+".month", "Duplicate entry for %s", keys[i])
		}
		seen[keys[i]] = true
	}
}

// ValidateMonthlyFinancials checks keys, negative revenue and month-to-month revenue swings.
func ValidateMonthlyFinancials(records []models.MonthlyFinancialRecord, opts Options) *Result {
	c := newCollector(opts)
	months := make([]string, len(records))
	for i := range records {
		months[i] = records[i].Month
	}
	checkKeys(c, "monthly_financials", months, months)

	var lo, hi float64
	n := 0
	for _, r := range records {
		if r.TotalRevenue == nil {
			continue
		}
		rev := *r.TotalRevenue
		if rev < 0 {
			c.warnf("monthly_financials.total_revenue", "Negative revenue %s in %s", money(rev), r.Month)
			continue
		}
		if rev == 0 {
			continue
		}
		if n == 0 || rev < lo {
			lo = rev
		}
		if n == 0 || rev > hi {
			hi = rev
		}
		n++
	}
	if n > 1 && hi/lo > RevenueSwingLimit {
		c.warnf("monthly_financials.total_revenue", "Monthly revenue varies more than %.0fx (min %s, max %s)",
			RevenueSwingLimit, money(lo), money(hi))
	}
	return c.done()
}

// ValidateMonthlyCensus checks keys, occupancy range and ADC against beds.
func ValidateMonthlyCensus(records []models.MonthlyCensusRecord, opts Options) *Result {
	c := newCollector(opts)
	months := make([]string, len(records))
	for i := range records {
		months[i] = records[i].Month
	}
	checkKeys(c, "monthly_census", months, months)

	for _, r := range records {
		if occ := r.OccupancyPercentage; occ != nil {
			switch {
			case *occ < 0:
				c.errorf("monthly_census.occupancy_percentage", "Negative occupancy %.1f%% in %s", *occ, r.Month)
			case *occ > 100:
				c.warnf("monthly_census.occupancy_percentage", "Occupancy %.1f%% exceeds 100%% in %s", *occ, r.Month)
			}
		}
		if r.AverageDailyCensus != nil && r.TotalBeds != nil && *r.AverageDailyCensus > *r.TotalBeds {
			c.warnf("monthly_census.average_daily_census", "Average daily census %.1f exceeds %.0f beds in %s",
				*r.AverageDailyCensus, *r.TotalBeds, r.Month)
		}
	}
	return c.done()
}

// ValidateMonthlyExpenses checks (month, department) keys.
func ValidateMonthlyExpenses(records []models.MonthlyExpenseRecord, opts Options) *Result {
	c := newCollector(opts)
	months := make([]string, len(records))
	keys := make([]string, len(records))
	for i := range records {
		months[i] = records[i].Month
		keys[i] = records[i].Month + " / " + records[i].Department
	}
	checkKeys(c, "monthly_expenses", months, keys)
	return c.done()
}
