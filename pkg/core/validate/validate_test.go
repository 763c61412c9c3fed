package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snf_underwriting/pkg/models"
)

var f = models.Float

func baseSummary() *models.FacilitySummary {
	return &models.FacilitySummary{FacilityName: "Oak Manor", State: "OH", BedCount: f(150)}
}

func fields(findings []Finding) []string {
	out := make([]string, len(findings))
	for i, fd := range findings {
		out[i] = fd.Field
	}
	return out
}

// =============================================================================
// SUMMARY RULES
// =============================================================================

func TestValidate_CleanSummary(t *testing.T) {
	res := Validate(baseSummary(), Options{})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "All validation checks passed", res.Summary)
}

func TestValidate_BedCount(t *testing.T) {
	tests := []struct {
		name      string
		beds      float64
		wantError bool
	}{
		{"zero beds", 0, true},
		{"too many beds", 2500, true},
		{"typical", 150, false},
		{"boundary low", 1, false},
		{"boundary high", 2000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSummary()
			s.BedCount = f(tt.beds)
			res := Validate(s, Options{})
			if tt.wantError {
				assert.Contains(t, fields(res.Errors), "bed_count")
				assert.False(t, res.Valid)
			} else {
				assert.Empty(t, res.Errors)
				assert.Empty(t, res.Warnings)
			}
		})
	}
}

func TestValidate_Percentages(t *testing.T) {
	t.Run("occupancy above 100 is a warning only", func(t *testing.T) {
		s := baseSummary()
		s.OccupancyPercentage = f(105)
		res := Validate(s, Options{})
		assert.True(t, res.Valid)
		assert.Equal(t, []string{"occupancy_percentage"}, fields(res.Warnings))
	})
	t.Run("negative medicare is an error", func(t *testing.T) {
		s := baseSummary()
		s.MedicarePercentage = f(-5)
		res := Validate(s, Options{})
		assert.False(t, res.Valid)
		assert.Equal(t, []string{"medicare_pct"}, fields(res.Errors))
	})
	t.Run("labor above 100 warns twice", func(t *testing.T) {
		s := baseSummary()
		s.LaborPct = f(120)
		res := Validate(s, Options{})
		assert.True(t, res.Valid)
		assert.ElementsMatch(t, []string{"labor_pct", "labor_pct"}, fields(res.Warnings))
	})
}

func TestValidate_PayerMix(t *testing.T) {
	s := baseSummary()
	s.MedicarePercentage, s.MedicaidPercentage, s.PrivatePayPercentage = f(60), f(30), f(15)

	res := Validate(s, Options{})
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "payer_mix", res.Warnings[0].Field)
	assert.Equal(t, "Payer mix sums to 105.0%, expected ~100%", res.Warnings[0].Message)

	s.PrivatePayPercentage = f(12)
	assert.Empty(t, Validate(s, Options{}).Warnings)

	s.PrivatePayPercentage = f(5)
	require.Len(t, Validate(s, Options{}).Warnings, 1)
}

func TestValidate_Hierarchy(t *testing.T) {
	s := baseSummary()
	s.TotalRevenue = f(1000000)
	s.EBITDA = f(1200000)
	s.EBITDAR = f(1100000)
	s.EBIT = f(1300000)
	s.NetIncome = f(1400000)

	res := Validate(s, Options{})
	assert.True(t, res.Valid)
	assert.Contains(t, fields(res.Warnings), "ebitda")
	assert.Contains(t, fields(res.Warnings), "ebitdar")
	assert.Contains(t, fields(res.Warnings), "ebit")
	assert.Contains(t, fields(res.Warnings), "net_income")

	s = baseSummary()
	s.TotalRevenue = f(-10)
	assert.Contains(t, fields(Validate(s, Options{}).Warnings), "total_revenue")
}

func TestValidate_RevenuePerBedAnnualizes(t *testing.T) {
	s := baseSummary()
	s.BedCount = f(100)
	s.TotalRevenue = f(3000000)
	s.MonthsIncluded = 6
	assert.NotContains(t, fields(Validate(s, Options{}).Warnings), "revenue_per_bed")

	s.TotalRevenue = f(1000000)
	s.MonthsIncluded = 12
	assert.Contains(t, fields(Validate(s, Options{}).Warnings), "revenue_per_bed")
}

func TestValidate_Occupancy(t *testing.T) {
	s := baseSummary()
	s.BedCount = f(100)
	s.AverageDailyCensus = f(80)
	s.OccupancyPercentage = f(92)
	assert.Equal(t, []string{"occupancy_percentage"}, fields(Validate(s, Options{}).Warnings))

	s.OccupancyPercentage = f(82)
	assert.Empty(t, Validate(s, Options{}).Warnings)

	s.OccupancyPercentage = nil
	s.AverageDailyCensus = f(110)
	assert.Equal(t, []string{"average_daily_census"}, fields(Validate(s, Options{}).Warnings))
}

func TestValidate_ExpenseConsistency(t *testing.T) {
	s := baseSummary()
	s.BedCount = f(100)
	s.TotalRevenue = f(10000000)
	s.TotalExpenses = f(9000000)
	s.EBITDA = f(3000000)
	assert.Contains(t, fields(Validate(s, Options{}).Warnings), "ebitda")

	s.EBITDA = f(1200000)
	assert.NotContains(t, fields(Validate(s, Options{}).Warnings), "ebitda")

	// Small deals are exempt.
	small := baseSummary()
	small.BedCount = nil
	small.TotalRevenue = f(100000)
	small.TotalExpenses = f(100000)
	small.EBITDA = f(90000)
	assert.Empty(t, Validate(small, Options{}).Warnings)
}

func TestValidate_RequiredFields(t *testing.T) {
	res := Validate(&models.FacilitySummary{}, Options{})
	assert.ElementsMatch(t, []string{"facility_name", "state"}, fields(res.Errors))

	res = Validate(&models.FacilitySummary{State: "TX"}, Options{DealName: "Project Pine"})
	assert.True(t, res.Valid)

	res = Validate(nil, Options{})
	assert.False(t, res.Valid)
}

func TestValidate_FacilitySuffix(t *testing.T) {
	s := baseSummary()
	s.OccupancyPercentage = f(105)
	res := Validate(s, Options{FacilityName: "Oak Manor"})
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "Occupancy exceeds 100%: 105.0% (Oak Manor)", res.Warnings[0].Message)
}

func TestResult_MergeAndToError(t *testing.T) {
	ok := Validate(baseSummary(), Options{})
	assert.NoError(t, ok.ToError())

	bad := baseSummary()
	bad.BedCount = f(0)
	merged := ok.Merge(Validate(bad, Options{}))

	assert.False(t, merged.Valid)
	err := merged.ToError()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "bed_count")
	assert.Equal(t, "Failed with 1 error(s) and 0 warning(s)", merged.Summary)
}

// =============================================================================
// MONTHLY RULES
// =============================================================================

func TestValidateMonthlyFinancials(t *testing.T) {
	res := ValidateMonthlyFinancials([]models.MonthlyFinancialRecord{
		{Month: "2024-01", TotalRevenue: f(100000)},
		{Month: "2024-01", TotalRevenue: f(110000)},
		{Month: "2024-13", TotalRevenue: f(400000)},
		{Month: "24-02", TotalRevenue: f(-5)},
	}, Options{})

	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 3)
	assert.Len(t, res.Warnings, 2, "negative revenue and 4x swing")
}

func TestValidateMonthlyFinancials_StableSeries(t *testing.T) {
	res := ValidateMonthlyFinancials([]models.MonthlyFinancialRecord{
		{Month: "2024-01", TotalRevenue: f(100000)},
		{Month: "2024-02", TotalRevenue: f(250000)},
		{Month: "2024-03"},
	}, Options{})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Warnings)
}

func TestValidateMonthlyCensus(t *testing.T) {
	res := ValidateMonthlyCensus([]models.MonthlyCensusRecord{
		{Month: "2024-01", OccupancyPercentage: f(-1)},
		{Month: "2024-02", OccupancyPercentage: f(101)},
		{Month: "2024-03", TotalBeds: f(100), AverageDailyCensus: f(110)},
	}, Options{})

	assert.Equal(t, []string{"monthly_census.occupancy_percentage"}, fields(res.Errors))
	assert.ElementsMatch(t, []string{"monthly_census.occupancy_percentage", "monthly_census.average_daily_census"}, fields(res.Warnings))
}

func TestValidateMonthlyExpenses(t *testing.T) {
	res := ValidateMonthlyExpenses([]models.MonthlyExpenseRecord{
		{Month: "2024-01", Department: "nursing"},
		{Month: "2024-01", Department: "dietary"},
		{Month: "2024-01", Department: "nursing"},
	}, Options{})
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "2024-01 / nursing")
}

func TestValidateMonthlyData_Dispatch(t *testing.T) {
	assert.True(t, ValidateMonthlyData([]models.MonthlyCensusRecord{{Month: "2024-01"}}, Options{}).Valid)
	assert.False(t, ValidateMonthlyData([]string{"x"}, Options{}).Valid)
}

// =============================================================================
// PORTFOLIO RULES
// =============================================================================

func TestValidatePortfolioConsistency(t *testing.T) {
	portfolio := PortfolioTotals{Name: "Buckeye Portfolio", TotalRevenue: f(1000000), TotalBeds: f(200)}
	facilities := []models.FacilitySummary{
		{FacilityName: "Oak Manor", TotalRevenue: f(500000), BedCount: f(100)},
		{FacilityName: "Elm Court", TotalRevenue: f(350000), BedCount: f(90)},
		{FacilityName: "Pine Ridge"},
	}

	res := ValidatePortfolioConsistency(portfolio, facilities)
	assert.True(t, res.Valid)
	assert.ElementsMatch(t, []string{"facilities.total_revenue", "portfolio.total_revenue", "portfolio.total_beds"}, fields(res.Warnings))
	assert.Contains(t, res.Warnings[0].Message, "Pine Ridge")
	assert.Contains(t, res.Warnings[0].Message, "(Buckeye Portfolio)")
}

func TestValidatePortfolioConsistency_WithinTolerance(t *testing.T) {
	res := ValidatePortfolioConsistency(
		PortfolioTotals{TotalRevenue: f(1000000), TotalBeds: f(190)},
		[]models.FacilitySummary{
			{TotalRevenue: f(520000), BedCount: f(100)},
			{TotalRevenue: f(450000), BedCount: f(93)},
		})
	assert.Empty(t, res.Warnings)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$0", money(0))
	assert.Equal(t, "$999", money(999))
	assert.Equal(t, "$1,000", money(1000))
	assert.Equal(t, "-$1,234,568", money(-1234567.8))
}
