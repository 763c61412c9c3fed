package ratios

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snf_underwriting/pkg/core/cache"
	"snf_underwriting/pkg/models"
)

var f = models.Float

func sampleInputs() Inputs {
	return Inputs{
		TTM: &models.TTMFinancials{
			MonthsIncluded: 12,
			TotalRevenue:   f(10000000),
			EBITDA:         f(1200000),
			EBITDAR:        f(2000000),
		},
		Census: &models.CensusSummary{
			MonthsIncluded:  12,
			TotalBeds:       f(100),
			TotalCensusDays: f(32000),
		},
		Departments: []models.DepartmentSummary{
			{Department: "nursing", TotalLabor: f(4500000), AgencyLabor: f(300000)},
			{Department: "dietary", TotalLabor: f(800000), FoodCost: f(480000)},
			{Department: "administration", TotalLabor: f(700000), ManagementFees: f(500000), BadDebt: f(100000), Utilities: f(200000)},
		},
	}
}

func TestCalculate(t *testing.T) {
	r := Calculate(sampleInputs())

	assert.Equal(t, 6000000.0, *r.TotalLabor)
	assert.Equal(t, 60.0, *r.LaborPct)
	assert.Equal(t, 5.0, *r.AgencyPct)
	assert.Equal(t, 4.8, *r.FoodPct)
	assert.Equal(t, 15.0, *r.FoodCostPerResidentDay)
	assert.Equal(t, 5.0, *r.ManagementFeePct)
	assert.Equal(t, 1.0, *r.BadDebtPct)
	assert.Equal(t, 2.0, *r.UtilitiesPct)
	assert.Nil(t, r.InsurancePct)
	assert.Equal(t, 12.0, *r.EBITDAMargin)
	assert.Equal(t, 20.0, *r.EBITDARMargin)
	assert.Equal(t, 100000.0, *r.RevenuePerBed)
	assert.Equal(t, 312.5, *r.RevenuePerResidentDay)
}

func TestCalculate_NilOrZeroInputsGiveNil(t *testing.T) {
	in := sampleInputs()
	in.TTM.TotalRevenue = f(0)
	r := Calculate(in)
	assert.Nil(t, r.LaborPct)
	assert.Nil(t, r.EBITDAMargin)
	assert.Nil(t, r.RevenuePerBed)
	assert.NotNil(t, r.AgencyPct, "agency is measured against labor, not revenue")

	empty := Calculate(Inputs{})
	assert.Nil(t, empty.LaborPct)
	assert.Nil(t, empty.TotalLabor)
	assert.Nil(t, empty.ResidentDays)
}

func TestCalculate_LaborFallsBackToComponents(t *testing.T) {
	r := Calculate(Inputs{
		TTM: &models.TTMFinancials{TotalRevenue: f(1000)},
		Departments: []models.DepartmentSummary{
			{SalariesWages: f(400), Benefits: f(100)},
			{AgencyLabor: f(50)},
		},
	})
	assert.Equal(t, 550.0, *r.TotalLabor)
	assert.Equal(t, 55.0, *r.LaborPct)
}

func TestCalculate_PartialYearAndADCDays(t *testing.T) {
	r := Calculate(Inputs{
		TTM:    &models.TTMFinancials{MonthsIncluded: 6, TotalRevenue: f(5000000)},
		Census: &models.CensusSummary{MonthsIncluded: 12, AverageDailyCensus: f(100)},
		Beds:   f(100),
	})
	assert.Equal(t, 100000.0, *r.RevenuePerBed)
	assert.Equal(t, 36500.0, *r.ResidentDays)
}

func TestApply(t *testing.T) {
	s := &models.FacilitySummary{}
	Apply(s, Calculate(sampleInputs()))
	assert.Equal(t, 60.0, *s.LaborPct)
	assert.Equal(t, 12.0, *s.EBITDAMarginPct)
	Apply(nil, nil)
}

func TestBenchmarkStatus(t *testing.T) {
	labor := DefaultBenchmarks[0]
	assert.Equal(t, models.StatusGood, labor.Status(55))
	assert.Equal(t, models.StatusWarning, labor.Status(60))
	assert.Equal(t, models.StatusCritical, labor.Status(63))

	margin := Benchmark{Target: 15, Critical: 8, Direction: HigherIsBetter}
	assert.Equal(t, models.StatusGood, margin.Status(16))
	assert.Equal(t, models.StatusWarning, margin.Status(12))
	assert.Equal(t, models.StatusCritical, margin.Status(5))
}

func TestFlagsAndSavings(t *testing.T) {
	r := Calculate(sampleInputs())
	flags := Flags(r, DefaultBenchmarks)

	byMetric := map[string]models.BenchmarkFlag{}
	for _, fl := range flags {
		byMetric[fl.Metric] = fl
	}
	assert.NotContains(t, byMetric, "insurance_pct")
	assert.Equal(t, models.StatusWarning, byMetric["labor_pct"].Status)
	assert.Equal(t, models.StatusWarning, byMetric["agency_pct"].Status)
	assert.Equal(t, models.StatusGood, byMetric["food_pct"].Status)
	assert.Equal(t, models.StatusWarning, byMetric["ebitda_margin"].Status)
	assert.Equal(t, "Labor cost 60.0% vs target 55.0% (warning)", byMetric["labor_pct"].Message)

	// labor 5 points and management fee 1 point over target on $10M.
	assert.Equal(t, 600000.0, PotentialSavings(r, DefaultBenchmarks, f(10000000)))
	assert.Equal(t, 0.0, PotentialSavings(r, DefaultBenchmarks, nil))
}

func TestCritical(t *testing.T) {
	flags := []models.BenchmarkFlag{
		{Metric: "a", Value: 70, Target: 55, Status: models.StatusCritical, Direction: LowerIsBetter},
		{Metric: "b", Value: 3, Target: 15, Status: models.StatusCritical, Direction: HigherIsBetter},
		{Metric: "c", Value: 4, Target: 5, Status: models.StatusGood, Direction: LowerIsBetter},
	}
	got := Critical(flags)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Metric)
}

func TestBenchmarkSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "benchmarks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
benchmarks:
  - metric: labor_pct
    label: Labor
    target: 50
    critical: 60
    direction: lower_is_better
    of_revenue: true
`), 0o644))

	c := cache.NewTTL[string, []Benchmark](4, time.Minute)
	src := NewBenchmarkSource(path, c)

	defs, err := src.Definitions()
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, 50.0, defs[0].Target)

	// Served from cache after the file is gone.
	require.NoError(t, os.Remove(path))
	defs, err = src.Definitions()
	require.NoError(t, err)
	assert.Len(t, defs, 1)
	assert.Equal(t, 1, c.Len())

	defaults, err := NewBenchmarkSource("", nil).Definitions()
	require.NoError(t, err)
	assert.Equal(t, DefaultBenchmarks, defaults)

	_, err = NewBenchmarkSource(path, nil).Definitions()
	assert.Error(t, err)
}

func TestLoadBenchmarks_RejectsBadDirection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.yaml")
	require.NoError(t, os.WriteFile(path, []byte("benchmarks:\n  - metric: x\n    direction: sideways\n"), 0o644))
	_, err := LoadBenchmarks(path)
	assert.ErrorContains(t, err, "sideways")
}

func TestShippedBenchmarkFileParses(t *testing.T) {
	defs, err := LoadBenchmarks(filepath.Join("..", "..", "..", "config", "benchmarks.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBenchmarks, defs)
}
