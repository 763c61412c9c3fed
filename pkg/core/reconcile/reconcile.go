package reconcile

import (
	"github.com/sirupsen/logrus"

	"snf_underwriting/pkg/core/extraction"
	"snf_underwriting/pkg/models"
)

// Dataset is the reconciled view of one facility's extraction.
type Dataset struct {
	Facility             models.Facility                 `json:"facility"`
	MonthlyFinancials    []models.MonthlyFinancialRecord `json:"monthly_financials"`
	MonthlyCensus        []models.MonthlyCensusRecord    `json:"monthly_census"`
	MonthlyExpenses      []models.MonthlyExpenseRecord   `json:"monthly_expenses"`
	Rates                models.Rates                    `json:"rates"`
	TTMFinancials        *models.TTMFinancials           `json:"ttm_financials"`
	CensusSummary        *models.CensusSummary           `json:"census_summary"`
	ExpensesByDepartment []models.DepartmentSummary      `json:"expenses_by_department"`
	Summary              models.FacilitySummary          `json:"summary"`
	Metadata             Metadata                        `json:"metadata"`
}

// Metadata carries bookkeeping from the raw extraction through reconciliation.
type Metadata struct {
	ExtractionErrors  []extraction.CategoryError `json:"extraction_errors"`
	CensusCorrections int                        `json:"census_corrections"`
	DroppedDuplicates int                        `json:"dropped_duplicates"`
}

// Reconciler merges raw extractions. It holds no per-run state.
type Reconciler struct {
	log logrus.FieldLogger
}

// NewReconciler creates a Reconciler. A nil logger falls back to the standard logrus logger.
func NewReconciler(logger logrus.FieldLogger) *Reconciler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Reconciler{log: logger}
}

// Reconcile never fails: a nil or partial raw result yields empty series and nil roll-ups.
func (r *Reconciler) Reconcile(raw *extraction.Result) *Dataset {
	if raw == nil {
		raw = &extraction.Result{}
	}
	ds := &Dataset{
		Facility: raw.Facility,
		Rates:    raw.Rates,
		Metadata: Metadata{ExtractionErrors: raw.Errors},
	}

	fin := raw.Financials.MonthlyFinancials
	ds.MonthlyFinancials = DedupeFinancials(fin)
	r.logCategory(extraction.CategoryFinancials, len(fin), len(ds.MonthlyFinancials))

	cen := raw.Census.MonthlyCensus
	ds.MonthlyCensus = DedupeCensus(cen)
	r.logCategory(extraction.CategoryCensus, len(cen), len(ds.MonthlyCensus))

	exp := raw.Expenses.MonthlyExpenses
	ds.MonthlyExpenses = DedupeExpenses(exp)
	r.logCategory(extraction.CategoryExpenses, len(exp), len(ds.MonthlyExpenses))

	ds.Metadata.DroppedDuplicates = (len(fin) - len(ds.MonthlyFinancials)) +
		(len(cen) - len(ds.MonthlyCensus)) +
		(len(exp) - len(ds.MonthlyExpenses))

	beds := SeriesBeds(ds.MonthlyCensus)
	for i := range ds.MonthlyCensus {
		if CorrectCensus(&ds.MonthlyCensus[i], beds) {
			ds.Metadata.CensusCorrections++
		}
	}
	if ds.Metadata.CensusCorrections > 0 {
		r.log.WithFields(logrus.Fields{
			"category":    extraction.CategoryCensus,
			"corrections": ds.Metadata.CensusCorrections,
		}).Info("census values corrected")
	}

	ds.TTMFinancials = ComputeTTM(ds.MonthlyFinancials)
	ds.CensusSummary = SummarizeCensus(ds.MonthlyCensus)
	ds.ExpensesByDepartment = DepartmentTTM(ds.MonthlyExpenses)
	ds.Summary = BuildSummary(ds.Facility, ds.TTMFinancials, ds.CensusSummary)
	return ds
}

func (r *Reconciler) logCategory(category string, candidates, kept int) {
	r.log.WithFields(logrus.Fields{
		"category":   category,
		"candidates": candidates,
		"kept":       kept,
	}).Info("category reconciled")
}

// BuildSummary flattens facility identity, TTM financials and the census summary into the
// single-row view. Facility bed count wins over the census bed count.
func BuildSummary(f models.Facility, ttm *models.TTMFinancials, census *models.CensusSummary) models.FacilitySummary {
	s := models.FacilitySummary{
		FacilityName: f.FacilityName,
		Address:      f.Address,
		City:         f.City,
		State:        f.State,
		ZipCode:      f.ZipCode,
		FacilityType: f.FacilityType,
		BedCount:     f.BedCount,
	}
	if ttm != nil {
		s.PeriodStart = ttm.PeriodStart
		s.PeriodEnd = ttm.PeriodEnd
		s.MonthsIncluded = ttm.MonthsIncluded
		s.TotalRevenue = ttm.TotalRevenue
		s.MedicaidRevenue = ttm.MedicaidRevenue
		s.MedicareRevenue = ttm.MedicareRevenue
		s.PrivatePayRevenue = ttm.PrivatePayRevenue
		s.OtherRevenue = ttm.OtherRevenue
		s.TotalExpenses = ttm.TotalExpenses
		s.NetIncome = ttm.NetIncome
		s.InterestExpense = ttm.InterestExpense
		s.Depreciation = ttm.Depreciation
		s.Amortization = ttm.Amortization
		s.RentExpense = ttm.RentExpense
		s.EBIT = ttm.EBIT
		s.EBITDA = ttm.EBITDA
		s.EBITDAR = ttm.EBITDAR
	}
	if census != nil {
		if s.BedCount == nil {
			s.BedCount = census.TotalBeds
		}
		s.AverageDailyCensus = census.AverageDailyCensus
		s.OccupancyPercentage = census.OccupancyPercentage
		s.MedicarePercentage = census.MedicarePercentage
		s.MedicaidPercentage = census.MedicaidPercentage
		s.PrivatePayPercentage = census.PrivatePayPercentage
		s.OtherPayerPercentage = census.OtherPayerPercentage
	}
	return s
}
