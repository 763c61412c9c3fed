// Package normalize detects non-recurring and related-party items and adds them back to
// reported EBITDA/EBITDAR.
package normalize

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"snf_underwriting/pkg/models"
)

// Input is the reconciled data the detectors read.
type Input struct {
	TTM         *models.TTMFinancials
	Monthly     []models.MonthlyFinancialRecord
	Departments []models.DepartmentSummary
}

// Result is the normalization outcome for one facility.
type Result struct {
	Adjustments       []models.NormalizationAdjustment `json:"adjustments"`
	TotalAdjustments  float64                          `json:"total_adjustments"`
	ReportedEBITDA    *float64                         `json:"reported_ebitda"`
	NormalizedEBITDA  *float64                         `json:"normalized_ebitda"`
	ReportedEBITDAR   *float64                         `json:"reported_ebitdar"`
	NormalizedEBITDAR *float64                         `json:"normalized_ebitdar"`
	CriticalFlags     int                              `json:"critical_flags"`
	WarningFlags      int                              `json:"warning_flags"`
}

// Detector finds add-backs in one facility's data.
type Detector func(in Input) []models.NormalizationAdjustment

// Thresholds used by the built-in detectors.
const (
	MarketManagementFeePct = 5.0
	HighManagementFeePct   = 7.0
	SpikeMultiple          = 1.5
	MinSpikeMonths         = 3
	NormalBadDebtPct       = 2.0
)

// Service runs detectors and folds their adjustments into normalized earnings.
type Service struct {
	detectors []Detector
	log       logrus.FieldLogger
}

// NewService creates a Service with the built-in detectors followed by extra.
func NewService(logger logrus.FieldLogger, extra ...Detector) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	d := []Detector{RelatedPartyFees, OneTimeExpenses, ExcessBadDebt}
	return &Service{detectors: append(d, extra...), log: logger}
}

// Normalize runs every detector, appends external adjustments, and computes normalized
// EBITDA and EBITDAR. A nil reported figure stays nil after normalization.
func (s *Service) Normalize(in Input, external []models.NormalizationAdjustment) *Result {
	res := &Result{Adjustments: []models.NormalizationAdjustment{}}
	for _, detect := range s.detectors {
		res.Adjustments = append(res.Adjustments, detect(in)...)
	}
	res.Adjustments = append(res.Adjustments, external...)

	total := decimal.Zero
	for _, a := range res.Adjustments {
		total = total.Add(decimal.NewFromFloat(a.Amount))
		switch a.Severity {
		case models.SeverityHigh:
			res.CriticalFlags++
		case models.SeverityMedium:
			res.WarningFlags++
		}
	}
	res.TotalAdjustments = total.Round(2).InexactFloat64()

	if in.TTM != nil {
		res.ReportedEBITDA = in.TTM.EBITDA
		res.ReportedEBITDAR = in.TTM.EBITDAR
	}
	res.NormalizedEBITDA = addBack(res.ReportedEBITDA, total)
	res.NormalizedEBITDAR = addBack(res.ReportedEBITDAR, total)

	s.log.WithFields(logrus.Fields{
		"adjustments":       len(res.Adjustments),
		"total_adjustments": res.TotalAdjustments,
		"critical":          res.CriticalFlags,
		"warning":           res.WarningFlags,
	}).Info("normalization complete")
	return res
}

func addBack(reported *float64, total decimal.Decimal) *float64 {
	if reported == nil {
		return nil
	}
	return models.Float(decimal.NewFromFloat(*reported).Add(total).Round(2).InexactFloat64())
}

// =============================================================================
// DETECTORS
// =============================================================================

// RelatedPartyFees adds back management fees above the market rate.
func RelatedPartyFees(in Input) []models.NormalizationAdjustment {
	revenue := ttmRevenue(in)
	fees := deptSum(in.Departments, func(d *models.DepartmentSummary) *float64 { return d.ManagementFees })
	if revenue == nil || fees == nil || *revenue <= 0 {
		return nil
	}
	pct := *fees / *revenue * 100
	if pct <= MarketManagementFeePct {
		return nil
	}
	excess := *fees - *revenue*MarketManagementFeePct/100
	severity := models.SeverityMedium
	if pct > HighManagementFeePct {
		severity = models.SeverityHigh
	}
	return []models.NormalizationAdjustment{{
		Category:    models.AdjustmentRelatedParty,
		Amount:      dollars(excess),
		Description: fmt.Sprintf("Management fees at %.1f%% of revenue exceed the %.1f%% market rate", pct, MarketManagementFeePct),
		Severity:    severity,
	}}
}

// OneTimeExpenses adds back the excess of any month whose operating expenses exceed
// SpikeMultiple times the median month. Only months inside the TTM window are considered,
// since the add-backs apply to TTM earnings.
func OneTimeExpenses(in Input) []models.NormalizationAdjustment {
	type point struct {
		month string
		value float64
	}
	var pts []point
	for _, r := range in.Monthly {
		if !inWindow(in.TTM, r.Month) {
			continue
		}
		v := r.OperatingExpenses
		if v == nil {
			v = r.TotalExpenses
		}
		if v != nil && *v > 0 {
			pts = append(pts, point{r.Month, *v})
		}
	}
	if len(pts) < MinSpikeMonths {
		return nil
	}
	vals := make([]float64, len(pts))
	for i, p := range pts {
		vals[i] = p.value
	}
	med := median(vals)

	var out []models.NormalizationAdjustment
	for _, p := range pts {
		if p.value > med*SpikeMultiple {
			out = append(out, models.NormalizationAdjustment{
				Category:    models.AdjustmentOneTime,
				Amount:      dollars(p.value - med),
				Description: fmt.Sprintf("Operating expenses in %s were %.1fx the monthly median", p.month, p.value/med),
				Severity:    models.SeverityMedium,
			})
		}
	}
	return out
}

// ExcessBadDebt adds back bad debt above the normal write-off rate.
func ExcessBadDebt(in Input) []models.NormalizationAdjustment {
	revenue := ttmRevenue(in)
	bad := deptSum(in.Departments, func(d *models.DepartmentSummary) *float64 { return d.BadDebt })
	if revenue == nil || bad == nil || *revenue <= 0 {
		return nil
	}
	pct := *bad / *revenue * 100
	if pct <= NormalBadDebtPct {
		return nil
	}
	return []models.NormalizationAdjustment{{
		Category:    models.AdjustmentOther,
		Amount:      dollars(*bad - *revenue*NormalBadDebtPct/100),
		Description: fmt.Sprintf("Bad debt at %.1f%% of revenue exceeds the %.1f%% norm", pct, NormalBadDebtPct),
		Severity:    models.SeverityMedium,
	}}
}

// inWindow reports whether month (YYYY-MM) falls inside the TTM period. Without a
// known period every month counts.
func inWindow(ttm *models.TTMFinancials, month string) bool {
	if ttm == nil || ttm.PeriodStart == "" || ttm.PeriodEnd == "" {
		return true
	}
	return month >= ttm.PeriodStart && month <= ttm.PeriodEnd
}

func ttmRevenue(in Input) *float64 {
	if in.TTM == nil {
		return nil
	}
	return in.TTM.TotalRevenue
}

func deptSum(depts []models.DepartmentSummary, get func(*models.DepartmentSummary) *float64) *float64 {
	var total *float64
	for i := range depts {
		if v := get(&depts[i]); v != nil {
			if total == nil {
				total = models.Float(0)
			}
			*total += *v
		}
	}
	return total
}

func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func dollars(v float64) float64 {
	return decimal.NewFromFloat(v).Round(0).InexactFloat64()
}
