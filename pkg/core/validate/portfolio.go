package validate

import (
	"math"
	"strconv"

	"snf_underwriting/pkg/models"
)

// PortfolioTotals are the totals a portfolio-level document states for the whole deal.
type PortfolioTotals struct {
	Name         string   `json:"name"`
	TotalRevenue *float64 `json:"total_revenue"`
	TotalBeds    *float64 `json:"total_beds"`
}

// Portfolio tolerances.
const (
	PortfolioRevenueVariance = 0.10
	PortfolioBedVariance     = 5
)

// ValidatePortfolioConsistency compares summed facility revenue and beds with the stated
// portfolio totals. All findings are warnings.
func ValidatePortfolioConsistency(portfolio PortfolioTotals, facilities []models.FacilitySummary) *Result {
	c := newCollector(Options{FacilityName: portfolio.Name})

	var revenue, beds float64
	for i := range facilities {
		fac := &facilities[i]
		if fac.TotalRevenue == nil {
			name := fac.FacilityName
			if name == "" {
				name = "#" + strconv.Itoa(i+1)
			}
			c.warnf("facilities.total_revenue", "Facility %s has no revenue data", name)
		} else {
			revenue += *fac.TotalRevenue
		}
		if fac.BedCount != nil {
			beds += *fac.BedCount
		}
	}

	if stated := portfolio.TotalRevenue; stated != nil && *stated != 0 {
		variance := math.Abs(revenue-*stated) / math.Abs(*stated)
		if variance > PortfolioRevenueVariance {
			c.warnf("portfolio.total_revenue", "Facility revenue sums to %s but portfolio states %s (%.1f%% variance)",
				money(revenue), money(*stated), variance*100)
		}
	}
	if stated := portfolio.TotalBeds; stated != nil {
		if diff := math.Abs(beds - *stated); diff > PortfolioBedVariance {
			c.warnf("portfolio.total_beds", "Facility beds sum to %.0f but portfolio states %.0f", beds, *stated)
		}
	}
	return c.done()
}
