package underwriting

import (
	"github.com/shopspring/decimal"

	"snf_underwriting/pkg/models"
)

// Portfolio is a multi-facility deal. PurchasePrice, when set, is the price for the whole
// portfolio; otherwise facility prices are summed.
type Portfolio struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	PurchasePrice *float64      `json:"purchase_price"`
	Facilities    []models.Deal `json:"facilities"`
}

// PortfolioTotals are the summed absolute figures across facilities.
type PortfolioTotals struct {
	PurchasePrice float64 `json:"purchasePrice"`
	Beds          float64 `json:"beds"`
	Revenue       float64 `json:"revenue"`
	EBITDA        float64 `json:"ebitda"`
	EBITDAR       float64 `json:"ebitdar"`
	NOI           float64 `json:"noi"`
}

// PortfolioMetrics aggregates facility-level metrics. Multiples are recomputed from the
// totals, never averaged across facilities.
type PortfolioMetrics struct {
	PortfolioID         string          `json:"portfolioId,omitempty"`
	FacilityCount       int             `json:"facilityCount"`
	Totals              PortfolioTotals `json:"totals"`
	WeightedOccupancy   *float64        `json:"weightedOccupancy,omitempty"`
	Computed            Computed        `json:"computed"`
	AverageCompleteness int             `json:"averageCompleteness"`
	Facilities          []*DealMetrics  `json:"facilities"`
}

// CalculatePortfolioMetrics computes per-facility metrics and the portfolio roll-up.
func CalculatePortfolioMetrics(p *Portfolio) *PortfolioMetrics {
	if p == nil {
		p = &Portfolio{}
	}
	pm := &PortfolioMetrics{
		PortfolioID:   p.ID,
		FacilityCount: len(p.Facilities),
		Facilities:    make([]*DealMetrics, 0, len(p.Facilities)),
	}

	var price, beds, revenue, ebitda, ebitdar, noi, occWeighted, occBeds decimal.Decimal
	add := func(acc *decimal.Decimal, v *float64) {
		if v != nil {
			*acc = acc.Add(decimal.NewFromFloat(*v))
		}
	}
	completeness := 0
	for i := range p.Facilities {
		m := CalculateEnhancedMetrics(&p.Facilities[i])
		pm.Facilities = append(pm.Facilities, m)
		completeness += m.DataQuality.CompletenessScore

		in := m.Inputs
		add(&price, in.PurchasePrice)
		add(&beds, in.Beds)
		add(&revenue, in.Revenue)
		add(&ebitda, in.EBITDA)
		add(&ebitdar, in.EBITDAR)
		add(&noi, in.NOI)
		if positive(in.Occupancy) && positive(in.Beds) {
			b := decimal.NewFromFloat(*in.Beds)
			occWeighted = occWeighted.Add(decimal.NewFromFloat(*in.Occupancy).Mul(b))
			occBeds = occBeds.Add(b)
		}
	}
	if nonZero(p.PurchasePrice) {
		price = decimal.NewFromFloat(*p.PurchasePrice)
	}

	pm.Totals = PortfolioTotals{
		PurchasePrice: price.InexactFloat64(),
		Beds:          beds.InexactFloat64(),
		Revenue:       revenue.InexactFloat64(),
		EBITDA:        ebitda.InexactFloat64(),
		EBITDAR:       ebitdar.InexactFloat64(),
		NOI:           noi.InexactFloat64(),
	}
	if occBeds.IsPositive() {
		pm.WeightedOccupancy = models.Float(occWeighted.Div(occBeds).Round(2).InexactFloat64())
	}
	if pm.FacilityCount > 0 {
		pm.AverageCompleteness = int(decimal.NewFromInt(int64(completeness)).Div(decimal.NewFromInt(int64(pm.FacilityCount))).Round(0).IntPart())
	}

	t := pm.Totals
	pm.Computed = Compute(Inputs{
		PurchasePrice: models.Float(t.PurchasePrice),
		Beds:          models.Float(t.Beds),
		Revenue:       models.Float(t.Revenue),
		EBITDA:        models.Float(t.EBITDA),
		EBITDAR:       models.Float(t.EBITDAR),
		NOI:           models.Float(t.NOI),
		Occupancy:     pm.WeightedOccupancy,
	})
	return pm
}
