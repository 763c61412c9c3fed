// Package underwriting turns a deal record and its reconciled extraction into the
// investor-facing metric set. Every function here is pure and leaves its inputs untouched.
package underwriting

import (
	"math"

	"github.com/shopspring/decimal"

	"snf_underwriting/pkg/models"
)

// StabilizedOccupancy is the occupancy NOI is reprojected to.
const StabilizedOccupancy = 0.95

// PayerMixTolerance is how far the payer percentages may sum from 100 and still be complete.
const PayerMixTolerance = 5.0

// Inputs are the resolved figures the metrics are computed from. Occupancy is a percentage.
type Inputs struct {
	PurchasePrice *float64 `json:"purchasePrice"`
	Beds          *float64 `json:"beds"`
	Revenue       *float64 `json:"revenue"`
	EBITDA        *float64 `json:"ebitda"`
	EBITDAR       *float64 `json:"ebitdar"`
	NOI           *float64 `json:"noi"`
	Occupancy     *float64 `json:"occupancy"`
	MedicarePct   *float64 `json:"medicarePct"`
	MedicaidPct   *float64 `json:"medicaidPct"`
	PrivatePayPct *float64 `json:"privatePayPct"`
	// Sources records "deal" or "extraction" per resolved field.
	Sources map[string]string `json:"sources"`
}

// Computed holds the derived metrics. A metric whose guard fails is omitted.
type Computed struct {
	PricePerBed       *float64 `json:"pricePerBed,omitempty"`
	RevenueMultiple   *float64 `json:"revenueMultiple,omitempty"`
	EBITDAMultiple    *float64 `json:"ebitdaMultiple,omitempty"`
	EBITDARMultiple   *float64 `json:"ebitdarMultiple,omitempty"`
	CapRate           *float64 `json:"capRate,omitempty"`
	EBITDAMargin      *float64 `json:"ebitdaMargin,omitempty"`
	EBITDARMargin     *float64 `json:"ebitdarMargin,omitempty"`
	RevenuePerBed     *float64 `json:"revenuePerBed,omitempty"`
	StabilizedRevenue *float64 `json:"stabilizedRevenue,omitempty"`
	StabilizedNOI     *float64 `json:"stabilizedNOI,omitempty"`
}

// PayerMix summarizes the payer percentages.
type PayerMix struct {
	Medicare   *float64 `json:"medicare"`
	Medicaid   *float64 `json:"medicaid"`
	PrivatePay *float64 `json:"privatePay"`
	Total      float64  `json:"total"`
	IsComplete bool     `json:"isComplete"`
}

// DataQuality scores how much of the required set is filled.
type DataQuality struct {
	CompletenessScore int      `json:"completenessScore"`
	MissingFields     []string `json:"missingFields"`
	HasExtraction     bool     `json:"hasExtractionData"`
}

// Normalized are the metrics recomputed on normalized earnings.
type Normalized struct {
	EBITDA          *float64 `json:"ebitda"`
	EBITDAR         *float64 `json:"ebitdar"`
	EBITDAMultiple  *float64 `json:"ebitdaMultiple,omitempty"`
	EBITDARMultiple *float64 `json:"ebitdarMultiple,omitempty"`
	EBITDAMargin    *float64 `json:"ebitdaMargin,omitempty"`
}

// NormalizationSummary counts the add-backs behind Normalized.
type NormalizationSummary struct {
	TotalAdjustments float64            `json:"totalAdjustments"`
	AdjustmentCount  int                `json:"adjustmentCount"`
	CriticalFlags    int                `json:"criticalFlags"`
	WarningFlags     int                `json:"warningFlags"`
	ByCategory       map[string]float64 `json:"byCategory"`
}

// DealMetrics is the full metric set for one deal.
type DealMetrics struct {
	DealID               string                 `json:"dealId,omitempty"`
	Inputs               Inputs                 `json:"inputs"`
	Computed             Computed               `json:"computed"`
	PayerMix             PayerMix               `json:"payerMix"`
	DataQuality          DataQuality            `json:"dataQuality"`
	Normalized           *Normalized            `json:"normalized,omitempty"`
	BenchmarkFlags       []models.BenchmarkFlag `json:"benchmark_flags"`
	NormalizationSummary *NormalizationSummary  `json:"normalization_summary,omitempty"`
}

// requiredInputs are the fields the completeness score counts.
var requiredInputs = []struct {
	Name string
	Get  func(*Inputs) *float64
}{
	{"purchasePrice", func(in *Inputs) *float64 { return in.PurchasePrice }},
	{"beds", func(in *Inputs) *float64 { return in.Beds }},
	{"revenue", func(in *Inputs) *float64 { return in.Revenue }},
	{"ebitda", func(in *Inputs) *float64 { return in.EBITDA }},
	{"occupancy", func(in *Inputs) *float64 { return in.Occupancy }},
}

// CalculateDealMetrics computes the metric set. Deal fields win; the extraction summary
// fills whatever the deal leaves empty or zero.
func CalculateDealMetrics(deal *models.Deal) *DealMetrics {
	if deal == nil {
		deal = &models.Deal{}
	}
	in := ResolveInputs(deal)
	m := &DealMetrics{
		DealID:         deal.ID,
		Inputs:         in,
		Computed:       Compute(in),
		PayerMix:       payerMix(in),
		DataQuality:    dataQuality(in, deal.Extraction != nil),
		BenchmarkFlags: append([]models.BenchmarkFlag{}, deal.BenchmarkFlags...),
	}
	return m
}

// CalculateEnhancedMetrics adds the normalized block computed from the deal's adjustments.
func CalculateEnhancedMetrics(deal *models.Deal) *DealMetrics {
	m := CalculateDealMetrics(deal)
	if deal == nil {
		return m
	}

	total := decimal.Zero
	sum := &NormalizationSummary{ByCategory: map[string]float64{}}
	for _, a := range deal.Adjustments {
		amt := decimal.NewFromFloat(a.Amount)
		total = total.Add(amt)
		sum.ByCategory[a.Category] = decimal.NewFromFloat(sum.ByCategory[a.Category]).Add(amt).InexactFloat64()
		sum.AdjustmentCount++
		switch a.Severity {
		case models.SeverityHigh:
			sum.CriticalFlags++
		case models.SeverityMedium:
			sum.WarningFlags++
		}
	}
	sum.TotalAdjustments = total.Round(2).InexactFloat64()

	norm := &Normalized{
		EBITDA:  addTo(m.Inputs.EBITDA, total),
		EBITDAR: addTo(m.Inputs.EBITDAR, total),
	}
	price := m.Inputs.PurchasePrice
	if positive(price) {
		if nonZero(norm.EBITDA) {
			norm.EBITDAMultiple = round(*price / *norm.EBITDA, 2)
		}
		if nonZero(norm.EBITDAR) {
			norm.EBITDARMultiple = round(*price / *norm.EBITDAR, 2)
		}
	}
	if positive(m.Inputs.Revenue) && norm.EBITDA != nil {
		norm.EBITDAMargin = round(*norm.EBITDA / *m.Inputs.Revenue * 100, 2)
	}

	m.Normalized = norm
	m.NormalizationSummary = sum
	return m
}

// ResolveInputs picks each figure from the deal, falling back to the extraction summary.
func ResolveInputs(deal *models.Deal) Inputs {
	ext := deal.Extraction
	if ext == nil {
		ext = &models.FacilitySummary{}
	}
	in := Inputs{Sources: map[string]string{}}
	pick := func(name string, dealVal, extVal *float64) *float64 {
		if nonZero(dealVal) {
			in.Sources[name] = "deal"
			return dealVal
		}
		if extVal != nil {
			in.Sources[name] = "extraction"
			return extVal
		}
		return dealVal
	}

	in.PurchasePrice = pick("purchasePrice", deal.PurchasePrice, nil)
	in.Beds = pick("beds", deal.Beds, ext.BedCount)
	in.Revenue = pick("revenue", deal.AnnualRevenue, ext.TotalRevenue)
	in.EBITDA = pick("ebitda", deal.EBITDA, ext.EBITDA)
	in.EBITDAR = pick("ebitdar", deal.EBITDAR, ext.EBITDAR)
	in.Occupancy = pick("occupancy", deal.CurrentOccupancy, ext.OccupancyPercentage)
	in.MedicarePct = pick("medicarePct", deal.MedicarePct, ext.MedicarePercentage)
	in.MedicaidPct = pick("medicaidPct", deal.MedicaidPct, ext.MedicaidPercentage)
	in.PrivatePayPct = pick("privatePayPct", deal.PrivatePayPct, ext.PrivatePayPercentage)

	if nonZero(deal.NOI) {
		in.NOI = deal.NOI
		in.Sources["noi"] = "deal"
	} else if in.EBITDA != nil {
		in.NOI = in.EBITDA
		in.Sources["noi"] = "ebitda"
	}

	if in.Occupancy != nil && *in.Occupancy > 0 && *in.Occupancy <= 1 {
		in.Occupancy = models.Float(*in.Occupancy * 100)
	}
	return in
}

// Compute derives the guarded metrics from resolved inputs.
func Compute(in Inputs) Computed {
	var c Computed
	price, beds, rev := in.PurchasePrice, in.Beds, in.Revenue

	if positive(price) && positive(beds) {
		c.PricePerBed = round(*price / *beds, 0)
	}
	if positive(price) && positive(rev) {
		c.RevenueMultiple = round(*price / *rev, 2)
	}
	if positive(price) && nonZero(in.EBITDA) {
		c.EBITDAMultiple = round(*price / *in.EBITDA, 2)
	}
	if positive(price) && nonZero(in.EBITDAR) {
		c.EBITDARMultiple = round(*price / *in.EBITDAR, 2)
	}
	if positive(price) && nonZero(in.NOI) {
		c.CapRate = round(*in.NOI / *price * 100, 2)
	}
	if positive(rev) {
		if in.EBITDA != nil {
			c.EBITDAMargin = round(*in.EBITDA / *rev * 100, 2)
		}
		if in.EBITDAR != nil {
			c.EBITDARMargin = round(*in.EBITDAR / *rev * 100, 2)
		}
		if positive(beds) {
			c.RevenuePerBed = round(*rev / *beds, 0)
		}
	}
	if positive(rev) && positive(in.Occupancy) && nonZero(in.EBITDA) {
		occ := *in.Occupancy / 100
		stabRev := *rev * (StabilizedOccupancy / occ)
		c.StabilizedRevenue = round(stabRev, 0)
		c.StabilizedNOI = round(stabRev*(*in.EBITDA / *rev), 0)
	}
	return c
}

func payerMix(in Inputs) PayerMix {
	pm := PayerMix{Medicare: in.MedicarePct, Medicaid: in.MedicaidPct, PrivatePay: in.PrivatePayPct}
	total := decimal.Zero
	for _, v := range []*float64{in.MedicarePct, in.MedicaidPct, in.PrivatePayPct} {
		if v != nil {
			total = total.Add(decimal.NewFromFloat(*v))
		}
	}
	pm.Total = total.Round(2).InexactFloat64()
	pm.IsComplete = math.Abs(pm.Total-100) < PayerMixTolerance
	return pm
}

func dataQuality(in Inputs, hasExtraction bool) DataQuality {
	dq := DataQuality{MissingFields: []string{}, HasExtraction: hasExtraction}
	filled := 0
	for _, f := range requiredInputs {
		if nonZero(f.Get(&in)) {
			filled++
		} else {
			dq.MissingFields = append(dq.MissingFields, f.Name)
		}
	}
	dq.CompletenessScore = int(decimal.NewFromInt(int64(filled * 100)).Div(decimal.NewFromInt(int64(len(requiredInputs)))).Round(0).IntPart())
	return dq
}

func positive(v *float64) bool { return v != nil && *v > 0 }

func nonZero(v *float64) bool { return v != nil && *v != 0 }

// round returns v rounded half away from zero to places decimals.
func round(v float64, places int32) *float64 {
	return models.Float(decimal.NewFromFloat(v).Round(places).InexactFloat64())
}

func addTo(v *float64, d decimal.Decimal) *float64 {
	if v == nil {
		return nil
	}
	return models.Float(decimal.NewFromFloat(*v).Add(d).Round(2).InexactFloat64())
}
