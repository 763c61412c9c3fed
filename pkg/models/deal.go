package models

// Severity levels carried by normalization flags.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// Normalization categories.
const (
	AdjustmentRelatedParty = "related_party"
	AdjustmentOneTime      = "one_time"
	AdjustmentOther        = "other"
)

// NormalizationAdjustment is an add-back to reported EBITDA/EBITDAR.
type NormalizationAdjustment struct {
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Severity    string  `json:"severity,omitempty"`
}

// Deal is the deal record as entered by an analyst, optionally carrying the reconciled
// extraction it was built from. Deal fields take precedence over extraction values.
type Deal struct {
	ID           string `json:"id"`
	DealName     string `json:"deal_name"`
	FacilityName string `json:"facility_name,omitempty"`
	State        string `json:"state,omitempty"`

	PurchasePrice    *float64 `json:"purchase_price"`
	Beds             *float64 `json:"bed_count"`
	AnnualRevenue    *float64 `json:"annual_revenue"`
	EBITDA           *float64 `json:"ebitda"`
	EBITDAR          *float64 `json:"ebitdar"`
	NOI              *float64 `json:"net_operating_income"`
	CurrentOccupancy *float64 `json:"current_occupancy"`
	MedicarePct      *float64 `json:"medicare_percentage"`
	MedicaidPct      *float64 `json:"medicaid_percentage"`
	PrivatePayPct    *float64 `json:"private_pay_percentage"`

	// Extraction is the reconciled flat summary, used as fallback for empty deal fields.
	Extraction *FacilitySummary `json:"extraction_data,omitempty"`
	// Adjustments are normalization add-backs already computed for this deal.
	Adjustments []NormalizationAdjustment `json:"normalization_adjustments,omitempty"`
	// BenchmarkFlags carries ratio flags computed upstream so the metrics block can echo them.
	BenchmarkFlags []BenchmarkFlag `json:"benchmark_flags,omitempty"`
}

// BenchmarkFlag marks a ratio that sits outside its industry benchmark.
type BenchmarkFlag struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Target    float64 `json:"target"`
	Status    string  `json:"status"` // good, warning, critical
	Message   string  `json:"message"`
	Direction string  `json:"direction"` // lower_is_better, higher_is_better
}

// Benchmark statuses.
const (
	StatusGood     = "good"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)
