package models

// Facility holds the identity fields the extraction service reports for a facility.
type Facility struct {
	FacilityName string   `json:"facility_name"`
	Address      string   `json:"address,omitempty"`
	City         string   `json:"city,omitempty"`
	State        string   `json:"state,omitempty"`
	ZipCode      string   `json:"zip_code,omitempty"`
	FacilityType string   `json:"facility_type,omitempty"` // SNF, ALF, ILF, memory care
	BedCount     *float64 `json:"bed_count"`
	OperatorName string   `json:"operator_name,omitempty"`
}

// RateEntry is one row of a facility rate schedule.
type RateEntry struct {
	PayerType     string   `json:"payer_type"` // private_pay, medicaid, medicare
	CareLevel     string   `json:"care_level,omitempty"`
	RoomType      string   `json:"room_type,omitempty"`
	DailyRate     *float64 `json:"daily_rate"`
	MonthlyRate   *float64 `json:"monthly_rate"`
	EffectiveDate string   `json:"effective_date,omitempty"`
}

// Rates groups rate schedules by payer.
type Rates struct {
	PrivatePay []RateEntry `json:"private_pay_rates"`
	Medicaid   []RateEntry `json:"medicaid_rates"`
	Medicare   []RateEntry `json:"medicare_rates"`
}

// All flattens the schedules, stamping each entry with its payer type when missing.
func (r Rates) All() []RateEntry {
	out := make([]RateEntry, 0, len(r.PrivatePay)+len(r.Medicaid)+len(r.Medicare))
	add := func(entries []RateEntry, payer string) {
		for _, e := range entries {
			if e.PayerType == "" {
				e.PayerType = payer
			}
			out = append(out, e)
		}
	}
	add(r.PrivatePay, "private_pay")
	add(r.Medicaid, "medicaid")
	add(r.Medicare, "medicare")
	return out
}

// TTMFinancials is the trailing-twelve-month roll-up of MonthlyFinancialRecord.
// EBIT, EBITDA and EBITDAR are derived from the summed components, never from reported values.
type TTMFinancials struct {
	PeriodStart       string   `json:"period_start"`
	PeriodEnd         string   `json:"period_end"`
	MonthsIncluded    int      `json:"months_included"`
	TotalRevenue      *float64 `json:"total_revenue"`
	MedicaidRevenue   *float64 `json:"medicaid_revenue"`
	MedicareRevenue   *float64 `json:"medicare_revenue"`
	PrivatePayRevenue *float64 `json:"private_pay_revenue"`
	OtherRevenue      *float64 `json:"other_revenue"`
	TotalExpenses     *float64 `json:"total_expenses"`
	OperatingExpenses *float64 `json:"operating_expenses"`
	Depreciation      *float64 `json:"depreciation"`
	Amortization      *float64 `json:"amortization"`
	InterestExpense   *float64 `json:"interest_expense"`
	RentExpense       *float64 `json:"rent_expense"`
	PropertyTaxes     *float64 `json:"property_taxes"`
	PropertyInsurance *float64 `json:"property_insurance"`
	NetIncome         *float64 `json:"net_income"`
	EBIT              *float64 `json:"ebit"`
	EBITDA            *float64 `json:"ebitda"`
	EBITDAR           *float64 `json:"ebitdar"`
}

// CensusSummary is the trailing-twelve-month census roll-up.
type CensusSummary struct {
	PeriodStart          string   `json:"period_start"`
	PeriodEnd            string   `json:"period_end"`
	MonthsIncluded       int      `json:"months_included"`
	TotalBeds            *float64 `json:"total_beds"`
	AverageDailyCensus   *float64 `json:"average_daily_census"`
	OccupancyPercentage  *float64 `json:"occupancy_percentage"`
	TotalCensusDays      *float64 `json:"total_census_days"`
	MedicaidDays         *float64 `json:"medicaid_days"`
	MedicareDays         *float64 `json:"medicare_days"`
	PrivatePayDays       *float64 `json:"private_pay_days"`
	OtherPayerDays       *float64 `json:"other_payer_days"`
	MedicaidPercentage   *float64 `json:"medicaid_percentage"`
	MedicarePercentage   *float64 `json:"medicare_percentage"`
	PrivatePayPercentage *float64 `json:"private_pay_percentage"`
	OtherPayerPercentage *float64 `json:"other_payer_percentage"`
	Admissions           *float64 `json:"admissions"`
	Discharges           *float64 `json:"discharges"`
}

// DepartmentSummary is the trailing-twelve-month expense roll-up for one department.
type DepartmentSummary struct {
	Department             string   `json:"department"`
	MonthsIncluded         int      `json:"months_included"`
	SalariesWages          *float64 `json:"salaries_wages"`
	Benefits               *float64 `json:"benefits"`
	AgencyLabor            *float64 `json:"agency_labor"`
	TotalLabor             *float64 `json:"total_labor"`
	Supplies               *float64 `json:"supplies"`
	FoodCost               *float64 `json:"food_cost"`
	Utilities              *float64 `json:"utilities"`
	Insurance              *float64 `json:"insurance"`
	ManagementFees         *float64 `json:"management_fees"`
	BadDebt                *float64 `json:"bad_debt"`
	OtherExpenses          *float64 `json:"other_expenses"`
	TotalDepartmentExpense *float64 `json:"total_department_expense"`
}

// FacilitySummary is the flat single-row view of a reconciled extraction. Older consumers
// read this instead of the monthly series; the validator runs over it.
type FacilitySummary struct {
	FacilityName string   `json:"facility_name"`
	Address      string   `json:"address,omitempty"`
	City         string   `json:"city,omitempty"`
	State        string   `json:"state"`
	ZipCode      string   `json:"zip_code,omitempty"`
	FacilityType string   `json:"facility_type,omitempty"`
	BedCount     *float64 `json:"bed_count"`

	PeriodStart    string `json:"period_start,omitempty"`
	PeriodEnd      string `json:"period_end,omitempty"`
	MonthsIncluded int    `json:"months_included"`

	TotalRevenue      *float64 `json:"total_revenue"`
	MedicaidRevenue   *float64 `json:"medicaid_revenue"`
	MedicareRevenue   *float64 `json:"medicare_revenue"`
	PrivatePayRevenue *float64 `json:"private_pay_revenue"`
	OtherRevenue      *float64 `json:"other_revenue"`
	TotalExpenses     *float64 `json:"total_expenses"`
	NetIncome         *float64 `json:"net_income"`
	InterestExpense   *float64 `json:"interest_expense"`
	Depreciation      *float64 `json:"depreciation"`
	Amortization      *float64 `json:"amortization"`
	RentExpense       *float64 `json:"rent_expense"`
	EBIT              *float64 `json:"ebit"`
	EBITDA            *float64 `json:"ebitda"`
	EBITDAR           *float64 `json:"ebitdar"`

	AverageDailyCensus   *float64 `json:"average_daily_census"`
	OccupancyPercentage  *float64 `json:"occupancy_percentage"`
	MedicarePercentage   *float64 `json:"medicare_pct"`
	MedicaidPercentage   *float64 `json:"medicaid_pct"`
	PrivatePayPercentage *float64 `json:"private_pay_pct"`
	OtherPayerPercentage *float64 `json:"other_payer_pct"`

	// Ratio fields, filled in after the ratio calculator runs.
	EBITDAMarginPct        *float64 `json:"ebitda_margin"`
	EBITDARMarginPct       *float64 `json:"ebitdar_margin"`
	LaborPct               *float64 `json:"labor_pct"`
	AgencyPct              *float64 `json:"agency_pct"`
	FoodPct                *float64 `json:"food_pct"`
	ManagementFeePct       *float64 `json:"management_fee_pct"`
	BadDebtPct             *float64 `json:"bad_debt_pct"`
	UtilitiesPct           *float64 `json:"utilities_pct"`
	InsurancePct           *float64 `json:"insurance_pct"`
	FoodCostPerResidentDay *float64 `json:"food_cost_per_resident_day"`
}
