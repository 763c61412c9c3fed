package models

// MonthlyFinancialRecord is one month of P&L data pulled from a single source document.
// Numeric fields are nil when the document did not state them; nil never means zero.
type MonthlyFinancialRecord struct {
	Month             string   `json:"month"` // YYYY-MM
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
	SourceDocument    string   `json:"source_document,omitempty"`
	SourceLocation    string   `json:"source_location,omitempty"`
}

// MonthlyCensusRecord is one month of occupancy and payer-day data.
type MonthlyCensusRecord struct {
	Month                string   `json:"month"`
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
	Admissions           *float64 `json:"admissions"`
	Discharges           *float64 `json:"discharges"`
	SourceDocument       string   `json:"source_document,omitempty"`
}

// MonthlyExpenseRecord is one department's expenses for one month.
type MonthlyExpenseRecord struct {
	Month                  string   `json:"month"`
	Department             string   `json:"department"`
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
	SourceDocument         string   `json:"source_document,omitempty"`
}

// Field names a nullable numeric column of a record type and how to reach it.
type Field[T any] struct {
	Name string
	Get  func(*T) *float64
	Set  func(*T, *float64)
}

// FinancialFields lists every summable numeric column of MonthlyFinancialRecord.
var FinancialFields = []Field[MonthlyFinancialRecord]{
	{"total_revenue", func(r *MonthlyFinancialRecord) *float64 { return r.TotalRevenue }, func(r *MonthlyFinancialRecord, v *float64) { r.TotalRevenue = v }},
	{"medicaid_revenue", func(r *MonthlyFinancialRecord) *float64 { return r.MedicaidRevenue }, func(r *MonthlyFinancialRecord, v *float64) { r.MedicaidRevenue = v }},
	{"medicare_revenue", func(r *MonthlyFinancialRecord) *float64 { return r.MedicareRevenue }, func(r *MonthlyFinancialRecord, v *float64) { r.MedicareRevenue = v }},
	{"private_pay_revenue", func(r *MonthlyFinancialRecord) *float64 { return r.PrivatePayRevenue }, func(r *MonthlyFinancialRecord, v *float64) { r.PrivatePayRevenue = v }},
	{"other_revenue", func(r *MonthlyFinancialRecord) *float64 { return r.OtherRevenue }, func(r *MonthlyFinancialRecord, v *float64) { r.OtherRevenue = v }},
	{"total_expenses", func(r *MonthlyFinancialRecord) *float64 { return r.TotalExpenses }, func(r *MonthlyFinancialRecord, v *float64) { r.TotalExpenses = v }},
	{"operating_expenses", func(r *MonthlyFinancialRecord) *float64 { return r.OperatingExpenses }, func(r *MonthlyFinancialRecord, v *float64) { r.OperatingExpenses = v }},
	{"depreciation", func(r *MonthlyFinancialRecord) *float64 { return r.Depreciation }, func(r *MonthlyFinancialRecord, v *float64) { r.Depreciation = v }},
	{"amortization", func(r *MonthlyFinancialRecord) *float64 { return r.Amortization }, func(r *MonthlyFinancialRecord, v *float64) { r.Amortization = v }},
	{"interest_expense", func(r *MonthlyFinancialRecord) *float64 { return r.InterestExpense }, func(r *MonthlyFinancialRecord, v *float64) { r.InterestExpense = v }},
	{"rent_expense", func(r *MonthlyFinancialRecord) *float64 { return r.RentExpense }, func(r *MonthlyFinancialRecord, v *float64) { r.RentExpense = v }},
	{"property_taxes", func(r *MonthlyFinancialRecord) *float64 { return r.PropertyTaxes }, func(r *MonthlyFinancialRecord, v *float64) { r.PropertyTaxes = v }},
	{"property_insurance", func(r *MonthlyFinancialRecord) *float64 { return r.PropertyInsurance }, func(r *MonthlyFinancialRecord, v *float64) { r.PropertyInsurance = v }},
	{"net_income", func(r *MonthlyFinancialRecord) *float64 { return r.NetIncome }, func(r *MonthlyFinancialRecord, v *float64) { r.NetIncome = v }},
	{"ebit", func(r *MonthlyFinancialRecord) *float64 { return r.EBIT }, func(r *MonthlyFinancialRecord, v *float64) { r.EBIT = v }},
	{"ebitda", func(r *MonthlyFinancialRecord) *float64 { return r.EBITDA }, func(r *MonthlyFinancialRecord, v *float64) { r.EBITDA = v }},
	{"ebitdar", func(r *MonthlyFinancialRecord) *float64 { return r.EBITDAR }, func(r *MonthlyFinancialRecord, v *float64) { r.EBITDAR = v }},
}

// CensusFields lists every numeric column of MonthlyCensusRecord.
var CensusFields = []Field[MonthlyCensusRecord]{
	{"total_beds", func(r *MonthlyCensusRecord) *float64 { return r.TotalBeds }, func(r *MonthlyCensusRecord, v *float64) { r.TotalBeds = v }},
	{"average_daily_census", func(r *MonthlyCensusRecord) *float64 { return r.AverageDailyCensus }, func(r *MonthlyCensusRecord, v *float64) { r.AverageDailyCensus = v }},
	{"occupancy_percentage", func(r *MonthlyCensusRecord) *float64 { return r.OccupancyPercentage }, func(r *MonthlyCensusRecord, v *float64) { r.OccupancyPercentage = v }},
	{"total_census_days", func(r *MonthlyCensusRecord) *float64 { return r.TotalCensusDays }, func(r *MonthlyCensusRecord, v *float64) { r.TotalCensusDays = v }},
	{"medicaid_days", func(r *MonthlyCensusRecord) *float64 { return r.MedicaidDays }, func(r *MonthlyCensusRecord, v *float64) { r.MedicaidDays = v }},
	{"medicare_days", func(r *MonthlyCensusRecord) *float64 { return r.MedicareDays }, func(r *MonthlyCensusRecord, v *float64) { r.MedicareDays = v }},
	{"private_pay_days", func(r *MonthlyCensusRecord) *float64 { return r.PrivatePayDays }, func(r *MonthlyCensusRecord, v *float64) { r.PrivatePayDays = v }},
	{"other_payer_days", func(r *MonthlyCensusRecord) *float64 { return r.OtherPayerDays }, func(r *MonthlyCensusRecord, v *float64) { r.OtherPayerDays = v }},
	{"medicaid_percentage", func(r *MonthlyCensusRecord) *float64 { return r.MedicaidPercentage }, func(r *MonthlyCensusRecord, v *float64) { r.MedicaidPercentage = v }},
	{"medicare_percentage", func(r *MonthlyCensusRecord) *float64 { return r.MedicarePercentage }, func(r *MonthlyCensusRecord, v *float64) { r.MedicarePercentage = v }},
	{"private_pay_percentage", func(r *MonthlyCensusRecord) *float64 { return r.PrivatePayPercentage }, func(r *MonthlyCensusRecord, v *float64) { r.PrivatePayPercentage = v }},
	{"admissions", func(r *MonthlyCensusRecord) *float64 { return r.Admissions }, func(r *MonthlyCensusRecord, v *float64) { r.Admissions = v }},
	{"discharges", func(r *MonthlyCensusRecord) *float64 { return r.Discharges }, func(r *MonthlyCensusRecord, v *float64) { r.Discharges = v }},
}

// ExpenseFields lists every numeric column of MonthlyExpenseRecord.
var ExpenseFields = []Field[MonthlyExpenseRecord]{
	{"salaries_wages", func(r *MonthlyExpenseRecord) *float64 { return r.SalariesWages }, func(r *MonthlyExpenseRecord, v *float64) { r.SalariesWages = v }},
	{"benefits", func(r *MonthlyExpenseRecord) *float64 { return r.Benefits }, func(r *MonthlyExpenseRecord, v *float64) { r.Benefits = v }},
	{"agency_labor", func(r *MonthlyExpenseRecord) *float64 { return r.AgencyLabor }, func(r *MonthlyExpenseRecord, v *float64) { r.AgencyLabor = v }},
	{"total_labor", func(r *MonthlyExpenseRecord) *float64 { return r.TotalLabor }, func(r *MonthlyExpenseRecord, v *float64) { r.TotalLabor = v }},
	{"supplies", func(r *MonthlyExpenseRecord) *float64 { return r.Supplies }, func(r *MonthlyExpenseRecord, v *float64) { r.Supplies = v }},
	{"food_cost", func(r *MonthlyExpenseRecord) *float64 { return r.FoodCost }, func(r *MonthlyExpenseRecord, v *float64) { r.FoodCost = v }},
	{"utilities", func(r *MonthlyExpenseRecord) *float64 { return r.Utilities }, func(r *MonthlyExpenseRecord, v *float64) { r.Utilities = v }},
	{"insurance", func(r *MonthlyExpenseRecord) *float64 { return r.Insurance }, func(r *MonthlyExpenseRecord, v *float64) { r.Insurance = v }},
	{"management_fees", func(r *MonthlyExpenseRecord) *float64 { return r.ManagementFees }, func(r *MonthlyExpenseRecord, v *float64) { r.ManagementFees = v }},
	{"bad_debt", func(r *MonthlyExpenseRecord) *float64 { return r.BadDebt }, func(r *MonthlyExpenseRecord, v *float64) { r.BadDebt = v }},
	{"other_expenses", func(r *MonthlyExpenseRecord) *float64 { return r.OtherExpenses }, func(r *MonthlyExpenseRecord, v *float64) { r.OtherExpenses = v }},
	{"total_department_expense", func(r *MonthlyExpenseRecord) *float64 { return r.TotalDepartmentExpense }, func(r *MonthlyExpenseRecord, v *float64) { r.TotalDepartmentExpense = v }},
}

// Completeness scoring tables. Only these columns count toward picking the best
// duplicate candidate for a month.
var (
	FinancialCompletenessFields = []string{
		"total_revenue", "medicaid_revenue", "medicare_revenue", "private_pay_revenue",
		"other_revenue", "total_expenses", "operating_expenses", "depreciation",
		"amortization", "interest_expense", "rent_expense", "net_income",
	}
	CensusCompletenessFields = []string{
		"total_beds", "average_daily_census", "occupancy_percentage", "total_census_days",
		"medicaid_days", "medicare_days", "private_pay_days", "admissions", "discharges",
	}
	ExpenseCompletenessFields = []string{
		"salaries_wages", "benefits", "agency_labor", "total_labor", "supplies",
		"total_department_expense",
	}
)

// Select returns the subset of fields whose names appear in names, in names order.
// Unknown names are skipped.
func Select[T any](fields []Field[T], names []string) []Field[T] {
	byName := make(map[string]Field[T], len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	out := make([]Field[T], 0, len(names))
	for _, n := range names {
		if f, ok := byName[n]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Completeness counts the non-nil values of rec across fields.
func Completeness[T any](rec *T, fields []Field[T]) int {
	n := 0
	for _, f := range fields {
		if f.Get(rec) != nil {
			n++
		}
	}
	return n
}

// Float returns a pointer to v. Handy for literals in fixtures and derived values.
func Float(v float64) *float64 { return &v }

// Value dereferences p, returning 0 for nil. Use only where nil has already been ruled out
// or where a zero fallback is explicitly intended.
func Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
