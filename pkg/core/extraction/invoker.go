package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"snf_underwriting/pkg/core/llm"
)

// SystemPrompt frames every category request.
const SystemPrompt = `You are a healthcare real-estate analyst extracting data from skilled nursing and assisted living facility financial documents (P&Ls, census reports, rent rolls, rate schedules).

Rules:
1. Only extract values explicitly stated in the documents. Use null for anything not found. Never estimate.
2. Months are "YYYY-MM". Produce one entry per month per source document; do not merge documents yourself.
3. Dollar amounts are plain numbers in whole dollars. Percentages are numbers between 0 and 100.
4. Record the document name each monthly entry came from in "source_document".
5. Return ONLY valid JSON.`

// categoryPrompts describe the JSON shape expected for each category.
var categoryPrompts = map[string]string{
	CategoryFacility: `Extract facility identity:
{"facility": {"facility_name": string, "address": string, "city": string, "state": "two-letter code", "zip_code": string, "facility_type": "SNF|ALF|ILF|Memory Care", "bed_count": number, "operator_name": string}}`,

	CategoryFinancials: `Extract monthly income statement data:
{"financials": {"monthly_financials": [{"month": "YYYY-MM", "total_revenue": number, "medicaid_revenue": number, "medicare_revenue": number, "private_pay_revenue": number, "other_revenue": number, "total_expenses": number, "operating_expenses": number, "depreciation": number, "amortization": number, "interest_expense": number, "rent_expense": number, "property_taxes": number, "property_insurance": number, "net_income": number, "ebit": number, "ebitda": number, "ebitdar": number, "source_document": string, "source_location": string}]}}`,

	CategoryCensus: `Extract monthly census data:
{"census": {"monthly_census": [{"month": "YYYY-MM", "total_beds": number, "average_daily_census": number, "occupancy_percentage": number, "total_census_days": number, "medicaid_days": number, "medicare_days": number, "private_pay_days": number, "other_payer_days": number, "medicaid_percentage": number, "medicare_percentage": number, "private_pay_percentage": number, "admissions": number, "discharges": number, "source_document": string}]}}
average_daily_census is a count of residents, never a percentage.`,

	CategoryExpenses: `Extract monthly expenses by department (nursing, dietary, housekeeping, laundry, maintenance, administration, activities, social_services, therapy, plant_operations):
{"expenses": {"monthly_expenses": [{"month": "YYYY-MM", "department": string, "salaries_wages": number, "benefits": number, "agency_labor": number, "total_labor": number, "supplies": number, "food_cost": number, "utilities": number, "insurance": number, "management_fees": number, "bad_debt": number, "other_expenses": number, "total_department_expense": number, "source_document": string}]}}`,

	CategoryRates: `Extract rate schedules:
{"rates": {"private_pay_rates": [{"care_level": string, "room_type": string, "daily_rate": number, "monthly_rate": number, "effective_date": string}], "medicaid_rates": [...], "medicare_rates": [...]}}`,
}

// LLMInvoker extracts each category with a separate model call, one at a time.
type LLMInvoker struct {
	provider  llm.Provider
	log       logrus.FieldLogger
	maxTokens int
}

// NewLLMInvoker creates an invoker backed by provider.
func NewLLMInvoker(provider llm.Provider, logger logrus.FieldLogger) *LLMInvoker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LLMInvoker{provider: provider, log: logger, maxTokens: 16384}
}

var _ Invoker = (*LLMInvoker)(nil)

// Invoke runs every category. A failed category is recorded in Result.Errors; Invoke only
// returns an error when the context is cancelled or every category failed.
func (i *LLMInvoker) Invoke(ctx context.Context, combinedText string, periodGuidance string) (*Result, error) {
	if i.provider == nil {
		return nil, fmt.Errorf("no AI provider configured")
	}
	start := time.Now()
	res := &Result{Metadata: Metadata{Model: i.provider.Name()}}

	for _, cat := range Categories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		catStart := time.Now()
		err := i.extractCategory(ctx, cat, combinedText, periodGuidance, res)
		entry := i.log.WithFields(logrus.Fields{
			"category":    cat,
			"duration_ms": time.Since(catStart).Milliseconds(),
		})
		if err != nil {
			entry.WithError(err).Warn("category extraction failed")
			res.Errors = append(res.Errors, CategoryError{Category: cat, Message: err.Error()})
			res.Metadata.FailureCount++
			continue
		}
		entry.Info("category extracted")
		res.Metadata.SuccessCount++
	}

	res.Metadata.TotalDuration = time.Since(start).Milliseconds()
	if res.Metadata.SuccessCount == 0 {
		return res, fmt.Errorf("extraction failed for all %d categories", len(Categories))
	}
	return res, nil
}

func (i *LLMInvoker) extractCategory(ctx context.Context, category, text, guidance string, res *Result) error {
	prompt := BuildPrompt(category, text, guidance)
	raw, err := i.provider.GenerateResponse(ctx, prompt, SystemPrompt, map[string]interface{}{
		"max_tokens": i.maxTokens,
	})
	if err != nil {
		return err
	}

	switch category {
	case CategoryFacility:
		return Decode(raw, CategoryFacility, &res.Facility)
	case CategoryFinancials:
		return Decode(raw, CategoryFinancials, &res.Financials)
	case CategoryCensus:
		return Decode(raw, CategoryCensus, &res.Census)
	case CategoryExpenses:
		return Decode(raw, CategoryExpenses, &res.Expenses)
	case CategoryRates:
		return Decode(raw, CategoryRates, &res.Rates)
	}
	return fmt.Errorf("unknown category %q", category)
}

// BuildPrompt assembles the user prompt for one category.
func BuildPrompt(category, text, guidance string) string {
	var b strings.Builder
	b.WriteString(categoryPrompts[category])
	b.WriteString("\n\n")
	if guidance != "" {
		b.WriteString(guidance)
		b.WriteString("\n\n")
	}
	b.WriteString("DOCUMENTS:\n")
	b.WriteString(text)
	return b.String()
}
