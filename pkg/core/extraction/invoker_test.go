package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snf_underwriting/pkg/core/logging"
)

type scriptedProvider struct {
	responses map[string]string
	fail      map[string]bool
	prompts   []string
}

func (p *scriptedProvider) Name() string { return "scripted/test" }

func (p *scriptedProvider) GenerateResponse(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
	p.prompts = append(p.prompts, prompt)
	for cat, resp := range p.responses {
		if strings.HasPrefix(prompt, categoryPrompts[cat]) {
			if p.fail[cat] {
				return "", errors.New("provider unavailable")
			}
			return resp, nil
		}
	}
	return "{}", nil
}

func TestLLMInvoker_CollectsCategoriesAndErrors(t *testing.T) {
	provider := &scriptedProvider{
		responses: map[string]string{
			CategoryFacility:   `{"facility": {"facility_name": "Oak Manor", "state": "OH", "bed_count": 120}}`,
			CategoryFinancials: `{"financials": {"monthly_financials": [{"month": "2024-01", "total_revenue": 900000}]}}`,
			CategoryCensus:     `not json at all {{{`,
			CategoryExpenses:   `{"expenses": {"monthly_expenses": []}}`,
			CategoryRates:      `{"rates": {"private_pay_rates": [{"daily_rate": 310}]}}`,
		},
		fail: map[string]bool{CategoryExpenses: true},
	}

	inv := NewLLMInvoker(provider, logging.Discard())
	res, err := inv.Invoke(context.Background(), "DOC TEXT", "PERIOD GUIDANCE: use 2024")
	require.NoError(t, err)

	assert.Equal(t, "Oak Manor", res.Facility.FacilityName)
	require.Len(t, res.Financials.MonthlyFinancials, 1)
	require.Len(t, res.Rates.PrivatePay, 1)
	assert.Equal(t, 3, res.Metadata.SuccessCount)
	assert.Equal(t, 2, res.Metadata.FailureCount)
	assert.Equal(t, "scripted/test", res.Metadata.Model)

	failed := []string{}
	for _, e := range res.Errors {
		failed = append(failed, e.Category)
	}
	assert.ElementsMatch(t, []string{CategoryCensus, CategoryExpenses}, failed)

	require.Len(t, provider.prompts, len(Categories))
	assert.Contains(t, provider.prompts[0], "PERIOD GUIDANCE: use 2024")
	assert.Contains(t, provider.prompts[0], "DOC TEXT")
}

func TestLLMInvoker_AllCategoriesFail(t *testing.T) {
	provider := &scriptedProvider{
		responses: map[string]string{},
	}
	for _, c := range Categories {
		provider.responses[c] = "x"
	}
	provider.fail = map[string]bool{}
	for _, c := range Categories {
		provider.fail[c] = true
	}

	res, err := NewLLMInvoker(provider, logging.Discard()).Invoke(context.Background(), "t", "")
	require.Error(t, err)
	assert.Equal(t, len(Categories), res.Metadata.FailureCount)
}
