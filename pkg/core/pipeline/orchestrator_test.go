package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snf_underwriting/pkg/core/docs"
	"snf_underwriting/pkg/core/extraction"
	"snf_underwriting/pkg/core/logging"
	"snf_underwriting/pkg/core/ratios"
	"snf_underwriting/pkg/core/reconcile"
	"snf_underwriting/pkg/models"
)

// --- Mocks ---

type MockInvoker struct {
	InvokeFunc func(ctx context.Context, text, guidance string) (*extraction.Result, error)
	Texts      []string
	Guidance   []string
}

func (m *MockInvoker) Invoke(ctx context.Context, text, guidance string) (*extraction.Result, error) {
	m.Texts = append(m.Texts, text)
	m.Guidance = append(m.Guidance, guidance)
	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, text, guidance)
	}
	return sampleExtraction("OH"), nil
}

type MockRepository struct {
	Saved []string
	Err   error
}

func (m *MockRepository) SaveDeal(ctx context.Context, dealID string, ds *reconcile.Dataset, r *ratios.Ratios) error {
	m.Saved = append(m.Saved, dealID)
	return m.Err
}

type MockCache struct {
	Hit   *extraction.Result
	Saves int
}

func (m *MockCache) Lookup(ctx context.Context, text, guidance string) (*extraction.Result, error) {
	return m.Hit, nil
}

func (m *MockCache) Save(ctx context.Context, text, guidance string, res *extraction.Result) error {
	m.Saves++
	return nil
}

func floatPtr(v float64) *float64 { return &v }

// sampleExtraction is twelve clean months for a 100-bed facility.
func sampleExtraction(state string) *extraction.Result {
	res := &extraction.Result{
		Facility: models.Facility{FacilityName: "Sunrise Care Center", State: state, BedCount: floatPtr(100)},
		Metadata: extraction.Metadata{SuccessCount: 5},
	}
	for m := 1; m <= 12; m++ {
		month := fmt.Sprintf("2024-%02d", m)
		res.Financials.MonthlyFinancials = append(res.Financials.MonthlyFinancials, models.MonthlyFinancialRecord{
			Month:           month,
			TotalRevenue:    floatPtr(800000),
			TotalExpenses:   floatPtr(700000),
			NetIncome:       floatPtr(50000),
			InterestExpense: floatPtr(10000),
			Depreciation:    floatPtr(20000),
			RentExpense:     floatPtr(30000),
		})
		res.Census.MonthlyCensus = append(res.Census.MonthlyCensus, models.MonthlyCensusRecord{
			Month:               month,
			TotalBeds:           floatPtr(100),
			AverageDailyCensus:  floatPtr(88),
			OccupancyPercentage: floatPtr(88),
		})
	}
	return res
}

func txt(name, body string) docs.File {
	return docs.File{Name: name, Data: []byte(body), Size: int64(len(body))}
}

func newTestOrchestrator(inv extraction.Invoker) *Orchestrator {
	return NewOrchestrator(docs.NewTextExtractor(), inv, logging.Discard())
}

// --- Tests ---

func TestRun_PersistsValidDeal(t *testing.T) {
	inv := &MockInvoker{}
	repo := &MockRepository{}
	o := newTestOrchestrator(inv)
	o.SetRepository(repo)

	res, err := o.Run(context.Background(), RunRequest{
		DealID: "deal-1",
		Files: []docs.File{
			txt("T12 Jan 2024 - Dec 2024.txt", "Total revenue 800,000"),
			{Name: "photo.png", Data: []byte{1, 2, 3}, Size: 3},
		},
	})
	require.NoError(t, err)

	require.Len(t, inv.Texts, 1)
	assert.True(t, strings.HasPrefix(inv.Texts[0], "=== DOCUMENT: T12 Jan 2024 - Dec 2024.txt ===\n"))
	assert.NotContains(t, inv.Texts[0], "photo.png")
	assert.True(t, strings.HasPrefix(inv.Guidance[0], "PERIOD GUIDANCE:"))

	require.Len(t, res.ProcessedFiles, 2)
	assert.True(t, res.ProcessedFiles[0].Success)
	assert.False(t, res.ProcessedFiles[1].Success)
	assert.NotEmpty(t, res.ProcessedFiles[1].Error)

	require.NotNil(t, res.Dataset.TTMFinancials)
	assert.Equal(t, 12, res.Dataset.TTMFinancials.MonthsIncluded)
	assert.InDelta(t, 960000, *res.Dataset.TTMFinancials.EBITDA, 0.001)
	assert.True(t, res.Validation.Valid, res.Validation.Errors)
	assert.True(t, res.Persisted)
	assert.Equal(t, []string{"deal-1"}, repo.Saved)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "2024-01", res.Period.WindowStart)
	assert.Equal(t, "2024-12", res.Period.WindowEnd)
}

func TestRun_ValidationErrorsBlockPersistence(t *testing.T) {
	inv := &MockInvoker{InvokeFunc: func(ctx context.Context, text, guidance string) (*extraction.Result, error) {
		return sampleExtraction(""), nil
	}}
	repo := &MockRepository{}
	o := newTestOrchestrator(inv)
	o.SetRepository(repo)

	res, err := o.Run(context.Background(), RunRequest{DealID: "deal-2", Files: []docs.File{txt("pl.txt", "P&L")}})
	require.NoError(t, err)
	assert.False(t, res.Validation.Valid)
	assert.False(t, res.Persisted)
	assert.Empty(t, repo.Saved)
}

func TestRun_RepositoryFailure(t *testing.T) {
	o := newTestOrchestrator(&MockInvoker{})
	o.SetRepository(&MockRepository{Err: errors.New("connection refused")})

	_, err := o.Run(context.Background(), RunRequest{DealID: "deal-3", Files: []docs.File{txt("pl.txt", "P&L")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRun_NoDocumentsProcessed(t *testing.T) {
	inv := &MockInvoker{}
	o := newTestOrchestrator(inv)

	_, err := o.Run(context.Background(), RunRequest{Files: []docs.File{
		{Name: "a.png", Data: []byte{1}, Size: 1},
		{Name: "b.png", Data: []byte{2}, Size: 1},
	}})
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, CodeNoDocuments, pe.Code)
	assert.Empty(t, inv.Texts)

	details, ok := pe.Details.([]ProcessedFile)
	require.True(t, ok)
	assert.Len(t, details, 2)
}

func TestRun_DocumentsTooLarge(t *testing.T) {
	inv := &MockInvoker{}
	o := newTestOrchestrator(inv)
	o.SetLimits(Limits{MaxCombinedChars: 100, TextWorkers: 2})

	_, err := o.Run(context.Background(), RunRequest{Files: []docs.File{
		txt("small.txt", "revenue"),
		txt("big.txt", strings.Repeat("x", 200)),
	}})
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, CodeTooLarge, pe.Code)
	assert.Empty(t, inv.Texts, "size guard runs before extraction")

	details, ok := pe.Details.(SizeDetails)
	require.True(t, ok)
	assert.Equal(t, 100, details.MaxChars)
	assert.Greater(t, details.TotalChars, 200)
	assert.Equal(t, details.TotalChars/CharsPerToken, details.EstimatedTokens)
	require.Len(t, details.Files, 2)
	assert.Equal(t, "big.txt", details.Files[0].Name)
	assert.Equal(t, int64(200), details.Files[0].Bytes)
	assert.Contains(t, pe.Message, "big.txt")
}

func TestRun_CacheHitSkipsExtraction(t *testing.T) {
	inv := &MockInvoker{}
	c := &MockCache{Hit: sampleExtraction("OH")}
	o := newTestOrchestrator(inv)
	o.SetCache(c)

	res, err := o.Run(context.Background(), RunRequest{Files: []docs.File{txt("pl.txt", "P&L")}})
	require.NoError(t, err)
	assert.True(t, res.CacheHit)
	assert.Empty(t, inv.Texts)
	assert.Equal(t, 0, c.Saves)
}

func TestRun_CacheMissStoresResult(t *testing.T) {
	c := &MockCache{}
	o := newTestOrchestrator(&MockInvoker{})
	o.SetCache(c)

	res, err := o.Run(context.Background(), RunRequest{Files: []docs.File{txt("pl.txt", "P&L")}})
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, 1, c.Saves)
}

func TestRun_ExtractionFailed(t *testing.T) {
	inv := &MockInvoker{InvokeFunc: func(ctx context.Context, text, guidance string) (*extraction.Result, error) {
		return nil, errors.New("extraction failed for all 5 categories")
	}}
	o := newTestOrchestrator(inv)

	_, err := o.Run(context.Background(), RunRequest{Files: []docs.File{txt("pl.txt", "P&L")}})
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, CodeExtractionFailed, pe.Code)
	assert.Contains(t, err.Error(), "all 5 categories")
}

func TestRun_BenchmarkFlags(t *testing.T) {
	inv := &MockInvoker{InvokeFunc: func(ctx context.Context, text, guidance string) (*extraction.Result, error) {
		res := sampleExtraction("OH")
		for _, fin := range res.Financials.MonthlyFinancials {
			res.Expenses.MonthlyExpenses = append(res.Expenses.MonthlyExpenses, models.MonthlyExpenseRecord{
				Month:      fin.Month,
				Department: "nursing",
				TotalLabor: floatPtr(520000), // 65% of revenue
			})
		}
		return res, nil
	}}
	o := newTestOrchestrator(inv)

	res, err := o.Run(context.Background(), RunRequest{Files: []docs.File{txt("pl.txt", "P&L")}})
	require.NoError(t, err)
	require.NotNil(t, res.Ratios.LaborPct)
	assert.InDelta(t, 65, *res.Ratios.LaborPct, 0.01)
	assert.InDelta(t, 65, *res.Dataset.Summary.LaborPct, 0.01)

	var labor *models.BenchmarkFlag
	for i := range res.BenchmarkFlags {
		if res.BenchmarkFlags[i].Metric == "labor_pct" {
			labor = &res.BenchmarkFlags[i]
		}
	}
	require.NotNil(t, labor)
	assert.Equal(t, models.StatusCritical, labor.Status)
	// (65 - 55)% of 9.6M revenue
	assert.InDelta(t, 960000, res.PotentialSavings, 1)
}

func TestRun_OverlappingMonthsReportedButNotBlocking(t *testing.T) {
	inv := &MockInvoker{InvokeFunc: func(ctx context.Context, text, guidance string) (*extraction.Result, error) {
		res := sampleExtraction("OH")
		res.Financials.MonthlyFinancials = append(res.Financials.MonthlyFinancials, res.Financials.MonthlyFinancials[5])
		return res, nil
	}}
	repo := &MockRepository{}
	o := newTestOrchestrator(inv)
	o.SetRepository(repo)

	res, err := o.Run(context.Background(), RunRequest{DealID: "deal-2", Files: []docs.File{txt("pl.txt", "P&L")}})
	require.NoError(t, err)

	require.NotNil(t, res.SourceValidation)
	require.Len(t, res.SourceValidation.Errors, 1)
	assert.Equal(t, "Duplicate entry for 2024-06", res.SourceValidation.Errors[0].Message)

	assert.True(t, res.Validation.Valid)
	assert.Len(t, res.Dataset.MonthlyFinancials, 12)
	assert.True(t, res.Persisted)
	assert.Equal(t, []string{"deal-2"}, repo.Saved)
}

func TestRunPortfolio(t *testing.T) {
	inv := &MockInvoker{}
	o := newTestOrchestrator(inv)

	first := strings.Repeat("a", 40)
	o.SetLimits(Limits{MaxCombinedChars: 80, TextWorkers: 1, RequestsPerMinute: 6000})

	out, err := o.RunPortfolio(context.Background(), PortfolioRequest{
		DealName: "Midwest Portfolio",
		Facilities: []FacilityUpload{
			{Name: "Sunrise", Files: []docs.File{txt("a.txt", first), txt("b.txt", strings.Repeat("b", 40))}},
			{Name: "Lakeside", Files: []docs.File{{Name: "scan.png", Data: []byte{1}, Size: 1}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	require.Len(t, out.Facilities, 2)

	sunrise := out.Facilities[0].Result
	require.NotNil(t, sunrise)
	assert.True(t, sunrise.Truncated)
	require.Len(t, inv.Texts, 1)
	assert.Equal(t, "=== DOCUMENT: a.txt ===\n"+first, inv.Texts[0])
	require.Len(t, sunrise.Period.Documents, 1)
	assert.Equal(t, "a.txt", sunrise.Period.Documents[0].Name)

	assert.Equal(t, CodeNoDocuments, out.Facilities[1].Code)
	assert.NotNil(t, out.Consistency)
}

func TestRunPortfolio_AllFail(t *testing.T) {
	o := newTestOrchestrator(&MockInvoker{})
	_, err := o.RunPortfolio(context.Background(), PortfolioRequest{
		Facilities: []FacilityUpload{{Name: "Lakeside", Files: []docs.File{{Name: "scan.png", Data: []byte{1}, Size: 1}}}},
	})
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, CodePortfolioFailed, pe.Code)
}

func TestTruncateAtBoundary(t *testing.T) {
	texts := []docs.Text{{Name: "one.txt", Text: "alpha"}, {Name: "two.txt", Text: "beta"}, {Name: "three.txt", Text: "gamma"}}
	combined := Combine(texts)
	two := Combine(texts[:2])

	out, cut := TruncateAtBoundary(combined, len(combined))
	assert.False(t, cut)
	assert.Equal(t, combined, out)

	out, cut = TruncateAtBoundary(combined, len(two)+20)
	assert.True(t, cut)
	assert.Equal(t, two, out)

	// a single oversized document is hard-cut
	out, cut = TruncateAtBoundary("=== DOCUMENT: x ===\n"+strings.Repeat("z", 50), 30)
	assert.True(t, cut)
	assert.Len(t, out, 30)
}

func TestSurviving(t *testing.T) {
	texts := []docs.Text{{Name: "one.txt", Text: "alpha"}, {Name: "two.txt", Text: "beta"}, {Name: "three.txt", Text: "gamma"}}
	combined := Combine(texts)

	assert.Equal(t, texts, Surviving(texts, combined))

	out, _ := TruncateAtBoundary(combined, len(Combine(texts[:2]))+20)
	assert.Equal(t, texts[:2], Surviving(texts, out))

	out, _ = TruncateAtBoundary(combined, 25)
	assert.Equal(t, texts[:1], Surviving(texts, out))
}

func TestResponse(t *testing.T) {
	o := newTestOrchestrator(&MockInvoker{})
	res, err := o.Run(context.Background(), RunRequest{Files: []docs.File{txt("pl.txt", "P&L")}})
	require.NoError(t, err)

	env := Response(res, nil)
	assert.True(t, env.Success)
	assert.Len(t, env.MonthlyFinancials, 12)
	assert.Equal(t, "Sunrise Care Center", env.Facility.FacilityName)
	assert.Equal(t, res.RunID, env.Metadata.RunID)
	assert.Empty(t, env.ErrorCode)

	env = Response(nil, &Error{Code: CodeTooLarge, Message: "too big", Details: SizeDetails{MaxChars: 10}})
	assert.False(t, env.Success)
	assert.Equal(t, CodeTooLarge, env.ErrorCode)
	assert.Equal(t, "too big", env.Error)
	assert.NotNil(t, env.Details)
	assert.Nil(t, env.ExtractedData)

	env = Response(nil, errors.New("boom"))
	assert.False(t, env.Success)
	assert.Equal(t, "boom", env.Error)
	assert.Empty(t, env.ErrorCode)
}
