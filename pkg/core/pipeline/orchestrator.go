// Package pipeline sequences one deal run: document text, period guidance, extraction,
// reconciliation, ratios, validation and normalization, then persistence of valid results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"snf_underwriting/pkg/core/config"
	"snf_underwriting/pkg/core/docs"
	"snf_underwriting/pkg/core/extraction"
	"snf_underwriting/pkg/core/logging"
	"snf_underwriting/pkg/core/normalize"
	"snf_underwriting/pkg/core/period"
	"snf_underwriting/pkg/core/ratios"
	"snf_underwriting/pkg/core/reconcile"
	"snf_underwriting/pkg/core/validate"
	"snf_underwriting/pkg/models"
)

// ExtractionCache memoizes extraction results by document text and guidance.
// Lookup returns nil, nil on a miss.
type ExtractionCache interface {
	Lookup(ctx context.Context, combinedText, guidance string) (*extraction.Result, error)
	Save(ctx context.Context, combinedText, guidance string, res *extraction.Result) error
}

// Repository persists a validated run. Writes must be idempotent per deal and month.
type Repository interface {
	SaveDeal(ctx context.Context, dealID string, ds *reconcile.Dataset, r *ratios.Ratios) error
}

// Limits bound one run.
type Limits struct {
	MaxCombinedChars int
	TextWorkers      int
	// RequestsPerMinute caps portfolio extraction calls. Zero means unlimited.
	RequestsPerMinute float64
}

// DefaultLimits mirror config.Default.
func DefaultLimits() Limits {
	return Limits{MaxCombinedChars: config.DefaultMaxCombinedChars, TextWorkers: 4}
}

// LimitsFromConfig reads run limits from loaded configuration.
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		MaxCombinedChars:  cfg.Pipeline.MaxCombinedChars,
		TextWorkers:       cfg.Pipeline.TextWorkers,
		RequestsPerMinute: cfg.LLM.RequestsPerMin,
	}
}

// RunRequest is one facility's upload.
type RunRequest struct {
	DealID       string
	DealName     string
	FacilityName string
	Files        []docs.File
	// Adjustments are externally supplied normalization flags.
	Adjustments []models.NormalizationAdjustment
}

// ProcessedFile reports what happened to one uploaded file.
type ProcessedFile struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Chars   int    `json:"chars"`
	Error   string `json:"error,omitempty"`
}

// Result is the assembled output of a successful run.
type Result struct {
	RunID            string                 `json:"runId"`
	DealID           string                 `json:"dealId,omitempty"`
	Dataset          *reconcile.Dataset     `json:"dataset"`
	Ratios           *ratios.Ratios         `json:"ratios"`
	BenchmarkFlags   []models.BenchmarkFlag `json:"benchmarkFlags"`
	PotentialSavings float64                `json:"potentialSavings"`
	Validation       *validate.Result       `json:"validation"`
	SourceValidation *validate.Result       `json:"sourceValidation"`
	Normalization    *normalize.Result      `json:"normalization"`
	Period           *period.Analysis       `json:"period"`
	Extraction       extraction.Metadata    `json:"extraction"`
	ProcessedFiles   []ProcessedFile        `json:"processedFiles"`
	Truncated        bool                   `json:"truncated,omitempty"`
	CacheHit         bool                   `json:"cacheHit"`
	Persisted        bool                   `json:"persisted"`
	Duration         time.Duration          `json:"-"`
}

// Orchestrator runs the deal pipeline. It keeps no state between runs apart from the
// injected collaborators.
type Orchestrator struct {
	text       docs.Extractor
	invoker    extraction.Invoker
	reconciler *reconcile.Reconciler
	normalizer *normalize.Service
	benchmarks *ratios.BenchmarkSource
	cache      ExtractionCache
	repo       Repository
	limits     Limits
	limiter    *rate.Limiter
	log        logrus.FieldLogger
}

// NewOrchestrator creates an orchestrator with default limits and built-in benchmarks.
func NewOrchestrator(text docs.Extractor, invoker extraction.Invoker, logger logrus.FieldLogger) *Orchestrator {
	if logger == nil {
		logger = logging.GetLogger()
	}
	o := &Orchestrator{
		text:       text,
		invoker:    invoker,
		reconciler: reconcile.NewReconciler(logger),
		normalizer: normalize.NewService(logger),
		log:        logger,
	}
	o.SetLimits(DefaultLimits())
	return o
}

// SetRepository enables persistence of valid runs.
func (o *Orchestrator) SetRepository(repo Repository) { o.repo = repo }

// SetCache enables the extraction cache.
func (o *Orchestrator) SetCache(c ExtractionCache) { o.cache = c }

// SetBenchmarks replaces the built-in benchmark table.
func (o *Orchestrator) SetBenchmarks(src *ratios.BenchmarkSource) { o.benchmarks = src }

// SetNormalizer replaces the normalization service, e.g. to add detectors.
func (o *Orchestrator) SetNormalizer(s *normalize.Service) { o.normalizer = s }

// SetLimits updates run limits and rebuilds the portfolio rate limiter.
func (o *Orchestrator) SetLimits(l Limits) {
	if l.MaxCombinedChars <= 0 {
		l.MaxCombinedChars = config.DefaultMaxCombinedChars
	}
	if l.TextWorkers <= 0 {
		l.TextWorkers = 1
	}
	o.limits = l
	if l.RequestsPerMinute > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(l.RequestsPerMinute/60), 1)
	} else {
		o.limiter = rate.NewLimiter(rate.Inf, 1)
	}
}

// Run executes the pipeline for a single facility. Oversized uploads fail with
// DOCUMENTS_TOO_LARGE before any extraction call is made.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*Result, error) {
	runID := uuid.NewString()
	start := time.Now()
	log := logging.Stage(o.log, "documents", runID)

	texts, processed, err := o.extractTexts(ctx, req.Files)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"files": len(req.Files), "decoded": len(texts)}).Info("document text extracted")

	combined := Combine(texts)
	if len(combined) > o.limits.MaxCombinedChars {
		sizes := make([]FileSize, 0, len(texts))
		for i, t := range texts {
			sizes = append(sizes, FileSize{Name: t.Name, Chars: len(t.Text), Bytes: sizeOf(req.Files, texts[i].Name)})
		}
		return nil, tooLarge(sizes, len(combined), o.limits.MaxCombinedChars)
	}

	res, err := o.process(ctx, runID, req, texts, combined)
	if err != nil {
		return nil, err
	}
	res.ProcessedFiles = processed
	res.Duration = time.Since(start)
	logging.Stage(o.log, "complete", runID).WithField("duration_ms", res.Duration.Milliseconds()).Info("pipeline completed")
	return res, nil
}

// process runs everything after the combined text is fixed.
func (o *Orchestrator) process(ctx context.Context, runID string, req RunRequest, texts []docs.Text, combined string) (*Result, error) {
	res := &Result{RunID: runID, DealID: req.DealID}

	periodDocs := make([]period.Document, len(texts))
	for i, t := range texts {
		periodDocs[i] = period.Document{Name: t.Name, Text: t.Text}
	}
	res.Period = period.Analyze(periodDocs)
	logging.Stage(o.log, "period", runID).WithFields(logrus.Fields{
		"window_start": res.Period.WindowStart,
		"window_end":   res.Period.WindowEnd,
		"recommended":  len(res.Period.Recommended),
	}).Info("period analysis complete")

	raw, hit, err := o.extract(ctx, runID, combined, res.Period.Guidance)
	if err != nil {
		return nil, err
	}
	res.CacheHit = hit
	res.Extraction = raw.Metadata

	ds := o.reconciler.Reconcile(raw)
	res.Dataset = ds

	defs, err := o.benchmarks.Definitions()
	if err != nil {
		logging.LogError(o.log, "pipeline", "process", "benchmark definitions unavailable, using defaults", nil, err)
		defs = ratios.DefaultBenchmarks
	}
	res.Ratios = ratios.Calculate(ratios.Inputs{
		TTM:         ds.TTMFinancials,
		Census:      ds.CensusSummary,
		Departments: ds.ExpensesByDepartment,
		Beds:        ds.Facility.BedCount,
	})
	ratios.Apply(&ds.Summary, res.Ratios)
	res.BenchmarkFlags = ratios.Flags(res.Ratios, defs)
	if ds.TTMFinancials != nil {
		res.PotentialSavings = ratios.PotentialSavings(res.Ratios, defs, ds.TTMFinancials.TotalRevenue)
	}

	opts := validate.Options{FacilityName: req.FacilityName, DealName: req.DealName}
	res.Validation = validate.Validate(&ds.Summary, opts).
		Merge(validate.ValidateMonthlyFinancials(ds.MonthlyFinancials, opts)).
		Merge(validate.ValidateMonthlyCensus(ds.MonthlyCensus, opts)).
		Merge(validate.ValidateMonthlyExpenses(ds.MonthlyExpenses, opts))
	logging.Stage(o.log, "validate", runID).WithFields(logrus.Fields{
		"errors":   len(res.Validation.Errors),
		"warnings": len(res.Validation.Warnings),
	}).Info(res.Validation.Summary)

	// Monthly rules over the arrays as extracted, before dedupe. Informational only;
	// duplicates here are what the reconciler resolves.
	res.SourceValidation = validate.ValidateMonthlyFinancials(raw.Financials.MonthlyFinancials, opts).
		Merge(validate.ValidateMonthlyCensus(raw.Census.MonthlyCensus, opts)).
		Merge(validate.ValidateMonthlyExpenses(raw.Expenses.MonthlyExpenses, opts))
	if n := len(res.SourceValidation.Errors); n > 0 {
		logging.Stage(o.log, "validate", runID).WithField("errors", n).Warn("extracted monthly data has findings before reconciliation")
	}

	res.Normalization = o.normalizer.Normalize(normalize.Input{
		TTM:         ds.TTMFinancials,
		Monthly:     ds.MonthlyFinancials,
		Departments: ds.ExpensesByDepartment,
	}, req.Adjustments)

	if err := o.persist(ctx, runID, req.DealID, res); err != nil {
		return nil, err
	}
	return res, nil
}

// extract consults the cache before calling the invoker.
func (o *Orchestrator) extract(ctx context.Context, runID, combined, guidance string) (*extraction.Result, bool, error) {
	log := logging.Stage(o.log, "extract", runID)
	if o.cache != nil {
		cached, err := o.cache.Lookup(ctx, combined, guidance)
		if err != nil {
			log.WithError(err).Warn("extraction cache lookup failed")
		} else if cached != nil {
			log.Info("extraction cache hit")
			return cached, true, nil
		}
	}

	if o.invoker == nil {
		return nil, false, &Error{Code: CodeExtractionFailed, Message: "no extraction service configured"}
	}
	raw, err := o.invoker.Invoke(ctx, combined, guidance)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, false, err
		}
		return nil, false, &Error{Code: CodeExtractionFailed, Message: "extraction service failed", Err: err}
	}
	log.WithFields(logrus.Fields{
		"succeeded": raw.Metadata.SuccessCount,
		"failed":    raw.Metadata.FailureCount,
	}).Info("extraction complete")

	if o.cache != nil {
		if err := o.cache.Save(ctx, combined, guidance, raw); err != nil {
			log.WithError(err).Warn("failed to cache extraction")
		}
	}
	return raw, false, nil
}

// persist writes the run only when validation produced no errors.
func (o *Orchestrator) persist(ctx context.Context, runID, dealID string, res *Result) error {
	log := logging.Stage(o.log, "persist", runID)
	switch {
	case o.repo == nil || dealID == "":
		return nil
	case !res.Validation.Valid:
		log.WithField("errors", len(res.Validation.Errors)).Warn("validation failed, deal not persisted")
		return nil
	}
	if err := o.repo.SaveDeal(ctx, dealID, res.Dataset, res.Ratios); err != nil {
		return fmt.Errorf("failed to persist deal %s: %w", dealID, err)
	}
	res.Persisted = true
	log.WithField("deal_id", dealID).Info("deal persisted")
	return nil
}

// extractTexts decodes every file in parallel. A file that fails is recorded and skipped;
// the run only fails when no file could be decoded.
func (o *Orchestrator) extractTexts(ctx context.Context, files []docs.File) ([]docs.Text, []ProcessedFile, error) {
	texts := make([]string, len(files))
	processed := make([]ProcessedFile, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.limits.TextWorkers)
	for i := range files {
		f := files[i]
		g.Go(func() error {
			out, err := o.text.Extract(gctx, f)
			processed[i] = ProcessedFile{Name: f.Name, Success: err == nil, Chars: len(out)}
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				processed[i].Error = err.Error()
				o.log.WithError(err).WithField("file", f.Name).Warn("failed to extract document text")
				return nil
			}
			texts[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, processed, err
	}

	var out []docs.Text
	for i, p := range processed {
		if p.Success {
			out = append(out, docs.Text{Name: p.Name, Text: texts[i]})
		}
	}
	if len(out) == 0 {
		return nil, processed, &Error{
			Code:    CodeNoDocuments,
			Message: fmt.Sprintf("none of the %d uploaded files could be processed", len(files)),
			Details: processed,
		}
	}
	return out, processed, nil
}

func sizeOf(files []docs.File, name string) int64 {
	for _, f := range files {
		if f.Name == name {
			if f.Size > 0 {
				return f.Size
			}
			return int64(len(f.Data))
		}
	}
	return 0
}
