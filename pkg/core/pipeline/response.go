package pipeline

import (
	"errors"

	"snf_underwriting/pkg/core/extraction"
	"snf_underwriting/pkg/core/normalize"
	"snf_underwriting/pkg/core/period"
	"snf_underwriting/pkg/core/ratios"
	"snf_underwriting/pkg/core/reconcile"
	"snf_underwriting/pkg/core/validate"
	"snf_underwriting/pkg/models"
)

// Envelope is the pipeline output contract. On failure only Success, Error, ErrorCode and
// Details are set.
type Envelope struct {
	Success bool `json:"success"`

	ExtractedData        *models.FacilitySummary         `json:"extractedData,omitempty"`
	MonthlyFinancials    []models.MonthlyFinancialRecord `json:"monthlyFinancials,omitempty"`
	MonthlyCensus        []models.MonthlyCensusRecord    `json:"monthlyCensus,omitempty"`
	MonthlyExpenses      []models.MonthlyExpenseRecord   `json:"monthlyExpenses,omitempty"`
	Rates                *models.Rates                   `json:"rates,omitempty"`
	TTMFinancials        *models.TTMFinancials           `json:"ttmFinancials,omitempty"`
	CensusSummary        *models.CensusSummary           `json:"censusSummary,omitempty"`
	ExpensesByDepartment []models.DepartmentSummary      `json:"expensesByDepartment,omitempty"`
	Ratios               *ratios.Ratios                  `json:"ratios,omitempty"`
	BenchmarkFlags       []models.BenchmarkFlag          `json:"benchmarkFlags,omitempty"`
	PotentialSavings     *float64                        `json:"potentialSavings,omitempty"`
	Facility             *models.Facility                `json:"facility,omitempty"`
	Metadata             *EnvelopeMetadata               `json:"metadata,omitempty"`
	ProcessedFiles       []ProcessedFile                 `json:"processedFiles,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// EnvelopeMetadata carries run bookkeeping alongside the data.
type EnvelopeMetadata struct {
	RunID         string                     `json:"runId"`
	Extraction    extraction.Metadata        `json:"extraction"`
	Errors        []extraction.CategoryError `json:"extractionErrors"`
	Reconcile     reconcile.Metadata         `json:"reconciliation"`
	Validation    *validate.Result           `json:"validation"`
	SourceCheck   *validate.Result           `json:"sourceValidation,omitempty"`
	Normalization *normalize.Result          `json:"normalization"`
	Period        *period.Analysis           `json:"period"`
	CacheHit      bool                       `json:"cacheHit"`
	Persisted     bool                       `json:"persisted"`
	Truncated     bool                       `json:"truncated,omitempty"`
	DurationMS    int64                      `json:"durationMs"`
}

// Response builds the envelope for a Run outcome.
func Response(res *Result, err error) *Envelope {
	if err != nil {
		env := &Envelope{Success: false, Error: err.Error()}
		var pe *Error
		if errors.As(err, &pe) {
			env.Error = pe.Message
			env.ErrorCode = pe.Code
			env.Details = pe.Details
		}
		return env
	}
	if res == nil || res.Dataset == nil {
		return &Envelope{Success: false, Error: "pipeline produced no result"}
	}

	ds := res.Dataset
	savings := res.PotentialSavings
	return &Envelope{
		Success:              true,
		ExtractedData:        &ds.Summary,
		MonthlyFinancials:    ds.MonthlyFinancials,
		MonthlyCensus:        ds.MonthlyCensus,
		MonthlyExpenses:      ds.MonthlyExpenses,
		Rates:                &ds.Rates,
		TTMFinancials:        ds.TTMFinancials,
		CensusSummary:        ds.CensusSummary,
		ExpensesByDepartment: ds.ExpensesByDepartment,
		Ratios:               res.Ratios,
		BenchmarkFlags:       res.BenchmarkFlags,
		PotentialSavings:     &savings,
		Facility:             &ds.Facility,
		ProcessedFiles:       res.ProcessedFiles,
		Metadata: &EnvelopeMetadata{
			RunID:         res.RunID,
			Extraction:    res.Extraction,
			Errors:        ds.Metadata.ExtractionErrors,
			Reconcile:     ds.Metadata,
			Validation:    res.Validation,
			SourceCheck:   res.SourceValidation,
			Normalization: res.Normalization,
			Period:        res.Period,
			CacheHit:      res.CacheHit,
			Persisted:     res.Persisted,
			Truncated:     res.Truncated,
			DurationMS:    res.Duration.Milliseconds(),
		},
	}
}
