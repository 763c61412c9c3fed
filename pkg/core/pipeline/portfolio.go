package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"snf_underwriting/pkg/core/docs"
	"snf_underwriting/pkg/core/logging"
	"snf_underwriting/pkg/core/validate"
	"snf_underwriting/pkg/models"
)

// FacilityUpload is one facility's share of a portfolio upload.
type FacilityUpload struct {
	Name        string
	DealID      string
	Files       []docs.File
	Adjustments []models.NormalizationAdjustment
}

// PortfolioRequest covers several facilities sold together.
type PortfolioRequest struct {
	DealName   string
	Facilities []FacilityUpload
	// Totals are the portfolio-level figures stated by the seller, if any.
	Totals validate.PortfolioTotals
}

// FacilityOutcome is the result or failure of one facility in a portfolio run.
type FacilityOutcome struct {
	Name   string  `json:"name"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
	Code   string  `json:"errorCode,omitempty"`
}

// PortfolioResult collects every facility outcome plus the cross-facility checks.
type PortfolioResult struct {
	RunID       string            `json:"runId"`
	Facilities  []FacilityOutcome `json:"facilities"`
	Consistency *validate.Result  `json:"consistency"`
	Succeeded   int               `json:"succeeded"`
	Failed      int               `json:"failed"`
}

// RunPortfolio processes facilities one after another. Oversized text is truncated at a
// document boundary instead of failing, and extraction calls wait on the rate limiter.
// One facility failing does not stop the others; the run fails only if all of them do.
func (o *Orchestrator) RunPortfolio(ctx context.Context, req PortfolioRequest) (*PortfolioResult, error) {
	out := &PortfolioResult{RunID: uuid.NewString()}
	log := logging.Stage(o.log, "portfolio", out.RunID)

	var summaries []models.FacilitySummary
	for _, fac := range req.Facilities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := o.runFacility(ctx, out.RunID, req.DealName, fac)
		outcome := FacilityOutcome{Name: fac.Name, Result: res}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			outcome.Error = err.Error()
			var pe *Error
			if errors.As(err, &pe) {
				outcome.Code = pe.Code
			}
			out.Failed++
			log.WithError(err).WithField("facility", fac.Name).Warn("facility failed")
		} else {
			out.Succeeded++
			summaries = append(summaries, res.Dataset.Summary)
		}
		out.Facilities = append(out.Facilities, outcome)
	}

	if out.Succeeded == 0 {
		return out, &Error{
			Code:    CodePortfolioFailed,
			Message: fmt.Sprintf("all %d facilities failed", len(req.Facilities)),
			Details: out.Facilities,
		}
	}

	totals := req.Totals
	if totals.Name == "" {
		totals.Name = req.DealName
	}
	out.Consistency = validate.ValidatePortfolioConsistency(totals, summaries)
	log.WithFields(logrus.Fields{
		"succeeded": out.Succeeded,
		"failed":    out.Failed,
	}).Info(out.Consistency.Summary)
	return out, nil
}

func (o *Orchestrator) runFacility(ctx context.Context, runID, dealName string, fac FacilityUpload) (*Result, error) {
	start := time.Now()
	texts, processed, err := o.extractTexts(ctx, fac.Files)
	if err != nil {
		return nil, err
	}

	combined, truncated := TruncateAtBoundary(Combine(texts), o.limits.MaxCombinedChars)
	if truncated {
		logging.Stage(o.log, "documents", runID).WithFields(logrus.Fields{
			"facility": fac.Name,
			"kept":     len(combined),
		}).Warn("combined text truncated at document boundary")
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := o.process(ctx, runID, RunRequest{
		DealID:       fac.DealID,
		DealName:     dealName,
		FacilityName: fac.Name,
		Adjustments:  fac.Adjustments,
	}, Surviving(texts, combined), combined)
	if err != nil {
		return nil, err
	}
	res.ProcessedFiles = processed
	res.Truncated = truncated
	res.Duration = time.Since(start)
	return res, nil
}
