// Package validate runs data-quality rules over reconciled extractions. Every rule is a pure
// function; a rule produces either a blocking error or a non-blocking warning, never both.
package validate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is wrapped by Result.ToError.
var ErrInvalid = errors.New("VALIDATION_FAILED")

// Finding is a single rule hit.
type Finding struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result collects the findings of one or more rule batteries.
// Valid is true iff there are no errors; warnings never affect it.
type Result struct {
	Valid    bool      `json:"valid"`
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
	Summary  string    `json:"summary"`
}

// Options tune messages and required-field checks.
type Options struct {
	// FacilityName is appended to messages for multi-facility context.
	FacilityName string
	// DealName satisfies the name requirement when the extraction has no facility name.
	DealName string
}

func (o Options) suffix() string {
	if o.FacilityName == "" {
		return ""
	}
	return " (" + o.FacilityName + ")"
}

type collector struct {
	res  *Result
	opts Options
}

func newCollector(opts Options) *collector {
	return &collector{res: &Result{Errors: []Finding{}, Warnings: []Finding{}}, opts: opts}
}

func (c *collector) errorf(field, format string, args ...any) {
	c.res.Errors = append(c.res.Errors, Finding{Field: field, Message: fmt.Sprintf(format, args...) + c.opts.suffix()})
}

func (c *collector) warnf(field, format string, args ...any) {
	c.res.Warnings = append(c.res.Warnings, Finding{Field: field, Message: fmt.Sprintf(format, args...) + c.opts.suffix()})
}

func (c *collector) done() *Result {
	c.res.finish()
	return c.res
}

func (r *Result) finish() {
	r.Valid = len(r.Errors) == 0
	switch {
	case len(r.Errors) == 0 && len(r.Warnings) == 0:
		r.Summary = "All validation checks passed"
	case len(r.Errors) == 0:
		r.Summary = fmt.Sprintf("Passed with %d warning(s)", len(r.Warnings))
	default:
		r.Summary = fmt.Sprintf("Failed with %d error(s) and %d warning(s)", len(r.Errors), len(r.Warnings))
	}
}

// Merge folds other into r and recomputes Valid and Summary.
func (r *Result) Merge(other *Result) *Result {
	if other != nil {
		r.Errors = append(r.Errors, other.Errors...)
		r.Warnings = append(r.Warnings, other.Warnings...)
	}
	r.finish()
	return r
}

// ToError returns nil for a valid result, otherwise an error wrapping ErrInvalid that lists
// the blocking findings.
func (r *Result) ToError() error {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Field + ": " + e.Message
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
