package pipeline

import (
	"fmt"
	"sort"
)

// Failure codes surfaced in the result envelope.
const (
	CodeNoDocuments      = "NO_DOCUMENTS_PROCESSED"
	CodeTooLarge         = "DOCUMENTS_TOO_LARGE"
	CodeExtractionFailed = "EXTRACTION_FAILED"
	CodePortfolioFailed  = "PORTFOLIO_FAILED"
)

// CharsPerToken is the rough ratio used for token estimates in size errors.
const CharsPerToken = 4

// Error is a structured pipeline failure. Details is serialized as-is into the envelope.
type Error struct {
	Code    string `json:"errorCode"`
	Message string `json:"error"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// FileSize is one document's contribution to the combined text.
type FileSize struct {
	Name  string `json:"name"`
	Bytes int64  `json:"bytes"`
	Chars int    `json:"chars"`
}

// SizeDetails explains a DOCUMENTS_TOO_LARGE failure. Files are largest first.
type SizeDetails struct {
	TotalChars      int        `json:"totalChars"`
	MaxChars        int        `json:"maxChars"`
	EstimatedTokens int        `json:"estimatedTokens"`
	Files           []FileSize `json:"files"`
}

func tooLarge(files []FileSize, total, max int) *Error {
	sorted := append([]FileSize(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Chars > sorted[j].Chars })

	msg := fmt.Sprintf("combined documents are %d characters (~%d tokens), limit is %d characters", total, total/CharsPerToken, max)
	if len(sorted) > 0 {
		msg += fmt.Sprintf("; largest file is %s (%d characters). Split the upload or remove non-financial documents", sorted[0].Name, sorted[0].Chars)
	}
	return &Error{
		Code:    CodeTooLarge,
		Message: msg,
		Details: SizeDetails{
			TotalChars:      total,
			MaxChars:        max,
			EstimatedTokens: total / CharsPerToken,
			Files:           sorted,
		},
	}
}
