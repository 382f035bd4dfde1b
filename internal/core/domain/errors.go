package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateHash indicates an uploaded file's content hash matches an
	// existing, non-deleted document.
	ErrDuplicateHash = errors.New("duplicate document hash")

	// ErrMimeRejected indicates the uploaded file type is not accepted.
	ErrMimeRejected = errors.New("mime type not allowed")

	// ErrTooLarge indicates the uploaded file exceeds the size cap.
	ErrTooLarge = errors.New("file too large")

	// ErrTooManyPages indicates the document exceeds the page limit.
	ErrTooManyPages = errors.New("too many pages")

	// ErrExtractionFailed indicates text extraction failed in every extractor.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrDocumentNotReady indicates the document is not in MAPPED status.
	ErrDocumentNotReady = errors.New("document not ready")

	// ErrRulesetInactive indicates the ruleset has not been activated.
	ErrRulesetInactive = errors.New("ruleset not active")

	// ErrRulesetConflicts indicates unresolved rule conflicts block activation.
	ErrRulesetConflicts = errors.New("ruleset has unresolved conflicts")

	// ErrVersionCollision indicates a ruleset with the same name and version
	// already exists.
	ErrVersionCollision = errors.New("ruleset version already exists")

	// ErrJobAlreadyRunning indicates another job is RUNNING on the document.
	ErrJobAlreadyRunning = errors.New("job already running")

	// ErrJobNotStartable indicates the job is not in a startable status.
	ErrJobNotStartable = errors.New("job not in a startable status")

	// ErrServiceUnavailable indicates the LLM backend is unreachable or the
	// circuit breaker rejected the request.
	ErrServiceUnavailable = errors.New("llm service unavailable")

	// ErrCircuitOpen indicates the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrReviewDecided indicates the review has already been decided.
	ErrReviewDecided = errors.New("review already decided")

	// ErrRiskOverrideRequired indicates approving over CRITICAL findings
	// requires an override reason.
	ErrRiskOverrideRequired = errors.New("risk override reason required")

	// ErrPendingReviews indicates assembly is blocked by unreviewed sections.
	ErrPendingReviews = errors.New("pending reviews")

	// ErrJobNotCompleted indicates assembly requires a COMPLETED job.
	ErrJobNotCompleted = errors.New("job not completed")

	// ErrChainBroken indicates the audit hash chain failed verification.
	// Never auto-repaired; always surfaced to an operator.
	ErrChainBroken = errors.New("audit chain broken")
)

// Code returns the stable machine-readable code for a domain error, or
// "GEN_002" for anything unrecognized. Codes are never reused or retired.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "GEN_003"
	case errors.Is(err, ErrInvalidInput):
		return "GEN_001"
	case errors.Is(err, ErrDuplicateHash):
		return "DOC_008"
	case errors.Is(err, ErrMimeRejected):
		return "DOC_003"
	case errors.Is(err, ErrTooLarge):
		return "DOC_004"
	case errors.Is(err, ErrExtractionFailed):
		return "DOC_005"
	case errors.Is(err, ErrTooManyPages):
		return "DOC_006"
	case errors.Is(err, ErrRulesetInactive), errors.Is(err, ErrRulesetConflicts):
		return "RULE_003"
	case errors.Is(err, ErrVersionCollision):
		return "RULE_005"
	case errors.Is(err, ErrDocumentNotReady):
		return "JOB_003"
	case errors.Is(err, ErrJobAlreadyRunning), errors.Is(err, ErrJobNotStartable):
		return "JOB_002"
	case errors.Is(err, ErrCircuitOpen):
		return "JOB_005"
	case errors.Is(err, ErrServiceUnavailable):
		return "JOB_004"
	case errors.Is(err, ErrReviewDecided):
		return "REV_002"
	case errors.Is(err, ErrRiskOverrideRequired):
		return "REV_003"
	case errors.Is(err, ErrPendingReviews):
		return "ASM_001"
	case errors.Is(err, ErrJobNotCompleted):
		return "ASM_002"
	case errors.Is(err, ErrChainBroken):
		return "AUD_001"
	default:
		return "GEN_002"
	}
}
