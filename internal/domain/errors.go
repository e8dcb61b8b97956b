package domain

import "errors"

// Error taxonomy for the integration boundary. Adapters wrap transport
// failures with one of these sentinels so callers can degrade by category
// instead of inspecting raw error strings.
var (
	// ErrBackendUnavailable: missing credentials, connection refused, index
	// down. The affected backend degrades to an explained empty result.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrRateLimited: the provider throttled or timed out after the bounded
	// retry. Surfaces to users as "temporarily unavailable".
	ErrRateLimited = errors.New("rate limited")

	// ErrParse: LLM output did not match the expected JSON or labeled-section
	// shape. The affected item gets the conservative default.
	ErrParse = errors.New("unparsable model output")

	// ErrRerankerUnavailable: both reranker tiers failed; candidates fall
	// back to prior-score order.
	ErrRerankerUnavailable = errors.New("reranker unavailable")

	// ErrNotFound: the requested document does not exist.
	ErrNotFound = errors.New("not found")
)

// ErrorCategory returns the sanitized, user-facing category string for an
// error. Raw messages never reach users.
func ErrorCategory(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "temporarily_unavailable"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ErrParse):
		return "bad_model_output"
	case errors.Is(err, ErrRerankerUnavailable):
		return "reranker_unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal_error"
	}
}
