package pipeline

import (
	"errors"
	"strings"

	"github.com/ramirezdev26/swifty-ai-digester/internal/backend"
	"github.com/ramirezdev26/swifty-ai-digester/internal/domain"
)

// Fault is the output of Classify: whether the message should be
// retried, and the stable error code it is reported under.
type Fault struct {
	Retryable bool
	Code      domain.ErrorCode
}

// Classify maps any error raised by the pipeline to a Fault, in the
// fixed rule order from spec §4.2 — first match wins. The taxonomy is
// closed: a new backend fault must be added as a sentinel in
// internal/backend, not inferred here by guesswork.
func Classify(err error) Fault {
	if err == nil {
		return Fault{Retryable: false, Code: domain.ErrorCodeUnknown}
	}

	// Rule 1: C1 timeout is terminal by worker-protection policy (spec §4.1/§9).
	if errors.Is(err, ErrTimeout) {
		return Fault{Retryable: false, Code: domain.ErrorCodeProcessingTimeout}
	}

	// Rule 2: network-level transport error.
	if errors.Is(err, backend.ErrNetworkTimeout) {
		return Fault{Retryable: true, Code: domain.ErrorCodeTimeout}
	}

	// Rule 3: rate limiting, from any backend.
	if errors.Is(err, backend.ErrRateLimited) || containsRateLimitMarker(err.Error()) {
		return Fault{Retryable: true, Code: domain.ErrorCodeRateLimit}
	}

	// Rule 4: transform/store-specific transient markers.
	if errors.Is(err, backend.ErrTransformTransient) {
		return Fault{Retryable: true, Code: domain.ErrorCodeGeminiAPIError}
	}
	if errors.Is(err, backend.ErrStoreTransient) {
		return Fault{Retryable: true, Code: domain.ErrorCodeCloudinaryError}
	}

	// Terminal backend-specific faults.
	if errors.Is(err, backend.ErrImageDownload) {
		return Fault{Retryable: false, Code: domain.ErrorCodeImageDownload}
	}
	if errors.Is(err, backend.ErrTransformBackend) {
		return Fault{Retryable: false, Code: domain.ErrorCodeGeminiAPIError}
	}
	if errors.Is(err, backend.ErrStoreBackend) {
		return Fault{Retryable: false, Code: domain.ErrorCodeCloudinaryError}
	}

	// Rule 5: anything else — non-retryable, with a heuristic code by
	// substring so operators still get a useful label.
	return Fault{Retryable: false, Code: heuristicCode(err.Error())}
}

func containsRateLimitMarker(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range []string{"rate_limit_exceeded", "resource_exhausted", "429", "rate limit"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func heuristicCode(msg string) domain.ErrorCode {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "gemini") || strings.Contains(lower, "transform"):
		return domain.ErrorCodeGeminiAPIError
	case strings.Contains(lower, "cloudinary") || strings.Contains(lower, "store"):
		return domain.ErrorCodeCloudinaryError
	case strings.Contains(lower, "download") || strings.Contains(lower, "fetch"):
		return domain.ErrorCodeImageDownload
	case strings.Contains(lower, "timeout"):
		return domain.ErrorCodeTimeout
	default:
		return domain.ErrorCodeUnknown
	}
}
