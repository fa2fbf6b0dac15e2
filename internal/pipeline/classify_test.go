package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ramirezdev26/swifty-ai-digester/internal/backend"
	"github.com/ramirezdev26/swifty-ai-digester/internal/domain"
)

func TestClassify_Idempotent(t *testing.T) {
	err := fmt.Errorf("%w: HTTP 429", backend.ErrRateLimited)

	first := Classify(err)
	second := Classify(err)

	if first != second {
		t.Errorf("classifying the same error twice should be idempotent: %+v vs %+v", first, second)
	}
}

func TestClassify_Rules(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		code      domain.ErrorCode
	}{
		{"timeout", ErrTimeout, false, domain.ErrorCodeProcessingTimeout},
		{"network", backend.ErrNetworkTimeout, true, domain.ErrorCodeTimeout},
		{"rate limit sentinel", backend.ErrRateLimited, true, domain.ErrorCodeRateLimit},
		{"rate limit substring", errors.New("upstream said: rate limit hit"), true, domain.ErrorCodeRateLimit},
		{"transform transient", backend.ErrTransformTransient, true, domain.ErrorCodeGeminiAPIError},
		{"store transient", backend.ErrStoreTransient, true, domain.ErrorCodeCloudinaryError},
		{"image download", backend.ErrImageDownload, false, domain.ErrorCodeImageDownload},
		{"unknown", errors.New("boom"), false, domain.ErrorCodeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fault := Classify(tc.err)
			if fault.Retryable != tc.retryable || fault.Code != tc.code {
				t.Errorf("Classify(%v) = %+v, want {%v %v}", tc.err, fault, tc.retryable, tc.code)
			}
		})
	}
}
