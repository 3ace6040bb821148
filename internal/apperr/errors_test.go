package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"typed", Forbidden("nope"), CodeForbidden},
		{"wrapped typed", fmt.Errorf("query: %w", NotFound("session")), CodeNotFound},
		{"personalization", &PersonalizationValidationError{Want: 3, Got: 1}, CodePersonalizationValidation},
		{"retention", &RetentionJobError{Selected: 2, Failed: 1}, CodeRetentionJob},
		{"plain", errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
			assert.True(t, Is(tt.err, tt.want))
		})
	}

	assert.False(t, Is(nil, CodeInternal))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeInvalidRequest))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodePersonalizationValidation))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(CodeForbidden))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(CodeConflict))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(CodeEmbeddingUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(CodeCompletionUnavailable))
	assert.Equal(t, http.StatusMultiStatus, HTTPStatus(CodeRetentionJob))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeInternal))
}

func TestRetryableAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp")
	err := EmbeddingUnavailable(cause)
	assert.True(t, err.Retryable())
	assert.ErrorIs(t, err, cause)
	assert.True(t, CompletionUnavailable(cause).Retryable())
	assert.False(t, InvalidRequest("bad").Retryable())

	rErr := &RetentionJobError{Selected: 3, Succeeded: 2, Failed: 1, Err: cause}
	assert.ErrorIs(t, rErr, cause)
	assert.Contains(t, rErr.Error(), "2/3 sessions deleted")
}
