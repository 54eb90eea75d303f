package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"floodcv/domain/core"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	base := ConfigInvalid("PORT is required")
	wrapped := Wrap(base, "configuration validation failed")

	assert.Equal(t, CodeConfigInvalid, GetCode(wrapped))
	assert.Contains(t, wrapped.Error(), "PORT is required")
	assert.True(t, stderrors.Is(wrapped, base))
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestGetCodeFromDomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"sampling", core.NewSamplingError("g", "zero area"), CodeSampling, http.StatusUnprocessableEntity},
		{"folds", core.NewFoldConstructionError("one group"), CodeFoldConstruction, http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("load: %w", core.ErrStudyNotFound), CodeNotFound, http.StatusNotFound},
		{"bad space", core.NewInvalidSpaceError("max_depth", "above 1000"), CodeInvalidInput, http.StatusBadRequest},
		{"cancelled", core.ErrSearchCancelled, CodeSearchCancelled, http.StatusConflict},
		{"alignment", core.NewAlignmentError(3, 4), CodeAlignment, http.StatusUnprocessableEntity},
		{"wrapped domain", Wrap(core.ErrSearchExhausted, "tuning failed"), CodeSearchExhausted, http.StatusUnprocessableEntity},
		{"plain", stderrors.New("boom"), CodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, GetCode(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeInvalidInput, stderrors.New("n_trials must be positive"))
	assert.Equal(t, CodeInvalidInput, GetCode(err))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestFromDomain(t *testing.T) {
	assert.Nil(t, FromDomain(nil))

	err := FromDomain(fmt.Errorf("fold 2: %w", core.NewImportanceError(2, "single class")))
	assert.Equal(t, CodeImportance, err.Code)
	assert.True(t, stderrors.Is(err, core.ErrImportanceComputation))

	app := NotFound("study")
	assert.Same(t, app, FromDomain(app))
}
