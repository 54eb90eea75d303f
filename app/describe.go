package app

import (
	"context"

	"floodcv/domain/core"
	"floodcv/internal/describe"
	"floodcv/internal/errors"
	"floodcv/internal/tuning"
)

// Correlation correlates the named features (all session features when empty)
// within every group's sampled table.
func (a *AnalysisService) Correlation(session *Session, names []string, method string) (*describe.Correlation, error) {
	m, err := describe.ParseCorrelationMethod(method)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	if len(names) == 0 {
		names = session.Features
	}
	corr, err := describe.Correlate(session.Groups, names, m)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return corr, nil
}

// Ranges returns the value range of the named features per group.
func (a *AnalysisService) Ranges(session *Session, names []string) (*describe.Ranges, error) {
	if len(names) == 0 {
		names = session.Features
	}
	ranges, err := describe.ValueRanges(session.Groups, names)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return ranges, nil
}

// StudyAnalytics loads a checkpointed study and summarizes its trials.
func (a *AnalysisService) StudyAnalytics(ctx context.Context, id core.StudyID) (*tuning.Analytics, error) {
	if a.studies == nil {
		return nil, errors.Conflict("study store is not configured")
	}
	study, err := a.studies.GetStudy(ctx, id)
	if err != nil {
		return nil, err
	}
	return tuning.Analyze(ctx, study, a.config.Seed)
}
