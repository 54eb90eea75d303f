package search

import (
	"time"

	"floodcv/domain/core"
)

// TrialState records how a trial ended.
type TrialState string

const (
	TrialComplete   TrialState = "complete"
	TrialInfeasible TrialState = "infeasible"
)

// Trial is one evaluated assignment.
type Trial struct {
	Number    int           `json:"number"`
	Params    Assignment    `json:"params"`
	Score     float64       `json:"score"`
	State     TrialState    `json:"state"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Study is the ordered history of a search. Scores are maximized.
type Study struct {
	ID        core.StudyID `json:"id"`
	Objective string       `json:"objective"`
	NTrials   int          `json:"n_trials"`
	Trials    []Trial      `json:"trials"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewStudy creates an empty study.
func NewStudy(objective string, nTrials int) *Study {
	return &Study{
		ID:        core.NewStudyID(),
		Objective: objective,
		NTrials:   nTrials,
		Trials:    make([]Trial, 0, nTrials),
		CreatedAt: time.Now().UTC(),
	}
}

// Record appends a finished trial.
func (s *Study) Record(t Trial) {
	s.Trials = append(s.Trials, t)
}

// Best returns the highest scoring complete trial. Ties go to the earliest trial.
func (s *Study) Best() (Trial, bool) {
	best := -1
	for i, t := range s.Trials {
		if t.State != TrialComplete {
			continue
		}
		if best < 0 || t.Score > s.Trials[best].Score {
			best = i
		}
	}
	if best < 0 {
		return Trial{}, false
	}
	return s.Trials[best], true
}

// BestParams returns the parameters of the best trial, or nil.
func (s *Study) BestParams() Assignment {
	t, ok := s.Best()
	if !ok {
		return nil
	}
	return t.Params.Clone()
}

// Completed returns complete trials in order.
func (s *Study) Completed() []Trial {
	out := make([]Trial, 0, len(s.Trials))
	for _, t := range s.Trials {
		if t.State == TrialComplete {
			out = append(out, t)
		}
	}
	return out
}

// CompletedCount returns the number of complete trials.
func (s *Study) CompletedCount() int {
	n := 0
	for _, t := range s.Trials {
		if t.State == TrialComplete {
			n++
		}
	}
	return n
}
