package config

import (
	"fmt"
	"os"

	"floodcv/domain/search"
	"floodcv/internal/errors"
	"floodcv/internal/importance"

	"gopkg.in/yaml.v3"
)

// Experiment describes one tuning and evaluation run.
type Experiment struct {
	Name       string                      `yaml:"name" json:"name"`
	Features   []string                    `yaml:"features" json:"features"`
	Objective  string                      `yaml:"objective" json:"objective"`
	NTrials    int                         `yaml:"n_trials" json:"n_trials"`
	KFolds     int                         `yaml:"k_folds" json:"k_folds"`
	Seed       int64                       `yaml:"seed" json:"seed"`
	Space      map[string]search.ParamSpec `yaml:"space" json:"space"`
	Importance ImportanceExperiment        `yaml:"importance" json:"importance"`
}

// ImportanceExperiment configures the importance stage of an experiment.
type ImportanceExperiment struct {
	Methods         []string `yaml:"methods" json:"methods"`
	HighCardRandom  bool     `yaml:"high_card_random" json:"high_card_random"`
	LowCardRandom   bool     `yaml:"low_card_random" json:"low_card_random"`
	Repeats         int      `yaml:"repeats" json:"repeats"`
	PermutationSeed int64    `yaml:"permutation_seed" json:"permutation_seed"`
}

const (
	ObjectiveInnerCV = "inner_cv"
	ObjectiveOuterCV = "outer_cv"
)

// DefaultExperiment mirrors the analysis defaults with an empty search space.
func DefaultExperiment(a AnalysisConfig) *Experiment {
	return &Experiment{
		Name:      "default",
		Features:  append([]string(nil), a.Features...),
		Objective: ObjectiveInnerCV,
		NTrials:   a.NTrials,
		KFolds:    a.KFolds,
		Seed:      a.Seed,
		Space:     map[string]search.ParamSpec{},
		Importance: ImportanceExperiment{
			Methods:         []string{"impurity", "permutation", "shapley"},
			HighCardRandom:  true,
			LowCardRandom:   true,
			Repeats:         a.PermutationRepeats,
			PermutationSeed: a.Seed,
		},
	}
}

// LoadExperiment reads a YAML experiment file, filling unset fields from defaults.
func LoadExperiment(path string, defaults AnalysisConfig) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read experiment file %s", path)
	}
	return ParseExperiment(data, defaults)
}

// ParseExperiment decodes YAML experiment content.
func ParseExperiment(data []byte, defaults AnalysisConfig) (*Experiment, error) {
	exp := DefaultExperiment(defaults)
	if err := yaml.Unmarshal(data, exp); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("failed to parse experiment: %w", err))
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

// Validate checks the experiment settings.
func (e *Experiment) Validate() error {
	switch e.Objective {
	case ObjectiveInnerCV, ObjectiveOuterCV:
	default:
		return errors.ConfigInvalid(fmt.Sprintf("objective must be %s or %s, got %q", ObjectiveInnerCV, ObjectiveOuterCV, e.Objective))
	}
	if e.NTrials < 1 {
		return errors.ConfigInvalid("n_trials must be positive")
	}
	if e.KFolds < 2 {
		return errors.ConfigInvalid("k_folds must be at least 2")
	}
	if len(e.Features) == 0 {
		return errors.ConfigInvalid("at least one feature must be selected")
	}
	permutation := false
	for _, name := range e.Importance.Methods {
		m, err := importance.ParseMethod(name)
		if err != nil {
			return errors.WithCode(errors.CodeConfigInvalid, err)
		}
		permutation = permutation || m == importance.Permutation
	}
	if permutation && e.Importance.Repeats < importance.MinPermutationRepeats {
		return errors.ConfigInvalid(fmt.Sprintf("importance repeats must be at least %d for permutation importance", importance.MinPermutationRepeats))
	}
	if _, err := search.SpaceFromSpecs(e.Space); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

// SearchSpace converts the experiment's space specs.
func (e *Experiment) SearchSpace() (search.Space, error) {
	return search.SpaceFromSpecs(e.Space)
}
