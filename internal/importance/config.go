package importance

import (
	"fmt"
	"strings"

	"floodcv/internal/forest"
)

// Method is an importance estimate.
type Method string

const (
	Impurity    Method = "impurity"
	Permutation Method = "permutation"
	Shapley     Method = "shapley"
)

// Names of the synthetic calibration columns.
const (
	HighCardRandom = "HIGH_CARD_RANDOM"
	LowCardRandom  = "LOW_CARD_RANDOM"

	highCardRange = 10000
	lowCardRange  = 10
)

// MinPermutationRepeats is the smallest accepted number of shuffles per feature.
const MinPermutationRepeats = 10

// AllMethods lists every method in report order.
var AllMethods = []Method{Impurity, Permutation, Shapley}

// ParseMethod accepts the method names and the labels used in reports
// ("Impurity Reduction", "Permutation Accuracy").
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "impurity", "impurity reduction", "mdi":
		return Impurity, nil
	case "permutation", "permutation accuracy":
		return Permutation, nil
	case "shapley", "shap":
		return Shapley, nil
	}
	return "", fmt.Errorf("unknown importance method %q", s)
}

// Config selects methods, calibration columns and seeds. The random column
// seed, the permutation seed and the model seed are independent.
type Config struct {
	Methods            []Method      `json:"methods"`
	HighCardRandom     bool          `json:"high_card_random"`
	LowCardRandom      bool          `json:"low_card_random"`
	RandomColumnSeed   int64         `json:"random_column_seed"`
	PermutationRepeats int           `json:"permutation_repeats"`
	PermutationSeed    int64         `json:"permutation_seed"`
	Params             forest.Params `json:"params"`
	Workers            int           `json:"-"`
}

// DefaultConfig computes every method with both calibration columns on a
// 100 tree forest.
func DefaultConfig() Config {
	return Config{
		Methods:            append([]Method(nil), AllMethods...),
		HighCardRandom:     true,
		LowCardRandom:      true,
		RandomColumnSeed:   42,
		PermutationRepeats: MinPermutationRepeats,
		PermutationSeed:    42,
		Params:             forest.DefaultParams(),
		Workers:            1,
	}
}

// Validate checks the configuration before any model is trained.
func (c Config) Validate() error {
	if len(c.Methods) == 0 {
		return fmt.Errorf("no importance methods selected")
	}
	for _, m := range c.Methods {
		switch m {
		case Impurity, Permutation, Shapley:
		default:
			return fmt.Errorf("unknown importance method %q", m)
		}
	}
	if c.enabled(Permutation) && c.PermutationRepeats < MinPermutationRepeats {
		return fmt.Errorf("permutation repeats must be at least %d, got %d", MinPermutationRepeats, c.PermutationRepeats)
	}
	return nil
}

func (c Config) enabled(m Method) bool {
	for _, x := range c.Methods {
		if x == m {
			return true
		}
	}
	return false
}
