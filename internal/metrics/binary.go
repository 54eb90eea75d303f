// Package metrics scores binary predictions with class 1 as the positive class.
package metrics

import "fmt"

// Scores holds the four binary classification metrics of one evaluation.
type Scores struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// ConfusionMatrix counts predictions against truth.
type ConfusionMatrix struct {
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TP int `json:"tp"`
}

// Confusion tallies yTrue against yPred. The slices must have equal length.
func Confusion(yTrue, yPred []int) (ConfusionMatrix, error) {
	var m ConfusionMatrix
	if len(yTrue) != len(yPred) {
		return m, fmt.Errorf("length mismatch: %d labels vs %d predictions", len(yTrue), len(yPred))
	}
	for i, y := range yTrue {
		switch {
		case y == 1 && yPred[i] == 1:
			m.TP++
		case y == 1:
			m.FN++
		case yPred[i] == 1:
			m.FP++
		default:
			m.TN++
		}
	}
	return m, nil
}

// Total returns the number of tallied samples.
func (m ConfusionMatrix) Total() int { return m.TN + m.FP + m.FN + m.TP }

// Scores derives the metrics. Undefined ratios are reported as zero.
func (m ConfusionMatrix) Scores() Scores {
	s := Scores{
		Accuracy:  ratio(m.TP+m.TN, m.Total()),
		Precision: ratio(m.TP, m.TP+m.FP),
		Recall:    ratio(m.TP, m.TP+m.FN),
	}
	s.F1 = ratio(2*m.TP, 2*m.TP+m.FP+m.FN)
	return s
}

// Score computes all metrics for one prediction vector.
func Score(yTrue, yPred []int) (Scores, error) {
	m, err := Confusion(yTrue, yPred)
	if err != nil {
		return Scores{}, err
	}
	return m.Scores(), nil
}

// F1 returns the binary F1 score.
func F1(yTrue, yPred []int) (float64, error) {
	s, err := Score(yTrue, yPred)
	return s.F1, err
}

// Accuracy returns the fraction of correct predictions.
func Accuracy(yTrue, yPred []int) (float64, error) {
	s, err := Score(yTrue, yPred)
	return s.Accuracy, err
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
