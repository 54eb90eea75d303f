package metrics

import (
	"github.com/montanaflynn/stats"
)

// Summary is the mean and population standard deviation of one metric across folds.
type Summary struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Comparison contrasts tuned and default model scores of one metric.
type Comparison struct {
	Metric  string  `json:"metric"`
	Best    Summary `json:"best"`
	Default Summary `json:"default"`
	Delta   float64 `json:"delta"`
}

// Summarize returns mean and population standard deviation. An empty input summarizes to zeros.
func Summarize(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, nil
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return Summary{}, err
	}
	std, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Mean: mean, Std: std}, nil
}

// Compare summarizes paired per-fold scores. Delta is best minus default mean.
func Compare(metric string, best, def []float64) (Comparison, error) {
	b, err := Summarize(best)
	if err != nil {
		return Comparison{}, err
	}
	d, err := Summarize(def)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{Metric: metric, Best: b, Default: d, Delta: b.Mean - d.Mean}, nil
}

// Mean returns the arithmetic mean, zero for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m, _ := stats.Mean(values)
	return m
}
