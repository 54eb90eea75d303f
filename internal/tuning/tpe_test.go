package tuning

import (
	"math"
	"math/rand"
	"testing"

	"floodcv/domain/search"

	"github.com/stretchr/testify/assert"
)

func syntheticHistory(n int) []search.Trial {
	r := rand.New(rand.NewSource(1))
	history := make([]search.Trial, n)
	for i := range history {
		x := 10 + r.Intn(991)
		c := []string{"gini", "entropy", "log_loss"}[r.Intn(3)]
		f := 0.5 + r.Float64()/2
		// best scores near x = 800 and entropy
		score := 1 - float64((x-800)*(x-800))/1e6
		if c == "entropy" {
			score += 0.1
		}
		history[i] = search.Trial{
			Number: i,
			Params: search.Assignment{"x": x, "c": c, "f": f},
			Score:  score,
			State:  search.TrialComplete,
		}
	}
	return history
}

func TestGamma(t *testing.T) {
	assert.Equal(t, 1, gamma(1))
	assert.Equal(t, 1, gamma(10))
	assert.Equal(t, 2, gamma(11))
	assert.Equal(t, 25, gamma(1000))
}

func TestTPESamplesWithinBounds(t *testing.T) {
	space := search.Space{
		"x":     search.IntRange{Lo: 10, Hi: 1000},
		"f":     search.FloatRange{Lo: 0.5, Hi: 1},
		"c":     search.CategoricalSet{Options: []string{"gini", "entropy", "log_loss"}},
		"fixed": search.FixedValue{Value: 7},
	}
	history := syntheticHistory(40)
	s := NewTPESampler(DefaultTPEConfig())

	for i := 0; i < 50; i++ {
		a := s.Sample(space, history)
		x, ok := a.Int("x")
		assert.True(t, ok)
		assert.GreaterOrEqual(t, x, 10)
		assert.LessOrEqual(t, x, 1000)

		f, ok := a.Float("f")
		assert.True(t, ok)
		assert.GreaterOrEqual(t, f, 0.5)
		assert.LessOrEqual(t, f, 1.0)

		c, ok := a.String("c")
		assert.True(t, ok)
		assert.Contains(t, []string{"gini", "entropy", "log_loss"}, c)
		assert.Equal(t, 7, a["fixed"])
	}
}

func TestTPEFavoursGoodRegion(t *testing.T) {
	space := search.Space{"x": search.IntRange{Lo: 10, Hi: 1000}}
	history := syntheticHistory(100)
	s := NewTPESampler(DefaultTPEConfig())

	near := 0
	for i := 0; i < 100; i++ {
		x, _ := s.Sample(space, history).Int("x")
		if x >= 600 {
			near++
		}
	}
	// uniform sampling would land above 600 about 40% of the time
	assert.Greater(t, near, 60)
}

func TestTPEStartupIsUniformAndSeeded(t *testing.T) {
	space := search.Space{"x": search.IntRange{Lo: 1, Hi: 3}, "c": search.CategoricalSet{Options: []string{"a"}}}
	a := NewTPESampler(TPEConfig{Seed: 5})
	b := NewTPESampler(TPEConfig{Seed: 5})
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Sample(space, nil), b.Sample(space, nil))
	}
}

func TestParzenDensityIntegratesToOne(t *testing.T) {
	p := newParzen([]float64{0.2, 0.3, 0.8}, 0, 1, 1)
	const steps = 20000
	sum := 0.0
	for i := 0; i < steps; i++ {
		x := (float64(i) + 0.5) / steps
		sum += expLog(p.logPdf(x)) / steps
	}
	assert.InDelta(t, 1.0, sum, 1e-3)
}

func expLog(v float64) float64 {
	return math.Exp(v)
}
