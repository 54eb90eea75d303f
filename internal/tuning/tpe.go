package tuning

import (
	"math"
	"math/rand"
	"sort"

	"floodcv/domain/search"

	"gonum.org/v1/gonum/stat/distuv"
)

// TPEConfig configures the tree-structured Parzen estimator sampler
type TPEConfig struct {
	StartupTrials int     `json:"startup_trials"`
	Candidates    int     `json:"candidates"`
	PriorWeight   float64 `json:"prior_weight"`
	Seed          int64   `json:"seed"`
}

// DefaultTPEConfig returns the sampler defaults
func DefaultTPEConfig() TPEConfig {
	return TPEConfig{
		StartupTrials: 10,
		Candidates:    24,
		PriorWeight:   1.0,
		Seed:          42,
	}
}

// TPESampler proposes assignments. The first StartupTrials proposals are
// uniform; later ones model good and bad trials separately per parameter and
// pick the candidate maximizing l(x)/g(x).
type TPESampler struct {
	config TPEConfig
	rng    *rand.Rand
}

// NewTPESampler creates a sampler seeded with config.Seed
func NewTPESampler(config TPEConfig) *TPESampler {
	defaults := DefaultTPEConfig()
	if config.StartupTrials < 1 {
		config.StartupTrials = defaults.StartupTrials
	}
	if config.Candidates < 1 {
		config.Candidates = defaults.Candidates
	}
	if config.PriorWeight <= 0 {
		config.PriorWeight = defaults.PriorWeight
	}
	return &TPESampler{config: config, rng: rand.New(rand.NewSource(config.Seed))}
}

// Sample proposes the next assignment given the complete trials so far.
func (s *TPESampler) Sample(space search.Space, history []search.Trial) search.Assignment {
	a := make(search.Assignment, len(space))
	startup := len(history) < s.config.StartupTrials

	var good, bad []search.Trial
	if !startup {
		good, bad = splitTrials(history)
	}

	for _, name := range space.Names() {
		switch p := space[name].(type) {
		case search.FixedValue:
			a[name] = p.Value
		case search.IntRange:
			if startup || p.Lo == p.Hi {
				a[name] = p.Lo + s.rng.Intn(p.Hi-p.Lo+1)
				continue
			}
			x := s.numeric(values(good, name), values(bad, name), float64(p.Lo)-0.5, float64(p.Hi)+0.5)
			a[name] = clampInt(int(math.Round(x)), p.Lo, p.Hi)
		case search.FloatRange:
			if startup || p.Lo == p.Hi {
				a[name] = p.Lo + s.rng.Float64()*(p.Hi-p.Lo)
				continue
			}
			a[name] = s.numeric(values(good, name), values(bad, name), p.Lo, p.Hi)
		case search.CategoricalSet:
			if startup || len(p.Options) == 1 {
				a[name] = p.Options[s.rng.Intn(len(p.Options))]
				continue
			}
			a[name] = s.categorical(p.Options, categories(good, name), categories(bad, name))
		}
	}
	return a
}

// gamma is the number of trials treated as good.
func gamma(n int) int {
	g := int(math.Ceil(0.1 * float64(n)))
	if g > 25 {
		g = 25
	}
	if g < 1 {
		g = 1
	}
	return g
}

func splitTrials(history []search.Trial) (good, bad []search.Trial) {
	sorted := append([]search.Trial(nil), history...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	n := gamma(len(sorted))
	return sorted[:n], sorted[n:]
}

func values(trials []search.Trial, name string) []float64 {
	out := make([]float64, 0, len(trials))
	for _, t := range trials {
		if v, ok := t.Params.Float(name); ok {
			out = append(out, v)
		}
	}
	return out
}

func categories(trials []search.Trial, name string) []string {
	out := make([]string, 0, len(trials))
	for _, t := range trials {
		if v, ok := t.Params.String(name); ok {
			out = append(out, v)
		}
	}
	return out
}

func (s *TPESampler) numeric(good, bad []float64, lo, hi float64) float64 {
	l := newParzen(good, lo, hi, s.config.PriorWeight)
	g := newParzen(bad, lo, hi, s.config.PriorWeight)

	best, bestScore := lo, math.Inf(-1)
	for i := 0; i < s.config.Candidates; i++ {
		x := l.sample(s.rng)
		score := l.logPdf(x) - g.logPdf(x)
		if score > bestScore {
			best, bestScore = x, score
		}
	}
	return best
}

func (s *TPESampler) categorical(options, good, bad []string) string {
	lw := categoryWeights(options, good, s.config.PriorWeight)
	gw := categoryWeights(options, bad, s.config.PriorWeight)

	best, bestScore := options[0], math.Inf(-1)
	for i := 0; i < s.config.Candidates; i++ {
		k := pick(s.rng, lw)
		score := math.Log(lw[k]) - math.Log(gw[k])
		if score > bestScore {
			best, bestScore = options[k], score
		}
	}
	return best
}

func categoryWeights(options, observed []string, prior float64) []float64 {
	w := make([]float64, len(options))
	for i := range w {
		w[i] = prior
	}
	for _, o := range observed {
		for i, opt := range options {
			if o == opt {
				w[i]++
			}
		}
	}
	normalizeWeights(w)
	return w
}

// parzen is a mixture of normals truncated to [lo, hi].
type parzen struct {
	components []distuv.Normal
	weights    []float64
	mass       []float64
	lo, hi     float64
}

// newParzen places one component on every observation plus a wide prior at
// the interval center. Bandwidths are the larger gap to a sorted neighbour,
// clipped to [(hi-lo)/min(100, n+1), hi-lo].
func newParzen(obs []float64, lo, hi, priorWeight float64) parzen {
	width := hi - lo
	prior := (lo + hi) / 2

	mus := append(append([]float64(nil), obs...), prior)
	sort.Float64s(mus)
	priorIdx := sort.SearchFloat64s(mus, prior)

	minSigma := width / math.Min(100, float64(len(mus)))
	p := parzen{lo: lo, hi: hi}
	for i, mu := range mus {
		var sigma, w float64
		if i == priorIdx {
			sigma, w = width, priorWeight
		} else {
			left := mu - lo
			if i > 0 {
				left = mu - mus[i-1]
			}
			right := hi - mu
			if i < len(mus)-1 {
				right = mus[i+1] - mu
			}
			sigma = math.Max(left, right)
			sigma = math.Min(math.Max(sigma, minSigma), width)
			w = 1
		}
		n := distuv.Normal{Mu: mu, Sigma: sigma}
		mass := n.CDF(hi) - n.CDF(lo)
		if mass <= 0 {
			mass = 1e-12
		}
		p.components = append(p.components, n)
		p.weights = append(p.weights, w)
		p.mass = append(p.mass, mass)
	}
	normalizeWeights(p.weights)
	return p
}

func (p parzen) sample(r *rand.Rand) float64 {
	c := p.components[pick(r, p.weights)]
	for try := 0; try < 100; try++ {
		x := c.Mu + c.Sigma*r.NormFloat64()
		if x >= p.lo && x <= p.hi {
			return x
		}
	}
	return math.Min(math.Max(c.Mu, p.lo), p.hi)
}

func (p parzen) logPdf(x float64) float64 {
	sum := 0.0
	for i, c := range p.components {
		sum += p.weights[i] * c.Prob(x) / p.mass[i]
	}
	if sum <= 0 {
		return math.Inf(-1)
	}
	return math.Log(sum)
}

func pick(r *rand.Rand, weights []float64) int {
	u := r.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if u < acc {
			return i
		}
	}
	return len(weights) - 1
}

func normalizeWeights(w []float64) {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if sum <= 0 {
		return
	}
	for i := range w {
		w[i] /= sum
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
