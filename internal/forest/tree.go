package forest

import (
	"math"
	"math/rand"
	"sort"
)

// featureThreshold is the smallest gap between two values that can be split.
const featureThreshold = 1e-7

type node struct {
	feature   int // -1 for leaves
	threshold float64
	left      int
	right     int
	value     [2]float64 // class probabilities
	cover     float64    // training samples reaching the node
	impurity  float64
}

func (n *node) leaf() bool { return n.feature < 0 }

// Tree is a fitted CART classification tree stored as a flat node array. Node 0 is the root.
type Tree struct {
	nodes      []node
	depth      int
	importance []float64
}

// NodeCount returns the number of nodes.
func (t *Tree) NodeCount() int { return len(t.nodes) }

// Depth returns the depth of the deepest leaf.
func (t *Tree) Depth() int { return t.depth }

func (t *Tree) predict(x []float64) [2]float64 {
	i := 0
	for !t.nodes[i].leaf() {
		n := &t.nodes[i]
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
	return t.nodes[i].value
}

// matrix is a row-major view of the training data.
type matrix struct {
	data   []float64
	stride int
}

func (m matrix) at(i, j int) float64 { return m.data[i*m.stride+j] }

type treeBuilder struct {
	x        matrix
	y        []int
	params   Params
	mtry     int
	rng      *rand.Rand
	tree     *Tree
	features []int
	rootN    float64
}

type split struct {
	feature   int
	threshold float64
	proxy     float64
}

type valueLabel struct {
	v float64
	y int
}

func buildTree(x matrix, y []int, nFeatures int, p Params, seed int64) *Tree {
	r := rand.New(rand.NewSource(seed))

	n := len(y)
	samples := make([]int, p.bootstrapSize(n))
	for i := range samples {
		samples[i] = r.Intn(n)
	}

	b := &treeBuilder{
		x:        x,
		y:        y,
		params:   p,
		mtry:     p.featuresPerSplit(nFeatures),
		rng:      r,
		tree:     &Tree{importance: make([]float64, nFeatures)},
		features: make([]int, nFeatures),
		rootN:    float64(len(samples)),
	}
	for j := range b.features {
		b.features[j] = j
	}
	b.grow(samples, 0)
	normalize(b.tree.importance)
	return b.tree
}

func (b *treeBuilder) counts(samples []int) [2]float64 {
	var c [2]float64
	for _, i := range samples {
		c[b.y[i]]++
	}
	return c
}

func (b *treeBuilder) grow(samples []int, depth int) int {
	counts := b.counts(samples)
	n := float64(len(samples))
	imp := impurity(b.params.Criterion, counts, n)

	id := len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, node{
		feature:  -1,
		value:    [2]float64{counts[0] / n, counts[1] / n},
		cover:    n,
		impurity: imp,
	})
	if depth > b.tree.depth {
		b.tree.depth = depth
	}

	p := b.params
	if (p.MaxDepth > 0 && depth >= p.MaxDepth) ||
		len(samples) < p.MinSamplesSplit ||
		len(samples) < 2*p.MinSamplesLeaf ||
		imp <= 1e-12 {
		return id
	}

	s, ok := b.bestSplit(samples)
	if !ok {
		return id
	}

	left := make([]int, 0, len(samples))
	right := make([]int, 0, len(samples))
	for _, i := range samples {
		if b.x.at(i, s.feature) <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)

	nd := &b.tree.nodes[id]
	nd.feature = s.feature
	nd.threshold = s.threshold
	nd.left = l
	nd.right = r

	lc, rc := b.tree.nodes[l], b.tree.nodes[r]
	decrease := n*imp - lc.cover*lc.impurity - rc.cover*rc.impurity
	b.tree.importance[s.feature] += decrease / b.rootN
	return id
}

// bestSplit visits features in random order until mtry non-constant features
// have been evaluated and returns the split with the lowest weighted child impurity.
func (b *treeBuilder) bestSplit(samples []int) (split, bool) {
	b.rng.Shuffle(len(b.features), func(i, j int) {
		b.features[i], b.features[j] = b.features[j], b.features[i]
	})

	best := split{proxy: math.Inf(1)}
	found := false
	visited := 0
	pairs := make([]valueLabel, len(samples))
	crit := b.params.Criterion
	minLeaf := b.params.MinSamplesLeaf
	n := len(samples)

	for _, f := range b.features {
		if visited >= b.mtry {
			break
		}
		for k, i := range samples {
			pairs[k] = valueLabel{v: b.x.at(i, f), y: b.y[i]}
		}
		sort.Slice(pairs, func(a, c int) bool { return pairs[a].v < pairs[c].v })
		if pairs[n-1].v <= pairs[0].v+featureThreshold {
			continue
		}
		visited++

		var total, left [2]float64
		for _, p := range pairs {
			total[p.y]++
		}
		for k := 0; k < n-1; k++ {
			left[pairs[k].y]++
			if pairs[k+1].v <= pairs[k].v+featureThreshold {
				continue
			}
			nl := k + 1
			nr := n - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			right := [2]float64{total[0] - left[0], total[1] - left[1]}
			proxy := float64(nl)*impurity(crit, left, float64(nl)) + float64(nr)*impurity(crit, right, float64(nr))
			if proxy < best.proxy {
				threshold := pairs[k].v/2 + pairs[k+1].v/2
				if threshold >= pairs[k+1].v || math.IsInf(threshold, 0) {
					threshold = pairs[k].v
				}
				best = split{feature: f, threshold: threshold, proxy: proxy}
				found = true
			}
		}
	}
	return best, found
}

func impurity(c Criterion, counts [2]float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	switch c {
	case Entropy, LogLoss:
		h := 0.0
		for _, k := range counts {
			if k > 0 {
				p := k / n
				h -= p * math.Log2(p)
			}
		}
		return h
	default:
		p0, p1 := counts[0]/n, counts[1]/n
		return 1 - p0*p0 - p1*p1
	}
}

func normalize(v []float64) {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	if sum <= 0 {
		return
	}
	for i := range v {
		v[i] /= sum
	}
}
