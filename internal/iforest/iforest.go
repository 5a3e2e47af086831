// Package iforest implements the Isolation Forest algorithm for unsupervised
// outlier scoring of flight feature vectors.
package iforest

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Default configuration
const (
	DefaultTrees      = 100
	DefaultSampleSize = 256
	DefaultSeed       = 42
)

var errNotFitted = errors.New("forest is not fitted")

// Forest is an ensemble of isolation trees. Fitting is randomized (seeded);
// scoring a fitted forest is deterministic.
type Forest struct {
	nTrees     int
	sampleSize int
	maxDepth   int
	seed       int64

	trees       []*treeNode
	avgPathNorm float64
	nFeatures   int
	fitted      bool
}

// treeNode is a node of an isolation tree. Fields are exported so a fitted
// forest survives gob round-trips.
type treeNode struct {
	SplitFeature int
	SplitValue   float64
	Left         *treeNode
	Right        *treeNode
	Size         int
}

// Option configures a Forest
type Option func(*Forest)

// WithTrees sets the number of isolation trees
func WithTrees(n int) Option {
	return func(f *Forest) { f.nTrees = n }
}

// WithSampleSize sets the subsample size used to build each tree
func WithSampleSize(n int) Option {
	return func(f *Forest) { f.sampleSize = n }
}

// WithSeed sets the random seed used when fitting
func WithSeed(seed int64) Option {
	return func(f *Forest) { f.seed = seed }
}

// New creates an unfitted Forest with the given options
func New(opts ...Option) *Forest {
	f := &Forest{
		nTrees:     DefaultTrees,
		sampleSize: DefaultSampleSize,
		seed:       DefaultSeed,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Seed returns the random seed the forest was configured with
func (f *Forest) Seed() int64 {
	return f.seed
}

// Fit builds the isolation trees over the training vectors. Every vector
// must have the same dimensionality.
func (f *Forest) Fit(data [][]float64) error {
	if len(data) == 0 {
		return errors.New("empty training data")
	}

	nSamples := len(data)
	nFeatures := len(data[0])
	if nFeatures == 0 {
		return errors.New("training vectors have no features")
	}
	for i, row := range data {
		if len(row) != nFeatures {
			return fmt.Errorf("vector %d has %d features, want %d", i, len(row), nFeatures)
		}
	}

	sampleSize := f.sampleSize
	if sampleSize > nSamples {
		sampleSize = nSamples
	}
	f.maxDepth = int(math.Ceil(math.Log2(float64(sampleSize))))
	if f.maxDepth < 1 {
		f.maxDepth = 1
	}

	rng := rand.New(rand.NewSource(f.seed))
	f.trees = make([]*treeNode, f.nTrees)
	for i := 0; i < f.nTrees; i++ {
		indices := rng.Perm(nSamples)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = data[idx]
		}
		f.trees[i] = f.buildNode(rng, sample, nFeatures, 0)
	}

	f.avgPathNorm = averagePathLength(float64(sampleSize))
	f.nFeatures = nFeatures
	f.fitted = true
	return nil
}

func (f *Forest) buildNode(rng *rand.Rand, data [][]float64, nFeatures, depth int) *treeNode {
	n := len(data)
	if depth >= f.maxDepth || n <= 1 {
		return &treeNode{Size: n}
	}

	feature := rng.Intn(nFeatures)

	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		if row[feature] < minVal {
			minVal = row[feature]
		}
		if row[feature] > maxVal {
			maxVal = row[feature]
		}
	}
	if minVal == maxVal {
		return &treeNode{Size: n}
	}

	splitValue := minVal + rng.Float64()*(maxVal-minVal)

	var left, right [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &treeNode{
		SplitFeature: feature,
		SplitValue:   splitValue,
		Left:         f.buildNode(rng, left, nFeatures, depth+1),
		Right:        f.buildNode(rng, right, nFeatures, depth+1),
	}
}

// ScoreOne returns the outlier score of a single vector in [0, 1].
// Higher means more anomalous.
func (f *Forest) ScoreOne(vector []float64) (float64, error) {
	if !f.fitted {
		return 0, errNotFitted
	}
	if len(vector) != f.nFeatures {
		return 0, fmt.Errorf("vector has %d features, forest was fitted on %d", len(vector), f.nFeatures)
	}

	var totalPath float64
	for _, tree := range f.trees {
		totalPath += pathLength(vector, tree, 0)
	}
	avgPath := totalPath / float64(len(f.trees))

	// s(x) = 2^(-E[h(x)] / c(n))
	return math.Pow(2, -avgPath/f.avgPathNorm), nil
}

// Score returns outlier scores for a batch of vectors
func (f *Forest) Score(data [][]float64) ([]float64, error) {
	scores := make([]float64, len(data))
	for i, vector := range data {
		score, err := f.ScoreOne(vector)
		if err != nil {
			return nil, err
		}
		scores[i] = score
	}
	return scores, nil
}

func pathLength(vector []float64, n *treeNode, depth int) float64 {
	if n.Left == nil && n.Right == nil {
		return float64(depth) + averagePathLength(float64(n.Size))
	}
	if vector[n.SplitFeature] < n.SplitValue {
		return pathLength(vector, n.Left, depth+1)
	}
	return pathLength(vector, n.Right, depth+1)
}

// averagePathLength is c(n), the average path length of an unsuccessful BST
// search: 2*H(n-1) - 2*(n-1)/n with H(n) ~ ln(n) + Euler-Mascheroni.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}

// forestState is the gob wire form of a fitted forest
type forestState struct {
	NTrees      int
	SampleSize  int
	MaxDepth    int
	Seed        int64
	Trees       []*treeNode
	AvgPathNorm float64
	NFeatures   int
}

// Save serializes the fitted forest
func (f *Forest) Save() ([]byte, error) {
	if !f.fitted {
		return nil, errNotFitted
	}

	var buf bytes.Buffer
	state := forestState{
		NTrees:      f.nTrees,
		SampleSize:  f.sampleSize,
		MaxDepth:    f.maxDepth,
		Seed:        f.seed,
		Trees:       f.trees,
		AvgPathNorm: f.avgPathNorm,
		NFeatures:   f.nFeatures,
	}
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, fmt.Errorf("failed to encode forest: %w", err)
	}
	return buf.Bytes(), nil
}

// Load restores a fitted forest from its serialized form
func Load(data []byte) (*Forest, error) {
	var state forestState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode forest: %w", err)
	}

	return &Forest{
		nTrees:      state.NTrees,
		sampleSize:  state.SampleSize,
		maxDepth:    state.MaxDepth,
		seed:        state.Seed,
		trees:       state.Trees,
		avgPathNorm: state.AvgPathNorm,
		nFeatures:   state.NFeatures,
		fitted:      true,
	}, nil
}
