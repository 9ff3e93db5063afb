// Package ensemble implements the random-forest classifier.
package ensemble

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnscope/core/model"
	"github.com/YuminosukeSato/churnscope/core/parallel"
	"github.com/YuminosukeSato/churnscope/pkg/errors"
	"github.com/YuminosukeSato/churnscope/sklearn/tree"
)

// RandomForestClassifier averages the class probabilities of bagged CART trees.
// Tree i is seeded with RandomState+i, so a fit is reproducible regardless of
// how trees are scheduled across workers.
type RandomForestClassifier struct {
	State *model.StateManager

	// Hyperparameters
	NEstimators     int
	Criterion       string
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	Bootstrap       bool
	RandomState     int64
	NJobs           int // <= 0 uses every CPU

	// Fitted state
	Trees   []*tree.DecisionTreeClassifier
	Classes []int
}

// Option is a functional option for RandomForestClassifier
type Option func(*RandomForestClassifier)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) { rf.NEstimators = n }
}

// WithCriterion sets the split criterion of every tree.
func WithCriterion(criterion string) Option {
	return func(rf *RandomForestClassifier) { rf.Criterion = criterion }
}

// WithMaxDepth limits the depth of every tree. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(rf *RandomForestClassifier) { rf.MaxDepth = depth }
}

// WithMaxFeatures sets the per-split feature sampling ("sqrt", "log2" or "all").
func WithMaxFeatures(maxFeatures string) Option {
	return func(rf *RandomForestClassifier) { rf.MaxFeatures = maxFeatures }
}

// WithBootstrap toggles bootstrap sampling of rows.
func WithBootstrap(bootstrap bool) Option {
	return func(rf *RandomForestClassifier) { rf.Bootstrap = bootstrap }
}

// WithRandomState sets the base seed.
func WithRandomState(seed int64) Option {
	return func(rf *RandomForestClassifier) { rf.RandomState = seed }
}

// WithNJobs sets the number of trees fitted concurrently.
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) { rf.NJobs = n }
}

// NewRandomForestClassifier creates a forest with scikit-learn defaults.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		State:           model.NewStateManager(),
		NEstimators:     100,
		Criterion:       "gini",
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     "sqrt",
		Bootstrap:       true,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// Fit grows NEstimators trees, each on its own bootstrap sample.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	if rf.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", rf.NEstimators)
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}

	trees := make([]*tree.DecisionTreeClassifier, rf.NEstimators)
	errs := make([]error, rf.NEstimators)

	parallel.ParallelizeN(rf.NEstimators, rf.NJobs, func(start, end int) {
		for i := start; i < end; i++ {
			seed := rf.RandomState + int64(i)
			rng := rand.New(rand.NewSource(seed))

			indices := make([]int, nSamples)
			for j := range indices {
				if rf.Bootstrap {
					indices[j] = rng.Intn(nSamples)
				} else {
					indices[j] = j
				}
			}

			t := tree.NewDecisionTreeClassifier(
				tree.WithCriterion(rf.Criterion),
				tree.WithMaxDepth(rf.MaxDepth),
				tree.WithMinSamplesSplit(rf.MinSamplesSplit),
				tree.WithMinSamplesLeaf(rf.MinSamplesLeaf),
				tree.WithMaxFeatures(rf.MaxFeatures),
				tree.WithRandomState(seed),
			)
			if err := t.FitIndices(X, y, indices); err != nil {
				errs[i] = errors.Wrapf(err, "fit tree %d", i)
				continue
			}
			trees[i] = t
		}
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	rf.Trees = trees
	rf.Classes = trees[0].Classes
	rf.State.SetDimensions(nFeatures, nSamples)
	rf.State.SetFitted()
	return nil
}

// PredictProba returns the mean class probabilities over all trees.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.State.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, nFeatures := X.Dims()
	if err := rf.State.RequireFeatures("RandomForestClassifier.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	sum := mat.NewDense(rows, len(rf.Classes), nil)
	for _, t := range rf.Trees {
		p, err := t.PredictProba(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(rf.Trees)), sum)
	return sum, nil
}

// Predict returns an n × 1 matrix with the class of highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, cols := probas.Dims()
	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for k := 1; k < cols; k++ {
			if probas.At(i, k) > probas.At(i, best) {
				best = k
			}
		}
		predictions.Set(i, 0, float64(rf.Classes[best]))
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given data.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := predictions.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows), nil
}

// FeatureImportances returns the mean of the per-tree impurity importances,
// renormalized to sum to one.
func (rf *RandomForestClassifier) FeatureImportances() ([]float64, error) {
	if err := rf.State.RequireFitted("RandomForestClassifier", "FeatureImportances"); err != nil {
		return nil, err
	}
	nFeatures, _ := rf.State.GetDimensions()
	out := make([]float64, nFeatures)
	var total float64
	for _, t := range rf.Trees {
		imp, err := t.FeatureImportances()
		if err != nil {
			return nil, err
		}
		for j, v := range imp {
			out[j] += v
			total += v
		}
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out, nil
}

// GetParams returns the model hyperparameters
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.NEstimators,
		"criterion":         rf.Criterion,
		"max_depth":         rf.MaxDepth,
		"min_samples_split": rf.MinSamplesSplit,
		"min_samples_leaf":  rf.MinSamplesLeaf,
		"max_features":      rf.MaxFeatures,
		"bootstrap":         rf.Bootstrap,
		"random_state":      rf.RandomState,
		"n_jobs":            rf.NJobs,
	}
}

// SetParams sets the model hyperparameters
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "n_estimators":
			rf.NEstimators, ok = value.(int)
		case "criterion":
			rf.Criterion, ok = value.(string)
		case "max_depth":
			rf.MaxDepth, ok = value.(int)
		case "min_samples_split":
			rf.MinSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			rf.MinSamplesLeaf, ok = value.(int)
		case "max_features":
			rf.MaxFeatures, ok = value.(string)
		case "bootstrap":
			rf.Bootstrap, ok = value.(bool)
		case "random_state":
			rf.RandomState, ok = value.(int64)
		case "n_jobs":
			rf.NJobs, ok = value.(int)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "wrong type", value)
		}
	}
	return nil
}

func (rf *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, criterion=%s, max_depth=%d, max_features=%s)",
		rf.NEstimators, rf.Criterion, rf.MaxDepth, rf.MaxFeatures)
}
