// Package tree implements a CART decision-tree classifier that serves as the
// base learner of the random forest.
package tree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnscope/core/model"
	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

const leaf = -1

// Node is one node of a fitted tree. Children are indices into Tree.Nodes;
// leaves have Left == Right == -1.
type Node struct {
	Feature   int
	Threshold float64 // samples with x[Feature] <= Threshold go left
	Left      int
	Right     int
	Impurity  float64
	NSamples  int
	Value     []float64 // class distribution at the node, ordered as Classes
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Left == leaf
}

// DecisionTreeClassifier is a CART classifier with gini or entropy splits.
type DecisionTreeClassifier struct {
	State *model.StateManager

	// Hyperparameters
	Criterion           string // "gini" or "entropy"
	MaxDepth            int    // 0 means unlimited
	MinSamplesSplit     int
	MinSamplesLeaf      int
	MaxFeatures         string // "", "all", "sqrt" or "log2"
	MinImpurityDecrease float64
	RandomState         int64

	// Fitted state
	Nodes       []Node
	Classes     []int
	Importances []float64
}

// Option is a functional option for DecisionTreeClassifier
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the split quality measure ("gini" or "entropy").
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.Criterion = criterion }
}

// WithMaxDepth limits the depth of the tree. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.MaxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.MinSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are drawn at each split.
func WithMaxFeatures(maxFeatures string) Option {
	return func(dt *DecisionTreeClassifier) { dt.MaxFeatures = maxFeatures }
}

// WithMinImpurityDecrease sets the weighted impurity decrease a split must reach.
func WithMinImpurityDecrease(v float64) Option {
	return func(dt *DecisionTreeClassifier) { dt.MinImpurityDecrease = v }
}

// WithRandomState seeds the feature sampling.
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeClassifier) { dt.RandomState = seed }
}

// NewDecisionTreeClassifier creates a DecisionTreeClassifier with scikit-learn defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		State:           model.NewStateManager(),
		Criterion:       "gini",
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     "all",
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validate() error {
	switch dt.Criterion {
	case "gini", "entropy":
	default:
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.Criterion)
	}
	switch dt.MaxFeatures {
	case "", "all", "sqrt", "log2":
	default:
		return errors.NewValidationError("max_features", "must be all, sqrt or log2", dt.MaxFeatures)
	}
	if dt.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0", dt.MaxDepth)
	}
	if dt.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.MinSamplesSplit)
	}
	if dt.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.MinSamplesLeaf)
	}
	return nil
}

// Fit grows the tree on every row of X.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	rows, _ := X.Dims()
	indices := make([]int, rows)
	for i := range indices {
		indices[i] = i
	}
	return dt.FitIndices(X, y, indices)
}

// FitIndices grows the tree on the rows of X listed in indices. Repeated
// indices weight a row accordingly, which is how bootstrap samples are fed in.
// Classes are taken from all of y so that every tree of an ensemble shares them.
func (dt *DecisionTreeClassifier) FitIndices(X, y mat.Matrix, indices []int) error {
	if err := dt.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 || len(indices) == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", 1, yCols, 1)
	}

	b := &builder{
		dt:        dt,
		X:         X,
		nFeatures: nFeatures,
		rng:       rand.New(rand.NewSource(dt.RandomState)),
	}
	b.encodeLabels(y)
	b.maxFeatures = resolveMaxFeatures(dt.MaxFeatures, nFeatures)
	b.importances = make([]float64, nFeatures)

	dt.Nodes = dt.Nodes[:0]
	dt.Classes = b.classes
	b.grow(append([]int(nil), indices...), 0)

	var total float64
	for _, v := range b.importances {
		total += v
	}
	if total > 0 {
		for j := range b.importances {
			b.importances[j] /= total
		}
	}
	dt.Importances = b.importances

	dt.State.SetDimensions(nFeatures, len(indices))
	dt.State.SetFitted()
	return nil
}

// PredictProba returns an n × len(Classes) matrix of class probabilities.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.check(X, "PredictProba"); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	probas := mat.NewDense(rows, len(dt.Classes), nil)
	for i := 0; i < rows; i++ {
		probas.SetRow(i, dt.leafFor(X, i).Value)
	}
	return probas, nil
}

// Predict returns an n × 1 matrix with the most probable class of each row.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.check(X, "Predict"); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		predictions.Set(i, 0, float64(dt.Classes[argmax(dt.leafFor(X, i).Value)]))
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given data, 0 when the tree cannot predict.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := predictions.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

// FeatureImportances returns the normalized mean decrease in impurity per feature.
func (dt *DecisionTreeClassifier) FeatureImportances() ([]float64, error) {
	if err := dt.State.RequireFitted("DecisionTreeClassifier", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), dt.Importances...), nil
}

// GetDepth returns the depth of the fitted tree; a single leaf has depth 0.
func (dt *DecisionTreeClassifier) GetDepth() int {
	if len(dt.Nodes) == 0 {
		return 0
	}
	var depth func(i int) int
	depth = func(i int) int {
		n := &dt.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		l, r := depth(n.Left), depth(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return depth(0)
}

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	count := 0
	for i := range dt.Nodes {
		if dt.Nodes[i].IsLeaf() {
			count++
		}
	}
	return count
}

// GetParams returns the model hyperparameters
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":             dt.Criterion,
		"max_depth":             dt.MaxDepth,
		"min_samples_split":     dt.MinSamplesSplit,
		"min_samples_leaf":      dt.MinSamplesLeaf,
		"max_features":          dt.MaxFeatures,
		"min_impurity_decrease": dt.MinImpurityDecrease,
		"random_state":          dt.RandomState,
	}
}

// SetParams sets the model hyperparameters
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "criterion":
			dt.Criterion, ok = value.(string)
		case "max_depth":
			dt.MaxDepth, ok = value.(int)
		case "min_samples_split":
			dt.MinSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			dt.MinSamplesLeaf, ok = value.(int)
		case "max_features":
			dt.MaxFeatures, ok = value.(string)
		case "min_impurity_decrease":
			dt.MinImpurityDecrease, ok = value.(float64)
		case "random_state":
			dt.RandomState, ok = value.(int64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "wrong type", value)
		}
	}
	return nil
}

func (dt *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d, max_features=%s)",
		dt.Criterion, dt.MaxDepth, dt.MaxFeatures)
}

func (dt *DecisionTreeClassifier) check(X mat.Matrix, method string) error {
	if err := dt.State.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return err
	}
	_, nFeatures := X.Dims()
	return dt.State.RequireFeatures("DecisionTreeClassifier."+method, nFeatures)
}

func (dt *DecisionTreeClassifier) leafFor(X mat.Matrix, row int) *Node {
	n := &dt.Nodes[0]
	for !n.IsLeaf() {
		if X.At(row, n.Feature) <= n.Threshold {
			n = &dt.Nodes[n.Left]
		} else {
			n = &dt.Nodes[n.Right]
		}
	}
	return n
}

// builder holds the scratch state of one Fit call.
type builder struct {
	dt          *DecisionTreeClassifier
	X           mat.Matrix
	labels      []int // class index per row of X
	classes     []int
	nFeatures   int
	maxFeatures int
	rng         *rand.Rand
	importances []float64
	total       int
}

func (b *builder) encodeLabels(y mat.Matrix) {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = struct{}{}
	}
	b.classes = make([]int, 0, len(seen))
	for c := range seen {
		b.classes = append(b.classes, c)
	}
	sort.Ints(b.classes)

	pos := make(map[int]int, len(b.classes))
	for i, c := range b.classes {
		pos[c] = i
	}
	b.labels = make([]int, rows)
	for i := 0; i < rows; i++ {
		b.labels[i] = pos[int(y.At(i, 0))]
	}
}

func (b *builder) impurity(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	var result float64
	if b.dt.Criterion == "entropy" {
		for _, c := range counts {
			if c > 0 {
				p := float64(c) / float64(n)
				result -= p * math.Log2(p)
			}
		}
		return result
	}
	result = 1
	for _, c := range counts {
		p := float64(c) / float64(n)
		result -= p * p
	}
	return result
}

type split struct {
	feature   int
	threshold float64
	impurity  float64 // weighted child impurity
	leftN     int
	leftImp   float64
	rightImp  float64
}

// grow appends the subtree over idx to dt.Nodes and returns its root index.
func (b *builder) grow(idx []int, depth int) int {
	if depth == 0 {
		b.total = len(idx)
	}
	counts := make([]int, len(b.classes))
	for _, i := range idx {
		counts[b.labels[i]]++
	}
	n := len(idx)
	value := make([]float64, len(counts))
	for k, c := range counts {
		value[k] = float64(c) / float64(n)
	}
	imp := b.impurity(counts, n)

	self := len(b.dt.Nodes)
	b.dt.Nodes = append(b.dt.Nodes, Node{
		Feature:  leaf,
		Left:     leaf,
		Right:    leaf,
		Impurity: imp,
		NSamples: n,
		Value:    value,
	})

	if imp <= 1e-12 || n < b.dt.MinSamplesSplit || n < 2*b.dt.MinSamplesLeaf ||
		(b.dt.MaxDepth > 0 && depth >= b.dt.MaxDepth) {
		return self
	}

	best, ok := b.bestSplit(idx, counts, imp)
	if !ok {
		return self
	}
	decrease := float64(n) / float64(b.total) * (imp - best.impurity)
	if decrease < b.dt.MinImpurityDecrease {
		return self
	}

	left := make([]int, 0, best.leftN)
	right := make([]int, 0, n-best.leftN)
	for _, i := range idx {
		if b.X.At(i, best.feature) <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.importances[best.feature] += float64(n)*imp -
		float64(len(left))*best.leftImp - float64(len(right))*best.rightImp

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	node := &b.dt.Nodes[self]
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = l
	node.Right = r
	return self
}

// bestSplit scans the candidate features for the threshold with the lowest
// weighted child impurity.
func (b *builder) bestSplit(idx []int, counts []int, parentImp float64) (split, bool) {
	features := b.rng.Perm(b.nFeatures)[:b.maxFeatures]
	n := len(idx)
	minLeaf := b.dt.MinSamplesLeaf

	best := split{impurity: math.Inf(1)}
	found := false

	type sample struct {
		v     float64
		label int
	}
	samples := make([]sample, n)
	leftCounts := make([]int, len(counts))
	rightCounts := make([]int, len(counts))

	for _, f := range features {
		for k, i := range idx {
			samples[k] = sample{v: b.X.At(i, f), label: b.labels[i]}
		}
		sort.Slice(samples, func(a, c int) bool { return samples[a].v < samples[c].v })
		if samples[0].v == samples[n-1].v {
			continue
		}

		for k := range leftCounts {
			leftCounts[k] = 0
		}
		copy(rightCounts, counts)

		for k := 0; k < n-1; k++ {
			leftCounts[samples[k].label]++
			rightCounts[samples[k].label]--
			nl := k + 1
			if samples[k].v == samples[k+1].v || nl < minLeaf || n-nl < minLeaf {
				continue
			}
			li := b.impurity(leftCounts, nl)
			ri := b.impurity(rightCounts, n-nl)
			w := (float64(nl)*li + float64(n-nl)*ri) / float64(n)
			if w < best.impurity {
				threshold := samples[k].v + (samples[k+1].v-samples[k].v)/2
				if threshold >= samples[k+1].v {
					threshold = samples[k].v
				}
				best = split{
					feature:   f,
					threshold: threshold,
					impurity:  w,
					leftN:     nl,
					leftImp:   li,
					rightImp:  ri,
				}
				found = true
			}
		}
	}
	return best, found && best.impurity <= parentImp
}

func resolveMaxFeatures(maxFeatures string, nFeatures int) int {
	k := nFeatures
	switch maxFeatures {
	case "sqrt":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	}
	if k < 1 {
		k = 1
	}
	return k
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
