package model_selection

import (
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

// Fold holds the row indices of one cross-validation split.
type Fold struct {
	Train []int
	Test  []int
}

// Splitter generates cross-validation folds for n samples with labels y.
type Splitter interface {
	Split(n int, y []float64) ([]Fold, error)
	NSplits() int
}

// KFold splits rows into k consecutive folds. The first n%k folds get one extra row.
type KFold struct {
	K           int
	Shuffle     bool
	RandomState int64
}

// NewKFold creates a KFold splitter.
func NewKFold(k int, shuffle bool, seed int64) *KFold {
	return &KFold{K: k, Shuffle: shuffle, RandomState: seed}
}

// NSplits returns K.
func (kf *KFold) NSplits() int { return kf.K }

// Split implements Splitter; y is ignored.
func (kf *KFold) Split(n int, _ []float64) ([]Fold, error) {
	if err := checkFolds(kf.K, n); err != nil {
		return nil, err
	}
	order := identity(n)
	if kf.Shuffle {
		order = rand.New(rand.NewSource(kf.RandomState)).Perm(n)
	}

	assignment := make([]int, n)
	start := 0
	for f := 0; f < kf.K; f++ {
		size := n / kf.K
		if f < n%kf.K {
			size++
		}
		for _, i := range order[start : start+size] {
			assignment[i] = f
		}
		start += size
	}
	return foldsFromAssignment(assignment, kf.K), nil
}

// StratifiedKFold keeps the class proportions of y roughly equal across folds,
// which is what scikit-learn's grid search uses for classifiers.
type StratifiedKFold struct {
	K           int
	Shuffle     bool
	RandomState int64
}

// NewStratifiedKFold creates a StratifiedKFold splitter.
func NewStratifiedKFold(k int, shuffle bool, seed int64) *StratifiedKFold {
	return &StratifiedKFold{K: k, Shuffle: shuffle, RandomState: seed}
}

// NSplits returns K.
func (s *StratifiedKFold) NSplits() int { return s.K }

// Split implements Splitter. Rows of each class are dealt to folds round-robin.
func (s *StratifiedKFold) Split(n int, y []float64) ([]Fold, error) {
	if err := checkFolds(s.K, n); err != nil {
		return nil, err
	}
	if len(y) != n {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", n, len(y), 0)
	}

	byClass := make(map[float64][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	labels := make([]float64, 0, len(byClass))
	for label := range byClass {
		labels = append(labels, label)
	}
	sort.Float64s(labels)

	rng := rand.New(rand.NewSource(s.RandomState))
	assignment := make([]int, n)
	next := 0
	for _, label := range labels {
		rows := byClass[label]
		if s.Shuffle {
			rng.Shuffle(len(rows), func(a, b int) { rows[a], rows[b] = rows[b], rows[a] })
		}
		for _, i := range rows {
			assignment[i] = next % s.K
			next++
		}
	}
	return foldsFromAssignment(assignment, s.K), nil
}

func checkFolds(k, n int) error {
	if k < 2 {
		return errors.NewValidationError("n_splits", "must be >= 2", k)
	}
	if k > n {
		return errors.NewValidationError("n_splits", "cannot exceed the number of samples", k)
	}
	return nil
}

func foldsFromAssignment(assignment []int, k int) []Fold {
	folds := make([]Fold, k)
	for i, f := range assignment {
		for g := range folds {
			if g == f {
				folds[g].Test = append(folds[g].Test, i)
			} else {
				folds[g].Train = append(folds[g].Train, i)
			}
		}
	}
	return folds
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
