// Package model_selection splits data into train and test sets, generates
// cross-validation folds and runs exhaustive grid searches.
package model_selection

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

// SplitOption configures TrainTestSplit.
type SplitOption func(*splitConfig)

type splitConfig struct {
	testSize    float64
	randomState int64
	shuffle     bool
}

// WithTestSize sets the fraction of rows placed in the test set. Default 0.25.
func WithTestSize(size float64) SplitOption {
	return func(c *splitConfig) { c.testSize = size }
}

// WithRandomState seeds the row permutation.
func WithRandomState(seed int64) SplitOption {
	return func(c *splitConfig) { c.randomState = seed }
}

// WithShuffle toggles shuffling. Without it the last rows form the test set.
func WithShuffle(shuffle bool) SplitOption {
	return func(c *splitConfig) { c.shuffle = shuffle }
}

// TrainTestIndices returns the row indices of both partitions. The test set has
// ceil(testSize*n) rows, matching scikit-learn's rounding.
func TrainTestIndices(n int, opts ...SplitOption) (train, test []int, err error) {
	cfg := splitConfig{testSize: 0.25, shuffle: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.testSize <= 0 || cfg.testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", cfg.testSize)
	}
	nTest := int(math.Ceil(cfg.testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("with n_samples=%d and test_size=%g the train or test set would be empty", n, cfg.testSize))
	}

	var order []int
	if cfg.shuffle {
		order = rand.New(rand.NewSource(cfg.randomState)).Perm(n)
	} else {
		order = identity(n)
		// keep the natural order but put the tail in the test set
		order = append(order[nTrain:], order[:nTrain]...)
	}
	return order[nTest:], order[:nTest], nil
}

// TrainTestSplit partitions the rows of X and y.
//
//	XTrain, XTest, yTrain, yTest, err := model_selection.TrainTestSplit(X, y,
//	    model_selection.WithTestSize(0.3), model_selection.WithRandomState(42))
func TrainTestSplit(X mat.Matrix, y mat.Vector, opts ...SplitOption) (XTrain, XTest *mat.Dense, yTrain, yTest *mat.VecDense, err error) {
	n, _ := X.Dims()
	if y.Len() != n {
		return nil, nil, nil, nil, errors.NewDimensionError("TrainTestSplit", n, y.Len(), 0)
	}
	trainIdx, testIdx, err := TrainTestIndices(n, opts...)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	XTrain, yTrain = TakeRows(X, y, trainIdx)
	XTest, yTest = TakeRows(X, y, testIdx)
	return XTrain, XTest, yTrain, yTest, nil
}

// TakeRows copies the given rows of X and y, in order.
func TakeRows(X mat.Matrix, y mat.Vector, rows []int) (*mat.Dense, *mat.VecDense) {
	_, c := X.Dims()
	outX := mat.NewDense(len(rows), c, nil)
	outY := mat.NewVecDense(len(rows), nil)
	for i, r := range rows {
		for j := 0; j < c; j++ {
			outX.Set(i, j, X.At(r, j))
		}
		outY.SetVec(i, y.AtVec(r))
	}
	return outX, outY
}
