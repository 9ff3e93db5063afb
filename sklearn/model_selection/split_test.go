package model_selection

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

func TestTrainTestIndicesRoundsTestSizeUp(t *testing.T) {
	tests := []struct {
		n, wantTest int
	}{
		{10000, 3000},
		{10001, 3001},
		{10, 3},
		{7, 3},
	}
	for _, tt := range tests {
		train, test, err := TrainTestIndices(tt.n, WithTestSize(0.3), WithRandomState(42))
		require.NoError(t, err)
		assert.Len(t, test, tt.wantTest, "n=%d", tt.n)
		assert.Len(t, train, tt.n-tt.wantTest, "n=%d", tt.n)
	}
}

func TestTrainTestIndicesPartition(t *testing.T) {
	train, test, err := TrainTestIndices(50, WithTestSize(0.3), WithRandomState(1))
	require.NoError(t, err)

	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	for i, v := range all {
		assert.Equal(t, i, v)
	}

	again, _, err := TrainTestIndices(50, WithTestSize(0.3), WithRandomState(1))
	require.NoError(t, err)
	assert.Equal(t, train, again)

	other, _, err := TrainTestIndices(50, WithTestSize(0.3), WithRandomState(2))
	require.NoError(t, err)
	assert.NotEqual(t, train, other)
}

func TestTrainTestIndicesNoShuffle(t *testing.T) {
	train, test, err := TrainTestIndices(5, WithTestSize(0.4), WithShuffle(false))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, train)
	assert.Equal(t, []int{3, 4}, test)
}

func TestTrainTestIndicesErrors(t *testing.T) {
	_, _, err := TrainTestIndices(10, WithTestSize(1.5))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, _, err = TrainTestIndices(1, WithTestSize(0.3))
	var valueErr *errors.ValueError
	assert.True(t, errors.As(err, &valueErr))

	_, _, err = TrainTestIndices(0, WithTestSize(0.3))
	assert.Error(t, err)
}

func TestTrainTestSplit(t *testing.T) {
	X := mat.NewDense(10, 2, nil)
	y := mat.NewVecDense(10, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(10*i))
		y.SetVec(i, float64(i))
	}

	XTrain, XTest, yTrain, yTest, err := TrainTestSplit(X, y, WithTestSize(0.3), WithRandomState(42))
	require.NoError(t, err)

	r, c := XTest.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	r, _ = XTrain.Dims()
	assert.Equal(t, 7, r)
	assert.Equal(t, 7, yTrain.Len())
	assert.Equal(t, 3, yTest.Len())

	// rows stay aligned with their labels
	for i := 0; i < yTest.Len(); i++ {
		assert.Equal(t, yTest.AtVec(i), XTest.At(i, 0))
		assert.Equal(t, 10*yTest.AtVec(i), XTest.At(i, 1))
	}

	_, _, _, _, err = TrainTestSplit(X, mat.NewVecDense(3, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func TestKFold(t *testing.T) {
	folds, err := NewKFold(3, false, 0).Split(10, nil)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].Test)
	assert.Equal(t, []int{4, 5, 6}, folds[1].Test)
	assert.Equal(t, []int{7, 8, 9}, folds[2].Test)
	for _, f := range folds {
		assert.Equal(t, 10, len(f.Train)+len(f.Test))
	}

	_, err = NewKFold(1, false, 0).Split(10, nil)
	assert.Error(t, err)
	_, err = NewKFold(11, false, 0).Split(10, nil)
	assert.Error(t, err)
}

func TestStratifiedKFold(t *testing.T) {
	y := []float64{0, 0, 0, 0, 0, 0, 1, 1, 1}
	folds, err := NewStratifiedKFold(3, true, 42).Split(len(y), y)
	require.NoError(t, err)

	seen := map[int]bool{}
	for _, f := range folds {
		positives := 0
		for _, i := range f.Test {
			assert.False(t, seen[i], "row %d in two test folds", i)
			seen[i] = true
			if y[i] == 1 {
				positives++
			}
		}
		assert.Equal(t, 1, positives)
		assert.Len(t, f.Test, 3)
	}
	assert.Len(t, seen, len(y))

	_, err = NewStratifiedKFold(3, false, 0).Split(9, y[:4])
	assert.Error(t, err)
}
