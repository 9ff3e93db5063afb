package plotting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/plotter"

	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

func requireNonEmpty(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestHistogramWithKDE(t *testing.T) {
	values := []float64{1, 2, 2, 3, 3, 3, 4, 4, 5}
	p, err := Histogram(values, 5, true, "dist", "x")
	require.NoError(t, err)
	AddKDE(p, values)

	path := filepath.Join(t.TempDir(), "nested", "hist.png")
	require.NoError(t, Save(p, Wide, path))
	requireNonEmpty(t, path)

	_, err = Histogram(nil, 5, false, "empty", "x")
	assert.ErrorIs(t, err, errors.ErrEmptyData)
}

func TestBarChart(t *testing.T) {
	p, err := BarChart([]string{"Married", "Single"}, []float64{0.6, 0.4}, "marital", "share")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "bar.png")
	require.NoError(t, Save(p, Wide, path))
	requireNonEmpty(t, path)

	_, err = BarChart([]string{"a"}, []float64{1, 2}, "bad", "")
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func TestLinesAndDiagonal(t *testing.T) {
	p, err := Lines("roc", "fpr", "tpr",
		Series{Name: "a", Points: plotter.XYs{{X: 0, Y: 0}, {X: 0.2, Y: 0.8}, {X: 1, Y: 1}}},
		Series{Name: "b", Points: plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}}},
	)
	require.NoError(t, err)
	require.NoError(t, Diagonal(p))
	path := filepath.Join(t.TempDir(), "roc.png")
	require.NoError(t, Save(p, Square, path))
	requireNonEmpty(t, path)
}

func TestHeatmap(t *testing.T) {
	corr := mat.NewSymDense(3, []float64{
		1, 0.5, -0.2,
		0.5, 1, 0.1,
		-0.2, 0.1, 1,
	})
	p, err := Heatmap(corr, []string{"a", "b", "c"}, "corr")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "heatmap.png")
	require.NoError(t, Save(p, Square, path))
	requireNonEmpty(t, path)

	_, err = Heatmap(corr, []string{"a"}, "bad")
	assert.Error(t, err)
}

func TestTextPanel(t *testing.T) {
	p, err := TextPanel("report", []string{"precision recall", "0.90      0.80"})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "text.png")
	require.NoError(t, Save(p, Wide, path))
	requireNonEmpty(t, path)
}
