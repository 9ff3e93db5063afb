package metrics

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func vec(values ...float64) *mat.VecDense {
	if len(values) == 0 {
		return nil
	}
	return mat.NewVecDense(len(values), values)
}

func TestAUC(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yScore  []float64
		want    float64
		wantErr bool
	}{
		{name: "perfect classifier", yTrue: []float64{0, 0, 0, 1, 1, 1}, yScore: []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9}, want: 1.0},
		{name: "inverted classifier", yTrue: []float64{0, 0, 0, 1, 1, 1}, yScore: []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1}, want: 0.0},
		{name: "all ties", yTrue: []float64{0, 1, 0, 1}, yScore: []float64{0.5, 0.5, 0.5, 0.5}, want: 0.5},
		{name: "typical case", yTrue: []float64{0, 0, 1, 1}, yScore: []float64{0.1, 0.4, 0.35, 0.8}, want: 0.75},
		{name: "single class", yTrue: []float64{1, 1, 1}, yScore: []float64{0.1, 0.4, 0.8}, want: 0.5},
		{name: "non-binary labels", yTrue: []float64{0, 0.5, 1}, yScore: []float64{0.1, 0.5, 0.9}, wantErr: true},
		{name: "dimension mismatch", yTrue: []float64{0, 1}, yScore: []float64{0.5}, wantErr: true},
		{name: "empty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AUC(vec(tt.yTrue...), vec(tt.yScore...))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAUCMatrixUsesFirstColumn(t *testing.T) {
	yTrue := mat.NewDense(4, 2, []float64{0, 9, 0, 9, 1, 9, 1, 9})
	yScore := mat.NewDense(4, 2, []float64{0.1, 9, 0.4, 9, 0.35, 9, 0.8, 9})

	got, err := AUCMatrix(yTrue, yScore)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got, 1e-9)

	_, err = AUCMatrix(nil, yScore)
	assert.Error(t, err)
}

func TestROCCurve(t *testing.T) {
	fpr, tpr, thresholds, err := ROCCurve(vec(0, 0, 1, 1), vec(0.1, 0.4, 0.35, 0.8))
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0, 0.5, 0.5, 1}, fpr)
	assert.Equal(t, []float64{0, 0.5, 0.5, 1, 1}, tpr)
	assert.True(t, math.IsInf(thresholds[0], 1))
	assert.Equal(t, []float64{0.8, 0.4, 0.35, 0.1}, thresholds[1:])
}

func TestROCCurveAreaMatchesAUC(t *testing.T) {
	yTrue := vec(0, 1, 0, 1, 1, 0, 0, 1, 0, 1)
	yScore := vec(0.2, 0.9, 0.4, 0.4, 0.7, 0.1, 0.6, 0.8, 0.3, 0.5)

	fpr, tpr, _, err := ROCCurve(yTrue, yScore)
	require.NoError(t, err)

	var area float64
	for i := 1; i < len(fpr); i++ {
		area += (fpr[i] - fpr[i-1]) * (tpr[i] + tpr[i-1]) / 2
	}
	auc, err := AUC(yTrue, yScore)
	require.NoError(t, err)
	assert.InDelta(t, auc, area, 1e-9)
}

func TestBinaryLogLoss(t *testing.T) {
	got, err := BinaryLogLoss(vec(0, 0, 1, 1), vec(0.1, 0.2, 0.8, 0.9))
	require.NoError(t, err)
	assert.InDelta(t, 0.164252, got, 1e-4)

	got, err = BinaryLogLoss(vec(0, 1), vec(0, 1))
	require.NoError(t, err)
	assert.InDelta(t, 0, got, 1e-9)

	_, err = BinaryLogLoss(vec(0, 0.5), vec(0.1, 0.5))
	assert.Error(t, err)
}

func TestAccuracyAndError(t *testing.T) {
	acc, err := Accuracy(vec(0, 1, 2, 1, 0), vec(0, 1, 1, 1, 0))
	require.NoError(t, err)
	assert.InDelta(t, 0.8, acc, 1e-9)

	ce, err := ClassificationError(vec(0, 0, 1, 1), vec(0, 1, 1, 0))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, ce, 1e-9)

	_, err = Accuracy(nil, nil)
	assert.Error(t, err)
}

func TestClassificationReport(t *testing.T) {
	yTrue := vec(0, 0, 0, 0, 1, 1)
	yPred := vec(0, 0, 0, 1, 1, 0)

	report, err := NewClassificationReport(yTrue, yPred)
	require.NoError(t, err)
	require.Len(t, report.Classes, 2)

	neg, ok := report.Class("0")
	require.True(t, ok)
	assert.InDelta(t, 0.75, neg.Precision, 1e-9)
	assert.InDelta(t, 0.75, neg.Recall, 1e-9)
	assert.Equal(t, 4, neg.Support)

	pos, ok := report.Class("1")
	require.True(t, ok)
	assert.InDelta(t, 0.5, pos.Precision, 1e-9)
	assert.InDelta(t, 0.5, pos.Recall, 1e-9)
	assert.InDelta(t, 0.5, pos.F1, 1e-9)

	assert.InDelta(t, 4.0/6.0, report.Accuracy, 1e-9)
	assert.InDelta(t, 0.625, report.MacroAvg.Precision, 1e-9)
	assert.InDelta(t, (0.75*4+0.5*2)/6, report.WeightedAvg.Recall, 1e-9)

	text := report.String()
	for _, want := range []string{"precision", "recall", "f1-score", "support", "accuracy", "macro avg", "weighted avg"} {
		assert.True(t, strings.Contains(text, want), "report missing %q", want)
	}
}

func TestClassificationReportUndefinedPrecision(t *testing.T) {
	report, err := NewClassificationReport(vec(0, 1, 1), vec(0, 0, 0))
	require.NoError(t, err)

	pos, ok := report.Class("1")
	require.True(t, ok)
	assert.Equal(t, 0.0, pos.Precision)
	assert.Equal(t, 0.0, pos.F1)
}
