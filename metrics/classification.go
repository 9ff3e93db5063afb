// Package metrics implements the classification metrics used to evaluate the churn models.
package metrics

import (
	"math"

	"github.com/YuminosukeSato/churnscope/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// AUC computes the area under the ROC curve for binary labels in {0,1}.
// Tied scores count as half a correctly ranked pair. When yTrue holds a single
// class the AUC is undefined and 0.5 is returned.
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	if err := checkPair("AUC", yTrue, yScore); err != nil {
		return 0, err
	}
	if err := checkBinary("AUC", yTrue); err != nil {
		return 0, err
	}

	n := yTrue.Len()
	scores := make([]float64, n)
	idx := make([]int, n)
	for i := 0; i < n; i++ {
		scores[i] = yScore.AtVec(i)
	}
	floats.Argsort(scores, idx)

	// Mann-Whitney U with average ranks for ties.
	var nPos, nNeg, rankSumPos float64
	for i := 0; i < n; {
		j := i
		for j < n && scores[j] == scores[i] {
			j++
		}
		avgRank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				rankSumPos += avgRank
			}
		}
		i = j
	}
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	u := rankSumPos - nPos*(nPos+1)/2
	return u / (nPos * nNeg), nil
}

// AUCMatrix is AUC over the first column of two matrices.
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	t, err := firstColumn("AUCMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	s, err := firstColumn("AUCMatrix", yScore)
	if err != nil {
		return 0, err
	}
	return AUC(t, s)
}

// ROCCurve returns false positive rates, true positive rates and the thresholds
// at which they were computed, ordered by decreasing threshold. The first point
// is (0, 0) at threshold +Inf and the last point is (1, 1).
func ROCCurve(yTrue, yScore *mat.VecDense) (fpr, tpr, thresholds []float64, err error) {
	if err := checkPair("ROCCurve", yTrue, yScore); err != nil {
		return nil, nil, nil, err
	}
	if err := checkBinary("ROCCurve", yTrue); err != nil {
		return nil, nil, nil, err
	}

	n := yTrue.Len()
	scores := make([]float64, n)
	idx := make([]int, n)
	for i := 0; i < n; i++ {
		scores[i] = yScore.AtVec(i)
	}
	floats.Argsort(scores, idx)

	var totalPos, totalNeg float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			totalPos++
		} else {
			totalNeg++
		}
	}

	fpr = []float64{0}
	tpr = []float64{0}
	thresholds = []float64{math.Inf(1)}

	var tp, fp float64
	// walk from the highest score down, emitting one point per distinct score
	for i := n - 1; i >= 0; {
		j := i
		for j >= 0 && scores[j] == scores[i] {
			if yTrue.AtVec(idx[j]) == 1 {
				tp++
			} else {
				fp++
			}
			j--
		}
		fpr = append(fpr, errors.SafeDivide(fp, totalNeg))
		tpr = append(tpr, errors.SafeDivide(tp, totalPos))
		thresholds = append(thresholds, scores[i])
		i = j
	}
	return fpr, tpr, thresholds, nil
}

// BinaryLogLoss computes the mean cross-entropy of probabilities yProb for labels in {0,1}.
func BinaryLogLoss(yTrue, yProb *mat.VecDense) (float64, error) {
	if err := checkPair("BinaryLogLoss", yTrue, yProb); err != nil {
		return 0, err
	}
	if err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	n := yTrue.Len()
	var sum float64
	for i := 0; i < n; i++ {
		p := yProb.AtVec(i)
		if yTrue.AtVec(i) == 1 {
			sum -= errors.StabilizeLog(p)
		} else {
			sum -= errors.StabilizeLog(1 - p)
		}
	}
	return sum / float64(n), nil
}

// Accuracy is the fraction of exact label matches.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkPair("Accuracy", yTrue, yPred); err != nil {
		return 0, err
	}
	n := yTrue.Len()
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError is 1 - Accuracy.
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

func checkPair(op string, a, b *mat.VecDense) error {
	if a == nil || b == nil {
		return errors.NewValueError(op, "nil vector")
	}
	if a.Len() == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if a.Len() != b.Len() {
		return errors.NewDimensionError(op, a.Len(), b.Len(), 0)
	}
	return nil
}

func checkBinary(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be binary (0 or 1)")
		}
	}
	return nil
}

func firstColumn(op string, m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError(op, "nil matrix")
	}
	if d, ok := m.(*mat.Dense); ok && d.IsEmpty() {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}
