// Package linear_model provides the binary logistic-regression classifier used
// as the baseline churn model.
package linear_model

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/churnscope/core/model"
	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

// LogisticRegression is a binary logistic regression fitted with L-BFGS.
// The objective matches scikit-learn's lbfgs solver:
// 0.5*||w||^2 + C * sum(log-loss) for the "l2" penalty.
type LogisticRegression struct {
	State *model.StateManager

	// Hyperparameters
	Penalty      string  // "l2" or "none"
	C            float64 // inverse regularization strength
	FitIntercept bool
	MaxIter      int
	Tol          float64 // gradient-norm threshold

	// Fitted parameters
	Coef      []float64
	Intercept float64
	Classes   []int // sorted; Classes[1] is the positive class
	NIter     int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a LogisticRegression with scikit-learn defaults.
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		State:        model.NewStateManager(),
		Penalty:      "l2",
		C:            1.0,
		FitIntercept: true,
		MaxIter:      100,
		Tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.Penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.FitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of L-BFGS iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.MaxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.Tol = tol
	}
}

func (lr *LogisticRegression) validate() error {
	switch lr.Penalty {
	case "l2", "none":
	default:
		return errors.NewValidationError("penalty", "must be l2 or none", lr.Penalty)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.MaxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", lr.MaxIter)
	}
	return nil
}

// Fit trains the model on X and the n×1 label matrix y. y must hold exactly two classes.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}

	lr.Classes = uniqueClasses(y)
	if len(lr.Classes) != 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("binary classification needs exactly 2 classes, got %d", len(lr.Classes)))
	}

	target := make([]float64, nSamples)
	for i := range target {
		if int(y.At(i, 0)) == lr.Classes[1] {
			target[i] = 1
		}
	}

	obj := newLogLoss(X, target, lr.C, lr.Penalty == "l2", lr.FitIntercept)
	problem := optimize.Problem{Func: obj.value, Grad: obj.gradient}
	settings := &optimize.Settings{
		MajorIterations:   lr.MaxIter,
		GradientThreshold: lr.Tol,
	}

	x0 := make([]float64, nFeatures+1)
	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if result == nil {
		return errors.NewModelError("LogisticRegression.Fit", "optimization failed", err)
	}
	if err := errors.CheckValues("LogisticRegression.Fit", result.X, result.Stats.MajorIterations); err != nil {
		return err
	}
	if err != nil || result.Status == optimize.IterationLimit {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		errors.Warn(errors.NewConvergenceWarning("lbfgs", result.Stats.MajorIterations, msg))
	}

	lr.Coef = append([]float64(nil), result.X[:nFeatures]...)
	lr.Intercept = 0
	if lr.FitIntercept {
		lr.Intercept = result.X[nFeatures]
	}
	lr.NIter = result.Stats.MajorIterations

	lr.State.SetDimensions(nFeatures, nSamples)
	lr.State.SetFitted()
	return nil
}

// DecisionFunction returns the signed distance X·w + b of each sample.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (*mat.VecDense, error) {
	if err := lr.State.RequireFitted("LogisticRegression", "DecisionFunction"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := lr.State.RequireFeatures("LogisticRegression.DecisionFunction", nFeatures); err != nil {
		return nil, err
	}

	z := mat.NewVecDense(nSamples, nil)
	z.MulVec(X, mat.NewVecDense(nFeatures, lr.Coef))
	for i := 0; i < nSamples; i++ {
		z.SetVec(i, z.AtVec(i)+lr.Intercept)
	}
	return z, nil
}

// Predict returns an n×1 matrix of predicted class labels.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	z, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n := z.Len()
	predictions := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		label := lr.Classes[0]
		if z.AtVec(i) > 0 {
			label = lr.Classes[1]
		}
		predictions.Set(i, 0, float64(label))
	}
	return predictions, nil
}

// PredictProba returns an n×2 matrix of class probabilities ordered as Classes.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	z, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n := z.Len()
	probas := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		p := sigmoid(z.AtVec(i))
		probas.Set(i, 0, 1-p)
		probas.Set(i, 1, p)
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := predictions.Dims()
	correct := 0
	for i := 0; i < n; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.Penalty,
		"C":             lr.C,
		"fit_intercept": lr.FitIntercept,
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "penalty":
			lr.Penalty, ok = value.(string)
		case "C":
			lr.C, ok = value.(float64)
		case "fit_intercept":
			lr.FitIntercept, ok = value.(bool)
		case "max_iter":
			lr.MaxIter, ok = value.(int)
		case "tol":
			lr.Tol, ok = value.(float64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "wrong type", value)
		}
	}
	return nil
}

func (lr *LogisticRegression) String() string {
	return fmt.Sprintf("LogisticRegression(penalty=%s, C=%g, max_iter=%d)", lr.Penalty, lr.C, lr.MaxIter)
}

// logLoss is the penalized binary cross-entropy over parameters [w..., b].
type logLoss struct {
	X            mat.Matrix
	y            []float64
	c            float64
	l2           bool
	fitIntercept bool

	z *mat.VecDense
}

func newLogLoss(X mat.Matrix, y []float64, c float64, l2, fitIntercept bool) *logLoss {
	return &logLoss{X: X, y: y, c: c, l2: l2, fitIntercept: fitIntercept, z: mat.NewVecDense(len(y), nil)}
}

func (l *logLoss) margins(params []float64) {
	nFeatures := len(params) - 1
	l.z.MulVec(l.X, mat.NewVecDense(nFeatures, params[:nFeatures]))
	if l.fitIntercept {
		b := params[nFeatures]
		for i := range l.y {
			l.z.SetVec(i, l.z.AtVec(i)+b)
		}
	}
}

func (l *logLoss) value(params []float64) float64 {
	l.margins(params)
	var loss float64
	for i, yi := range l.y {
		z := l.z.AtVec(i)
		loss += softplus(z) - yi*z
	}
	loss *= l.c
	if l.l2 {
		w := params[:len(params)-1]
		loss += 0.5 * floats.Dot(w, w)
	}
	return loss
}

func (l *logLoss) gradient(grad, params []float64) {
	l.margins(params)
	nFeatures := len(params) - 1
	residual := mat.NewVecDense(len(l.y), nil)
	var sum float64
	for i, yi := range l.y {
		r := l.c * (sigmoid(l.z.AtVec(i)) - yi)
		residual.SetVec(i, r)
		sum += r
	}

	gw := mat.NewVecDense(nFeatures, grad[:nFeatures])
	gw.MulVec(l.X.T(), residual)
	if l.l2 {
		floats.Add(grad[:nFeatures], params[:nFeatures])
	}
	grad[nFeatures] = 0
	if l.fitIntercept {
		grad[nFeatures] = sum
	}
}

func uniqueClasses(y mat.Matrix) []int {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

// softplus computes log(1+exp(z)) without overflow.
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}
