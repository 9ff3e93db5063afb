package model_selection

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/churnscope/core/model"
	"github.com/YuminosukeSato/churnscope/pkg/errors"
	"github.com/YuminosukeSato/churnscope/pkg/log"
)

// Estimator is what GridSearchCV can tune.
type Estimator interface {
	model.Fitter
	model.Predictor
	model.ParamSetter
}

// ParamGrid maps a hyperparameter name to its candidate values.
type ParamGrid map[string][]interface{}

// Candidates expands the grid into every combination. Keys are sorted and the
// last key varies fastest, as scikit-learn's ParameterGrid does.
func (g ParamGrid) Candidates() []map[string]interface{} {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []map[string]interface{}{{}}
	for _, key := range keys {
		values := g[key]
		next := make([]map[string]interface{}, 0, len(out)*len(values))
		for _, partial := range out {
			for _, v := range values {
				candidate := make(map[string]interface{}, len(partial)+1)
				for k, pv := range partial {
					candidate[k] = pv
				}
				candidate[key] = v
				next = append(next, candidate)
			}
		}
		out = next
	}
	return out
}

// Scorer rates a fitted estimator on held-out data; higher is better.
type Scorer func(est Estimator, X mat.Matrix, y *mat.VecDense) (float64, error)

// AccuracyScorer is the default scorer.
func AccuracyScorer(est Estimator, X mat.Matrix, y *mat.VecDense) (float64, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := pred.Dims()
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// CVResults holds the per-candidate scores of a search.
type CVResults struct {
	Params        []map[string]interface{}
	SplitScores   [][]float64
	MeanTestScore []float64
	StdTestScore  []float64
	RankTestScore []int
}

// GridSearchCV evaluates every grid candidate with cross-validation and refits
// the best one on the full data.
type GridSearchCV struct {
	newEstimator func() Estimator
	grid         ParamGrid
	cv           Splitter
	scorer       Scorer
	nJobs        int
	logger       log.Logger

	BestParams    map[string]interface{}
	BestScore     float64
	BestIndex     int
	BestEstimator Estimator
	Results       CVResults
}

// GridSearchOption configures a GridSearchCV.
type GridSearchOption func(*GridSearchCV)

// WithCV sets the fold generator. Default: 5-fold stratified, unshuffled.
func WithCV(cv Splitter) GridSearchOption {
	return func(g *GridSearchCV) { g.cv = cv }
}

// WithScorer sets the scoring function. Default: accuracy.
func WithScorer(s Scorer) GridSearchOption {
	return func(g *GridSearchCV) { g.scorer = s }
}

// WithNJobs bounds the number of concurrent fits. <= 0 uses every CPU.
func WithNJobs(n int) GridSearchOption {
	return func(g *GridSearchCV) { g.nJobs = n }
}

// WithLogger logs one line per evaluated candidate.
func WithLogger(l log.Logger) GridSearchOption {
	return func(g *GridSearchCV) { g.logger = l }
}

// NewGridSearchCV creates a search over grid. newEstimator must return a fresh,
// unfitted estimator on every call.
func NewGridSearchCV(newEstimator func() Estimator, grid ParamGrid, opts ...GridSearchOption) *GridSearchCV {
	g := &GridSearchCV{
		newEstimator: newEstimator,
		grid:         grid,
		cv:           NewStratifiedKFold(5, false, 0),
		scorer:       AccuracyScorer,
		logger:       log.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fit runs the search. Fits of different (candidate, fold) pairs run
// concurrently; the first error cancels the rest.
func (g *GridSearchCV) Fit(ctx context.Context, X mat.Matrix, y *mat.VecDense) error {
	n, _ := X.Dims()
	if y.Len() != n {
		return errors.NewDimensionError("GridSearchCV.Fit", n, y.Len(), 0)
	}
	candidates := g.grid.Candidates()
	labels := make([]float64, n)
	for i := range labels {
		labels[i] = y.AtVec(i)
	}
	folds, err := g.cv.Split(n, labels)
	if err != nil {
		return err
	}

	scores := make([][]float64, len(candidates))
	for c := range scores {
		scores[c] = make([]float64, len(folds))
	}

	jobs := g.nJobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)
	for c := range candidates {
		for f := range folds {
			c, f := c, f
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				score, err := g.evaluate(candidates[c], X, y, folds[f])
				if err != nil {
					return errors.Wrapf(err, "candidate %v fold %d", candidates[c], f)
				}
				scores[c][f] = score
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	g.Results = CVResults{
		Params:        candidates,
		SplitScores:   scores,
		MeanTestScore: make([]float64, len(candidates)),
		StdTestScore:  make([]float64, len(candidates)),
	}
	g.BestIndex = 0
	for c := range candidates {
		mean, std := stat.PopMeanStdDev(scores[c], nil)
		g.Results.MeanTestScore[c] = mean
		g.Results.StdTestScore[c] = std
		if mean > g.Results.MeanTestScore[g.BestIndex] {
			g.BestIndex = c
		}
		g.logger.Debug("grid candidate evaluated",
			log.HyperParamsKey, fmt.Sprint(candidates[c]),
			log.ScoreKey, mean,
		)
	}
	g.Results.RankTestScore = rank(g.Results.MeanTestScore)
	g.BestParams = candidates[g.BestIndex]
	g.BestScore = g.Results.MeanTestScore[g.BestIndex]

	best := g.newEstimator()
	if err := best.SetParams(g.BestParams); err != nil {
		return err
	}
	if err := best.Fit(X, columnOf(y)); err != nil {
		return errors.Wrap(err, "refit best estimator")
	}
	g.BestEstimator = best

	g.logger.Info("grid search finished",
		log.HyperParamsKey, fmt.Sprint(g.BestParams),
		log.ScoreKey, g.BestScore,
	)
	return nil
}

func (g *GridSearchCV) evaluate(params map[string]interface{}, X mat.Matrix, y *mat.VecDense, fold Fold) (float64, error) {
	est := g.newEstimator()
	if err := est.SetParams(params); err != nil {
		return 0, err
	}
	XTrain, yTrain := TakeRows(X, y, fold.Train)
	XTest, yTest := TakeRows(X, y, fold.Test)
	if err := est.Fit(XTrain, columnOf(yTrain)); err != nil {
		return 0, err
	}
	return g.scorer(est, XTest, yTest)
}

// rank gives 1 to the highest score; ties share the lowest rank.
func rank(scores []float64) []int {
	ranks := make([]int, len(scores))
	for i, s := range scores {
		r := 1
		for _, other := range scores {
			if other > s && !math.IsNaN(other) {
				r++
			}
		}
		ranks[i] = r
	}
	return ranks
}

func columnOf(v *mat.VecDense) mat.Matrix {
	return mat.NewDense(v.Len(), 1, append([]float64(nil), v.RawVector().Data[:v.Len()]...))
}
