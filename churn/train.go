package churn

import (
	"context"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnscope/config"
	"github.com/YuminosukeSato/churnscope/core/model"
	"github.com/YuminosukeSato/churnscope/metrics"
	"github.com/YuminosukeSato/churnscope/pkg/errors"
	"github.com/YuminosukeSato/churnscope/pkg/log"
	"github.com/YuminosukeSato/churnscope/report"
	"github.com/YuminosukeSato/churnscope/sklearn/ensemble"
	"github.com/YuminosukeSato/churnscope/sklearn/linear_model"
	"github.com/YuminosukeSato/churnscope/sklearn/model_selection"
)

// Model file names written by TrainModels.
const (
	LogisticModelFile = "logistic_model.gob"
	ForestModelFile   = "rfc_model.gob"
)

// Display names used in reports and logs.
const (
	LogisticName = "Logistic Regression"
	ForestName   = "Random Forest"
)

// ModelResult summarizes one fitted model.
type ModelResult struct {
	Name        string
	TrainReport *metrics.ClassificationReport
	TestReport  *metrics.ClassificationReport
	TrainAUC    float64
	TestAUC     float64
	ModelPath   string
	Duration    time.Duration
}

// TrainResult is everything a training run produced.
type TrainResult struct {
	Logistic           ModelResult
	Forest             ModelResult
	BestParams         map[string]interface{}
	CVScore            float64
	FeatureNames       []string
	FeatureImportances []float64
	Images             []string
}

// TrainModels fits the logistic baseline and the grid-searched random forest
// on split, saves both models into cfg.Paths.Models and writes the ROC,
// classification-report and feature-importance images into cfg.Paths.Results.
func TrainModels(ctx context.Context, split *Split, cfg *config.Config, logger log.Logger) (*TrainResult, error) {
	if split == nil || split.XTrain == nil || split.XTest == nil {
		return nil, errors.NewValueError("TrainModels", "split is required")
	}
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.With(log.ComponentKey, "churn")
	result := &TrainResult{FeatureNames: split.FeatureNames}
	yTrain := asColumn(split.YTrain)

	// Random forest via grid search.
	start := time.Now()
	search := model_selection.NewGridSearchCV(
		func() model_selection.Estimator {
			return ensemble.NewRandomForestClassifier(
				ensemble.WithRandomState(cfg.Forest.RandomState),
				ensemble.WithNJobs(1),
			)
		},
		model_selection.ParamGrid(cfg.Forest.ForestGrid()),
		model_selection.WithCV(model_selection.NewStratifiedKFold(cfg.Forest.CVFolds, true, cfg.Forest.RandomState)),
		model_selection.WithNJobs(cfg.NJobs),
		model_selection.WithLogger(logger.With(log.ModelNameKey, "RandomForestClassifier")),
	)
	if err := search.Fit(ctx, split.XTrain, split.YTrain); err != nil {
		return nil, errors.Wrap(err, "grid search random forest")
	}
	forest, ok := search.BestEstimator.(*ensemble.RandomForestClassifier)
	if !ok {
		return nil, errors.New("grid search returned an unexpected estimator")
	}
	result.BestParams = search.BestParams
	result.CVScore = search.BestScore
	rfDuration := time.Since(start)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Logistic regression baseline.
	start = time.Now()
	logistic := NewScaledLogistic(linear_model.NewLogisticRegression(
		linear_model.WithLRPenalty(cfg.Logistic.Penalty),
		linear_model.WithLRC(cfg.Logistic.C),
		linear_model.WithLRMaxIter(cfg.Logistic.MaxIter),
		linear_model.WithLRTol(cfg.Logistic.Tol),
	))
	if err := logistic.Fit(split.XTrain, yTrain); err != nil {
		return nil, errors.Wrap(err, "fit logistic regression")
	}
	lrDuration := time.Since(start)
	logger.Info("model fitted",
		log.ModelNameKey, "LogisticRegression",
		log.IterationKey, logistic.Model.NIter,
		log.DurationMsKey, lrDuration.Milliseconds(),
	)

	var err error
	result.Forest, err = evaluate(ForestName, forest, split)
	if err != nil {
		return nil, err
	}
	result.Forest.Duration = rfDuration
	result.Logistic, err = evaluate(LogisticName, logistic, split)
	if err != nil {
		return nil, err
	}
	result.Logistic.Duration = lrDuration

	result.FeatureImportances, err = forest.FeatureImportances()
	if err != nil {
		return nil, err
	}

	// Persist models.
	result.Forest.ModelPath = filepath.Join(cfg.Paths.Models, ForestModelFile)
	result.Logistic.ModelPath = filepath.Join(cfg.Paths.Models, LogisticModelFile)
	for _, m := range []struct {
		path  string
		model interface{}
	}{
		{result.Forest.ModelPath, forest},
		{result.Logistic.ModelPath, logistic},
	} {
		if err := model.SaveModel(m.model, m.path); err != nil {
			return nil, errors.Wrapf(err, "save model %s", m.path)
		}
		logger.Info("model saved", log.OperationKey, log.OperationSave, log.PathKey, m.path)
	}

	if err := writeImages(ctx, result, split, forest, logistic, cfg.Paths.Results); err != nil {
		return nil, err
	}
	for _, img := range result.Images {
		logger.Info("result image written", log.OperationKey, log.OperationRender, log.PathKey, img)
	}

	for _, m := range []ModelResult{result.Forest, result.Logistic} {
		logger.Info("model evaluated",
			log.ModelNameKey, m.Name,
			log.AccuracyKey, m.TestReport.Accuracy,
			log.AUCKey, m.TestAUC,
		)
	}
	return result, nil
}

func evaluate(name string, clf model.Classifier, split *Split) (ModelResult, error) {
	res := ModelResult{Name: name}
	for _, part := range []struct {
		X      *mat.Dense
		y      *mat.VecDense
		report **metrics.ClassificationReport
		auc    *float64
	}{
		{split.XTrain, split.YTrain, &res.TrainReport, &res.TrainAUC},
		{split.XTest, split.YTest, &res.TestReport, &res.TestAUC},
	} {
		pred, err := clf.Predict(part.X)
		if err != nil {
			return res, errors.Wrapf(err, "%s predict", name)
		}
		rep, err := metrics.NewClassificationReport(part.y, firstColumn(pred))
		if err != nil {
			return res, err
		}
		*part.report = rep

		proba, err := clf.PredictProba(part.X)
		if err != nil {
			return res, errors.Wrapf(err, "%s predict proba", name)
		}
		auc, err := metrics.AUC(part.y, positiveColumn(proba))
		if err != nil {
			return res, err
		}
		*part.auc = auc
	}
	return res, nil
}

func writeImages(ctx context.Context, result *TrainResult, split *Split,
	forest *ensemble.RandomForestClassifier, logistic *ScaledLogistic, dir string) error {
	var curves []report.Curve
	for _, m := range []struct {
		name string
		auc  float64
		clf  model.ProbaPredictor
	}{
		{ForestName, result.Forest.TestAUC, forest},
		{LogisticName, result.Logistic.TestAUC, logistic},
	} {
		proba, err := m.clf.PredictProba(split.XTest)
		if err != nil {
			return err
		}
		fpr, tpr, _, err := metrics.ROCCurve(split.YTest, positiveColumn(proba))
		if err != nil {
			return err
		}
		curves = append(curves, report.Curve{Name: m.name, FPR: fpr, TPR: tpr, AUC: m.auc})
	}

	images := []struct {
		file  string
		write func(path string) error
	}{
		{report.ROCCurveImage, func(path string) error { return report.ROC(path, curves...) }},
		{report.RandomForestImage, func(path string) error {
			return report.Classification(path, ForestName, result.Forest.TrainReport, result.Forest.TestReport)
		}},
		{report.LogisticImage, func(path string) error {
			return report.Classification(path, LogisticName, result.Logistic.TrainReport, result.Logistic.TestReport)
		}},
		{report.FeatureImportanceImage, func(path string) error {
			return report.FeatureImportance(path, result.FeatureNames, result.FeatureImportances)
		}},
	}
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, img.file)
		if err := img.write(path); err != nil {
			return errors.Wrapf(err, "write %s", img.file)
		}
		result.Images = append(result.Images, path)
	}
	return nil
}

func asColumn(v *mat.VecDense) *mat.Dense {
	out := mat.NewDense(v.Len(), 1, nil)
	out.SetCol(0, mat.Col(nil, 0, v))
	return out
}

func firstColumn(m mat.Matrix) *mat.VecDense {
	r, _ := m.Dims()
	return mat.NewVecDense(r, mat.Col(nil, 0, m))
}

// positiveColumn returns the probability of the last (positive) class.
func positiveColumn(proba mat.Matrix) *mat.VecDense {
	r, c := proba.Dims()
	return mat.NewVecDense(r, mat.Col(nil, c-1, proba))
}
