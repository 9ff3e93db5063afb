package churn

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnscope/core/model"
	"github.com/YuminosukeSato/churnscope/preprocessing"
	"github.com/YuminosukeSato/churnscope/sklearn/ensemble"
	"github.com/YuminosukeSato/churnscope/sklearn/linear_model"
)

// ScaledLogistic is a logistic regression fitted on standardized features.
// The scaler travels with the model so a loaded file predicts on raw features.
type ScaledLogistic struct {
	Scaler *preprocessing.StandardScaler
	Model  *linear_model.LogisticRegression
}

// NewScaledLogistic wraps a fresh scaler around lr.
func NewScaledLogistic(lr *linear_model.LogisticRegression) *ScaledLogistic {
	return &ScaledLogistic{Scaler: preprocessing.NewStandardScalerDefault(), Model: lr}
}

// Fit standardizes X and fits the logistic regression.
func (s *ScaledLogistic) Fit(X, y mat.Matrix) error {
	Xs, err := s.Scaler.FitTransform(X)
	if err != nil {
		return err
	}
	return s.Model.Fit(Xs, y)
}

// Predict implements model.Predictor.
func (s *ScaledLogistic) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xs, err := s.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return s.Model.Predict(Xs)
}

// PredictProba implements model.ProbaPredictor.
func (s *ScaledLogistic) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	Xs, err := s.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return s.Model.PredictProba(Xs)
}

var (
	_ model.Classifier = (*ScaledLogistic)(nil)
	_ model.Classifier = (*ensemble.RandomForestClassifier)(nil)
	_ model.FeatureImportancer = (*ensemble.RandomForestClassifier)(nil)
)

// LoadLogistic reads a model written by TrainModels.
func LoadLogistic(path string) (*ScaledLogistic, error) {
	m := &ScaledLogistic{}
	if err := model.LoadModel(m, path); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadForest reads a random forest written by TrainModels.
func LoadForest(path string) (*ensemble.RandomForestClassifier, error) {
	m := &ensemble.RandomForestClassifier{}
	if err := model.LoadModel(m, path); err != nil {
		return nil, err
	}
	return m, nil
}
