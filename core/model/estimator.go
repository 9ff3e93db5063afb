// Package model defines the estimator interfaces shared by the classifiers
// and the helpers that persist fitted models to disk.
package model

import "gonum.org/v1/gonum/mat"

// Fitter is a model that can be trained.
type Fitter interface {
	// Fit trains the model on X (n_samples × n_features) and y (n_samples × 1).
	Fit(X, y mat.Matrix) error
}

// Predictor is a model that can predict labels.
type Predictor interface {
	// Predict returns an n_samples × 1 matrix of predicted labels.
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ProbaPredictor predicts class probabilities, one column per class.
type ProbaPredictor interface {
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// Classifier is a fitted binary or multiclass classifier.
type Classifier interface {
	Fitter
	Predictor
	ProbaPredictor
}

// FeatureImportancer exposes per-feature importances of a fitted model.
type FeatureImportancer interface {
	FeatureImportances() ([]float64, error)
}

// ParamSetter is implemented by estimators whose hyperparameters can be set by name,
// which is what grid search relies on.
type ParamSetter interface {
	GetParams() map[string]interface{}
	SetParams(params map[string]interface{}) error
}
