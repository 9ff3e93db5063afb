// Package churnscope predicts and verifies customer churn for a credit-card
// portfolio. It loads the bank dataset, renders exploratory charts, encodes
// categorical columns by churn rate, splits the data and trains a logistic
// regression baseline against a grid-searched random forest.
//
// # Quick Start
//
// Generate a dataset and run the verification harness:
//
//	churn synth --rows 10127
//	churn verify
//
// The harness walks five steps in order (import, EDA, encoder, feature
// engineering, training) and halts on the first failure. Every run writes
// logs/churn_library_<Mon_DD_YYYY_HH_MM_SS>.log.
//
// Using the pipeline as a library:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/churnscope/churn"
//	    "github.com/YuminosukeSato/churnscope/config"
//	)
//
//	func main() {
//	    cfg := config.Default()
//	    result, err := churn.Run(context.Background(), cfg, nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Printf("random forest test AUC: %.3f\n", result.Forest.TestAUC)
//	}
//
// # Packages
//
//   - datasets: CSV import, churn label derivation, synthetic bank data
//   - eda: summary statistics and the six EDA images
//   - preprocessing: churn-rate TargetEncoder, EncoderHelper, StandardScaler
//   - sklearn/linear_model: L-BFGS LogisticRegression
//   - sklearn/tree, sklearn/ensemble: DecisionTreeClassifier, RandomForestClassifier
//   - sklearn/model_selection: TrainTestSplit, KFold, StratifiedKFold, GridSearchCV
//   - metrics: accuracy, ROC/AUC, classification report
//   - plotting, report: gonum/plot charts and the result images
//   - churn: feature engineering, training, model persistence
//   - harness: the verification state machine
//   - config: YAML configuration with validation
//   - core/model, core/parallel: estimator interfaces, gob persistence, worker split
//   - pkg/errors, pkg/log: error taxonomy and the run logger
//
// # scikit-learn Compatibility
//
// Estimators follow the scikit-learn shape: functional options at construction,
// Fit/Predict/PredictProba/Score, GetParams/SetParams.
//
//	rf := ensemble.NewRandomForestClassifier(
//	    ensemble.WithNEstimators(100),
//	    ensemble.WithMaxDepth(5),
//	    ensemble.WithRandomState(42),
//	    ensemble.WithNJobs(-1), // use all CPU cores
//	)
package churnscope
