// Package churn is the customer-churn pipeline: feature engineering, model
// training and the artifacts a run leaves on disk.
package churn

import (
	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnscope/datasets"
	"github.com/YuminosukeSato/churnscope/pkg/errors"
	"github.com/YuminosukeSato/churnscope/preprocessing"
	"github.com/YuminosukeSato/churnscope/sklearn/model_selection"
)

// Split is the train/test partition of the modelling matrix.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.VecDense
	FeatureNames  []string
}

// FeatureOptions configures PerformFeatureEngineering.
type FeatureOptions struct {
	Categories  []string
	TestSize    float64
	RandomState int64
}

// DefaultFeatureOptions returns the reference settings: the five categorical
// columns, a 30% test set and seed 42.
func DefaultFeatureOptions() FeatureOptions {
	return FeatureOptions{
		Categories:  append([]string(nil), datasets.DefaultCategories...),
		TestSize:    0.3,
		RandomState: 42,
	}
}

// KeepColumns returns the modelling columns: the numeric columns followed by
// one encoded column per category.
func KeepColumns(categories []string, response string) []string {
	cols := append([]string(nil), datasets.QuantColumns...)
	for _, c := range categories {
		cols = append(cols, c+"_"+response)
	}
	return cols
}

// PerformFeatureEngineering encodes the categories against response, selects
// the modelling columns and splits the rows. The test set holds
// ceil(TestSize*n) rows.
func PerformFeatureEngineering(df dataframe.DataFrame, response string, opts FeatureOptions) (*Split, error) {
	const op = "PerformFeatureEngineering"
	if response == "" {
		return nil, errors.NewValidationError("response", "must not be empty", response)
	}
	if !datasets.HasColumn(df, response) {
		return nil, errors.NewColumnNotFoundError(op, response)
	}

	encoded, err := preprocessing.EncoderHelper(df, opts.Categories, response)
	if err != nil {
		return nil, err
	}

	names := KeepColumns(opts.Categories, response)
	if err := datasets.RequireColumns(op, encoded, names...); err != nil {
		return nil, err
	}
	X, err := FeatureMatrix(encoded, names)
	if err != nil {
		return nil, err
	}
	y := mat.NewVecDense(encoded.Nrow(), encoded.Col(response).Float())

	XTrain, XTest, yTrain, yTest, err := model_selection.TrainTestSplit(X, y,
		model_selection.WithTestSize(opts.TestSize),
		model_selection.WithRandomState(opts.RandomState),
	)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return &Split{
		XTrain:       XTrain,
		XTest:        XTest,
		YTrain:       yTrain,
		YTest:        yTest,
		FeatureNames: names,
	}, nil
}

// FeatureMatrix copies the named numeric columns of df into a dense matrix.
func FeatureMatrix(df dataframe.DataFrame, names []string) (*mat.Dense, error) {
	if df.Nrow() == 0 || len(names) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "feature matrix")
	}
	X := mat.NewDense(df.Nrow(), len(names), nil)
	for j, name := range names {
		col := df.Col(name)
		if col.Err != nil {
			return nil, errors.NewColumnNotFoundError("FeatureMatrix", name)
		}
		X.SetCol(j, col.Float())
	}
	return X, nil
}
