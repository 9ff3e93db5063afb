// Package report renders the model result images: ROC curves, classification
// reports and feature importances.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/plot/plotter"

	"github.com/YuminosukeSato/churnscope/metrics"
	"github.com/YuminosukeSato/churnscope/pkg/errors"
	"github.com/YuminosukeSato/churnscope/plotting"
)

// Result image file names.
const (
	ROCCurveImage          = "roc_curve_result.png"
	RandomForestImage      = "rf_results.png"
	LogisticImage          = "logistic_results.png"
	FeatureImportanceImage = "feature_importances.png"
)

// Images lists every file written by a training run.
var Images = []string{ROCCurveImage, RandomForestImage, LogisticImage, FeatureImportanceImage}

// Curve is one model's ROC curve.
type Curve struct {
	Name string
	FPR  []float64
	TPR  []float64
	AUC  float64
}

// ROC writes every curve on one figure with the AUC in the legend.
func ROC(path string, curves ...Curve) error {
	series := make([]plotting.Series, 0, len(curves))
	for _, c := range curves {
		if len(c.FPR) != len(c.TPR) {
			return errors.NewDimensionError("report.ROC", len(c.FPR), len(c.TPR), 0)
		}
		pts := make(plotter.XYs, len(c.FPR))
		for i := range c.FPR {
			pts[i].X, pts[i].Y = c.FPR[i], c.TPR[i]
		}
		series = append(series, plotting.Series{
			Name:   fmt.Sprintf("%s (AUC = %.2f)", c.Name, c.AUC),
			Points: pts,
		})
	}

	p, err := plotting.Lines("ROC curve", "False Positive Rate", "True Positive Rate", series...)
	if err != nil {
		return err
	}
	if err := plotting.Diagonal(p); err != nil {
		return err
	}
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1.02
	return plotting.Save(p, plotting.Square, path)
}

// ClassificationLines lays out the train and test reports of one model as text.
func ClassificationLines(modelName string, train, test *metrics.ClassificationReport) []string {
	var lines []string
	for _, part := range []struct {
		title  string
		report *metrics.ClassificationReport
	}{
		{modelName + " Train", train},
		{modelName + " Test", test},
	} {
		lines = append(lines, part.title, "")
		lines = append(lines, strings.Split(strings.TrimRight(part.report.String(), "\n"), "\n")...)
		lines = append(lines, "")
	}
	return lines
}

// Classification writes the train and test classification reports of one model.
func Classification(path, modelName string, train, test *metrics.ClassificationReport) error {
	if train == nil || test == nil {
		return errors.NewValueError("report.Classification", "train and test reports are required")
	}
	p, err := plotting.TextPanel(modelName, ClassificationLines(modelName, train, test))
	if err != nil {
		return err
	}
	return plotting.Save(p, plotting.Size{W: plotting.Wide.W, H: plotting.Square.H}, path)
}

// SortImportances orders names by descending importance.
func SortImportances(names []string, importances []float64) ([]string, []float64, error) {
	if len(names) != len(importances) {
		return nil, nil, errors.NewDimensionError("report.SortImportances", len(names), len(importances), 0)
	}
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return importances[order[a]] > importances[order[b]] })

	sortedNames := make([]string, len(order))
	sortedValues := make([]float64, len(order))
	for i, j := range order {
		sortedNames[i] = names[j]
		sortedValues[i] = importances[j]
	}
	return sortedNames, sortedValues, nil
}

// FeatureImportance writes a bar chart of importances sorted in descending order.
func FeatureImportance(path string, names []string, importances []float64) error {
	sortedNames, sortedValues, err := SortImportances(names, importances)
	if err != nil {
		return err
	}
	p, err := plotting.BarChart(sortedNames, sortedValues, "Feature Importance", "Importance")
	if err != nil {
		return err
	}
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = -1
	p.X.Tick.Label.YAlign = -0.5
	return plotting.Save(p, plotting.Size{W: plotting.Wide.W * 1.25, H: plotting.Wide.H * 1.25}, path)
}
