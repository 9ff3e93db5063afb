package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/YuminosukeSato/churnscope/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ClassScores holds the per-class precision, recall, F1 and support.
type ClassScores struct {
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// ClassificationReport mirrors scikit-learn's classification_report.
type ClassificationReport struct {
	Classes     []ClassScores
	Accuracy    float64
	MacroAvg    ClassScores
	WeightedAvg ClassScores
}

// NewClassificationReport computes precision, recall and F1 for every label
// appearing in yTrue or yPred. Undefined ratios are reported as 0 with an
// UndefinedMetricWarning.
func NewClassificationReport(yTrue, yPred *mat.VecDense) (*ClassificationReport, error) {
	if err := checkPair("ClassificationReport", yTrue, yPred); err != nil {
		return nil, err
	}

	labelSet := map[float64]struct{}{}
	for i := 0; i < yTrue.Len(); i++ {
		labelSet[yTrue.AtVec(i)] = struct{}{}
		labelSet[yPred.AtVec(i)] = struct{}{}
	}
	labels := make([]float64, 0, len(labelSet))
	for l := range labelSet {
		labels = append(labels, l)
	}
	sort.Float64s(labels)

	report := &ClassificationReport{}
	total := yTrue.Len()
	correct := 0
	for i := 0; i < total; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	report.Accuracy = float64(correct) / float64(total)

	for _, label := range labels {
		var tp, fp, fn int
		for i := 0; i < total; i++ {
			t, p := yTrue.AtVec(i) == label, yPred.AtVec(i) == label
			switch {
			case t && p:
				tp++
			case p:
				fp++
			case t:
				fn++
			}
		}
		name := formatLabel(label)
		precision := ratio("precision", name, tp, tp+fp)
		recall := ratio("recall", name, tp, tp+fn)
		var f1 float64
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		report.Classes = append(report.Classes, ClassScores{
			Label:     name,
			Precision: precision,
			Recall:    recall,
			F1:        f1,
			Support:   tp + fn,
		})
	}

	report.MacroAvg = ClassScores{Label: "macro avg", Support: total}
	report.WeightedAvg = ClassScores{Label: "weighted avg", Support: total}
	k := float64(len(report.Classes))
	for _, c := range report.Classes {
		w := float64(c.Support) / float64(total)
		report.MacroAvg.Precision += c.Precision / k
		report.MacroAvg.Recall += c.Recall / k
		report.MacroAvg.F1 += c.F1 / k
		report.WeightedAvg.Precision += c.Precision * w
		report.WeightedAvg.Recall += c.Recall * w
		report.WeightedAvg.F1 += c.F1 * w
	}
	return report, nil
}

// Class returns the scores for label, or false when the label is absent.
func (r *ClassificationReport) Class(label string) (ClassScores, bool) {
	for _, c := range r.Classes {
		if c.Label == label {
			return c, true
		}
	}
	return ClassScores{}, false
}

// String renders the report in scikit-learn's text layout.
func (r *ClassificationReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%12s %9s %9s %9s %9s\n\n", "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%12s %9.2f %9.2f %9.2f %9d\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%12s %9s %9s %9.2f %9d\n", "accuracy", "", "", r.Accuracy, r.MacroAvg.Support)
	for _, c := range []ClassScores{r.MacroAvg, r.WeightedAvg} {
		fmt.Fprintf(&b, "%12s %9.2f %9.2f %9.2f %9d\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	return b.String()
}

func ratio(metric, label string, num, den int) float64 {
	if den == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(metric, "no samples for label "+label, 0))
		return 0
	}
	return float64(num) / float64(den)
}

func formatLabel(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
