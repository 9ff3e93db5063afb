package preprocessing

import (
	"fmt"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/YuminosukeSato/churnscope/core/model"
	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

// DefaultLabel is the label column used for churn-rate encoding when no response name is given.
const DefaultLabel = "Churn"

// TargetEncoder maps each category value to the mean of a binary label over
// the rows holding that value (the churn rate of the category).
type TargetEncoder struct {
	State *model.StateManager

	// Rates holds the fitted label mean per category value.
	Rates map[string]float64

	// Prior is the overall label mean, used for values not seen during Fit.
	Prior float64
}

// NewTargetEncoder creates an unfitted TargetEncoder.
func NewTargetEncoder() *TargetEncoder {
	return &TargetEncoder{State: model.NewStateManager()}
}

// Fit learns the per-category label means from parallel slices.
func (e *TargetEncoder) Fit(categories []string, labels []float64) error {
	if len(categories) == 0 {
		return errors.NewModelError("TargetEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(categories) != len(labels) {
		return errors.NewDimensionError("TargetEncoder.Fit", len(categories), len(labels), 0)
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	var total float64
	for i, c := range categories {
		sums[c] += labels[i]
		counts[c]++
		total += labels[i]
	}

	e.Rates = make(map[string]float64, len(sums))
	for c, s := range sums {
		e.Rates[c] = s / float64(counts[c])
	}
	e.Prior = total / float64(len(labels))

	e.State.SetDimensions(1, len(categories))
	e.State.SetFitted()
	return nil
}

// Transform replaces every value by its fitted rate.
func (e *TargetEncoder) Transform(categories []string) ([]float64, error) {
	if err := e.State.RequireFitted("TargetEncoder", "Transform"); err != nil {
		return nil, err
	}
	out := make([]float64, len(categories))
	for i, c := range categories {
		rate, ok := e.Rates[c]
		if !ok {
			rate = e.Prior
		}
		out[i] = rate
	}
	return out, nil
}

// FitTransform fits on categories and labels and returns the encoded values.
func (e *TargetEncoder) FitTransform(categories []string, labels []float64) ([]float64, error) {
	if err := e.Fit(categories, labels); err != nil {
		return nil, err
	}
	return e.Transform(categories)
}

// Categories returns the fitted category values in sorted order.
func (e *TargetEncoder) Categories() []string {
	out := make([]string, 0, len(e.Rates))
	for c := range e.Rates {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (e *TargetEncoder) String() string {
	if !e.State.IsFitted() {
		return "TargetEncoder()"
	}
	return fmt.Sprintf("TargetEncoder(n_categories=%d, prior=%.4f)", len(e.Rates), e.Prior)
}

// EncoderHelper turns each categorical column in categories into the churn
// rate of its values. An empty response means the name is absent.
//
// With an empty category list the frame is returned unchanged. Without a
// response the categorical columns are replaced in place, keeping names and
// positions, and the rates come from the Churn column. With a response the
// source columns are kept and one <category>_<response> column is appended per
// category, computed from the response column.
func EncoderHelper(df dataframe.DataFrame, categories []string, response string) (dataframe.DataFrame, error) {
	const op = "EncoderHelper"

	if df.Err != nil {
		return df, errors.Wrap(df.Err, op)
	}
	if len(categories) == 0 {
		return df, nil
	}

	label := response
	if label == "" {
		label = DefaultLabel
	}
	if !hasColumn(df, label) {
		return df, errors.NewColumnNotFoundError(op, label)
	}
	labels := df.Col(label).Float()

	out := df.Copy()
	for _, category := range categories {
		if !hasColumn(df, category) {
			return df, errors.NewColumnNotFoundError(op, category)
		}

		enc := NewTargetEncoder()
		encoded, err := enc.FitTransform(df.Col(category).Records(), labels)
		if err != nil {
			return df, errors.Wrapf(err, "%s: encode %s", op, category)
		}

		name := category
		if response != "" {
			name = category + "_" + response
		}
		out = out.Mutate(series.New(encoded, series.Float, name))
		if out.Err != nil {
			return df, errors.Wrapf(out.Err, "%s: write column %s", op, name)
		}
	}
	return out, nil
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}
