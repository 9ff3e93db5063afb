package tree

import (
	"bytes"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnscope/core/model"
	"github.com/YuminosukeSato/churnscope/datasets"
	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

// customers returns eight card holders described by Total_Trans_Ct,
// Total_Revolving_Bal and Contacts_Count_12_mon. Low transaction counts churn.
func customers() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 3, []float64{
		28, 0, 4,
		35, 150, 3,
		41, 0, 5,
		30, 310, 4,
		82, 1450, 2,
		95, 1700, 1,
		71, 980, 2,
		110, 2100, 3,
	})
	y := mat.NewDense(8, 1, []float64{1, 1, 1, 1, 0, 0, 0, 0})
	return X, y
}

// bankMatrix draws n synthetic customers and keeps four numeric columns.
func bankMatrix(t *testing.T, n int, seed int64) (*mat.Dense, *mat.Dense) {
	t.Helper()
	df, err := datasets.AddChurn(datasets.MakeBankChurn(n, seed), datasets.AttritionFlag, datasets.ChurnColumn)
	if err != nil {
		t.Fatalf("AddChurn: %v", err)
	}
	cols := []string{"Total_Trans_Ct", "Total_Revolving_Bal", "Customer_Age", "Credit_Limit"}
	X := mat.NewDense(n, len(cols), nil)
	for j, name := range cols {
		X.SetCol(j, df.Col(name).Float())
	}
	y := mat.NewDense(n, 1, df.Col(datasets.ChurnColumn).Float())
	return X, y
}

func TestDecisionTreeClassifier_FitPredict(t *testing.T) {
	X, y := customers()
	newcomers := mat.NewDense(2, 3, []float64{
		33, 90, 4, // quiet account
		100, 1600, 1, // active account
	})

	for _, criterion := range []string{"gini", "entropy"} {
		dt := NewDecisionTreeClassifier(WithCriterion(criterion), WithMaxDepth(5))
		if err := dt.Fit(X, y); err != nil {
			t.Fatalf("%s: fit: %v", criterion, err)
		}
		if score := dt.Score(X, y); score != 1.0 {
			t.Errorf("%s: training accuracy = %v, want 1", criterion, score)
		}
		if dt.GetNLeaves() != 2 {
			t.Errorf("%s: one split separates the data, got %d leaves", criterion, dt.GetNLeaves())
		}

		pred, err := dt.Predict(newcomers)
		if err != nil {
			t.Fatalf("%s: predict: %v", criterion, err)
		}
		if pred.At(0, 0) != 1 || pred.At(1, 0) != 0 {
			t.Errorf("%s: got predictions %v, want [1 0]", criterion, mat.Formatted(pred.T()))
		}
	}
}

func TestDecisionTreeClassifier_PredictProba(t *testing.T) {
	X, y := bankMatrix(t, 200, 3)
	dt := NewDecisionTreeClassifier(WithMaxDepth(3))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("fit: %v", err)
	}

	probas, err := dt.PredictProba(X)
	if err != nil {
		t.Fatalf("predict proba: %v", err)
	}
	rows, cols := probas.Dims()
	if rows != 200 || cols != 2 {
		t.Fatalf("shape = (%d, %d), want (200, 2)", rows, cols)
	}
	pred, _ := dt.Predict(X)
	for i := 0; i < rows; i++ {
		p0, p1 := probas.At(i, 0), probas.At(i, 1)
		if p0 < 0 || p1 < 0 || math.Abs(p0+p1-1) > 1e-9 {
			t.Fatalf("row %d: invalid distribution [%v %v]", i, p0, p1)
		}
		want := 0.0
		if p1 > p0 {
			want = 1
		}
		if p0 != p1 && pred.At(i, 0) != want {
			t.Errorf("row %d: predict %v disagrees with proba [%v %v]", i, pred.At(i, 0), p0, p1)
		}
	}
}

// Churn only when both activity and revolving balance are low, which a
// single split cannot express.
func TestDecisionTreeClassifier_DepthNeededForInteraction(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		30, 0,
		35, 100,
		32, 1800,
		38, 2000,
		90, 50,
		85, 0,
		95, 1900,
		88, 2200,
	})
	y := mat.NewDense(8, 1, []float64{1, 1, 0, 0, 0, 0, 0, 0})

	stump := NewDecisionTreeClassifier(WithMaxDepth(1))
	if err := stump.Fit(X, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if score := stump.Score(X, y); score >= 1.0 {
		t.Errorf("a depth-1 tree should not separate the interaction, got %v", score)
	}

	dt := NewDecisionTreeClassifier(WithMaxDepth(2))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if score := dt.Score(X, y); score != 1.0 {
		t.Errorf("depth-2 accuracy = %v, want 1", score)
	}
	if dt.GetDepth() != 2 {
		t.Errorf("depth = %d, want 2", dt.GetDepth())
	}
}

// Card tier (Blue, Silver, Gold) from Credit_Limit and Months_on_book.
func TestDecisionTreeClassifier_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		1500, 36,
		2100, 40,
		2600, 28,
		9000, 44,
		11000, 31,
		12500, 39,
		25000, 35,
		30000, 50,
		34500, 22,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if len(dt.Classes) != 3 {
		t.Fatalf("classes = %v, want 3", dt.Classes)
	}
	if score := dt.Score(X, y); score != 1.0 {
		t.Errorf("training accuracy = %v, want 1", score)
	}

	probas, err := dt.PredictProba(X)
	if err != nil {
		t.Fatalf("predict proba: %v", err)
	}
	if _, cols := probas.Dims(); cols != 3 {
		t.Fatalf("got %d probability columns, want 3", cols)
	}
	for i := 0; i < 9; i++ {
		if got := mat.Row(nil, i, probas); got[int(y.At(i, 0))] != 1 {
			t.Errorf("row %d: distribution %v should be pure", i, got)
		}
	}
}

func TestDecisionTreeClassifier_FeatureImportances(t *testing.T) {
	// Total_Trans_Ct decides; gender code and dependent count are noise.
	X := mat.NewDense(8, 3, []float64{
		25, 0, 0,
		31, 1, 3,
		38, 0, 2,
		40, 1, 1,
		78, 0, 0,
		85, 1, 3,
		99, 0, 2,
		104, 1, 1,
	})
	y := mat.NewDense(8, 1, []float64{1, 1, 1, 1, 0, 0, 0, 0})

	dt := NewDecisionTreeClassifier()
	if _, err := dt.FeatureImportances(); err == nil {
		t.Error("importances before Fit should fail")
	}
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	importances, err := dt.FeatureImportances()
	if err != nil {
		t.Fatalf("importances: %v", err)
	}
	if len(importances) != 3 {
		t.Fatalf("got %d importances, want 3", len(importances))
	}
	if math.Abs(importances[0]-1) > 1e-12 || importances[1] != 0 || importances[2] != 0 {
		t.Errorf("all importance should go to the transaction count, got %v", importances)
	}
}

func TestDecisionTreeClassifier_GrowthLimits(t *testing.T) {
	X, y := bankMatrix(t, 300, 1)

	tests := []struct {
		name string
		opts []Option
		// limits checked on the fitted tree
		maxDepth, minLeaf, minSplit int
	}{
		{"max_depth=2", []Option{WithMaxDepth(2)}, 2, 1, 2},
		{"max_depth=4", []Option{WithMaxDepth(4)}, 4, 1, 2},
		{"min_samples_leaf=20", []Option{WithMinSamplesLeaf(20)}, 0, 20, 2},
		{"min_samples_split=60", []Option{WithMinSamplesSplit(60)}, 0, 1, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(tt.opts...)
			if err := dt.Fit(X, y); err != nil {
				t.Fatalf("fit: %v", err)
			}
			if tt.maxDepth > 0 && dt.GetDepth() > tt.maxDepth {
				t.Errorf("depth %d exceeds %d", dt.GetDepth(), tt.maxDepth)
			}
			for i, n := range dt.Nodes {
				if n.IsLeaf() && n.NSamples < tt.minLeaf {
					t.Errorf("leaf %d holds %d samples, below %d", i, n.NSamples, tt.minLeaf)
				}
				if !n.IsLeaf() && n.NSamples < tt.minSplit {
					t.Errorf("node %d split with %d samples, below %d", i, n.NSamples, tt.minSplit)
				}
			}
		})
	}
}

func TestDecisionTreeClassifier_MinImpurityDecrease(t *testing.T) {
	X, y := bankMatrix(t, 300, 2)

	full := NewDecisionTreeClassifier()
	pruned := NewDecisionTreeClassifier(WithMinImpurityDecrease(0.01))
	for _, dt := range []*DecisionTreeClassifier{full, pruned} {
		if err := dt.Fit(X, y); err != nil {
			t.Fatalf("fit: %v", err)
		}
	}
	if pruned.GetNLeaves() >= full.GetNLeaves() {
		t.Errorf("pruned tree has %d leaves, full tree %d", pruned.GetNLeaves(), full.GetNLeaves())
	}
}

func TestDecisionTreeClassifier_Params(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	params := dt.GetParams()
	if params["criterion"] != "gini" || params["min_samples_split"] != 2 || params["max_features"] != "all" {
		t.Errorf("unexpected defaults: %v", params)
	}

	err := dt.SetParams(map[string]interface{}{
		"criterion":         "entropy",
		"max_depth":         5,
		"min_samples_split": 4,
		"min_samples_leaf":  2,
		"max_features":      "log2",
		"random_state":      int64(9),
	})
	if err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	if dt.Criterion != "entropy" || dt.MaxDepth != 5 || dt.MinSamplesSplit != 4 ||
		dt.MinSamplesLeaf != 2 || dt.MaxFeatures != "log2" || dt.RandomState != 9 {
		t.Errorf("params not applied: %s", dt)
	}

	for name, params := range map[string]map[string]interface{}{
		"unknown key": {"n_estimators": 10},
		"wrong type":  {"max_depth": "5"},
	} {
		var ve *errors.ValidationError
		if err := dt.SetParams(params); !errors.As(err, &ve) {
			t.Errorf("%s: expected ValidationError, got %v", name, err)
		}
	}
}

func TestDecisionTreeClassifier_NotFittedAndShape(t *testing.T) {
	X, y := customers()
	dt := NewDecisionTreeClassifier()

	var nf *errors.NotFittedError
	if _, err := dt.Predict(X); !errors.As(err, &nf) {
		t.Errorf("Predict before Fit: expected NotFittedError, got %v", err)
	}
	if _, err := dt.PredictProba(X); !errors.As(err, &nf) {
		t.Errorf("PredictProba before Fit: expected NotFittedError, got %v", err)
	}

	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	var de *errors.DimensionError
	if _, err := dt.Predict(mat.NewDense(1, 2, []float64{30, 0})); !errors.As(err, &de) {
		t.Errorf("two features instead of three: expected DimensionError, got %v", err)
	}
	if err := dt.Fit(X, mat.NewDense(3, 1, nil)); !errors.As(err, &de) {
		t.Errorf("short label vector: expected DimensionError, got %v", err)
	}
}

func TestDecisionTreeClassifier_Deterministic(t *testing.T) {
	X, y := bankMatrix(t, 150, 5)

	fit := func() *DecisionTreeClassifier {
		dt := NewDecisionTreeClassifier(WithMaxFeatures("sqrt"), WithRandomState(7))
		if err := dt.Fit(X, y); err != nil {
			t.Fatalf("fit: %v", err)
		}
		return dt
	}
	a, b := fit(), fit()
	if len(a.Nodes) != len(b.Nodes) {
		t.Fatalf("node counts differ: %d vs %d", len(a.Nodes), len(b.Nodes))
	}
	for i := range a.Nodes {
		if a.Nodes[i].Feature != b.Nodes[i].Feature || a.Nodes[i].Threshold != b.Nodes[i].Threshold {
			t.Errorf("node %d differs", i)
		}
	}
}

func TestDecisionTreeClassifier_FitIndices(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{25, 40, 80, 100})
	y := mat.NewDense(4, 1, []float64{1, 1, 0, 0})

	// A bootstrap that only drew churners.
	dt := NewDecisionTreeClassifier()
	if err := dt.FitIndices(X, y, []int{0, 0, 1, 1}); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if len(dt.Classes) != 2 {
		t.Fatalf("classes come from all of y, got %v", dt.Classes)
	}
	probas, err := dt.PredictProba(X)
	if err != nil {
		t.Fatalf("predict proba: %v", err)
	}
	if probas.At(3, 0) != 0 || probas.At(3, 1) != 1 {
		t.Errorf("single-class tree should predict churn everywhere, got %v", mat.Formatted(probas))
	}
}

func TestDecisionTreeClassifier_Validation(t *testing.T) {
	X, y := customers()

	for _, dt := range []*DecisionTreeClassifier{
		NewDecisionTreeClassifier(WithCriterion("mse")),
		NewDecisionTreeClassifier(WithMaxFeatures("half")),
		NewDecisionTreeClassifier(WithMinSamplesSplit(1)),
		NewDecisionTreeClassifier(WithMinSamplesLeaf(0)),
		NewDecisionTreeClassifier(WithMaxDepth(-1)),
	} {
		var ve *errors.ValidationError
		if err := dt.Fit(X, y); !errors.As(err, &ve) {
			t.Errorf("%s: expected ValidationError, got %v", dt, err)
		}
	}
}

func TestDecisionTreeClassifier_Persistence(t *testing.T) {
	X, y := bankMatrix(t, 120, 4)
	dt := NewDecisionTreeClassifier(WithMaxDepth(4))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	want, _ := dt.PredictProba(X)

	var buf bytes.Buffer
	if err := model.SaveModelToWriter(dt, &buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded := &DecisionTreeClassifier{}
	if err := model.LoadModelFromReader(loaded, &buf); err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := loaded.PredictProba(X)
	if err != nil {
		t.Fatalf("loaded predict proba: %v", err)
	}
	if !mat.Equal(got, want) {
		t.Error("loaded tree should reproduce probabilities")
	}
}
