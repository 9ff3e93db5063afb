// Package harness verifies the churn pipeline end to end. Each step calls one
// pipeline operation, asserts its post-conditions and logs the outcome; the
// first failure halts the run.
package harness

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"

	"github.com/YuminosukeSato/churnscope/churn"
	"github.com/YuminosukeSato/churnscope/config"
	"github.com/YuminosukeSato/churnscope/datasets"
	"github.com/YuminosukeSato/churnscope/eda"
	"github.com/YuminosukeSato/churnscope/pkg/errors"
	"github.com/YuminosukeSato/churnscope/pkg/log"
	"github.com/YuminosukeSato/churnscope/preprocessing"
	"github.com/YuminosukeSato/churnscope/report"
)

// Step names, as they appear in logs, reports and metrics.
const (
	StepImport             = "import_data"
	StepEDA                = "perform_eda"
	StepEncoder            = "encoder_helper"
	StepFeatureEngineering = "perform_feature_engineering"
	StepTrain              = "train_models"
)

// StepResult is the outcome of one verification step.
type StepResult struct {
	Step     string
	Reached  State
	Checks   int
	Duration time.Duration
	Err      error
}

// Passed reports whether the step succeeded.
func (r StepResult) Passed() bool {
	return r.Err == nil
}

// Report aggregates the steps of one run.
type Report struct {
	RunID    string
	State    State
	Steps    []StepResult
	Started  time.Time
	Finished time.Time
}

// Err returns the error of the failed step, if any.
func (r *Report) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return s.Err
		}
	}
	return nil
}

// Failed returns the failed step, or nil.
func (r *Report) Failed() *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Err != nil {
			return &r.Steps[i]
		}
	}
	return nil
}

// Harness runs the verification steps against one configuration.
type Harness struct {
	cfg     *config.Config
	logger  log.Logger
	metrics *Metrics
	runID   string
	now     func() time.Time
}

// Option configures a Harness.
type Option func(*Harness)

// WithRunID fixes the run id. Default: a random UUID.
func WithRunID(id string) Option {
	return func(h *Harness) { h.runID = id }
}

// WithMetrics records step outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(h *Harness) { h.metrics = m }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Harness) { h.now = now }
}

// New builds a harness. A nil logger discards output.
func New(cfg *config.Config, logger log.Logger, opts ...Option) *Harness {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = log.Nop()
	}
	h := &Harness{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	if h.runID == "" {
		h.runID = uuid.NewString()
	}
	h.logger = logger.With(log.RunIDKey, h.runID)
	return h
}

// RunID returns the id stamped on this harness' logs and metrics.
func (h *Harness) RunID() string {
	return h.runID
}

type step struct {
	name string
	run  func(ctx context.Context) (checks int, err error)
}

// Run executes the steps in order and stops at the first failure. The
// returned error is that step's error, unchanged.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	rep := &Report{RunID: h.runID, State: NotStarted, Started: h.now()}
	steps := []step{
		{StepImport, h.verifyImport},
		{StepEDA, h.verifyEDA},
		{StepEncoder, h.verifyEncoder},
		{StepFeatureEngineering, h.verifyFeatureEngineering},
		{StepTrain, h.verifyTrain},
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			rep.Steps = append(rep.Steps, StepResult{Step: s.name, Reached: rep.State, Err: err})
			return h.finish(rep), err
		}
		start := h.now()
		var checks int
		err := errors.SafeExecute(s.name, func() (err error) {
			checks, err = s.run(ctx)
			return err
		})
		res := StepResult{Step: s.name, Checks: checks, Duration: h.now().Sub(start), Err: err}
		h.metrics.ObserveStep(s.name, res.Duration, err)
		if err != nil {
			res.Reached = rep.State
			rep.Steps = append(rep.Steps, res)
			h.logger.Error("verification halted", err, log.StepKey, s.name, log.StateKey, rep.State.String())
			return h.finish(rep), err
		}
		rep.State = rep.State.Next()
		res.Reached = rep.State
		rep.Steps = append(rep.Steps, res)
		h.logger.Debug("step verified", log.StepKey, s.name, log.StateKey, rep.State.String(),
			log.DurationMsKey, res.Duration.Milliseconds())
	}
	rep.State = Done
	return h.finish(rep), nil
}

func (h *Harness) finish(rep *Report) *Report {
	rep.Finished = h.now()
	h.metrics.ObserveState(rep.State)
	if h.metrics != nil && h.cfg.Paths.Metrics != "" {
		if err := h.metrics.WriteTextfile(h.cfg.Paths.Metrics); err != nil {
			h.logger.Warn("metrics not written", log.PathKey, h.cfg.Paths.Metrics, "error", err)
		}
	}
	return rep
}

func (h *Harness) load() (dataframe.DataFrame, error) {
	return datasets.ImportData(h.cfg.Paths.Data)
}

func (h *Harness) loadWithChurn() (dataframe.DataFrame, error) {
	df, err := h.load()
	if err != nil {
		return df, err
	}
	return datasets.AddChurn(df, datasets.AttritionFlag, h.cfg.Response)
}

func (h *Harness) verifyImport(context.Context) (int, error) {
	df, err := h.load()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.logger.Error("Testing import_eda: The file wasn't found", log.PathKey, h.cfg.Paths.Data)
		} else {
			h.logger.Error("Testing import_data: ERROR", err)
		}
		return 0, err
	}
	h.logger.Info("Testing import_data: SUCCESS")

	rows, cols := df.Dims()
	if rows <= 0 || cols <= 0 {
		h.logger.Error("Testing import_data: The file doesn't appear to have rows and columns")
		return 1, errors.NewAssertionErrorf(StepImport, "rows > 0 and columns > 0", "got %d rows, %d columns", rows, cols)
	}
	h.logger.Info(fmt.Sprintf("Rows: %d\tColumns: %d", rows, cols),
		log.SamplesKey, rows, log.FeaturesKey, cols)
	return 1, nil
}

func (h *Harness) verifyEDA(context.Context) (int, error) {
	df, err := h.load()
	if err != nil {
		return 0, err
	}
	if err := eda.PerformEDA(df, h.cfg.Paths.EDA, h.logger); err != nil {
		var cnf *errors.ColumnNotFoundError
		if errors.As(err, &cnf) {
			h.logger.Error(fmt.Sprintf("Column %q not found", cnf.Column), log.ColumnKey, cnf.Column)
		} else {
			h.logger.Error("Testing perform_eda: ERROR", err)
		}
		return 0, err
	}
	h.logger.Info("Testing perform_eda: SUCCESS")
	return h.checkFiles(StepEDA, h.cfg.Paths.EDA, eda.Images)
}

func (h *Harness) verifyEncoder(context.Context) (int, error) {
	df, err := h.loadWithChurn()
	if err != nil {
		return 0, err
	}
	cats := h.cfg.Categories
	checks := 0

	const emptyCase = "Testing encoder_helper(data_frame, category_lst=[])"
	encoded, err := preprocessing.EncoderHelper(df, nil, "")
	if err != nil {
		h.logger.Error(emptyCase+": ERROR", err)
		return checks, err
	}
	checks++
	if !FramesEqual(encoded, df) {
		h.logger.Error(emptyCase + ": ERROR")
		return checks, errors.NewAssertionError(StepEncoder, "empty category list is the identity", "")
	}
	h.logger.Info(emptyCase + ": SUCCESS")

	const inPlaceCase = "Testing encoder_helper(data_frame, category_lst=cat_columns, response=None)"
	encoded, err = preprocessing.EncoderHelper(df, cats, "")
	if err != nil {
		h.logger.Error(inPlaceCase+": ERROR", err)
		return checks, err
	}
	checks += 2
	if !sameNames(encoded.Names(), df.Names()) {
		h.logger.Error(inPlaceCase + ": ERROR")
		return checks, errors.NewAssertionErrorf(StepEncoder, "column names unchanged", "got %v", encoded.Names())
	}
	if FramesEqual(encoded, df) {
		h.logger.Error(inPlaceCase + ": ERROR")
		return checks, errors.NewAssertionError(StepEncoder, "values changed", "encoded frame equals input")
	}
	h.logger.Info(inPlaceCase + ": SUCCESS")

	appendCase := fmt.Sprintf("Testing encoder_helper(data_frame, category_lst=cat_columns, response='%s')", h.cfg.Response)
	encoded, err = preprocessing.EncoderHelper(df, cats, h.cfg.Response)
	if err != nil {
		h.logger.Error(appendCase+": ERROR", err)
		return checks, err
	}
	checks += 3
	if sameNames(encoded.Names(), df.Names()) {
		h.logger.Error(appendCase + ": ERROR")
		return checks, errors.NewAssertionError(StepEncoder, "column names changed", "names equal input")
	}
	if FramesEqual(encoded, df) {
		h.logger.Error(appendCase + ": ERROR")
		return checks, errors.NewAssertionError(StepEncoder, "values changed", "encoded frame equals input")
	}
	if got, want := encoded.Ncol(), df.Ncol()+len(cats); got != want {
		h.logger.Error(appendCase + ": ERROR")
		return checks, errors.NewAssertionErrorf(StepEncoder, "one appended column per category", "want %d columns, got %d", want, got)
	}
	h.logger.Info(appendCase + ": SUCCESS")
	return checks, nil
}

func (h *Harness) verifyFeatureEngineering(context.Context) (int, error) {
	df, err := h.loadWithChurn()
	if err != nil {
		return 0, err
	}
	split, err := churn.PerformFeatureEngineering(df, h.cfg.Response, h.featureOptions())
	if err != nil {
		var cnf *errors.ColumnNotFoundError
		if errors.As(err, &cnf) {
			h.logger.Error(fmt.Sprintf("The `%s` column is not present in the dataframe: ERROR", cnf.Column))
		} else {
			h.logger.Error("Testing perform_feature_engineering: ERROR", err)
		}
		return 0, err
	}
	h.logger.Info(fmt.Sprintf("Testing perform_feature_engineering. `%s` column is present: SUCCESS", h.cfg.Response))

	got, _ := split.XTest.Dims()
	want := int(math.Ceil(float64(df.Nrow()) * h.cfg.Split.TestSize))
	if got != want {
		h.logger.Error("Testing perform_feature_engineering. DataFrame sizes are not correct: ERROR")
		return 2, errors.NewAssertionErrorf(StepFeatureEngineering, "test rows = ceil(test_size * rows)",
			"want %d, got %d", want, got)
	}
	h.logger.Info("Testing perform_feature_engineering. DataFrame sizes are consistent: SUCCESS",
		log.SamplesKey, got)
	return 2, nil
}

func (h *Harness) verifyTrain(ctx context.Context) (int, error) {
	df, err := h.loadWithChurn()
	if err != nil {
		return 0, err
	}
	split, err := churn.PerformFeatureEngineering(df, h.cfg.Response, h.featureOptions())
	if err != nil {
		return 0, err
	}
	result, err := churn.TrainModels(ctx, split, h.cfg, h.logger)
	if err != nil {
		h.logger.Error("Testing train_models: ERROR", err)
		return 0, err
	}
	h.metrics.ObserveAUC(churn.LogisticName, result.Logistic.TrainAUC, result.Logistic.TestAUC)
	h.metrics.ObserveAUC(churn.ForestName, result.Forest.TrainAUC, result.Forest.TestAUC)

	n, err := h.checkFiles(StepTrain, h.cfg.Paths.Models, []string{churn.LogisticModelFile, churn.ForestModelFile})
	if err != nil {
		return n, err
	}
	m, err := h.checkFiles(StepTrain, h.cfg.Paths.Results, report.Images)
	return n + m, err
}

func (h *Harness) featureOptions() churn.FeatureOptions {
	return churn.FeatureOptions{
		Categories:  h.cfg.Categories,
		TestSize:    h.cfg.Split.TestSize,
		RandomState: h.cfg.Split.RandomState,
	}
}

// checkFiles asserts that every name exists in dir and is non-empty.
func (h *Harness) checkFiles(stepName, dir string, names []string) (int, error) {
	for i, name := range names {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.Size() == 0 {
			h.logger.Error("No such file on the disk", log.PathKey, path)
			detail := "empty file"
			if err != nil {
				detail = err.Error()
			}
			return i + 1, errors.NewAssertionError(stepName, "file "+name+" exists", detail)
		}
		h.logger.Info(fmt.Sprintf("File %s was found", name), log.PathKey, path)
	}
	return len(names), nil
}

// FramesEqual reports whether a and b have the same columns, types and values.
func FramesEqual(a, b dataframe.DataFrame) bool {
	if a.Nrow() != b.Nrow() || a.Ncol() != b.Ncol() {
		return false
	}
	if !sameNames(a.Names(), b.Names()) {
		return false
	}
	at, bt := a.Types(), b.Types()
	for i := range at {
		if at[i] != bt[i] {
			return false
		}
	}
	ar, br := a.Records(), b.Records()
	for i := range ar {
		for j := range ar[i] {
			if ar[i][j] != br[i][j] {
				return false
			}
		}
	}
	return true
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
