// Package config loads the pipeline settings from YAML over built-in defaults.
package config

import (
	"bytes"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/churnscope/datasets"
	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

// Config holds every setting of a pipeline run.
type Config struct {
	Paths      Paths    `yaml:"paths"`
	LogLevel   string   `yaml:"log_level" validate:"oneof=debug info warn error"`
	Response   string   `yaml:"response" validate:"required"`
	Categories []string `yaml:"categories" validate:"required,min=1,dive,required"`
	Split      Split    `yaml:"split"`
	Logistic   Logistic `yaml:"logistic"`
	Forest     Forest   `yaml:"forest"`
	// NJobs bounds concurrent tree and grid-search fits; 0 uses every CPU.
	NJobs int `yaml:"n_jobs" validate:"gte=0"`
}

// Paths locates inputs and artifacts.
type Paths struct {
	Data    string `yaml:"data" validate:"required"`
	Logs    string `yaml:"logs" validate:"required"`
	EDA     string `yaml:"eda" validate:"required"`
	Results string `yaml:"results" validate:"required"`
	Models  string `yaml:"models" validate:"required"`
	// Metrics is the Prometheus textfile; empty disables it.
	Metrics string `yaml:"metrics"`
}

// Split configures the train/test partition.
type Split struct {
	TestSize    float64 `yaml:"test_size" validate:"gt=0,lt=1"`
	RandomState int64   `yaml:"random_state"`
}

// Logistic configures the logistic-regression baseline.
type Logistic struct {
	Penalty string  `yaml:"penalty" validate:"oneof=l2 none"`
	C       float64 `yaml:"c" validate:"gt=0"`
	MaxIter int     `yaml:"max_iter" validate:"gt=0"`
	Tol     float64 `yaml:"tol" validate:"gt=0"`
}

// Forest configures the random-forest grid search. Every list is one grid axis.
type Forest struct {
	NEstimators []int    `yaml:"n_estimators" validate:"required,min=1,dive,gte=1"`
	MaxDepth    []int    `yaml:"max_depth" validate:"required,min=1,dive,gte=0"`
	MaxFeatures []string `yaml:"max_features" validate:"required,min=1,dive,oneof=sqrt log2 all"`
	Criterion   []string `yaml:"criterion" validate:"required,min=1,dive,oneof=gini entropy"`
	CVFolds     int      `yaml:"cv_folds" validate:"gte=2"`
	RandomState int64    `yaml:"random_state"`
}

// Default returns the settings of the reference churn run.
func Default() *Config {
	return &Config{
		Paths: Paths{
			Data:    "./data/bank_data.csv",
			Logs:    "./logs",
			EDA:     "./images/eda",
			Results: "./images/results",
			Models:  "./models",
		},
		LogLevel:   "info",
		Response:   datasets.ChurnColumn,
		Categories: append([]string(nil), datasets.DefaultCategories...),
		Split: Split{
			TestSize:    0.3,
			RandomState: 42,
		},
		Logistic: Logistic{
			Penalty: "l2",
			C:       1.0,
			MaxIter: 3000,
			Tol:     1e-4,
		},
		Forest: Forest{
			NEstimators: []int{50, 100},
			MaxDepth:    []int{4, 5, 0},
			MaxFeatures: []string{"sqrt", "log2"},
			Criterion:   []string{"gini", "entropy"},
			CVFolds:     3,
			RandomState: 42,
		},
	}
}

var validate = validator.New()

// Validate checks every field constraint and reports the first violation as
// an *errors.ValidationError.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return errors.NewValidationError(fe.Namespace(), "violates "+reason, fe.Value())
	}
	return errors.Wrap(err, "validate config")
}

// Load reads path over the defaults and validates the result. An empty path
// yields the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config")
	}
	if err := Parse(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping the values of absent keys.
func Parse(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

// Marshal renders cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "marshal config")
	}
	return out, nil
}

// ForestGrid returns the forest grid as name → candidate values.
func (f Forest) ForestGrid() map[string][]interface{} {
	grid := map[string][]interface{}{}
	for _, v := range f.NEstimators {
		grid["n_estimators"] = append(grid["n_estimators"], v)
	}
	for _, v := range f.MaxDepth {
		grid["max_depth"] = append(grid["max_depth"], v)
	}
	for _, v := range f.MaxFeatures {
		grid["max_features"] = append(grid["max_features"], v)
	}
	for _, v := range f.Criterion {
		grid["criterion"] = append(grid["criterion"], v)
	}
	return grid
}
