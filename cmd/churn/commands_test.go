package main

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	body := fmt.Sprintf(`paths:
  data: %[1]s/data/bank_data.csv
  logs: %[1]s/logs
  eda: %[1]s/images/eda
  results: %[1]s/images/results
  models: %[1]s/models
  metrics: %[1]s/logs/churn_metrics.prom
forest:
  n_estimators: [5]
  max_depth: [3]
  max_features: [sqrt]
  criterion: [gini]
  cv_folds: 2
`, dir)
	path := filepath.Join(dir, "churn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSynthThenVerify(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	out, err := execute(t, "synth", "-c", cfgPath, "--rows", "400")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 400 rows")
	assert.FileExists(t, filepath.Join(dir, "data", "bank_data.csv"))

	out, err = execute(t, "verify", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "state: done")
	assert.Contains(t, out, "train_models")

	logs, err := filepath.Glob(filepath.Join(dir, "logs", "churn_library_*.log"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	content, err := os.ReadFile(logs[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "root - INFO: Testing import_data: SUCCESS")
	assert.FileExists(t, filepath.Join(dir, "logs", "churn_metrics.prom"))
}

func TestBareCommandRunsVerification(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	_, err := execute(t, "synth", "-c", cfgPath, "-n", "300")
	require.NoError(t, err)

	out, err := execute(t, "-c", cfgPath)
	require.NoError(t, err)
	for _, step := range []string{"import_data", "perform_eda", "encoder_helper",
		"perform_feature_engineering", "train_models"} {
		assert.Contains(t, out, step)
	}
	assert.Contains(t, out, "state: done")

	out, err = execute(t, "--data", filepath.Join(dir, "nope.csv"), "-c", cfgPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Contains(t, out, "state: not-started")
}

func TestVerifyMissingData(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	out, err := execute(t, "verify", "-c", cfgPath, "--data", filepath.Join(dir, "nope.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Contains(t, out, "import_data")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "state: not-started")
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	_, err := execute(t, "synth", "-c", cfgPath, "-n", "300", "--seed", "5")
	require.NoError(t, err)

	out, err := execute(t, "run", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Random Forest")
	assert.Contains(t, out, "Logistic Regression")
	assert.FileExists(t, filepath.Join(dir, "models", "rfc_model.gob"))
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "config", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, out, "log_level: debug")
	assert.Contains(t, out, "response: Churn")

	_, err = execute(t, "config", "--log-level", "loud")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestSynthRejectsBadRows(t *testing.T) {
	_, err := execute(t, "synth", "--rows", "0", "-o", filepath.Join(t.TempDir(), "x.csv"))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}
