package log

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/YuminosukeSato/churnscope/pkg/errors"
)

func TestRunLoggerFileName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2022, time.October, 28, 14, 3, 59, 0, time.UTC)

	logger, err := NewRunLogger(dir, "churn_library", now)
	if err != nil {
		t.Fatalf("NewRunLogger: %v", err)
	}
	defer logger.Close()

	want := filepath.Join(dir, "churn_library_Oct_28_2022_14_03_59.log")
	if logger.Path() != want {
		t.Errorf("Path() = %q, want %q", logger.Path(), want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestRunLoggerLineFormat(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewRunLogger(dir, "churn_library", time.Now())
	if err != nil {
		t.Fatalf("NewRunLogger: %v", err)
	}

	logger.Info("Testing import_data: SUCCESS")
	logger.Info("Rows and columns", SamplesKey, 10, FeaturesKey, 3)
	logger.Debug("hidden at info level")
	logger.Error("Testing import_eda: The file wasn't found", fmt.Errorf("no such file"))
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(logger.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), data)
	}
	if !strings.Contains(lines[0], " - churn_library - INFO: Testing import_data: SUCCESS") {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "data.samples=10") {
		t.Errorf("expected structured field in %q", lines[1])
	}
	if !strings.Contains(lines[2], "ERROR: Testing import_eda: The file wasn't found") ||
		!strings.Contains(lines[2], "no such file") {
		t.Errorf("unexpected error line: %q", lines[2])
	}
}

func TestRunLoggerTruncatesSameRun(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2022, time.October, 28, 14, 3, 59, 0, time.UTC)

	first, err := NewRunLogger(dir, "churn_library", now)
	if err != nil {
		t.Fatal(err)
	}
	first.Info("first run")
	first.Close()

	second, err := NewRunLogger(dir, "churn_library", now)
	if err != nil {
		t.Fatal(err)
	}
	second.Info("second run")
	second.Close()

	data, _ := os.ReadFile(second.Path())
	if strings.Contains(string(data), "first run") {
		t.Error("expected log file to be truncated on reopen")
	}
}

func TestRunLoggerWarnings(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "churn_library", LevelInfo)
	logger.RouteWarnings()
	defer logger.Close()

	errors.Warn(errors.NewConvergenceWarning("L-BFGS", 10, "iteration limit"))

	if !strings.Contains(buf.String(), "WARN: L-BFGS failed to converge") {
		t.Errorf("warning not routed to run logger: %q", buf.String())
	}
}

func TestRunLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "churn_library", LevelDebug)

	child := logger.With(StepKey, "encoder_helper")
	child.Debug("encoding")

	if !strings.Contains(buf.String(), "harness.step=encoder_helper") {
		t.Errorf("expected context field, got %q", buf.String())
	}
	if !logger.Enabled(context.Background(), LevelDebug) {
		t.Error("debug should be enabled")
	}
	if err := child.(*RunLogger).Close(); err != nil {
		t.Errorf("closing a child should be a no-op, got %v", err)
	}
}

func TestTestLoggerCapture(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	testLogger.Debug("debug message")
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Error("error message", fmt.Errorf("boom"), StepKey, "eda")

	if testLogger.ContainsMessage("debug message") {
		t.Error("debug message should be filtered at info level")
	}
	if !testLogger.ContainsField(OperationKey, OperationFit) {
		t.Error("expected operation field")
	}
	if !testLogger.ContainsField(ErrAttrKey, "boom") {
		t.Error("expected error field")
	}
	if got := testLogger.Messages(); len(got) != 2 {
		t.Errorf("expected 2 messages, got %v", got)
	}
}

func TestTestLoggerContainsMessageEscapedText(t *testing.T) {
	testLogger, buf := NewTestLogger(LevelInfo)

	testLogger.Info(fmt.Sprintf("Rows: %d\tColumns: %d", 5, 2))
	testLogger.Error(fmt.Sprintf("Column %q not found", "Marital_Status"))

	if strings.Contains(buf.String(), "Rows: 5\tColumns: 2") {
		t.Fatal("raw buffer should hold the JSON-escaped tab")
	}
	for _, msg := range []string{
		"Rows: 5\tColumns: 2",
		`Column "Marital_Status" not found`,
		"Columns: 2",
	} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("ContainsMessage(%q) = false, messages %q", msg, testLogger.Messages())
		}
	}
	if testLogger.ContainsMessage("Rows: 6") {
		t.Error("unexpected match")
	}
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"debug", "info", "warn", "error"} {
		if _, ok := ParseLevel(name); !ok {
			t.Errorf("ParseLevel(%q) should succeed", name)
		}
	}
	if _, ok := ParseLevel("verbose"); ok {
		t.Error("ParseLevel(verbose) should fail")
	}
	if err := SetupLogger("verbose", &bytes.Buffer{}); err == nil {
		t.Error("SetupLogger should reject unknown level")
	}
}
