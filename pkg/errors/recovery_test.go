package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "PerformEDA")
		panic("plotter: no data")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error from recovered panic, got nil")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
	if panicErr.Operation != "PerformEDA" {
		t.Errorf("Expected operation 'PerformEDA', got '%s'", panicErr.Operation)
	}
	if panicErr.StackTrace == "" {
		t.Error("Expected non-empty stack trace")
	}
	if got, want := panicErr.Error(), "panic in PerformEDA: plotter: no data"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestRecover_WithExistingError(t *testing.T) {
	base := errors.New("write failed")
	testFunc := func() (err error) {
		defer Recover(&err, "SaveModel")
		err = base
		panic("encoder closed")
	}

	err := testFunc()
	if !errors.Is(err, base) {
		t.Fatalf("expected original error to be preserved, got %v", err)
	}
	if !strings.Contains(err.Error(), "encoder closed") {
		t.Errorf("expected panic value in message, got %v", err)
	}
}

func TestSafeExecute(t *testing.T) {
	if err := SafeExecute("noop", func() error { return nil }); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	want := errors.New("boom")
	if err := SafeExecute("fail", func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}

	err := SafeExecute("index", func() error {
		var s []int
		_ = s[3]
		return nil
	})
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected PanicError, got %T", err)
	}
}
