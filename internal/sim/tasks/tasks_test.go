package tasks

import (
	"errors"
	"testing"
)

func TestOutcomeErrorMapsReasons(t *testing.T) {
	if err := OutcomeError(OutcomeComplete, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := OutcomeError(OutcomeOngoing, ""); err != nil {
		t.Fatalf("ongoing: %v", err)
	}
	err := OutcomeError(OutcomeIncompletable, ReasonStorageUnavailable)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if err := OutcomeError(OutcomeAborted, "operator"); !errors.Is(err, ErrAborted) {
		t.Fatalf("abort with free-form reason: %v", err)
	}
	if err := OutcomeError(OutcomeErrored, ReasonInvariant); !errors.Is(err, ErrInternal) {
		t.Fatalf("errored: %v", err)
	}
}

func TestTerminal(t *testing.T) {
	if OutcomeOngoing.Terminal() {
		t.Fatalf("ongoing is not terminal")
	}
	for _, o := range []Outcome{OutcomeComplete, OutcomeIncompletable, OutcomeAborted, OutcomeErrored} {
		if !o.Terminal() {
			t.Fatalf("%s should be terminal", o)
		}
	}
}
