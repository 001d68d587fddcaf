package gerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelsWrapAndUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("load skill: %w", ErrSkillNotFound)
	if !errors.Is(wrapped, ErrSkillNotFound) {
		t.Errorf("expected wrapped error to unwrap to ErrSkillNotFound")
	}
}

func TestTypedErrorsCarryPayload(t *testing.T) {
	err := &ChannelNotFound{ChannelID: "discord:general"}
	var target *ChannelNotFound
	if !errors.As(err, &target) {
		t.Fatalf("expected errors.As to match *ChannelNotFound")
	}
	if target.ChannelID != "discord:general" {
		t.Errorf("ChannelID = %q, want discord:general", target.ChannelID)
	}
}

func TestFatalClassifiesDomainErrors(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"skill not found sentinel", ErrSkillNotFound, true},
		{"wrapped skill not found", fmt.Errorf("route: %w", ErrSkillNotFound), true},
		{"channel not found struct", &ChannelNotFound{ChannelID: "x"}, true},
		{"unsafe operation", &UnsafeOperation{Op: "spawn_process", Reason: "not in safety class"}, true},
		{"rate limited is not fatal", &RateLimited{RetryAfterMs: 500}, false},
		{"connection failed is not fatal", ErrConnectionFailed, false},
		{"plain unrelated error", errors.New("something else"), false},
	}
	for _, c := range cases {
		if got := Fatal(c.err); got != c.fatal {
			t.Errorf("%s: Fatal() = %v, want %v", c.name, got, c.fatal)
		}
	}
}

func TestConfidenceBelowThresholdIsFatal(t *testing.T) {
	err := &ConfidenceBelowThreshold{Confidence: 0.2, Threshold: 0.5}
	if !Fatal(err) {
		t.Errorf("expected ConfidenceBelowThreshold to be fatal")
	}
}
