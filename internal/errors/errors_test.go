package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(cause, CodeWriteFailure, "write clip").
		WithMetadata("worker", "2").
		WithMetadata("file", "1700000000000.wav")

	want := "[WRITE_FAILURE] write clip file=1700000000000.wav worker=2: disk full"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"app error", New(CodeReadFailure, "read"), CodeReadFailure},
		{"wrapped app error", fmt.Errorf("cycle: %w", New(CodeDeviceUnavailable, "open")), CodeDeviceUnavailable},
		{"canceled", context.Canceled, CodeCancelled},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), CodeCancelled},
		{"plain", stderrors.New("boom"), CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", Newf(CodeConfigInvalid, "bad %s", "rate"))
	if !IsCode(err, CodeConfigInvalid) {
		t.Error("IsCode should see through fmt wrapping")
	}
	if IsCode(err, CodeConfigMissing) {
		t.Error("IsCode matched the wrong code")
	}
	if IsCode(nil, CodeUnknown) {
		t.Error("IsCode(nil) should be false")
	}
}

func TestMetadata(t *testing.T) {
	err := New(CodeReadFailure, "read").WithMetadata("worker", "1")
	if got := Metadata(err, "worker"); got != "1" {
		t.Errorf("Metadata(worker) = %q, want %q", got, "1")
	}
	if got := Metadata(stderrors.New("x"), "worker"); got != "" {
		t.Errorf("Metadata on plain error = %q, want empty", got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{CodeUnavailable, true},
		{CodeDeviceUnavailable, true},
		{CodeReadFailure, true},
		{CodeWriteFailure, false},
		{CodeConfigInvalid, false},
		{CodeTranscriptionFailed, false},
	}

	for _, tt := range tests {
		if got := IsRetryable(New(tt.code, "x")); got != tt.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
