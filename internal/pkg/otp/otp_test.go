package otp

import (
	"testing"
	"time"

	"github.com/pquerna/otp"
)

// RFC 6238 test secret ("12345678901234567890" in base32).
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestTOTPWindow(t *testing.T) {
	// Arrange
	gen := NewTOTP(30, otp.DigitsEight)
	at := time.Unix(59, 0).UTC()

	// Act
	w, err := gen.Window(rfcSecret, at)

	// Assert
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}
	if w.Code != "94287082" {
		t.Errorf("Code = %s, want 94287082", w.Code)
	}
	if w.RemainingSeconds != 1 {
		t.Errorf("RemainingSeconds = %d, want 1", w.RemainingSeconds)
	}
	if w.Period != 30 {
		t.Errorf("Period = %d, want 30", w.Period)
	}
	if w.Progress <= 0 || w.Progress > 1 {
		t.Errorf("Progress = %v, want in (0,1]", w.Progress)
	}
}

func TestTOTPDefaults(t *testing.T) {
	gen := NewTOTP(0, otp.Digits(3))
	if gen.Period() != 30 {
		t.Errorf("Period() = %d, want 30", gen.Period())
	}

	w, err := gen.Window(rfcSecret, time.Unix(30, 0))
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}
	if len(w.Code) != 6 {
		t.Errorf("Code = %q, want 6 digits", w.Code)
	}
	if w.RemainingSeconds != 30 || w.Progress != 1 {
		t.Errorf("at step start remaining = %d progress = %v", w.RemainingSeconds, w.Progress)
	}
}

func TestHOTPCode(t *testing.T) {
	// RFC 4226 appendix D, counter 1.
	code, err := NewHOTP(otp.DigitsSix).Code(rfcSecret, 1)
	if err != nil {
		t.Fatalf("Code() error = %v", err)
	}
	if code != "287082" {
		t.Errorf("Code() = %s, want 287082", code)
	}
}
