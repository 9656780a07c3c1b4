package otp

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/pquerna/otp/totp"
)

// Window describes a code and where it sits in its validity period.
type Window struct {
	Code             string
	RemainingSeconds int
	Period           int
	Progress         float64
}

// TOTP generates time-based codes.
type TOTP struct {
	period uint
	digits otp.Digits
}

// NewTOTP constructs a TOTP generator.
//
// If digits is not 6 or 8, it falls back to 6 digits. If period is 0, it uses
// the common 30-second period.
func NewTOTP(period uint, digits otp.Digits) *TOTP {
	if digits != otp.DigitsSix && digits != otp.DigitsEight {
		digits = otp.DigitsSix
	}
	if period == 0 {
		period = 30
	}

	return &TOTP{period: period, digits: digits}
}

// Period returns the step length in seconds.
func (o *TOTP) Period() int {
	return int(o.period)
}

// Window returns the code valid at the given time together with the seconds
// left in its step and the fraction of the step remaining.
func (o *TOTP) Window(secret string, at time.Time) (Window, error) {
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    o.period,
		Skew:      1,
		Digits:    o.digits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return Window{}, err
	}

	period := int64(o.period)
	remaining := period - at.Unix()%period

	return Window{
		Code:             code,
		RemainingSeconds: int(remaining),
		Period:           int(period),
		Progress:         float64(remaining) / float64(period),
	}, nil
}

// HOTP generates counter-based codes.
type HOTP struct {
	digits otp.Digits
}

// NewHOTP constructs an HOTP generator, defaulting to 6 digits.
func NewHOTP(digits otp.Digits) *HOTP {
	if digits != otp.DigitsSix && digits != otp.DigitsEight {
		digits = otp.DigitsSix
	}
	return &HOTP{digits: digits}
}

// Code returns the code for counter.
func (o *HOTP) Code(secret string, counter uint64) (string, error) {
	return hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
		Digits:    o.digits,
		Algorithm: otp.AlgorithmSHA1,
	})
}
