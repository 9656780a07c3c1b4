// Package otp computes one-time password codes and their countdown window.
//
// It backs the development feed that stands in for the primary device, which
// normally computes codes itself and hands them to the sync core as strings.
package otp
