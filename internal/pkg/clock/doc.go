// Package clock abstracts time for code that counts down or expires things.
//
// Countdowns, reachability windows and feed ticks all read time through
// Clocker, so tests drive them with Manual instead of sleeping.
package clock
