// Package system provides the wall clock used to stamp scrape runs.
package system

import "time"

// Clock returns UTC wall time.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
