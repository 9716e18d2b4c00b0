package application

import "time"

// Clock supaya timestamp batch dan analysis gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock implementasi default, pakai time.Now() dalam UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock selalu mengembalikan waktu yang sama.
type FixedClock struct{ At time.Time }

func (c FixedClock) Now() time.Time { return c.At }
