package clock

import "time"

// Clock supplies the current instant. Every "is this loan active" decision is
// made relative to a Clock so tests can pin time.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in UTC.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed always reports the same instant.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time { return f.At.UTC() }
