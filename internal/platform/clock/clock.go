package clock

import "time"

// Clock abstracts time for deterministic tests and strict UTC usage.
type Clock interface {
	NowUTC() time.Time
}

// SystemUTC is the production clock.
type SystemUTC struct{}

func (SystemUTC) NowUTC() time.Time {
	return time.Now().UTC()
}

// Func adapts a plain function to Clock. Tests use it to step time.
type Func func() time.Time

func (f Func) NowUTC() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// NowUTC reads c, falling back to the system clock when c is nil.
func NowUTC(c Clock) time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c.NowUTC()
}
