package metamemory

import "time"

// SetNow replaces the clock for tests and returns a restore func.
func SetNow(fn func() time.Time) func() {
	prev := now
	now = fn
	return func() { now = prev }
}
