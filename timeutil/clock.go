package timeutil

import "time"

// =============================================================================
// CLOCK - Injected time source so tests can freeze "now"
// =============================================================================

// Clock supplies the current instant. All engine components take a Clock
// instead of calling time.Now directly; timestamps are normalized to UTC.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FrozenClock always returns the same instant. For tests.
type FrozenClock struct {
	Instant time.Time
}

func (c FrozenClock) Now() time.Time { return c.Instant.UTC() }

// Frozen creates a FrozenClock at the given instant.
func Frozen(t time.Time) FrozenClock { return FrozenClock{Instant: t} }
