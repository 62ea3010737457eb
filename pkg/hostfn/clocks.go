package hostfn

import (
	"context"
	"crypto/rand"
	"time"
)

// WallClockNow returns a durable wrapper around the wall-clock read. On
// replay it returns the timestamp recorded at the matching point in the
// log rather than the current time, so that two replays of the same
// prefix always observe the same reading.
func WallClockNow() *Wrapper[struct{}, time.Time] {
	return &Wrapper[struct{}, time.Time]{
		Name:           "wall-clock-now",
		Classification: Local,
		Perform: func(_ context.Context, _ struct{}) (time.Time, ErrorClass, error) {
			return time.Now().UTC(), Retryable, nil
		},
	}
}

// MonotonicClockNow wraps a monotonic clock read the same way.
func MonotonicClockNow() *Wrapper[struct{}, time.Duration] {
	start := time.Now()
	return &Wrapper[struct{}, time.Duration]{
		Name:           "monotonic-clock-now",
		Classification: Local,
		Perform: func(_ context.Context, _ struct{}) (time.Duration, ErrorClass, error) {
			return time.Since(start), Retryable, nil
		},
	}
}

// GetRandomBytes wraps a random byte source. The recorded bytes are
// replayed verbatim so guest code that derives identifiers or nonces from
// them is deterministic on replay.
func GetRandomBytes(n int) *Wrapper[struct{}, []byte] {
	return &Wrapper[struct{}, []byte]{
		Name:           "get-random-bytes",
		Classification: Local,
		Perform: func(_ context.Context, _ struct{}) ([]byte, ErrorClass, error) {
			buf := make([]byte, n)
			if _, err := rand.Read(buf); err != nil {
				return nil, Fatal, err
			}
			return buf, Retryable, nil
		},
	}
}
