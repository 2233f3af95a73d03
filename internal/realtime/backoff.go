package realtime

import "time"

// Backoff bounds the reconnect loop.
type Backoff struct {
	// Initial is the delay before the first reconnect.
	Initial time.Duration

	// Max caps any single delay.
	Max time.Duration

	// MaxAttempts is how many consecutive failed reconnects are tolerated
	// before the manager gives up.
	MaxAttempts int
}

// DefaultBackoff waits 1s, 2s, 4s, ... up to 30s, eight times.
var DefaultBackoff = Backoff{
	Initial:     time.Second,
	Max:         30 * time.Second,
	MaxAttempts: 8,
}

// Delay returns the wait before reconnect number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Initial
	for i := 1; i < attempt; i++ {
		if d > b.Max/2 {
			return b.Max
		}
		d *= 2
	}
	return min(d, b.Max)
}
