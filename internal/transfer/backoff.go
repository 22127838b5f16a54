package transfer

import "time"

const maxBackoffInterval = 12 * time.Hour

// backoffInterval returns the tick interval after the given number of
// consecutive failures: nominal * 10^failures, capped at 12 hours.
func backoffInterval(nominal time.Duration, failures int) time.Duration {
	interval := nominal
	for i := 0; i < failures; i++ {
		if interval >= maxBackoffInterval/10 {
			return maxBackoffInterval
		}
		interval *= 10
	}
	if interval > maxBackoffInterval {
		return maxBackoffInterval
	}
	return interval
}
