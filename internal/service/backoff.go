package service

import "time"

// retryBackoff maps the attempt number (1-based) to the delay before the
// next attempt. The schedule is deliberately coarse: destinations are
// third-party HTTP services with their own incident cycles, so sub-second
// retries would only amplify their outages.
var retryBackoff = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
	24 * time.Hour,
}

// RetryDelay returns the backoff delay after the given attempt number,
// clamped to the last table entry.
func RetryDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}
	if attemptNumber > len(retryBackoff) {
		attemptNumber = len(retryBackoff)
	}
	return retryBackoff[attemptNumber-1]
}
