package services

import (
	"fmt"
	"sync"
	"time"
)

// SMSRateLimiter caps how many messages a single phone number can
// receive inside a sliding window, so a misbehaving sweep can never
// spam an entrant.
type SMSRateLimiter struct {
	mu          sync.Mutex
	sent        map[string][]time.Time
	maxMessages int
	window      time.Duration
}

// NewSMSRateLimiter creates a new SMS rate limiter
// maxMessages: maximum number of messages per window
// window: time window for rate limiting (e.g., 1 hour)
func NewSMSRateLimiter(maxMessages int, window time.Duration) *SMSRateLimiter {
	return &SMSRateLimiter{
		sent:        make(map[string][]time.Time),
		maxMessages: maxMessages,
		window:      window,
	}
}

// Allow records one send for the number, or reports that its window is
// already full.
func (rl *SMSRateLimiter) Allow(phoneNumber string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	recent := rl.prune(phoneNumber, now)
	if len(recent) >= rl.maxMessages {
		return fmt.Errorf("rate limit exceeded: maximum %d SMS per %v", rl.maxMessages, rl.window)
	}

	rl.sent[phoneNumber] = append(recent, now)
	return nil
}

// prune drops sends that fell out of the window and returns what
// remains. Callers must hold the mutex.
func (rl *SMSRateLimiter) prune(phoneNumber string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	recent := rl.sent[phoneNumber][:0]
	for _, ts := range rl.sent[phoneNumber] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) == 0 {
		delete(rl.sent, phoneNumber)
		return nil
	}
	rl.sent[phoneNumber] = recent
	return recent
}

// GetStats returns rate limiter statistics
func (rl *SMSRateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"tracked_numbers": len(rl.sent),
		"max_messages":    rl.maxMessages,
		"window":          rl.window.String(),
	}
}

// Reset clears all rate limiting data
func (rl *SMSRateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.sent = make(map[string][]time.Time)
}
