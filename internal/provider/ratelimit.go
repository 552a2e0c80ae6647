// internal/provider/ratelimit.go - Per-key rate-limit state and tier pacing
package provider

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Tier is a provider plan classification discovered from rate-limit
// headers during the probe request.
type Tier string

const (
	TierFree  Tier = "free"
	TierSmall Tier = "small"
	TierLarge Tier = "large"
)

// TierPolicy is the fixed request-pacing policy for a plan tier.
type TierPolicy struct {
	RequestsPerSecond float64
	Concurrency       int
}

func (t Tier) Policy() TierPolicy {
	switch t {
	case TierLarge:
		return TierPolicy{RequestsPerSecond: 100, Concurrency: 8}
	case TierSmall:
		return TierPolicy{RequestsPerSecond: 25, Concurrency: 4}
	default:
		return TierPolicy{RequestsPerSecond: 1, Concurrency: 1}
	}
}

// freeTierFloor is extra spacing between free-tier requests. The nominal
// policy math allows faster, but bursts at the nominal rate still trip
// the provider's 429 detection.
const freeTierFloor = 500 * time.Millisecond

// RateLimitState tracks one provider API key's advisory rate-limit
// counters. It is owned by whoever constructs the adapter and passed in
// by reference, so tests build isolated instances instead of sharing
// process-global state. Counters are updated from every response's
// x-ratelimit-* headers; last write wins.
type RateLimitState struct {
	mu sync.Mutex

	Used         int
	Limit        int
	Remaining    int
	ResetSeconds float64
	Tier         Tier

	probed bool
}

// NewRateLimitState returns a state assuming the most conservative tier
// until a probe says otherwise.
func NewRateLimitState() *RateLimitState {
	return &RateLimitState{Tier: TierFree}
}

// UpdateFromHeaders folds a response's rate-limit headers into the state.
func (s *RateLimitState) UpdateFromHeaders(h http.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, err := strconv.Atoi(h.Get("x-ratelimit-limit")); err == nil {
		s.Limit = v
	}
	if v, err := strconv.Atoi(h.Get("x-ratelimit-remaining")); err == nil {
		s.Remaining = v
		s.Used = s.Limit - v
	}
	if v, err := strconv.ParseFloat(h.Get("x-ratelimit-reset"), 64); err == nil {
		s.ResetSeconds = v
	}
	if s.Limit > 0 {
		s.Tier = classifyTier(s.Limit)
	}
}

// classifyTier maps the advertised daily request limit onto a plan tier.
func classifyTier(limit int) Tier {
	switch {
	case limit <= 250:
		return TierFree
	case limit <= 25000:
		return TierSmall
	default:
		return TierLarge
	}
}

// Probed reports whether a probe already ran for this state; MarkProbed
// records that one did. The probe runs once per process session.
func (s *RateLimitState) Probed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probed
}

func (s *RateLimitState) MarkProbed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probed = true
}

// CurrentTier returns the discovered tier.
func (s *RateLimitState) CurrentTier() Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Tier
}

// Limiter builds a request pacer for the discovered tier. The aggregate
// rate across all fetch lanes matches the tier's requests-per-second,
// with the free tier padded by an extra floor delay.
func (s *RateLimitState) Limiter() *rate.Limiter {
	policy := s.CurrentTier().Policy()
	interval := time.Duration(float64(time.Second) / policy.RequestsPerSecond)
	if s.CurrentTier() == TierFree {
		interval += freeTierFloor
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
