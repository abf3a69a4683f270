package middleware

import (
	"net/http"
	"sync"
	"time"

	"serveq/pkg/logger"
)

// IdentityExtractor pulls the requester identity (email) from a request for
// rate-limiting purposes.
type IdentityExtractor func(r *http.Request) string

// IdentityRateLimiter keeps a sliding window of request timestamps per
// identity. Requests without an extractable identity are not limited here;
// passcode issuance is the surface this protects.
type IdentityRateLimiter struct {
	mu        sync.RWMutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	extractor IdentityExtractor
	log       *logger.Logger
	stopCh    chan struct{}
}

func NewIdentityRateLimiter(limit int, window time.Duration, extractor IdentityExtractor, log *logger.Logger) *IdentityRateLimiter {
	limiter := &IdentityRateLimiter{
		requests:  make(map[string][]time.Time),
		limit:     limit,
		window:    window,
		extractor: extractor,
		log:       log,
		stopCh:    make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *IdentityRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for identity, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, identity)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *IdentityRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *IdentityRateLimiter) Allow(identity string) bool {
	if identity == "" {
		return true
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamps := rl.requests[identity]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[identity] = valid
		return false
	}

	rl.requests[identity] = append(valid, now)
	return true
}

func IdentityRateLimit(limiter *IdentityRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := ""
			if limiter.extractor != nil {
				identity = limiter.extractor(r)
			}

			if identity == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(identity) {
				rejectRateLimited(w, limiter.log, r, identity)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(w http.ResponseWriter, log *logger.Logger, r *http.Request, identity string) {
	log.Warn("Rate limit exceeded",
		"request_id", RequestID(r.Context()),
		"identity", identity,
		"path", r.URL.Path,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))
}

// HeaderIdentityExtractor reads the identity from the X-Identity header set
// by the rendering layer.
func HeaderIdentityExtractor(r *http.Request) string {
	return r.Header.Get("X-Identity")
}
