package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ConcurrencyLimiter caps concurrent work with a weighted semaphore. It
// guards request handlers through Limit and long-lived stream subscribers
// through TryAcquire/Release.
type ConcurrencyLimiter struct {
	sem           *semaphore.Weighted
	maxConcurrent int64
	timeout       time.Duration
	activeCount   int64
	totalReqs     int64
	rejectedReqs  int64
}

func NewConcurrencyLimiter(maxConcurrent int, timeout time.Duration) *ConcurrencyLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 100
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ConcurrencyLimiter{
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		maxConcurrent: int64(maxConcurrent),
		timeout:       timeout,
	}
}

// Limit waits up to the limiter timeout for a slot and answers 503 when
// none frees up.
func (cl *ConcurrencyLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&cl.totalReqs, 1)

		waitCtx, cancelWait := context.WithTimeout(r.Context(), cl.timeout)
		defer cancelWait()

		acquireStart := time.Now()
		if err := cl.sem.Acquire(waitCtx, 1); err != nil {
			atomic.AddInt64(&cl.rejectedReqs, 1)
			slog.Warn("Concurrency limit: Wait timeout", "duration", time.Since(acquireStart), "total_rejected", atomic.LoadInt64(&cl.rejectedReqs), "wait_timeout", cl.timeout)
			http.Error(w, "server busy", http.StatusServiceUnavailable)
			return
		}
		atomic.AddInt64(&cl.activeCount, 1)
		defer func() {
			cl.sem.Release(1)
			atomic.AddInt64(&cl.activeCount, -1)
		}()

		next.ServeHTTP(w, r)
	})
}

// TryAcquire takes a slot without waiting.
func (cl *ConcurrencyLimiter) TryAcquire() bool {
	atomic.AddInt64(&cl.totalReqs, 1)
	if !cl.sem.TryAcquire(1) {
		atomic.AddInt64(&cl.rejectedReqs, 1)
		return false
	}
	atomic.AddInt64(&cl.activeCount, 1)
	return true
}

func (cl *ConcurrencyLimiter) Release() {
	atomic.AddInt64(&cl.activeCount, -1)
	cl.sem.Release(1)
}

func (cl *ConcurrencyLimiter) Active() int64 {
	return atomic.LoadInt64(&cl.activeCount)
}

func (cl *ConcurrencyLimiter) Rejected() int64 {
	return atomic.LoadInt64(&cl.rejectedReqs)
}

func (cl *ConcurrencyLimiter) Max() int64 {
	return cl.maxConcurrent
}
