// Package ratelimit provides rate limiting for outbound image fetches.
//
// The token bucket implementation refills to full capacity after each
// period, which suits the harvester's traffic shape: bursts of downloads
// when a page yields many candidates, then quiet until the next page.
//
// All limiters implement the Limiter interface:
//   - Allow() bool - Check if a request is allowed
//   - Wait() - Block until a request is allowed
//   - Reset() - Reset the limiter state
//
// Usage:
//
//	// 60 requests per minute
//	limiter := ratelimit.NewTokenBucket(60, time.Minute)
//
//	limiter.Wait()
//	// Proceed with request
package ratelimit
