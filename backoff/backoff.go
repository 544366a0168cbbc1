// Package backoff provides the retry delay policy for job execution.
// Policies are pure values: given a 1-based attempt number they either
// compute the next delay deterministically or declare the retry budget
// exhausted. All computation is side-effect free and safe for concurrent use.
package backoff

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrExhausted is returned by Policy.Next when the attempt number exceeds
// the policy's retry budget. The caller terminates the job and surfaces
// the failure to the operator-facing channel.
var ErrExhausted = errors.New("backoff: retries exhausted")

// Kind selects the delay growth curve.
type Kind string

const (
	// KindFixed returns the base delay for every attempt.
	KindFixed Kind = "fixed"
	// KindExponential returns Base * 2^(attempt-1). Growth is uncapped:
	// callers needing a ceiling must encode it in their Base/MaxRetries
	// choice.
	KindExponential Kind = "exponential"
)

// Policy describes how failed executions are retried.
type Policy struct {
	// Kind selects fixed or exponential growth.
	Kind Kind `json:"kind"`

	// MaxRetries is the number of retries after the initial execution.
	// A job runs at most MaxRetries+1 times.
	MaxRetries int `json:"max_retries"`

	// Base is the delay before the first retry.
	Base time.Duration `json:"base"`
}

// Next computes the delay before retry attempt n (1-indexed: attempt 1 is
// the first retry after the initial failure). Returns ErrExhausted when
// attempt exceeds MaxRetries.
func (p Policy) Next(attempt int) (time.Duration, error) {
	if attempt > p.MaxRetries {
		return 0, ErrExhausted
	}

	switch p.Kind {
	case KindExponential:
		return time.Duration(float64(p.Base) * math.Pow(2, float64(attempt-1))), nil
	case KindFixed, "":
		return p.Base, nil
	default:
		return 0, fmt.Errorf("backoff: unknown kind %q", p.Kind)
	}
}

// WithMaxRetries returns a copy of the policy with the retry budget replaced.
// Used by the executor to honour a per-job retry budget under a queue-level
// growth curve.
func (p Policy) WithMaxRetries(n int) Policy {
	p.MaxRetries = n
	return p
}

// Fixed builds a fixed-delay policy.
func Fixed(base time.Duration, maxRetries int) Policy {
	return Policy{Kind: KindFixed, Base: base, MaxRetries: maxRetries}
}

// Exponential builds an exponential policy: Base * 2^(attempt-1), uncapped.
func Exponential(base time.Duration, maxRetries int) Policy {
	return Policy{Kind: KindExponential, Base: base, MaxRetries: maxRetries}
}

// Default returns the policy used when neither the queue nor the job
// definition configures one: exponential with 1s base and 3 retries.
func Default() Policy {
	return Exponential(1*time.Second, 3)
}
