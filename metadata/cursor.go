// Package metadata drains pending token-metadata work through a batch URI
// resolver. Its processing job is the canonical self-chaining client of the
// job runtime: each execution handles one bounded batch and re-submits
// itself while the ledger still reports remaining work.
package metadata

import (
	"context"
	"fmt"
	"time"
)

// PendingURI identifies one token whose metadata URI still needs resolving.
type PendingURI struct {
	Contract string `json:"contract"`
	TokenID  string `json:"tokenId"`
}

// ResolvedURI is the resolver's verdict for one token. URI is empty when
// resolution failed; Error then carries the reason for logging.
type ResolvedURI struct {
	Contract string `json:"contract"`
	TokenID  string `json:"tokenId"`
	URI      string `json:"uri,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Cursor is the shared work ledger the processing job drains. It must be
// externally synchronized: concurrent drains may interleave, and
// at-least-once delivery is acceptable.
type Cursor interface {
	// Fetch claims up to count pending items, removing them from the
	// ledger.
	Fetch(ctx context.Context, count int) ([]PendingURI, error)

	// Add returns items to the ledger. The processing job uses it to put
	// a claimed batch back when the resolver throttles, so a throttled
	// execution does not advance the cursor.
	Add(ctx context.Context, items ...PendingURI) error

	// Remaining reports how many items are still pending.
	Remaining(ctx context.Context) (int64, error)
}

// Resolver resolves metadata URIs for a whole batch in one call. It may
// return a *ThrottleError to signal upstream rate limiting.
type Resolver interface {
	ResolveBatch(ctx context.Context, items []PendingURI) ([]ResolvedURI, error)
}

// Downstream accepts bulk submissions of resolved URIs for further
// processing.
type Downstream interface {
	SubmitBulk(ctx context.Context, items []ResolvedURI) error
}

// ThrottleError signals that the upstream resolver is rate limiting and
// suggests when to try again. The processing job converts it into an
// explicit reschedule rather than a retry.
type ThrottleError struct {
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("metadata: resolver throttled, retry after %s", e.RetryAfter)
}
