package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL bounds how long a stored response stays replayable.
const DefaultTTL = 24 * time.Hour

// ErrFingerprintMismatch reports a key reused with a different request shape.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for different request fingerprint")

// Outcome tells the middleware what to do after claiming a key.
type Outcome int

const (
	// OutcomeNew lets the request proceed to the handler.
	OutcomeNew Outcome = iota
	// OutcomeReplay means a stored response exists and must be replayed.
	OutcomeReplay
	// OutcomeInFlight means a concurrent request currently holds the key.
	OutcomeInFlight
)

// Claim is the result of Begin.
type Claim struct {
	Outcome Outcome
	Record  Record
}

// Record is the stored state for one caller-scoped key.
type Record struct {
	Key         string
	Fingerprint string
	Completed   bool
	Response    Response
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

// Response is the replayable part of a completed request.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists idempotency claims and their stored responses.
type Store interface {
	// Begin claims the key, returning the prior record when one exists.
	Begin(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error)
	// Complete stores the response to replay on later retries.
	Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	// Forget drops the claim so a retry runs the handler again.
	Forget(ctx context.Context, key, fingerprint string) error
	// Prune removes up to limit expired records, returning the count.
	Prune(ctx context.Context, now time.Time, limit int) (int, error)
}

func recordID(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// storableHeaders copies response headers, dropping hop-by-hop and derived
// entries that must not be replayed verbatim.
func storableHeaders(src http.Header) http.Header {
	if len(src) == 0 {
		return nil
	}
	dst := make(http.Header, len(src))
	for name, values := range src {
		if skipHeader(name) {
			continue
		}
		dst[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	if len(dst) == 0 {
		return nil
	}
	return dst
}

func skipHeader(name string) bool {
	switch strings.ToLower(name) {
	case "content-length", "date", "connection", "keep-alive",
		"proxy-authenticate", "proxy-authorization", "te", "trailers",
		"transfer-encoding", "upgrade":
		return true
	}
	return false
}
