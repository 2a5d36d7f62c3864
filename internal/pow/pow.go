// Package pow implements the fractional-difficulty proof-of-work search.
//
// Difficulty is a non-negative real number: the integer part is the number of
// leading zero hex digits the digest must carry, the fractional part linearly
// subdivides the next hex digit into a pass region of floor(16*(1-f)) values.
// A difficulty of 4.5 therefore requires "0000" followed by a digit in 0..7.
package pow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Solution is one accepted nonce together with its digest and how long the
// search took. Consumed immediately by the share submitter; never persisted
// as authoritative state.
type Solution struct {
	Nonce   uint64        `json:"nonce"`
	Hash    string        `json:"hash"` // 64 hex chars, SHA-256
	Elapsed time.Duration `json:"elapsed"`
}

// ctxCheckInterval bounds how many hashes run between cancellation checks.
const ctxCheckInterval = 4096

// Search scans nonces 0,1,2,... until SHA-256(seedPrefix + "-" + nonce)
// satisfies the difficulty predicate. It is deterministic for a fixed seed
// prefix: the first accepted nonce is always the same. The caller builds the
// seed prefix from host ID, device ID and a fresh timestamp so that repeated
// or concurrent searches cover disjoint input spaces.
//
// The loop is CPU-bound and unbounded; ctx is checked periodically so
// shutdown does not wait on an unlucky search.
func Search(ctx context.Context, difficulty float64, seedPrefix string) (Solution, error) {
	if difficulty < 0 {
		return Solution{}, fmt.Errorf("negative difficulty %v", difficulty)
	}

	start := time.Now()
	for nonce := uint64(0); ; nonce++ {
		if nonce%ctxCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return Solution{}, ctx.Err()
			default:
			}
		}

		sum := sha256.Sum256([]byte(seedPrefix + "-" + strconv.FormatUint(nonce, 10)))
		digest := hex.EncodeToString(sum[:])
		if Accepts(difficulty, digest) {
			return Solution{
				Nonce:   nonce,
				Hash:    digest,
				Elapsed: time.Since(start),
			}, nil
		}
	}
}

// Accepts reports whether a hex digest satisfies the difficulty predicate.
// Exposed separately so the boundary arithmetic is testable without a search.
func Accepts(difficulty float64, digest string) bool {
	d := int(difficulty)
	f := difficulty - float64(d)

	if d > len(digest) {
		return false
	}
	for i := 0; i < d; i++ {
		if digest[i] != '0' {
			return false
		}
	}
	if f == 0 {
		return true
	}
	if d >= len(digest) {
		return false
	}

	// Pass region of the fractional digit: floor(16*(1-f)) of the 16 values.
	// f=0.5 keeps 8 values (digits 0..7), f=0.75 keeps 4 (digits 0..3).
	// Digit 0 always stays acceptable: f > 15/16 would otherwise empty the
	// pass region and the search could never terminate.
	bound := int(math.Floor(16 * (1 - f)))
	if bound == 0 {
		bound = 1
	}
	return hexVal(digest[d]) < bound
}

// hexVal returns the numeric value of a lowercase hex digit, or 16 for
// anything else so that malformed input never passes the fractional check.
func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	}
	return 16
}
