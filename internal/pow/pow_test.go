package pow

import (
	"context"
	"strings"
	"testing"
	"time"
)

// ─── Predicate ──────────────────────────────────────────────────────────────

func TestAccepts_IntegerDifficulty(t *testing.T) {
	tests := []struct {
		name       string
		difficulty float64
		digest     string
		want       bool
	}{
		{"zero difficulty accepts anything", 0, "ffff" + strings.Repeat("a", 60), true},
		{"one zero required", 1, "0abc" + strings.Repeat("a", 60), true},
		{"one zero missing", 1, "1abc" + strings.Repeat("a", 60), false},
		{"three zeros present", 3, "000f" + strings.Repeat("a", 60), true},
		{"three zeros short by one", 3, "00f0" + strings.Repeat("a", 60), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Accepts(tt.difficulty, tt.digest); got != tt.want {
				t.Errorf("Accepts(%v, %q) = %v, want %v", tt.difficulty, tt.digest, got, tt.want)
			}
		})
	}
}

func TestAccepts_FractionalDigit(t *testing.T) {
	// Difficulty 0.5: floor(16*0.5) = 8 passing values, digits 0..7.
	for _, c := range "01234567" {
		if !Accepts(0.5, string(c)+strings.Repeat("0", 63)) {
			t.Errorf("difficulty 0.5 should accept leading digit %q", c)
		}
	}
	for _, c := range "89abcdef" {
		if Accepts(0.5, string(c)+strings.Repeat("0", 63)) {
			t.Errorf("difficulty 0.5 should reject leading digit %q", c)
		}
	}
}

func TestAccepts_FractionalAfterZeros(t *testing.T) {
	// Difficulty 5.5: five zeros then a digit <= 7.
	if !Accepts(5.5, "000007"+strings.Repeat("f", 58)) {
		t.Error("difficulty 5.5 should accept 00000 followed by 7")
	}
	if Accepts(5.5, "000008"+strings.Repeat("f", 58)) {
		t.Error("difficulty 5.5 should reject 00000 followed by 8")
	}
	if Accepts(5.5, "000107"+strings.Repeat("f", 58)) {
		t.Error("difficulty 5.5 should reject a broken zero prefix")
	}
}

func TestAccepts_TightFraction(t *testing.T) {
	// Difficulty 0.9375: floor(16*0.0625) = 1 passing value, digit 0 only.
	if !Accepts(0.9375, "0"+strings.Repeat("f", 63)) {
		t.Error("difficulty 0.9375 should accept leading 0")
	}
	if Accepts(0.9375, "1"+strings.Repeat("f", 63)) {
		t.Error("difficulty 0.9375 should reject leading 1")
	}
}

func TestAccepts_FractionBeyondLastStep(t *testing.T) {
	// Fractions past 15/16 must still leave digit 0 acceptable, or no hash
	// could ever pass and the search would never terminate.
	for _, difficulty := range []float64{0.95, 0.99, 4.99} {
		d := int(difficulty)
		digest := strings.Repeat("0", d) + "0" + strings.Repeat("f", 63-d)
		if !Accepts(difficulty, digest) {
			t.Errorf("difficulty %v should accept a fractional digit of 0", difficulty)
		}
		digest = strings.Repeat("0", d) + "1" + strings.Repeat("f", 63-d)
		if Accepts(difficulty, digest) {
			t.Errorf("difficulty %v should reject a fractional digit of 1", difficulty)
		}
	}
}

// ─── Search ─────────────────────────────────────────────────────────────────

func TestSearch_SolutionSatisfiesPredicate(t *testing.T) {
	for _, difficulty := range []float64{0, 0.5, 0.99, 1, 1.5, 2, 2.5} {
		sol, err := Search(context.Background(), difficulty, "host-device-12345")
		if err != nil {
			t.Fatalf("Search(%v) error: %v", difficulty, err)
		}
		if len(sol.Hash) != 64 {
			t.Fatalf("Search(%v) hash length = %d, want 64", difficulty, len(sol.Hash))
		}
		if !Accepts(difficulty, sol.Hash) {
			t.Errorf("Search(%v) returned hash %s that fails its own predicate", difficulty, sol.Hash)
		}
		n := int(difficulty)
		if sol.Hash[:n] != strings.Repeat("0", n) {
			t.Errorf("Search(%v) hash %s lacks %d-zero prefix", difficulty, sol.Hash, n)
		}
	}
}

func TestSearch_Deterministic(t *testing.T) {
	a, err := Search(context.Background(), 2, "HOST-DEVICE-1700000000")
	if err != nil {
		t.Fatalf("first Search() error: %v", err)
	}
	b, err := Search(context.Background(), 2, "HOST-DEVICE-1700000000")
	if err != nil {
		t.Fatalf("second Search() error: %v", err)
	}
	if a.Nonce != b.Nonce || a.Hash != b.Hash {
		t.Errorf("same seed prefix gave nonce %d/%s then %d/%s", a.Nonce, a.Hash, b.Nonce, b.Hash)
	}
}

func TestSearch_ZeroDifficultyAcceptsFirstNonce(t *testing.T) {
	sol, err := Search(context.Background(), 0, "seed")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if sol.Nonce != 0 {
		t.Errorf("Nonce = %d, want 0", sol.Nonce)
	}
}

func TestSearch_NegativeDifficulty(t *testing.T) {
	if _, err := Search(context.Background(), -1, "seed"); err == nil {
		t.Error("Search(-1) should fail")
	}
}

func TestSearch_CancelAbortsImpossibleSearch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		// 64 leading zeros is unreachable; only cancellation can end this.
		_, err := Search(ctx, 64, "seed")
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("cancelled Search() returned nil error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Search() did not observe cancellation")
	}
}
