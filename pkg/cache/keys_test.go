package cache

import (
	"strings"
	"testing"
)

func TestFriendly(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"passthrough", "orgs_acts_2024-01-01_2024-01-08_12_CA_None", "orgs_acts_2024-01-01_2024-01-08_12_CA_None"},
		{"replaces punctuation", "a b:c/d", "a_b_c_d"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Friendly(tt.in); got != tt.want {
				t.Errorf("Friendly(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFriendlyLongKeys(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := Friendly(long)
	if len(got) != truncatedPrefix+64 {
		t.Fatalf("truncated key length = %d, want %d", len(got), truncatedPrefix+64)
	}
	if !strings.HasPrefix(got, strings.Repeat("a", truncatedPrefix)) {
		t.Errorf("truncated key lost its prefix")
	}

	// distinct tails must stay distinct
	other := strings.Repeat("a", 499) + "b"
	if Friendly(long) == Friendly(other) {
		t.Errorf("distinct long keys collided")
	}

	// deterministic
	if Friendly(long) != Friendly(long) {
		t.Errorf("Friendly is not deterministic")
	}
}

func TestFriendlyBoundary(t *testing.T) {
	exact := strings.Repeat("x", maxKeyLen)
	if got := Friendly(exact); got != exact {
		t.Errorf("key of exactly %d chars should pass through", maxKeyLen)
	}
	over := strings.Repeat("x", maxKeyLen+1)
	if got := Friendly(over); len(got) == len(over) {
		t.Errorf("key over %d chars should be truncated", maxKeyLen)
	}
}
