package join

import (
	"strings"
	"testing"
)

func TestNewCode(t *testing.T) {
	seen := make(map[string]struct{})

	for i := 0; i < 64; i++ {
		code := NewCode()
		if len(code) != CodeLength {
			t.Fatalf("len(%q) = %d, want %d", code, len(code), CodeLength)
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
		seen[code] = struct{}{}
	}

	// 64 draws from a 32^4 space colliding down to a handful would mean
	// the generator is broken.
	if len(seen) < 32 {
		t.Fatalf("only %d distinct codes out of 64 draws", len(seen))
	}
}

func TestCodeAlphabetExcludesLookalikes(t *testing.T) {
	for _, r := range "0O1I" {
		if strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("alphabet contains lookalike %q", r)
		}
	}
}

func TestValidCode(t *testing.T) {
	for code, want := range map[string]bool{
		"AB12":  true,
		"ZZZZ":  true,
		"ab12":  false,
		"AB1":   false,
		"AB120": false,
		"AB1O":  false,
		"":      false,
	} {
		if got := ValidCode(code); got != want {
			t.Fatalf("ValidCode(%q) = %t, want %t", code, got, want)
		}
	}
}

func TestHostName(t *testing.T) {
	if got := HostName("ab12"); got != "quizbox-host-AB12" {
		t.Fatalf("HostName = %q", got)
	}
}
