// Package join holds the out-of-band half of the team handshake: the
// short game code teams type in (or scan) and the endpoint name both
// sides derive from it.
package join

import (
	"crypto/rand"
	"strings"
)

// codeAlphabet excludes ambiguous characters (0/O, 1/I) so codes stay
// human-typable when read off a screen.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the length of a join code.
const CodeLength = 4

// NewCode generates a random join code from the unambiguous alphabet.
func NewCode() string {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic("join: crypto/rand failure: " + err.Error())
	}

	out := make([]byte, CodeLength)
	for i := range out {
		out[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}

	return string(out)
}

// ValidCode reports whether s is a plausible join code.
func ValidCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(codeAlphabet, rune(s[i])) {
			return false
		}
	}
	return true
}

// HostName derives the host's endpoint name from a join code. Clients
// derive the same name from the code they were handed, so the code is
// the only thing that needs to travel out-of-band.
func HostName(code string) string {
	return "quizbox-host-" + strings.ToUpper(code)
}
