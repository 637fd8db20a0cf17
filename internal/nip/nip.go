// Package nip validates Polish taxpayer identifiers (NIP): ten digits with a
// weighted checksum.
package nip

import "strings"

var weights = [9]int{6, 5, 7, 2, 3, 4, 5, 6, 7}

// Strip removes the formatting characters NIPs are commonly typed with
// (spaces, dashes, dots, slashes, parentheses); every other character,
// digit or not, is kept.
func Strip(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch r {
		case ' ', '-', '.', '/', '(', ')':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate reports whether raw is a valid NIP once formatting characters are
// stripped: exactly ten digits, and a checksum satisfying the official
// weighted-sum algorithm. It returns the stripped ten-digit form alongside
// the validity bit so callers don't need to call Strip twice.
func Validate(raw string) (stripped string, ok bool) {
	stripped = Strip(raw)
	if len(stripped) != 10 {
		return stripped, false
	}

	digits := make([]int, 10)
	for i, r := range stripped {
		if r < '0' || r > '9' {
			return stripped, false
		}
		digits[i] = int(r - '0')
	}

	sum := 0
	for i, w := range weights {
		sum += w * digits[i]
	}
	checksum := sum % 11
	if checksum == 10 {
		checksum = 0
	}

	return stripped, checksum == digits[9]
}
