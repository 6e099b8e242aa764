// Package couponcode produces the short printable codes stamped on coupons.
// Codes are positional within a series (PREFIX-XXX), so uniqueness inside a
// series is structural rather than random.
package couponcode

import (
	"fmt"
	"strings"
)

// Alphabet excludes I, O and Q, which are too easy to misread when a code is
// copied by hand from a printed voucher.
const Alphabet = "0123456789ABCDEFGHJKLMNPRSTUVWXYZ"

const (
	separator = "-"
	prefixLen = 6
	minWidth  = 3
)

// Encode builds the code for the coupon at the given sequence index of a
// series. The prefix is the first 6 characters of the series reference,
// upper-cased; the suffix is the index converted to the alphabet base,
// left-padded with the alphabet's zero character to a minimum width of 3.
// Indexes start at 1; index 0 would encode to "000" but is never issued.
func Encode(seriesRef string, index int) string {
	prefix := strings.ToUpper(seriesRef)
	if len(prefix) > prefixLen {
		prefix = prefix[:prefixLen]
	}
	base := len(Alphabet)
	suffix := ""
	for n := index; n > 0; n = n / base {
		suffix = string(Alphabet[n%base]) + suffix
	}
	for len(suffix) < minWidth {
		suffix = string(Alphabet[0]) + suffix
	}
	return prefix + separator + suffix
}

// Decode recovers the sequence index from a code. It rejects codes that do
// not split into exactly prefix and suffix, and codes whose suffix contains
// any character absent from the alphabet.
func Decode(code string) (int, error) {
	parts := strings.Split(code, separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return 0, fmt.Errorf("malformed coupon code %q", code)
	}
	base := len(Alphabet)
	index := 0
	for _, c := range parts[1] {
		pos := strings.IndexRune(Alphabet, c)
		if pos < 0 {
			return 0, fmt.Errorf("invalid character %q in coupon code %q", c, code)
		}
		index = index*base + pos
	}
	return index, nil
}
