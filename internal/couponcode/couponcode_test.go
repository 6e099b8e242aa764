package couponcode

import (
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ref := "9f86d2a1-4c5e-4b7a-9f00-000000000000"
	for _, idx := range []int{1, 2, 9, 10, 32, 33, 34, 100, 1089, 5000} {
		code := Encode(ref, idx)
		if !strings.HasPrefix(code, "9F86D2-") {
			t.Fatalf("expected upper-cased 6-char prefix, got %q", code)
		}
		got, err := Decode(code)
		if err != nil {
			t.Fatalf("decode %q: %v", code, err)
		}
		if got != idx {
			t.Fatalf("round trip %d -> %q -> %d", idx, code, got)
		}
	}
}

func TestEncodeZeroIndex(t *testing.T) {
	// Index 0 is never issued but must still encode deterministically.
	if got := Encode("abcdef", 0); got != "ABCDEF-000" {
		t.Fatalf("expected ABCDEF-000 got %q", got)
	}
}

func TestEncodeShortReference(t *testing.T) {
	if got := Encode("ab", 1); got != "AB-001" {
		t.Fatalf("expected AB-001 got %q", got)
	}
}

func TestEncodeMinWidthPadding(t *testing.T) {
	code := Encode("abcdef", 5)
	if code != "ABCDEF-005" {
		t.Fatalf("expected ABCDEF-005 got %q", code)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "ABCDEF", "ABCDEF-001-EXTRA", "-001", "ABCDEF-"} {
		if _, err := Decode(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestDecodeRejectsExcludedCharacters(t *testing.T) {
	for _, bad := range []string{"ABCDEF-0I1", "ABCDEF-O01", "ABCDEF-00Q", "ABCDEF-0a1"} {
		if _, err := Decode(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestAlphabetExcludesAmbiguousGlyphs(t *testing.T) {
	for _, c := range "IOQ" {
		if strings.ContainsRune(Alphabet, c) {
			t.Fatalf("alphabet must not contain %q", c)
		}
	}
}

func TestCodesUniqueWithinSeries(t *testing.T) {
	seen := map[string]bool{}
	for i := 1; i <= 500; i++ {
		code := Encode("abcdef", i)
		if seen[code] {
			t.Fatalf("duplicate code %q at index %d", code, i)
		}
		seen[code] = true
	}
}
