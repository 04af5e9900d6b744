package billing

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0712345678":     "254712345678",
		"+254712345678":  "254712345678",
		"254712345678":   "254712345678",
		" 0712 345-678 ": "254712345678",
	}
	for in, want := range cases {
		got, err := NormalizePhone(in)
		if err != nil {
			t.Fatalf("NormalizePhone(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("NormalizePhone(%q): expected %q, got %q", in, want, got)
		}
	}

	for _, in := range []string{"", "12345", "07123456789", "0712abc678", "255712345678"} {
		if _, err := NormalizePhone(in); !errors.Is(err, ErrValidation) {
			t.Fatalf("NormalizePhone(%q): expected validation error, got %v", in, err)
		}
	}
}

func TestPhoneCandidates(t *testing.T) {
	got := phoneCandidates("0712345678")
	want := map[string]bool{"0712345678": true, "254712345678": true, "+254712345678": true}
	if len(got) != len(want) {
		t.Fatalf("unexpected candidates %v", got)
	}
	for _, c := range got {
		if !want[c] {
			t.Fatalf("unexpected candidate %q", c)
		}
	}
}
