package security

import (
	"errors"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatalf("expected a hash, got the plain password")
	}
	if !CheckPassword(hash, "s3cret-pass") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "wrong-pass") {
		t.Fatalf("expected wrong password to fail")
	}
	if CheckPassword("", "s3cret-pass") {
		t.Fatalf("expected empty hash to fail")
	}
	if _, err := HashPassword("abc"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestGenerateRandomString(t *testing.T) {
	a, err := GenerateRandomString(9)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := GenerateRandomString(9)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(a) != 12 || a == b {
		t.Fatalf("unexpected random strings %q %q", a, b)
	}
	if _, err := GenerateRandomString(0); err == nil {
		t.Fatalf("expected error for zero length")
	}
}
