package main

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestReadLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"secret\n", "secret"},
		{"secret\r\nignored\n", "secret"},
		{"no newline", "no newline"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := readLine(strings.NewReader(tt.in))
		if err != nil {
			t.Fatalf("readLine(%q): %v", tt.in, err)
		}
		if string(got) != tt.want {
			t.Errorf("readLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := hashPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}

	if _, err := hashPassword(nil, bcrypt.MinCost); err == nil {
		t.Error("expected error for empty password")
	}
}
