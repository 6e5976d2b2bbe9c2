package validator

import (
	"strings"
	"testing"
)

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"Simple", "sam@example.com", "sam@example.com", false},
		{"Uppercase Folded", "Sam@Example.COM", "sam@example.com", false},
		{"Surrounding Whitespace", "  sam@example.com \n", "sam@example.com", false},
		{"Empty", "", "", true},
		{"Whitespace Only", "   ", "", true},
		{"No At Sign", "sam.example.com", "", true},
		{"Display Name Rejected", "Sam <sam@example.com>", "", true},
		{"Double At", "sam@@example.com", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeEmail(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("NormalizeEmail(%q): expected error, got %q", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeEmail(%q): %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("NormalizeEmail(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("hunter22"); err != nil {
		t.Errorf("8-char password should pass: %v", err)
	}
	if err := ValidatePassword(""); err == nil {
		t.Error("empty password should fail")
	}
	if err := ValidatePassword("short7!"); err == nil {
		t.Error("7-char password should fail")
	}
	if err := ValidatePassword(strings.Repeat("a", 72)); err != nil {
		t.Errorf("72-char password should pass: %v", err)
	}
	if err := ValidatePassword(strings.Repeat("a", 73)); err == nil {
		t.Error("73-char password should exceed the bcrypt limit")
	}
}
