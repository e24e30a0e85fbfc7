package validation

import (
	"errors"
	"html"
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"abc", true},
		{"Alice2024", true},
		{"ab", false},
		{strings.Repeat("a", 20), true},
		{strings.Repeat("a", 21), false},
		{"bob_smith", false},
		{"bob smith", false},
		{"", false},
		{"éric", false},
	}
	for _, tt := range tests {
		if got := ValidateUsername(tt.in); got != tt.want {
			t.Errorf("ValidateUsername(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"user@example.com", true},
		{"first.last+tag@mail.example.org", true},
		{"user@localhost", false},
		{"user@example.c", false},
		{"user example@example.com", false},
		{"userexample.com", false},
		{"user@@example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidateEmail(tt.in); got != tt.want {
			t.Errorf("ValidateEmail(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		confirm  string
		want     bool
	}{
		{"complex", "Abcdef1!", "Abcdef1!", true},
		{"lowercase only", "abcdefgh", "abcdefgh", false},
		{"mismatch", "Abcdef1!", "Abcdef1?", false},
		{"too short", "Ab1!", "Ab1!", false},
		{"too long", "Abcdef1!" + strings.Repeat("x", 13), "Abcdef1!" + strings.Repeat("x", 13), false},
		{"twenty chars", "Abcdef1!" + strings.Repeat("x", 12), "Abcdef1!" + strings.Repeat("x", 12), true},
		{"no symbol", "Abcdefg1", "Abcdefg1", false},
		{"no digit", "Abcdefg!", "Abcdefg!", false},
		{"no upper", "abcdef1!", "abcdef1!", false},
		{"disallowed char", "Abcdef1!#", "Abcdef1!#", false},
		{"space", "Abc def1!", "Abc def1!", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidatePassword(tt.password, tt.confirm); got != tt.want {
				t.Errorf("ValidatePassword(%q, %q) = %v, want %v", tt.password, tt.confirm, got, tt.want)
			}
		})
	}
}

func TestSanitizeHTML(t *testing.T) {
	in := `<script>alert("x" & 'y')</script>`
	out := SanitizeHTML(in)
	if strings.ContainsAny(out, `<>"'`) {
		t.Fatalf("escaped output still contains markup characters: %q", out)
	}
	if got := html.UnescapeString(out); got != in {
		t.Errorf("round trip = %q, want %q", got, in)
	}

	if got := SanitizeHTML("<script>"); got != "&lt;script&gt;" {
		t.Errorf("SanitizeHTML(<script>) = %q", got)
	}
	if got := SanitizeHTML("plain"); got != "plain" {
		t.Errorf("plain text should be unchanged, got %q", got)
	}
}

func TestValidateRegistration(t *testing.T) {
	if err := ValidateRegistration("alice", "alice@example.com", "Abcdef1!", "Abcdef1!"); err != nil {
		t.Fatalf("expected valid registration, got %v", err)
	}
	err := ValidateRegistration("al", "alice@example.com", "Abcdef1!", "Abcdef1!")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	err = ValidateRegistration("alice", "not-an-email", "Abcdef1!", "Abcdef1!")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad email, got %v", err)
	}
}
