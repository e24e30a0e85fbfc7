// Package validation holds the input format checks applied to registration
// and login fields. Every function is pure; a failed check is just false.
package validation

import (
	"errors"
	"html"
	"regexp"
	"strings"
)

// ErrInvalidInput is the single error returned for any malformed field, so
// callers cannot tell which field failed.
var ErrInvalidInput = errors.New("invalid input")

const passwordSymbols = "@$!%*?&"

var (
	usernameRe        = regexp.MustCompile(`^[A-Za-z0-9]{3,20}$`)
	emailRe           = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	passwordCharsetRe = regexp.MustCompile(`^[A-Za-z0-9@$!%*?&]{8,20}$`)
)

// ValidateUsername accepts 3 to 20 ASCII letters or digits.
func ValidateUsername(s string) bool {
	return usernameRe.MatchString(s)
}

// ValidateEmail accepts a conventional local@domain.tld address.
func ValidateEmail(s string) bool {
	return emailRe.MatchString(s)
}

// ValidatePassword requires password == confirm, 8 to 20 characters drawn
// from letters, digits and @$!%*?&, with at least one lowercase letter, one
// uppercase letter, one digit and one symbol.
func ValidatePassword(password, confirm string) bool {
	if password != confirm {
		return false
	}
	if !passwordCharsetRe.MatchString(password) {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, c := range password {
		switch {
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, c):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

// SanitizeHTML escapes & < > " ' so the result can be embedded in an HTML
// document without introducing markup.
func SanitizeHTML(s string) string {
	return html.EscapeString(s)
}

// ValidateRegistration runs every registration check and returns
// ErrInvalidInput if any of them fails.
func ValidateRegistration(username, email, password, confirm string) error {
	if !ValidateUsername(username) || !ValidateEmail(email) || !ValidatePassword(password, confirm) {
		return ErrInvalidInput
	}
	return nil
}
