package domain

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	MinPasswordLength = 8
	// bcrypt input limit
	MaxPasswordBytes = 72
)

var commonPasswords = map[string]bool{
	"password":   true,
	"password1":  true,
	"12345678":   true,
	"123456789":  true,
	"qwertyuiop": true,
	"iloveyou":   true,
	"sunshine":   true,
	"football":   true,
	"baseball":   true,
	"superman":   true,
	"trustno1":   true,
	"abcdefgh":   true,
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func tooSimilar(password, attr string) bool {
	if len(attr) < 3 {
		return false
	}
	p := strings.ToLower(password)
	a := strings.ToLower(attr)
	if p == a || strings.Contains(p, a) || strings.Contains(a, p) {
		return true
	}
	// e-mail local part or name parts
	for _, part := range strings.FieldsFunc(a, func(r rune) bool {
		return r == '@' || r == '.' || r == '_' || r == '-' || r == ' '
	}) {
		if len(part) >= 4 && strings.Contains(p, part) && len(part)*10 >= len(p)*7 {
			return true
		}
	}
	return false
}

// ValidatePassword checks password strength for given user and returns list
// of error messages.
func ValidatePassword(password string, user User) []string {
	var errs []string
	for _, attr := range []struct{ name, value string }{
		{"username", user.Username},
		{"email address", user.Email},
		{"first name", user.FirstName},
		{"last name", user.LastName},
	} {
		if tooSimilar(password, attr.value) {
			errs = append(errs, fmt.Sprintf("The password is too similar to the %s.", attr.name))
			break
		}
	}
	if len([]rune(password)) < MinPasswordLength {
		errs = append(errs, fmt.Sprintf("This password is too short. It must contain at least %d characters.", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		errs = append(errs, fmt.Sprintf("This password is too long. It must contain at most %d bytes.", MaxPasswordBytes))
	}
	if commonPasswords[strings.ToLower(strings.TrimSpace(password))] {
		errs = append(errs, "This password is too common.")
	}
	if isNumeric(password) {
		errs = append(errs, "This password is entirely numeric.")
	}
	return errs
}
