package tools

import (
	"regexp"
	"unicode/utf8"
)

const MinPasswordLen = 8

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func ValidateEmail(email string) bool {
	return emailRe.MatchString(email)
}

// CheckPassword returns the offending field name, or "" when the password is acceptable.
func CheckPassword(password string) string {
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return "password"
	}
	// bcrypt ignores everything past 72 bytes
	if len(password) > 72 {
		return "password"
	}
	return ""
}
