package service

import (
	"net/mail"
	"strings"
)

// CanonicalizeEmail is the form stored and compared for uniqueness: trimmed and
// lowercased. Provider-specific aliasing (dots, plus suffixes) is kept as typed.
func CanonicalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, "@")
}
