package identity

import (
	"net/mail"
	"strings"
)

// NormEmail lower-cases and trims s and reports whether it parses as an
// address.
func NormEmail(s string) (string, bool) {
	e := strings.TrimSpace(strings.ToLower(s))
	if e == "" {
		return "", false
	}
	_, err := mail.ParseAddress(e)
	return e, err == nil
}
