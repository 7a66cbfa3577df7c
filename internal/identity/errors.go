package identity

import "errors"

// Error codes returned by the gateway.
const (
	CodeEmailInUse    = "email_already_in_use"
	CodeWeakPassword  = "weak_password"
	CodeInvalidEmail  = "invalid_email"
	CodeUserNotFound  = "user_not_found"
	CodeWrongPassword = "wrong_password"
	CodeInvalidToken  = "invalid_token"
	CodeInternal      = "internal"
)

// Error is a coded gateway failure. Message is safe to show to users.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// HasCode reports whether err is a gateway *Error carrying code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
