package handlers

import "github.com/educlass/portal/internal/session"

type Flash struct {
	Kind string // "ok" or "error"
	Text string
}

// MakeFlash turns the controller's live notification into a Flash.
func MakeFlash(n *session.Notification) *Flash {
	if n == nil || n.Message == "" {
		return nil
	}
	if n.Severity == session.SeverityError {
		return &Flash{Kind: "error", Text: n.Message}
	}
	return &Flash{Kind: "ok", Text: n.Message}
}
