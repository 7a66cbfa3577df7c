package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// SMTP sends a plain-text confirmation through an authenticated relay. The
// whole exchange, dial included, is bounded by the caller's context.
type SMTP struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string

	dialer net.Dialer
}

func NewSMTP(host, port, user, password, from string) *SMTP {
	if from == "" {
		from = user
	}
	return &SMTP{Host: host, Port: port, User: user, Password: password, From: from}
}

func (s *SMTP) Send(ctx context.Context, c Confirmation) error {
	if err := s.send(ctx, c); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
		}
		return &DispatchError{Provider: "smtp", Err: err}
	}
	return nil
}

func (s *SMTP) send(ctx context.Context, c Confirmation) error {
	conn, err := s.dialer.DialContext(ctx, "tcp", net.JoinHostPort(s.Host, s.Port))
	if err != nil {
		return err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(dl); err != nil {
			return err
		}
	}
	// Cancellation closes the connection, which unblocks any pending read.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	client, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.Host}); err != nil {
			return err
		}
	}
	if s.User != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", s.User, s.Password, s.Host)); err != nil {
				return err
			}
		}
	}
	if err := client.Mail(s.From); err != nil {
		return err
	}
	if err := client.Rcpt(c.Email); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(confirmationMessage(s.From, c))); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func confirmationMessage(from string, c Confirmation) string {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + c.Email + "\r\n")
	b.WriteString("Subject: Registration confirmed - " + c.StudentID + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Hello %s,\r\n\r\n", c.Name)
	fmt.Fprintf(&b, "Your registration is complete.\r\n\r\n")
	fmt.Fprintf(&b, "Student ID: %s\r\nCourse: %s\r\nLevel: %s\r\n", c.StudentID, c.Course, c.Level)
	return b.String()
}
