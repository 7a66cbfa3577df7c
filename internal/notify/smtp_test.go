package notify

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

// startRelay accepts one connection on loopback and hands it to serve.
func startRelay(t *testing.T, serve func(net.Conn)) (host, port string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		serve(conn)
	}()
	host, port, _ = net.SplitHostPort(ln.Addr().String())
	return host, port
}

// speakSMTP plays a minimal relay that answers AUTH with authReply and
// delivers each DATA body to got.
func speakSMTP(authReply string, got chan<- string) func(net.Conn) {
	return func(conn net.Conn) {
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(s string) { fmt.Fprint(conn, s+"\r\n") }

		reply("220 relay.test ESMTP")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"):
				reply("250-relay.test")
				reply("250 AUTH PLAIN")
			case strings.HasPrefix(cmd, "AUTH"):
				reply(authReply)
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				reply("250 ok")
			case cmd == "DATA":
				reply("354 go ahead")
				var b strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					b.WriteString(l)
				}
				got <- b.String()
				reply("250 queued")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("502 unrecognized")
			}
		}
	}
}

// silentRelay accepts and never greets; closed fires once the client hangs up.
func silentRelay(closed chan<- struct{}) func(net.Conn) {
	return func(conn net.Conn) {
		defer close(closed)
		defer conn.Close()
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}
}

func TestSMTPSend(t *testing.T) {
	got := make(chan string, 1)
	host, port := startRelay(t, speakSMTP("235 2.7.0 accepted", got))

	s := NewSMTP(host, port, "bot@example.com", "pw", "")
	if err := s.Send(context.Background(), jane); err != nil {
		t.Fatalf("send: %v", err)
	}

	var msg string
	select {
	case msg = <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("relay never received the message")
	}
	for _, want := range []string{
		"From: bot@example.com",
		"To: jane@example.com",
		"Subject: Registration confirmed - STU12345678",
		"Hello Jane Doe",
		"Course: Mathematics",
		"Level: Beginner",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSMTPAuthRejectedIsDispatchError(t *testing.T) {
	host, port := startRelay(t, speakSMTP("535 5.7.8 authentication failed", make(chan string, 1)))

	s := NewSMTP(host, port, "u", "p", "f@example.com")
	var de *DispatchError
	if err := s.Send(context.Background(), jane); !errors.As(err, &de) || de.Provider != "smtp" {
		t.Fatalf("expected smtp DispatchError, got %v", err)
	}
}

func TestSMTPCancelClosesConnection(t *testing.T) {
	closed := make(chan struct{})
	host, port := startRelay(t, silentRelay(closed))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	s := NewSMTP(host, port, "u", "p", "f@example.com")
	err := s.Send(ctx, jane)
	var de *DispatchError
	if !errors.As(err, &de) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled smtp DispatchError, got %v", err)
	}
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection still open after cancellation")
	}
}

func TestSMTPDeadlineBoundsExchange(t *testing.T) {
	closed := make(chan struct{})
	host, port := startRelay(t, silentRelay(closed))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := NewSMTP(host, port, "u", "p", "f@example.com").Send(ctx, jane)
	var de *DispatchError
	if !errors.As(err, &de) {
		t.Fatalf("expected smtp DispatchError, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("send outlived its deadline by far: %s", elapsed)
	}
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection still open after the deadline")
	}
}
