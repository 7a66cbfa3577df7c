package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var jane = Confirmation{
	Email:     "jane@example.com",
	Name:      "Jane Doe",
	StudentID: "STU12345678",
	Course:    "Mathematics",
	Level:     "Beginner",
}

func TestEmailJSSendPayload(t *testing.T) {
	var got emailJSRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewEmailJS(srv.URL, "svc", "tpl", "pub")
	if err := c.Send(context.Background(), jane); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.ServiceID != "svc" || got.TemplateID != "tpl" || got.UserID != "pub" {
		t.Fatalf("unexpected ids %+v", got)
	}
	want := map[string]string{
		"email":      "jane@example.com",
		"to_name":    "Jane Doe",
		"student_id": "STU12345678",
		"course":     "Mathematics",
		"level":      "Beginner",
	}
	for k, v := range want {
		if got.TemplateParams[k] != v {
			t.Errorf("template_params[%s] = %q, want %q", k, got.TemplateParams[k], v)
		}
	}
}

func TestEmailJSRejectedIsDispatchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "The public key is invalid", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewEmailJS(srv.URL, "svc", "tpl", "bad").Send(context.Background(), jane)
	var de *DispatchError
	if !errors.As(err, &de) || de.Provider != "emailjs" {
		t.Fatalf("expected emailjs DispatchError, got %v", err)
	}
	if !strings.Contains(err.Error(), "public key") {
		t.Fatalf("expected provider message in error, got %v", err)
	}
}

func TestEmailJSHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := NewEmailJS(srv.URL, "s", "t", "p").Send(ctx, jane); err == nil {
		t.Fatal("expected timeout error")
	}
}
