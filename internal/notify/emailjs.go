package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EmailJS posts confirmations to the EmailJS REST send endpoint.
type EmailJS struct {
	apiURL     string
	serviceID  string
	templateID string
	publicKey  string
	httpc      *http.Client
}

func NewEmailJS(apiURL, serviceID, templateID, publicKey string) *EmailJS {
	return &EmailJS{
		apiURL:     apiURL,
		serviceID:  serviceID,
		templateID: templateID,
		publicKey:  publicKey,
		httpc:      &http.Client{Timeout: 10 * time.Second},
	}
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

func (c *EmailJS) Send(ctx context.Context, conf Confirmation) error {
	if err := c.send(ctx, emailJSRequest{
		ServiceID:  c.serviceID,
		TemplateID: c.templateID,
		UserID:     c.publicKey,
		TemplateParams: map[string]string{
			"email":      conf.Email,
			"to_name":    conf.Name,
			"student_id": conf.StudentID,
			"course":     conf.Course,
			"level":      conf.Level,
		},
	}); err != nil {
		return &DispatchError{Provider: "emailjs", Err: err}
	}
	return nil
}

func (c *EmailJS) send(ctx context.Context, payload emailJSRequest) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(body))
	}
	return nil
}
