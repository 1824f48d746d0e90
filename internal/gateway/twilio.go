// Package gateway defines the narrow contract over the external telephony
// provider. This file implements the Twilio-style HTTP adapter: a form POST
// to the provider's Messages endpoint with basic-auth credentials.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.twilio.com/2010-04-01"

// Twilio sends messages through the provider's REST API.
type Twilio struct {
	cfg    Config
	client *http.Client
}

// NewTwilio constructs the HTTP adapter with a bounded request timeout.
func NewTwilio(cfg Config) *Twilio {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Twilio{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// twilioResponse is the subset of the provider's create-message response the
// adapter cares about.
type twilioResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	// Error envelope returned on non-2xx responses.
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send implements Sender.
func (t *Twilio) Send(ctx context.Context, toE164, body string) (Result, error) {
	form := url.Values{}
	form.Set("To", toE164)
	form.Set("From", t.cfg.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", strings.TrimRight(t.cfg.BaseURL, "/"), t.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("gateway: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("gateway: read response: %w", err)
	}

	var tr twilioResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return Result{}, fmt.Errorf("gateway: decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := tr.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return Result{}, fmt.Errorf("gateway: provider rejected send (status %d): %s", resp.StatusCode, msg)
	}
	if tr.ErrorCode != nil {
		return Result{}, fmt.Errorf("gateway: provider error %d: %s", *tr.ErrorCode, tr.ErrorMessage)
	}
	if tr.SID == "" {
		return Result{}, fmt.Errorf("gateway: provider returned no message sid")
	}
	return Result{ExternalID: tr.SID}, nil
}
