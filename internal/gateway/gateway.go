// Package gateway defines the narrow contract over the external telephony
// provider. The messaging core only needs two things from telephony: send a
// body to an E.164 number, and receive inbound deliveries via webhook (the
// webhook payload is consumed by the HTTP layer, not here).
//
// Three implementations cover the error taxonomy for dispatch:
//   - Twilio-style HTTP adapter for production sends
//   - Simulator for non-production environments (explicitly flagged results,
//     never reported as real sends)
//   - Unconfigured stub that fails every send with ErrNotConfigured, so a
//     missing configuration can never masquerade as success
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrNotConfigured is returned by the unconfigured stub. Dispatch records the
// attempt as failed; it is never collapsed into a silent success.
var ErrNotConfigured = errors.New("sms gateway not configured")

// Result describes a successful hand-off to the provider.
//
// Simulated is true only for the simulator; callers must persist simulated
// sends distinctly from real ones.
type Result struct {
	ExternalID string
	Simulated  bool
}

// Sender transmits one SMS. Implementations must be safe for concurrent use
// and honor the context for cancellation.
type Sender interface {
	Send(ctx context.Context, toE164, body string) (Result, error)
}

// Simulator is the non-production Sender. It fabricates an external id and
// logs the would-be message instead of transmitting it.
type Simulator struct{}

// Send implements Sender.
func (Simulator) Send(_ context.Context, toE164, body string) (Result, error) {
	id := "sim-" + uuid.NewString()
	log.Info().
		Str("to", toE164).
		Int("body_len", len(body)).
		Str("gateway_message_id", id).
		Msg("simulated sms send")
	return Result{ExternalID: id, Simulated: true}, nil
}

// Unconfigured fails every send. It is installed in production when gateway
// credentials are absent.
type Unconfigured struct{}

// Send implements Sender.
func (Unconfigured) Send(context.Context, string, string) (Result, error) {
	return Result{}, ErrNotConfigured
}

// Config carries provider credentials. BaseURL overrides the provider API
// root (used by tests); FromNumber is the tenant-shared sending number.
type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

// Configured reports whether all required credentials are present.
func (c Config) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// New selects a Sender for the given credentials and environment. Credentials
// win; otherwise non-production gets the simulator and production gets the
// failing stub.
func New(cfg Config, production bool) Sender {
	if cfg.Configured() {
		return NewTwilio(cfg)
	}
	if production {
		log.Warn().Msg("sms gateway credentials missing in production; sends will fail")
		return Unconfigured{}
	}
	log.Info().Msg("sms gateway not configured; using simulator")
	return Simulator{}
}

// Inbound is the webhook payload the provider delivers for a received SMS.
// MediaURLs pass through as opaque strings; the core never parses media.
type Inbound struct {
	From             string
	To               string
	Body             string
	GatewayMessageID string
	MediaURLs        []string
}

// String renders a compact description for logs without the body text.
func (in Inbound) String() string {
	return fmt.Sprintf("inbound{from=%s to=%s id=%s}", in.From, in.To, in.GatewayMessageID)
}
