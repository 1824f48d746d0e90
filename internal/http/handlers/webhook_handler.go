// Inbound webhook HTTP handler.
//
// This file exposes the provider-facing endpoint:
//   - POST /webhooks/sms   (receive an inbound SMS delivery callback)
//
// The provider posts application/x-www-form-urlencoded fields (From, To,
// Body, MessageSid, NumMedia, MediaUrl0..N). The handler acknowledges with
// 204 whether or not the message could be attributed to a conversation:
// returning an error status would make the provider retry a payload we have
// deliberately dropped.
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dev-avwi/TradieTrack-sub004/internal/gateway"
	"github.com/dev-avwi/TradieTrack-sub004/internal/http/middleware"
	"github.com/dev-avwi/TradieTrack-sub004/internal/utils"
)

// maxInboundMedia caps how many media URLs are read from one callback.
const maxInboundMedia = 10

// InboundSMS receives a provider delivery callback and routes it to the
// owning conversation. Unattributable messages and webhook redeliveries are
// acknowledged without effect.
func (h *Handlers) InboundSMS(c *gin.Context) {
	from := strings.TrimSpace(c.PostForm("From"))
	if from == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "From required")
		return
	}

	in := gateway.Inbound{
		From:             from,
		To:               strings.TrimSpace(c.PostForm("To")),
		Body:             c.PostForm("Body"),
		GatewayMessageID: strings.TrimSpace(c.PostForm("MessageSid")),
		MediaURLs:        inboundMediaURLs(c),
	}

	// A nil message means dropped or redelivered; both are acknowledged so
	// the provider stops retrying.
	if _, err := h.inSvc.Route(c.Request.Context(), in); err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Str("gateway_message_id", in.GatewayMessageID).Msg("inbound sms routing failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "inbound routing failed")
		return
	}

	noContent(c)
}

// inboundMediaURLs collects MediaUrl0..N as declared by NumMedia.
func inboundMediaURLs(c *gin.Context) []string {
	n := utils.AtoiDefault(c.PostForm("NumMedia"), 0)
	if n <= 0 {
		return nil
	}
	if n > maxInboundMedia {
		n = maxInboundMedia
	}
	urls := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if u := strings.TrimSpace(c.PostForm(fmt.Sprintf("MediaUrl%d", i))); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil
	}
	return urls
}
