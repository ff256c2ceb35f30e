// Package handlers – webhook handler
//
// TwilioWebhook is the single inbound surface for WhatsApp traffic. Twilio
// posts every message a user sends as an application/x-www-form-urlencoded
// body with `From` and `Body` fields, and renders whatever TwiML we answer
// with back to the sender. Routing is by message shape: an "rsvp:" prefix goes
// to the RSVP correlator, everything else to the AI assistant.
//
// The webhook always answers HTTP 200 with a TwiML document, even for senders
// we cannot identify; a non-2xx answer would make the provider retry and the
// user would see nothing.
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-remind-backend/internal/http/middleware"
	"github.com/tbourn/go-remind-backend/internal/messaging"
	"github.com/tbourn/go-remind-backend/internal/repo"
	"github.com/tbourn/go-remind-backend/internal/services"
)

// unknownAccountReply is sent when the inbound number matches no profile.
const unknownAccountReply = "I'm sorry, I can't identify your account. Please ensure your phone number is registered in our system."

// TwilioWebhook handles POST /webhook/twilio.
func (h *Handler) TwilioWebhook(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	body := strings.TrimSpace(c.PostForm("Body"))
	from := c.PostForm("From")

	lg.Info().Str("message", body).Msg("inbound whatsapp message")

	if services.IsRSVPReply(body) {
		twiml(c, messaging.TwiMLReply(h.RSVP.HandleReply(c.Request.Context(), from, body)))
		return
	}

	phone := messaging.NormalizePhone(from)
	profile, err := repo.GetProfileByPhone(c.Request.Context(), h.DB, phone)
	if err != nil {
		lg.Warn().Msg("inbound message from unregistered number")
		twiml(c, messaging.TwiMLReply(unknownAccountReply))
		return
	}

	reply := h.Assistant.HandleQuery(c.Request.Context(), profile.ID, phone, body)
	twiml(c, messaging.TwiMLReply(reply))
}
