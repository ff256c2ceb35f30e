// Package messaging provides the outbound WhatsApp gateway (Twilio's REST
// messaging API) and the TwiML reply envelope for inbound webhook responses.
//
// The Gateway interface is the seam between dispatch logic and the wire:
// services depend on it, tests substitute fakes, and TwilioGateway is the
// production implementation.
package messaging

import (
	"context"
	"strings"
)

// ChannelPrefix is the address prefix of the WhatsApp channel. Outbound
// addresses must carry it; inbound From values arrive with it.
const ChannelPrefix = "whatsapp:"

// Gateway sends one message to one address and returns the provider's message
// id (SID). Implementations must be safe for concurrent use; every dispatch
// path in the application calls Send from its own goroutine.
type Gateway interface {
	Send(ctx context.Context, to, body string) (sid string, err error)
}

// NormalizePhone strips the channel prefix and guarantees a leading "+",
// yielding the bare E.164-ish form stored in the database.
func NormalizePhone(addr string) string {
	p := strings.TrimPrefix(strings.TrimSpace(addr), ChannelPrefix)
	if p != "" && !strings.HasPrefix(p, "+") {
		p = "+" + p
	}
	return p
}

// WhatsAppAddress converts a bare phone number into the channel address the
// gateway expects. Already-prefixed values pass through unchanged.
func WhatsAppAddress(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, ChannelPrefix) {
		return phone
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return ChannelPrefix + phone
}
