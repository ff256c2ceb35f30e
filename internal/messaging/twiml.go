// TwiML reply envelope. Twilio delivers inbound WhatsApp messages as a form
// POST and expects the webhook to answer with a small XML document; the
// <Message> element is echoed back to the sender.
package messaging

import (
	"bytes"
	"encoding/xml"
)

// twimlResponse is the root <Response> element of a messaging TwiML document.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message []string `xml:"Message"`
}

// TwiMLReply renders a TwiML document containing a single reply message.
// Output is deterministic and includes the XML header Twilio expects.
func TwiMLReply(message string) string {
	doc := twimlResponse{Message: []string{message}}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	// Encoding a static struct cannot fail; fall back to an empty body if it
	// somehow does rather than panicking inside a webhook response.
	if err := enc.Encode(doc); err != nil {
		return xml.Header + "<Response></Response>"
	}
	return buf.String()
}
