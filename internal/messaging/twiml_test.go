package messaging

import (
	"encoding/xml"
	"strings"
	"testing"
)

func TestTwiMLReply_WellFormedDocument(t *testing.T) {
	doc := TwiMLReply("Thanks for your response! Your RSVP has been recorded.")

	if !strings.HasPrefix(doc, xml.Header) {
		t.Fatalf("document must start with the XML header: %q", doc)
	}

	var parsed struct {
		XMLName xml.Name `xml:"Response"`
		Message []string `xml:"Message"`
	}
	if err := xml.Unmarshal([]byte(doc), &parsed); err != nil {
		t.Fatalf("unmarshal TwiML: %v", err)
	}
	if len(parsed.Message) != 1 || parsed.Message[0] != "Thanks for your response! Your RSVP has been recorded." {
		t.Fatalf("unexpected message content: %+v", parsed.Message)
	}
}

func TestTwiMLReply_EscapesMarkup(t *testing.T) {
	doc := TwiMLReply(`reply with 'rsvp: yes' & <nothing else>`)

	if strings.Contains(doc, "<nothing else>") {
		t.Fatalf("markup must be escaped: %q", doc)
	}
	var parsed struct {
		Message []string `xml:"Message"`
	}
	if err := xml.Unmarshal([]byte(doc), &parsed); err != nil {
		t.Fatalf("unmarshal TwiML: %v", err)
	}
	if parsed.Message[0] != `reply with 'rsvp: yes' & <nothing else>` {
		t.Fatalf("round-trip mismatch: %q", parsed.Message[0])
	}
}
