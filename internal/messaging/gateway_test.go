package messaging

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"whatsapp:+306912345678", "+306912345678"},
		{"+306912345678", "+306912345678"},
		{"306912345678", "+306912345678"},
		{"whatsapp:306912345678", "+306912345678"},
		{"  whatsapp:+14155238886 ", "+14155238886"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWhatsAppAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+306912345678", "whatsapp:+306912345678"},
		{"306912345678", "whatsapp:+306912345678"},
		{"whatsapp:+306912345678", "whatsapp:+306912345678"},
	}
	for _, tc := range cases {
		if got := WhatsAppAddress(tc.in); got != tc.want {
			t.Errorf("WhatsAppAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
