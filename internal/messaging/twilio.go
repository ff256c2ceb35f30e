// Twilio REST implementation of the Gateway interface.
//
// Twilio's Messages endpoint is a form POST authenticated with basic auth
// (account SID + auth token). There is no official Go SDK dependency here;
// the API surface needed is one endpoint, so a plain http.Client keeps the
// dependency graph small and the retry semantics explicit (none - retries are
// the dispatcher's job).
package messaging

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

// defaultAPIBase is Twilio's public API host; overridable for tests.
const defaultAPIBase = "https://api.twilio.com"

// TwilioGateway sends WhatsApp messages through Twilio's REST API.
type TwilioGateway struct {
	// AccountSID and AuthToken authenticate every request.
	AccountSID string
	AuthToken  string
	// From is the sender address, already channel-prefixed
	// (e.g. "whatsapp:+14155238886").
	From string

	// BaseURL overrides the API host (tests point it at a local server).
	BaseURL string
	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client
}

// NewTwilioGateway constructs a gateway with a timeout-bounded HTTP client.
func NewTwilioGateway(accountSID, authToken, from string) *TwilioGateway {
	return &TwilioGateway{
		AccountSID: accountSID,
		AuthToken:  authToken,
		From:       from,
		BaseURL:    defaultAPIBase,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// twilioMessageResponse is the subset of Twilio's response body we read.
type twilioMessageResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send posts one outbound message and returns the provider SID.
// A non-2xx response is returned as an error carrying Twilio's error message
// so the caller can log it and schedule a retry.
func (g *TwilioGateway) Send(ctx context.Context, to, body string) (string, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", g.baseURL(), url.PathEscape(g.AccountSID))

	form := url.Values{}
	form.Set("To", WhatsAppAddress(to))
	form.Set("From", g.From)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(g.AccountSID, g.AuthToken)

	resp, err := g.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var parsed twilioMessageResponse
	// Tolerate an unparsable body on error statuses; the status code is enough.
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := parsed.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("twilio: send to %s failed: %d %s", to, resp.StatusCode, msg)
	}
	if parsed.SID == "" {
		return "", fmt.Errorf("twilio: send to %s succeeded but response carried no sid", to)
	}
	return parsed.SID, nil
}

func (g *TwilioGateway) baseURL() string {
	if g.BaseURL != "" {
		return strings.TrimRight(g.BaseURL, "/")
	}
	return defaultAPIBase
}

func (g *TwilioGateway) client() *http.Client {
	if g.HTTPClient != nil {
		return g.HTTPClient
	}
	return http.DefaultClient
}
