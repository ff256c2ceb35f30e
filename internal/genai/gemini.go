// Package genai provides the generative-AI collaborator used by the
// assistant: a Completer interface plus a client for Google's Gemini
// generateContent REST API.
//
// Only the request/response fields the assistant needs are modelled; the API
// returns much more. As with the messaging gateway, there is no SDK
// dependency: one endpoint, one http.Client, explicit timeout.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Turn roles in a conversation history.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one utterance in a conversation history.
type Turn struct {
	Role string
	Text string
}

// Completer produces a model reply for a new message given the prior turns.
// Implementations must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, history []Turn, message string) (string, error)
}

const (
	defaultAPIBase = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"
)

// GeminiClient calls the generateContent endpoint of the Gemini API.
type GeminiClient struct {
	APIKey string
	Model  string

	// BaseURL overrides the API host (tests point it at a local server).
	BaseURL string
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// NewGeminiClient constructs a client for the default flash model.
func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{
		APIKey:     apiKey,
		Model:      defaultModel,
		BaseURL:    defaultAPIBase,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Wire types for the generateContent request/response.
type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the prior turns plus the new user message and returns the
// first candidate's text.
func (c *GeminiClient) Complete(ctx context.Context, history []Turn, message string) (string, error) {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, t := range history {
		contents = append(contents, geminiContent{
			Role:  t.Role,
			Parts: []geminiPart{{Text: t.Text}},
		})
	}
	contents = append(contents, geminiContent{
		Role:  RoleUser,
		Parts: []geminiPart{{Text: message}},
	})

	payload, err := json.Marshal(geminiRequest{Contents: contents})
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL(), url.PathEscape(c.model()), url.QueryEscape(c.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("gemini: generateContent failed: %d %s", resp.StatusCode, msg)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: response carried no candidates")
	}

	var sb strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func (c *GeminiClient) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return defaultAPIBase
}

func (c *GeminiClient) model() string {
	if c.Model != "" {
		return c.Model
	}
	return defaultModel
}

func (c *GeminiClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
