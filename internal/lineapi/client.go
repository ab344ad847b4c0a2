// Package lineapi is a thin client for the LINE Messaging API: webhook
// signature verification, message content download, and text replies.
package lineapi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultAPIURL  = "https://api.line.me"
	defaultDataURL = "https://api-data.line.me"
)

// WebhookRequest is the body of a webhook delivery.
type WebhookRequest struct {
	Events []Event `json:"events"`
}

// Event is a single webhook event.
type Event struct {
	Type       string  `json:"type"`
	ReplyToken string  `json:"replyToken"`
	Message    Message `json:"message"`
}

// Message is the message payload of a message event.
type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ValidateSignature checks the X-Line-Signature header: the base64 of an
// HMAC-SHA256 over the raw request body, keyed by the channel secret.
func ValidateSignature(channelSecret string, body []byte, signature string) bool {
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}

// Messenger is the LINE collaborator consumed by the receipt pipeline.
type Messenger interface {
	// GetMessageContent downloads the binary content of a message and
	// returns it with its content type.
	GetMessageContent(ctx context.Context, messageID string) ([]byte, string, error)
	// Reply sends a text reply for a webhook event.
	Reply(ctx context.Context, replyToken, text string) error
}

// Client implements Messenger against the LINE Messaging API.
type Client struct {
	channelToken string
	apiURL       string
	dataURL      string
	client       *http.Client
}

// NewClient creates a Client against the production LINE endpoints.
func NewClient(channelToken string) *Client {
	return NewClientWithEndpoints(channelToken, defaultAPIURL, defaultDataURL)
}

// NewClientWithEndpoints creates a Client with custom endpoints for
// testing.
func NewClientWithEndpoints(channelToken, apiURL, dataURL string) *Client {
	return &Client{
		channelToken: channelToken,
		apiURL:       apiURL,
		dataURL:      dataURL,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// GetMessageContent downloads the image a user sent.
func (c *Client) GetMessageContent(ctx context.Context, messageID string) ([]byte, string, error) {
	url := fmt.Sprintf("%s/v2/bot/message/%s/content", c.dataURL, messageID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.channelToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching message content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("LINE content API error (status %d): %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading message content: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// Reply sends a single text message in response to a webhook event.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	payload := map[string]any{
		"replyToken": replyToken,
		"messages": []map[string]string{
			{"type": "text", "text": text},
		},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling reply: %w", err)
	}

	url := c.apiURL + "/v2/bot/message/reply"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.channelToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("LINE reply API error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}
