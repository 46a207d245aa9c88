// Package whatsapp is the Twilio WhatsApp gateway adapter: webhook payload
// parsing, TwiML reply envelopes and outbound message delivery.
package whatsapp

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.twilio.com"

type Client struct {
	AccountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

func NewClient(accountSID, authToken, fromNumber string) *Client {
	return &Client{
		AccountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Configured reports whether the Twilio credentials are all present.
func (c *Client) Configured() bool {
	return c.AccountSID != "" && c.authToken != "" && c.fromNumber != ""
}

type sendMessageResp struct {
	SID string `json:"sid"`
}

// SendMessage delivers a WhatsApp message via the Twilio Messages API and
// returns the message SID.
func (c *Client) SendMessage(to, body string) (string, error) {
	if !strings.HasPrefix(to, "whatsapp:") {
		to = "whatsapp:" + to
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.AccountSID)
	form := url.Values{
		"To":   {to},
		"From": {"whatsapp:" + c.fromNumber},
		"Body": {body},
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.AccountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var bodyBytes []byte
		if resp.Body != nil {
			bodyBytes, _ = io.ReadAll(resp.Body)
		}
		return "", fmt.Errorf("twilio api returned status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var out sendMessageResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode twilio response: %w", err)
	}
	return out.SID, nil
}

// InboundMessage is the subset of the Twilio webhook form the bot consumes.
type InboundMessage struct {
	From       string
	To         string
	Body       string
	MessageSID string
	NumMedia   string
}

// ParseWebhook extracts the inbound message from a Twilio webhook form.
func ParseWebhook(form url.Values) InboundMessage {
	return InboundMessage{
		From:       form.Get("From"),
		To:         form.Get("To"),
		Body:       form.Get("Body"),
		MessageSID: form.Get("MessageSid"),
		NumMedia:   form.Get("NumMedia"),
	}
}

// UserID derives the conversation key from the sender identifier by
// stripping the transport prefix.
func (m InboundMessage) UserID() string {
	return strings.TrimPrefix(m.From, "whatsapp:")
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// ReplyTwiML wraps a reply in the TwiML envelope Twilio expects back from a
// messaging webhook.
func ReplyTwiML(message string) []byte {
	body, err := xml.Marshal(twimlResponse{Message: message})
	if err != nil {
		// A two-element document over a string cannot fail to marshal.
		return []byte(xml.Header + "<Response></Response>")
	}
	return append([]byte(xml.Header), body...)
}
