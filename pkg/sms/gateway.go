package sms

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Gateway sends SMS messages to passengers
type Gateway interface {
	Send(phone, message string) error
}

// URLGateway sends SMS via an aggregator's GET-based API. The API key
// identifies the account; the sender ID is the name shown on the
// passenger's phone.
type URLGateway struct {
	apiURL   string
	apiKey   string
	senderID string
	client   *http.Client
}

// NewURLGateway creates a new URLGateway
func NewURLGateway(apiURL, apiKey, senderID string) *URLGateway {
	return &URLGateway{
		apiURL:   apiURL,
		apiKey:   apiKey,
		senderID: senderID,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Send delivers one message to one recipient
func (g *URLGateway) Send(phone, message string) error {
	params := url.Values{}
	params.Add("api_key", g.apiKey)
	params.Add("to", phone)
	params.Add("sender", g.senderID)
	params.Add("message", message)

	fullURL := fmt.Sprintf("%s?%s", g.apiURL, params.Encode())

	resp, err := g.client.Get(fullURL)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read SMS gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SMS gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}

// DevGateway logs messages instead of sending them. Used in development
// and in tests.
type DevGateway struct {
	logger *logrus.Logger
}

// NewDevGateway creates a gateway that only logs
func NewDevGateway(logger *logrus.Logger) *DevGateway {
	return &DevGateway{logger: logger}
}

// Send logs the message that would have been sent
func (g *DevGateway) Send(phone, message string) error {
	g.logger.WithFields(logrus.Fields{
		"phone":   phone,
		"message": message,
	}).Info("SMS (dev mode, not sent)")
	return nil
}
