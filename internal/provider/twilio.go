package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/walkweek/walkweek/internal/config"
)

const (
	defaultTwilioTimeout = 10 * time.Second
	defaultTwilioBaseURL = "https://api.twilio.com"
)

// TwilioProvider sends SMS through the Twilio message-creation endpoint.
type TwilioProvider struct {
	client  *resty.Client
	baseURL string
}

// NewTwilioProvider builds a client against the production Twilio API. It
// cannot fail: the base URL is a known-good constant and the client is
// constructed here, so no error path exists to surface.
func NewTwilioProvider() *TwilioProvider {
	client := resty.New()
	client.SetTimeout(defaultTwilioTimeout)
	client.SetRetryCount(0)

	return &TwilioProvider{
		client:  client,
		baseURL: defaultTwilioBaseURL,
	}
}

func NewTwilioProviderWithClient(client *resty.Client, baseURL string) (*TwilioProvider, error) {
	trimmedBaseURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBaseURL == "" {
		return nil, fmt.Errorf("twilio base url is required")
	}
	if _, err := url.ParseRequestURI(trimmedBaseURL); err != nil {
		return nil, fmt.Errorf("invalid twilio base url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultTwilioTimeout)
	}
	// A send is attempted at most once per invocation; retry policy belongs
	// to callers.
	client.SetRetryCount(0)

	return &TwilioProvider{
		client:  client,
		baseURL: trimmedBaseURL,
	}, nil
}

func (p *TwilioProvider) Send(ctx context.Context, creds config.TwilioCredentials, msg Message) (*Response, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if !creds.Complete() {
		return nil, fmt.Errorf("twilio credentials are incomplete")
	}

	formData := map[string]string{
		"To":   msg.To,
		"From": msg.From,
		"Body": msg.Body,
	}
	for i, mediaURL := range msg.MediaURLs {
		formData[fmt.Sprintf("MediaUrl%d", i)] = mediaURL
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		p.baseURL, url.PathEscape(creds.AccountSID))

	response, err := p.client.R().
		SetContext(ctx).
		SetBasicAuth(creds.AccountSID, creds.AuthToken).
		SetFormData(formData).
		Post(endpoint)
	if err != nil {
		return nil, &TransportError{Cause: err}
	}
	if response == nil {
		return nil, &TransportError{Cause: fmt.Errorf("empty response")}
	}

	return classify(response.StatusCode(), response.String()), nil
}

// classify decodes the provider body. Twilio answers with a JSON object
// carrying "sid" on acceptance or "message" on rejection; anything else is
// kept raw for the audit trail.
func classify(statusCode int, body string) *Response {
	out := &Response{
		StatusCode: statusCode,
		Body:       body,
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &decoded); err != nil || decoded == nil {
		return out
	}

	out.Parsed = true
	if raw, ok := decoded["sid"]; ok {
		var sid string
		if json.Unmarshal(raw, &sid) == nil {
			out.SID = sid
		}
	}
	if raw, ok := decoded["message"]; ok {
		var message string
		if json.Unmarshal(raw, &message) == nil {
			out.ErrorMessage = message
		}
	}

	return out
}
