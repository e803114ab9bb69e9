package provider

import (
	"context"

	"github.com/walkweek/walkweek/internal/config"
)

// MessageSender is the outbound SMS delivery port.
type MessageSender interface {
	Send(ctx context.Context, creds config.TwilioCredentials, msg Message) (*Response, error)
}

// Message is one outbound SMS.
type Message struct {
	To        string
	From      string
	Body      string
	MediaURLs []string
}

// Response captures a completed provider call. Send returns an error only
// when the request never completed; provider-side rejections land here so
// the caller can classify and audit them.
type Response struct {
	StatusCode int
	Body       string

	// Parsed reports whether Body decoded as structured provider JSON,
	// in which case SID or ErrorMessage carry the decoded fields.
	Parsed       bool
	SID          string
	ErrorMessage string
}
