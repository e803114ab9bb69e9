package domain

import "time"

// Fixed error markers written to the outbound audit trail for sends blocked
// before the provider call.
const (
	AuditErrorOptedOut           = "User opted out"
	AuditErrorMissingCredentials = "Missing TWILIO_ACCOUNT_SID/TWILIO_AUTH_TOKEN/TWILIO_FROM_NUMBER"

	// TransportErrorPrefix prefixes audit errors for requests that never
	// reached the provider (DNS, connect, timeout).
	TransportErrorPrefix = "transport error: "
)

// OutboundAudit is one append-only row per outbound SMS attempt. Nil fields
// mean the attempt never produced that datum: a consent-blocked send has no
// status code, a transport failure has no provider SID.
type OutboundAudit struct {
	ID          int64
	CreatedAt   time.Time
	ToNumber    string
	Body        string
	HTTPStatus  *int
	ProviderSID *string
	Error       *string
}

// Sent reports whether the provider accepted the message.
func (a *OutboundAudit) Sent() bool {
	return a.HTTPStatus != nil && *a.HTTPStatus >= 200 && *a.HTTPStatus < 300
}

// DeliveryStatus is one Twilio status callback, keyed by the provider SID.
type DeliveryStatus struct {
	ID                  int64
	MessageSID          string
	MessageStatus       string
	ToNumber            string
	FromNumber          string
	ErrorCode           string
	ErrorMessage        string
	MessagingServiceSID string
	AccountSID          string
	APIVersion          string
	RawPayload          string
	ReceivedAtUTC       time.Time
}
