package provider

import (
	"errors"

	"github.com/walkweek/walkweek/internal/domain"
)

// TransportError marks a provider call that never completed: DNS failure,
// connection refusal, timeout. The message body may or may not have reached
// the provider.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	if e == nil || e.Cause == nil {
		return domain.TransportErrorPrefix + "unknown"
	}
	return domain.TransportErrorPrefix + e.Cause.Error()
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransport reports whether err is a transport-level provider failure.
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
