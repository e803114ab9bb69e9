package service

import (
	"context"
	"fmt"
	"time"

	"github.com/walkweek/walkweek/internal/config"
	"github.com/walkweek/walkweek/internal/domain"
	"github.com/walkweek/walkweek/internal/observability"
	"github.com/walkweek/walkweek/internal/provider"
	"github.com/walkweek/walkweek/internal/ratelimit"
	"github.com/walkweek/walkweek/internal/repository"
	"go.uber.org/zap"
)

const smsRateLimitKey = "sms:outbound"

// OutboundService dispatches outbound SMS. Every invocation that passes or
// hits the consent gate leaves exactly one row in the outbound audit trail;
// callers learn failure details from that trail, not from a return value.
type OutboundService struct {
	users       repository.UserRepository
	audits      repository.AuditRepository
	sender      provider.MessageSender
	credentials func() config.TwilioCredentials
	rateLimiter ratelimit.RateLimiter
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

func NewOutboundService(
	users repository.UserRepository,
	audits repository.AuditRepository,
	sender provider.MessageSender,
	credentials func() config.TwilioCredentials,
	rateLimiter ratelimit.RateLimiter,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*OutboundService, error) {
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("message sender is required")
	}
	if credentials == nil {
		return nil, fmt.Errorf("credentials source is required")
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OutboundService{
		users:       users,
		audits:      audits,
		sender:      sender,
		credentials: credentials,
		rateLimiter: rateLimiter,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Send dispatches one SMS to an E.164 destination and returns the provider
// message SID. An empty return means the message was not accepted; the
// audit trail holds the reason. Send never returns an error: consent blocks,
// missing credentials, transport failures, and provider rejections all
// resolve into the audit row, and an audit insert failure is logged rather
// than allowed to mask the real send outcome.
func (s *OutboundService) Send(ctx context.Context, to, body string, mediaURLs ...string) string {
	if ctx == nil {
		ctx = context.Background()
	}
	log := observability.WithContextLogger(s.logger, ctx).With(zap.String("to", to))

	optedOut, err := s.users.IsOptedOut(ctx, to)
	if err != nil {
		// Consent state unknown: refuse to contact the destination.
		log.Error("consent check failed, blocking send", zap.Error(err))
		s.metrics.IncSMSBlocked("consent_check_failed")
		s.audit(ctx, log, to, body, nil, "", "consent check failed: "+err.Error())
		return ""
	}
	if optedOut {
		log.Info("send blocked by opt-out")
		s.metrics.IncSMSBlocked("opted_out")
		s.audit(ctx, log, to, body, nil, "", domain.AuditErrorOptedOut)
		return ""
	}

	creds := s.credentials()
	if !creds.Complete() {
		log.Warn("send blocked by missing provider credentials")
		s.metrics.IncSMSBlocked("missing_credentials")
		s.audit(ctx, log, to, body, nil, "", domain.AuditErrorMissingCredentials)
		return ""
	}

	// Throttling is protective, not a gate: a broken limiter must not stop
	// the pipeline.
	if err := s.rateLimiter.Wait(ctx, smsRateLimitKey); err != nil {
		log.Warn("rate limiter wait failed, proceeding", zap.Error(err))
	}

	start := s.now()
	resp, err := s.sender.Send(ctx, creds, provider.Message{
		To:        to,
		From:      creds.FromNumber,
		Body:      body,
		MediaURLs: mediaURLs,
	})
	s.metrics.ObserveProviderCallDuration(s.now().Sub(start))

	if err != nil {
		log.Warn("provider call did not complete", zap.Error(err))
		s.metrics.IncSMSFailed("transport")
		s.audit(ctx, log, to, body, nil, "", err.Error())
		return ""
	}

	sid, errText := classifyResponse(resp)
	status := resp.StatusCode
	s.audit(ctx, log, to, body, &status, sid, errText)

	if status < 200 || status >= 300 {
		log.Warn("provider declined message",
			zap.Int("status", status),
			zap.String("providerError", errText),
		)
		s.metrics.IncSMSFailed("provider_rejected")
		return ""
	}

	log.Info("message accepted by provider",
		zap.Int("status", status),
		zap.String("sid", sid),
	)
	s.metrics.IncSMSSent()
	return sid
}

// classifyResponse maps a completed provider call to the audit row's SID and
// error columns. A 2xx status with a body that is neither structured nor
// empty of meaning is deliberately treated as success without an SID.
func classifyResponse(resp *provider.Response) (sid string, errText string) {
	switch {
	case resp.Parsed && resp.SID != "":
		return resp.SID, ""
	case resp.Parsed && resp.ErrorMessage != "":
		return "", resp.ErrorMessage
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", resp.Body
	}
	return "", ""
}

// audit appends the attempt record. Failures here are logged and swallowed:
// the caller must still learn the true send outcome when audit logging
// degrades.
func (s *OutboundService) audit(ctx context.Context, log *zap.Logger, to, body string, httpStatus *int, sid, errText string) {
	record := domain.OutboundAudit{
		CreatedAt: s.now().UTC(),
		ToNumber:  to,
		Body:      body,
	}
	if httpStatus != nil && *httpStatus != 0 {
		record.HTTPStatus = httpStatus
	}
	if sid != "" {
		record.ProviderSID = &sid
	}
	if errText != "" {
		record.Error = &errText
	}

	if err := s.audits.Create(ctx, &record); err != nil {
		log.Error("outbound audit insert failed", zap.Error(err))
	}
}
