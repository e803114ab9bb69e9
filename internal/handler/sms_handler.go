package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/walkweek/walkweek/internal/domain"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

// MessageDispatcher is the outbound send port; satisfied by
// service.OutboundService.
type MessageDispatcher interface {
	Send(ctx context.Context, to, body string, mediaURLs ...string) string
}

// AuditReader pages through the outbound audit trail.
type AuditReader interface {
	ListByDestination(ctx context.Context, to string, page, pageSize int) ([]domain.OutboundAudit, int64, error)
	GetByProviderSID(ctx context.Context, sid string) (*domain.OutboundAudit, error)
}

// StatusWriter records Twilio delivery-status callbacks.
type StatusWriter interface {
	Upsert(ctx context.Context, s *domain.DeliveryStatus) error
}

type SMSHandler struct {
	dispatcher MessageDispatcher
	audits     AuditReader
	statuses   StatusWriter
}

func NewSMSHandler(dispatcher MessageDispatcher, audits AuditReader, statuses StatusWriter) (*SMSHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("message dispatcher is required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit reader is required")
	}
	if statuses == nil {
		return nil, fmt.Errorf("status writer is required")
	}
	return &SMSHandler{dispatcher: dispatcher, audits: audits, statuses: statuses}, nil
}

func RegisterSMSRoutes(router fiber.Router, dispatcher MessageDispatcher, audits AuditReader, statuses StatusWriter) error {
	h, err := NewSMSHandler(dispatcher, audits, statuses)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/messages", h.SendMessage)
	v1.Get("/messages", h.ListMessages)
	v1.Get("/messages/:sid", h.GetMessage)
	v1.Post("/twilio/status", h.StatusCallback)

	return nil
}

type sendMessageRequest struct {
	To        string   `json:"to"`
	Body      string   `json:"body"`
	MediaURLs []string `json:"mediaUrls,omitempty"`
}

type sendMessageResponse struct {
	Sent bool   `json:"sent"`
	SID  string `json:"sid,omitempty"`
}

type auditResponse struct {
	ID        int64     `json:"id"`
	To        string    `json:"to"`
	Body      string    `json:"body"`
	HTTPCode  *int      `json:"httpCode,omitempty"`
	SID       *string   `json:"sid,omitempty"`
	Error     *string   `json:"error,omitempty"`
	Sent      bool      `json:"sent"`
	CreatedAt time.Time `json:"createdAt"`
}

type listMessagesResponse struct {
	Data []auditResponse `json:"data"`
	Meta listMeta        `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

// SendMessage dispatches one outbound SMS. The response never carries the
// failure reason; the audit trail does.
func (h *SMSHandler) SendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	to := strings.TrimSpace(req.To)
	if err := domain.ValidatePhone(to); err != nil {
		return toHTTPError(err)
	}
	if strings.TrimSpace(req.Body) == "" {
		return toHTTPError(fmt.Errorf("%w: body is required", domain.ErrValidation))
	}

	sid := h.dispatcher.Send(c.Context(), to, req.Body, req.MediaURLs...)

	return c.Status(fiber.StatusAccepted).JSON(sendMessageResponse{
		Sent: sid != "",
		SID:  sid,
	})
}

func (h *SMSHandler) ListMessages(c *fiber.Ctx) error {
	to := strings.TrimSpace(c.Query("to"))
	if to == "" {
		return toHTTPError(fmt.Errorf("%w: to is required", domain.ErrValidation))
	}

	page := c.QueryInt("page", defaultPage)
	pageSize := c.QueryInt("pageSize", defaultPageSize)
	if page < 1 {
		return toHTTPError(fmt.Errorf("%w: page must be >= 1", domain.ErrValidation))
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return toHTTPError(fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize))
	}

	audits, total, err := h.audits.ListByDestination(c.Context(), to, page, pageSize)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listMessagesResponse{
		Data: toAuditResponses(audits),
		Meta: listMeta{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	})
}

func (h *SMSHandler) GetMessage(c *fiber.Ctx) error {
	sid := strings.TrimSpace(c.Params("sid"))
	audit, err := h.audits.GetByProviderSID(c.Context(), sid)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toAuditResponse(audit))
}

// StatusCallback ingests Twilio's form-encoded delivery-status webhooks.
// Twilio retries on non-2xx, so storage failures surface as 500 and the
// callback arrives again.
func (h *SMSHandler) StatusCallback(c *fiber.Ctx) error {
	sid := strings.TrimSpace(c.FormValue("MessageSid"))
	if sid == "" {
		return toHTTPError(fmt.Errorf("%w: MessageSid is required", domain.ErrValidation))
	}

	status := domain.DeliveryStatus{
		MessageSID:          sid,
		MessageStatus:       strings.TrimSpace(c.FormValue("MessageStatus")),
		ToNumber:            strings.TrimSpace(c.FormValue("To")),
		FromNumber:          strings.TrimSpace(c.FormValue("From")),
		ErrorCode:           strings.TrimSpace(c.FormValue("ErrorCode")),
		ErrorMessage:        strings.TrimSpace(c.FormValue("ErrorMessage")),
		MessagingServiceSID: strings.TrimSpace(c.FormValue("MessagingServiceSid")),
		AccountSID:          strings.TrimSpace(c.FormValue("AccountSid")),
		APIVersion:          strings.TrimSpace(c.FormValue("ApiVersion")),
		RawPayload:          string(c.Body()),
		ReceivedAtUTC:       time.Now().UTC(),
	}

	if err := h.statuses.Upsert(c.Context(), &status); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func toAuditResponses(audits []domain.OutboundAudit) []auditResponse {
	responses := make([]auditResponse, 0, len(audits))
	for i := range audits {
		responses = append(responses, toAuditResponse(&audits[i]))
	}
	return responses
}

func toAuditResponse(a *domain.OutboundAudit) auditResponse {
	if a == nil {
		return auditResponse{}
	}

	return auditResponse{
		ID:        a.ID,
		To:        a.ToNumber,
		Body:      a.Body,
		HTTPCode:  a.HTTPStatus,
		SID:       a.ProviderSID,
		Error:     a.Error,
		Sent:      a.Sent(),
		CreatedAt: a.CreatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return err
	}
}
