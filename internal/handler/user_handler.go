package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/walkweek/walkweek/internal/domain"
)

// UserStore is the subset of the user repository the admin API needs.
type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	SetOptedOut(ctx context.Context, userID int64, optedOut bool) error
}

type UserHandler struct {
	users UserStore
}

func NewUserHandler(users UserStore) (*UserHandler, error) {
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	return &UserHandler{users: users}, nil
}

func RegisterUserRoutes(router fiber.Router, users UserStore) error {
	h, err := NewUserHandler(users)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/users", h.CreateUser)
	v1.Get("/users/:id", h.GetUser)
	v1.Post("/users/:id/consent", h.SetConsent)

	return nil
}

type createUserRequest struct {
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	RemindersEnabled bool   `json:"remindersEnabled"`
	RemindersWhen    string `json:"remindersWhen"`
}

type setConsentRequest struct {
	Action string `json:"action"`
}

type userResponse struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Phone            string    `json:"phone,omitempty"`
	PhoneOptedOut    bool      `json:"phoneOptedOut"`
	RemindersEnabled bool      `json:"remindersEnabled"`
	RemindersWhen    string    `json:"remindersWhen,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	user := domain.User{
		Name:             strings.TrimSpace(req.Name),
		PhoneE164:        strings.TrimSpace(req.Phone),
		RemindersEnabled: req.RemindersEnabled,
	}
	if raw := strings.TrimSpace(req.RemindersWhen); raw != "" {
		when, err := domain.ParseReminderWhenFromString(raw)
		if err != nil {
			return toHTTPError(err)
		}
		user.RemindersWhen = when
	}

	if err := h.users.Create(c.Context(), &user); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toUserResponse(&user))
}

func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return toHTTPError(fmt.Errorf("%w: id must be a positive integer", domain.ErrValidation))
	}

	user, err := h.users.GetByID(c.Context(), int64(id))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toUserResponse(user))
}

// SetConsent applies a STOP or START action to the user's SMS consent.
func (h *UserHandler) SetConsent(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return toHTTPError(fmt.Errorf("%w: id must be a positive integer", domain.ErrValidation))
	}

	var req setConsentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	action := domain.ConsentAction(strings.ToUpper(strings.TrimSpace(req.Action)))
	if !action.IsValid() {
		return toHTTPError(fmt.Errorf("%w: action must be STOP or START", domain.ErrValidation))
	}

	if err := h.users.SetOptedOut(c.Context(), int64(id), action == domain.ConsentStop); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"userId": id,
		"action": string(action),
	})
}

func toUserResponse(u *domain.User) userResponse {
	if u == nil {
		return userResponse{}
	}

	return userResponse{
		ID:               u.ID,
		Name:             u.Name,
		Phone:            u.PhoneE164,
		PhoneOptedOut:    u.PhoneOptedOut,
		RemindersEnabled: u.RemindersEnabled,
		RemindersWhen:    u.RemindersWhen.String(),
		CreatedAt:        u.CreatedAt,
	}
}
