package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func TestCorrelationMiddleware_IssuesID(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Use(CorrelationMiddleware())

	var seen string
	app.Get("/ping", func(c *fiber.Ctx) error {
		id, ok := CorrelationIDFromContext(c.Context())
		if !ok {
			t.Error("expected correlation id on the request context")
		}
		seen = id
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("correlation id %q is not a uuid: %v", seen, err)
	}
	if got := resp.Header.Get(fiber.HeaderXRequestID); got != seen {
		t.Fatalf("response header = %q, want %q", got, seen)
	}
}

func TestCorrelationMiddleware_HonorsCallerID(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Use(CorrelationMiddleware())

	var seen string
	app.Get("/ping", func(c *fiber.Ctx) error {
		seen, _ = CorrelationIDFromContext(c.Context())
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(fiber.HeaderXRequestID, "caller-supplied-1")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if seen != "caller-supplied-1" {
		t.Fatalf("correlation id = %q, want caller-supplied-1", seen)
	}
	if got := resp.Header.Get(fiber.HeaderXRequestID); got != "caller-supplied-1" {
		t.Fatalf("response header = %q, want caller-supplied-1", got)
	}
}
