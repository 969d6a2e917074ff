package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pesabit/pesabit/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, *int) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	hits := 0
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/resource", func(c *fiber.Ctx) error {
		hits++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"hits": hits})
	})
	return app, &hits
}

func post(t *testing.T, app *fiber.App, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/resource", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode, string(body)
}

func TestIdempotencyHeaderOptional(t *testing.T) {
	app, hits := setupTestApp(t)

	status, _ := post(t, app, "")
	if status != fiber.StatusCreated {
		t.Fatalf("keyless request status = %d, want %d", status, fiber.StatusCreated)
	}
	post(t, app, "")
	if *hits != 2 {
		t.Fatalf("keyless requests must pass through, hits = %d", *hits)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, hits := setupTestApp(t)

	status, body := post(t, app, "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("first request status = %d", status)
	}

	status2, body2 := post(t, app, "abc123")
	if status2 != fiber.StatusCreated {
		t.Fatalf("cached status = %d, want %d", status2, fiber.StatusCreated)
	}
	if body2 != body {
		t.Fatalf("cached payload %q != original %q", body2, body)
	}
	if *hits != 1 {
		t.Fatalf("handler invoked %d times, want 1", *hits)
	}

	// a different key executes the handler again
	post(t, app, "other")
	if *hits != 2 {
		t.Fatalf("distinct key must not share cache, hits = %d", *hits)
	}
}
