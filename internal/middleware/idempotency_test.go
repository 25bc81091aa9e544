package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/agura-market/agura_market/internal/auth"
	"github.com/agura-market/agura_market/internal/logging"
)

// setupTestApp mounts Idempotency behind a stub that plays the role of
// Authenticate, taking the subject from X-Test-Subject.
func setupTestApp(t *testing.T) (*fiber.App, *int, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	logger := logging.Discard()
	app.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(auth.WithIdentity(c.UserContext(), auth.Identity{Subject: c.Get("X-Test-Subject"), Role: auth.RoleUser}))
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logger))

	calls := 0
	app.Post("/resource", func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": calls})
	})
	app.Post("/failing", func(c *fiber.Ctx) error {
		calls++
		return fiber.NewError(fiber.StatusBadGateway, "upstream")
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, &calls, cleanup
}

func postWithKey(t *testing.T, app *fiber.App, path, subject, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Test-Subject", subject)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(payload)
}

func TestIdempotencyHeaderIsOptional(t *testing.T) {
	app, calls, cleanup := setupTestApp(t)
	defer cleanup()

	for i := 0; i < 2; i++ {
		status, _ := postWithKey(t, app, "/resource", "U1", "")
		if status != fiber.StatusCreated {
			t.Fatalf("expected %d got %d", fiber.StatusCreated, status)
		}
	}
	if *calls != 2 {
		t.Fatalf("expected handler to run twice without a key, ran %d", *calls)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls, cleanup := setupTestApp(t)
	defer cleanup()

	status, payload := postWithKey(t, app, "/resource", "U1", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}

	// Second request should return the cached response without invoking handler again.
	status, cachedPayload := postWithKey(t, app, "/resource", "U1", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status)
	}
	if cachedPayload != payload {
		t.Fatalf("expected cached payload %s got %s", payload, cachedPayload)
	}
	if *calls != 1 {
		t.Fatalf("expected handler to run once, ran %d", *calls)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(cachedPayload), &decoded); err != nil {
		t.Fatalf("cached payload invalid json: %v", err)
	}
}

func TestIdempotencyKeysAreScopedToSubject(t *testing.T) {
	app, calls, cleanup := setupTestApp(t)
	defer cleanup()

	_, first := postWithKey(t, app, "/resource", "U1", "same-key")
	_, second := postWithKey(t, app, "/resource", "U2", "same-key")
	if first == second {
		t.Fatalf("different subjects must not share a stored response: %s", first)
	}
	if *calls != 2 {
		t.Fatalf("expected handler to run for each subject, ran %d", *calls)
	}
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	app, calls, cleanup := setupTestApp(t)
	defer cleanup()

	for i := 0; i < 2; i++ {
		status, _ := postWithKey(t, app, "/failing", "U1", "retry-me")
		if status != fiber.StatusBadGateway {
			t.Fatalf("expected %d got %d", fiber.StatusBadGateway, status)
		}
	}
	if *calls != 2 {
		t.Fatalf("failed request must be retryable with the same key, handler ran %d", *calls)
	}
}
