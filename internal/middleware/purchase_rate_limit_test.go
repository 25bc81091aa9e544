package middleware

import (
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/agura-market/agura_market/internal/auth"
	"github.com/agura-market/agura_market/internal/logging"
)

func setupRateLimitApp(t *testing.T, limit int) (*fiber.App, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(auth.WithIdentity(c.UserContext(), auth.Identity{Subject: c.Get("X-Test-Subject"), Role: auth.RoleUser}))
		return c.Next()
	})
	app.Post("/pay", PurchaseRateLimit(cache, limit), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app, mr
}

func postAs(t *testing.T, app *fiber.App, subject string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/pay", nil)
	req.Header.Set("X-Test-Subject", subject)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestPurchaseRateLimitPerSubject(t *testing.T) {
	app, mr := setupRateLimitApp(t, 2)

	want := []struct {
		subject string
		status  int
	}{
		{"U1", fiber.StatusOK},
		{"U1", fiber.StatusOK},
		{"U1", fiber.StatusTooManyRequests},
		{"U2", fiber.StatusOK},
	}
	for i, w := range want {
		if got := postAs(t, app, w.subject); got != w.status {
			t.Fatalf("request %d as %s: expected %d, got %d", i, w.subject, w.status, got)
		}
	}

	if ttl := mr.TTL("rl:purchase:U1"); ttl <= 0 {
		t.Fatalf("expected counter to expire, ttl=%v", ttl)
	}
}

func TestPurchaseRateLimitRestoresMissingExpiry(t *testing.T) {
	app, mr := setupRateLimitApp(t, 5)

	// A counter left behind without a TTL would otherwise block the subject forever.
	if err := mr.Set("rl:purchase:U1", "3"); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	if got := postAs(t, app, "U1"); got != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", got)
	}
	if ttl := mr.TTL("rl:purchase:U1"); ttl <= 0 {
		t.Fatalf("expected counter to regain a ttl, ttl=%v", ttl)
	}
	if v, _ := mr.Get("rl:purchase:U1"); v != "4" {
		t.Fatalf("expected counter 4, got %q", v)
	}
}

func TestPurchaseRateLimitKeepsExistingWindow(t *testing.T) {
	app, mr := setupRateLimitApp(t, 5)

	if got := postAs(t, app, "U1"); got != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", got)
	}
	first := mr.TTL("rl:purchase:U1")
	mr.FastForward(first / 2)
	if got := postAs(t, app, "U1"); got != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", got)
	}
	if ttl := mr.TTL("rl:purchase:U1"); ttl >= first {
		t.Fatalf("window was extended: before=%v after=%v", first, ttl)
	}
}

func TestPurchaseRateLimitFailsOpen(t *testing.T) {
	app, mr := setupRateLimitApp(t, 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		if got := postAs(t, app, "U1"); got != fiber.StatusOK {
			t.Fatalf("request %d: expected fail-open 200, got %d", i, got)
		}
	}
}
