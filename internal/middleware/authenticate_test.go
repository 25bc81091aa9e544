package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/agura-market/agura_market/internal/auth"
	"github.com/agura-market/agura_market/internal/logging"
)

const testSecret = "middleware-test-secret"

func newGatedApp(t *testing.T) (*fiber.App, *int) {
	t.Helper()
	verifier, err := auth.NewVerifier(testSecret, nil)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	invoked := 0
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	api := app.Group("/api", Authenticate(verifier))
	api.Get("/me", func(c *fiber.Ctx) error {
		invoked++
		return c.JSON(fiber.Map{"sub": Identity(c).Subject})
	})
	api.Get("/admin", RequireRole(auth.RoleAdmin), func(c *fiber.Ctx) error {
		invoked++
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app, &invoked
}

func bearer(t *testing.T, id auth.Identity) string {
	t.Helper()
	iss, err := auth.NewIssuer(testSecret)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	tok, _, err := iss.Issue(id, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + tok
}

func decodeEnvelope(t *testing.T, app *fiber.App, path, authz string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if authz != "" {
		req.Header.Set(fiber.HeaderAuthorization, authz)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	body := map[string]any{}
	if resp.StatusCode != fiber.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return resp.StatusCode, body
}

func TestAuthenticateRejectsBeforeHandlers(t *testing.T) {
	app, invoked := newGatedApp(t)

	cases := map[string]string{
		"missing":   "",
		"malformed": "Bearer not-a-token",
		"scheme":    "Basic dXNlcjpwYXNz",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			status, body := decodeEnvelope(t, app, "/api/me", header)
			if status != fiber.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", status)
			}
			if body["retryable"] != false {
				t.Fatalf("expected retryable=false, got %v", body["retryable"])
			}
			if body["status"] == "" || body["status"] == nil {
				t.Fatalf("expected a status message, got %v", body)
			}
		})
	}
	if *invoked != 0 {
		t.Fatalf("handler ran %d times without a valid token", *invoked)
	}
}

func TestAuthenticateStoresIdentity(t *testing.T) {
	app, _ := newGatedApp(t)

	status, body := decodeEnvelope(t, app, "/api/me", bearer(t, auth.Identity{Subject: "U1", Role: auth.RoleUser}))
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["sub"] != "U1" {
		t.Fatalf("expected sub U1, got %v", body["sub"])
	}
}

func TestRequireRoleForbidsUsers(t *testing.T) {
	app, invoked := newGatedApp(t)

	status, _ := decodeEnvelope(t, app, "/api/admin", bearer(t, auth.Identity{Subject: "U1", Role: auth.RoleUser}))
	if status != fiber.StatusForbidden || *invoked != 0 {
		t.Fatalf("user: expected 403 and no handler call, got %d after %d calls", status, *invoked)
	}

	status, _ = decodeEnvelope(t, app, "/api/admin", bearer(t, auth.Identity{Subject: "A1", Role: auth.RoleAdmin}))
	if status != fiber.StatusNoContent || *invoked != 1 {
		t.Fatalf("admin: expected 204 and one handler call, got %d after %d calls", status, *invoked)
	}
}

func TestRequireRoleWithoutAuthenticateIsInternalError(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Get("/admin", RequireRole(auth.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	status, body := decodeEnvelope(t, app, "/admin", "")
	if status != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if body["status"] != "internal server error" {
		t.Fatalf("unexpected status message %v", body["status"])
	}
}
