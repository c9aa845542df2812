package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/installer-orchestrator/internal/domain"
	apperrors "github.com/spec-kit/installer-orchestrator/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	raw, meta, err := tm.GenerateToken("alice", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !meta.ExpiresAt.After(meta.IssuedAt) {
		t.Fatalf("expiry not after issue: %+v", meta)
	}
	claims, err := tm.ParseToken(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.SubjectID != "alice" || claims.Role != domain.RoleAdmin {
		t.Fatalf("claims = %+v", claims)
	}

	other := NewTokenManager("other-secret", 5)
	if _, err := other.ParseToken(raw); err == nil {
		t.Fatalf("token signed with another secret must not parse")
	}
}

func newTestApp(tm *TokenManager) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	mw := NewAuthMiddleware(tm)
	app.Get("/any", mw.Handle, func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.SubjectID)
	})
	app.Get("/admin", mw.Handle, RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestMiddlewareAndRoles(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newTestApp(tm)
	userToken, _, _ := tm.GenerateToken("alice", domain.RoleRequester)
	adminToken, _, _ := tm.GenerateToken("root", domain.RoleAdmin)
	bogusRole, _, _ := tm.GenerateToken("eve", domain.PlatformRole("OWNER"))

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/any", "", fiber.StatusUnauthorized},
		{"wrong scheme", "/any", "Basic abc", fiber.StatusUnauthorized},
		{"garbage token", "/any", "Bearer nope", fiber.StatusUnauthorized},
		{"unknown role", "/any", "Bearer " + bogusRole, fiber.StatusUnauthorized},
		{"requester", "/any", "Bearer " + userToken, fiber.StatusOK},
		{"requester on admin route", "/admin", "Bearer " + userToken, fiber.StatusForbidden},
		{"admin", "/admin", "Bearer " + adminToken, fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}
