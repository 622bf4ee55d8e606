package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func TestMiddleware(t *testing.T) {
	authn := NewJWTAuthenticator(JWTConfig{}, NewStaticKeyProvider(testKey))

	app := fiber.New()
	app.Use(Middleware(authn))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(PrincipalFromContext(c.UserContext()))
	})

	token, err := SignToken(testKey, JWTConfig{}, "device-1", []string{ScopeFine}, time.Hour)
	if err != nil {
		t.Fatalf("SignToken() error = %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantChall  bool
	}{
		{"valid token", "Bearer " + token, fiber.StatusOK, false},
		{"missing header", "", fiber.StatusUnauthorized, false},
		{"bad token", "Bearer nope", fiber.StatusUnauthorized, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := resp.Header.Get("WWW-Authenticate") != ""; got != tt.wantChall {
				t.Errorf("challenge header present = %v, want %v", got, tt.wantChall)
			}
		})
	}
}
