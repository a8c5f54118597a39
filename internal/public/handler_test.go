package public

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-manager-api/internal/config"
)

func TestPublicRoutes(t *testing.T) {
	h := NewHandler(config.AppConfig{Name: "Task Manager API", Version: "1.2.3", Repository: "https://example.com/repo"})
	app := fiber.New()
	app.Get("/health", h.Health)
	RegisterPublicRoutes(app.Group("/api"), h)

	tests := []struct {
		path string
		want map[string]string
	}{
		{"/api/", map[string]string{"app": "Task Manager API", "version": "1.2.3", "repository": "https://example.com/repo"}},
		{"/api/version", map[string]string{"version": "1.2.3"}},
		{"/health", map[string]string{"status": "ok"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil), -1)
			require.NoError(t, err)
			require.Equal(t, 200, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			for k, v := range tt.want {
				assert.Equal(t, v, body[k])
			}
		})
	}
}
