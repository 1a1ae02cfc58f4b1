package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// CORS allows the configured origins. A "*" entry allows any origin; browsers
// reject credentialed requests to a wildcard, so credentials are then off.
func CORS(allowedOrigins []string, allowCredentials bool) func(http.Handler) http.Handler {
	if slices.Contains(allowedOrigins, "*") {
		allowedOrigins = []string{"*"}
		allowCredentials = false
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	})
}
