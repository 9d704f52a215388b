package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows the storefront origins to call the API from the browser.
func CORS(allowOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", HeaderCorrelationID},
		ExposedHeaders: []string{HeaderCorrelationID},
		MaxAge:         300,
	})
	return c.Handler
}
