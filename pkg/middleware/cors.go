package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS limits browser access to the configured dashboard origins. The REST
// surface is GET and POST only, and credentials stay enabled because the
// dashboard sends its bearer token on every call.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
