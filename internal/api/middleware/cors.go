package middleware

import (
	"net/http"
	"os"
	"strings"
)

// defaultOrigins - dev-фронтенды, разрешённые всегда
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"http://localhost:5173",
	"http://127.0.0.1:5173",
}

// CORS - middleware Cross-Origin Resource Sharing
//
// Разрешённые origins: defaultOrigins плюс CORS_ALLOWED_ORIGINS (через запятую).
// Для чужих origins заголовки не ставятся, браузер заблокирует ответ.
// Preflight OPTIONS завершается здесь же со статусом 204.
func CORS(next http.Handler) http.Handler {
	allowed := parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if _, ok := allowed[origin]; ok && origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func parseOrigins(env string) map[string]struct{} {
	allowed := make(map[string]struct{}, len(defaultOrigins))
	for _, o := range defaultOrigins {
		allowed[o] = struct{}{}
	}
	for _, o := range strings.Split(env, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = struct{}{}
		}
	}
	return allowed
}
