package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"autotrader/pkg/crypto"
	"autotrader/pkg/utils"
)

// Auth - bearer-token аутентификация control API
//
// Токен из "Authorization: Bearer <token>" сверяется с bcrypt-хешем
// (API_TOKEN_HASH). Браузерный WebSocket не умеет ставить заголовки,
// поэтому для /ws/stream токен принимается и из ?token=.
//
// Preflight OPTIONS пропускается без проверки: его обрабатывает CORS.
func Auth(tokenHash string, logger *utils.Logger) mux.MiddlewareFunc {
	if logger == nil {
		logger = utils.L()
	}
	log := logger.WithComponent("auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			if err := crypto.VerifyToken(token, tokenHash); err != nil {
				log.Warn("rejected api token",
					utils.String("path", r.URL.Path),
					utils.String("remote_addr", r.RemoteAddr))
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if strings.HasPrefix(r.URL.Path, "/ws/") {
		return r.URL.Query().Get("token")
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="autotrader"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","code":"UNAUTHORIZED"}`))
}
