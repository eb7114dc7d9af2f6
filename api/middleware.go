package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"mxiledger/application"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// UserIDHeader carries the caller authenticated by the gateway
const UserIDHeader = "X-User-ID"

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// gatewayAuth checks the shared gateway token and attaches the forwarded
// caller as the request principal. An empty token disables the check.
func (s *Server) gatewayAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.GatewayToken != "" {
			token := bearerToken(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare([]byte(token), []byte(s.config.GatewayToken)) != 1 {
				writeUnauthorized(w, "invalid gateway token")
				return
			}
		}

		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			writeUnauthorized(w, "missing "+UserIDHeader+" header")
			return
		}

		principal := application.Principal{UserID: userID, Admin: s.config.IsAdmin(userID)}
		next.ServeHTTP(w, r.WithContext(application.WithPrincipal(r.Context(), principal)))
	})
}

// requestLogger logs every request through logrus
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		fields := log.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"bytes":     ww.BytesWritten(),
			"duration":  time.Since(start),
			"requestID": middleware.GetReqID(r.Context()),
		}
		if ww.Status() >= http.StatusInternalServerError {
			log.WithFields(fields).Warn("Request failed")
			return
		}
		log.WithFields(fields).Debug("Request served")
	})
}
