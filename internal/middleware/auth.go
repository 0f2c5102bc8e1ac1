package middleware

import (
	"net/http"
	"strings"

	"creatorchat-service/internal/identity"
	"creatorchat-service/pkg/logger"
	"creatorchat-service/prometheus"

	"github.com/labstack/echo/v4"
)

// Context keys set by FirebaseAuth.
const (
	AuthUIDKey   = "auth_uid"
	AuthEmailKey = "auth_email"
)

// BearerToken extracts the bearer credential from a request, or ""
// when the header is missing or malformed.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// FirebaseAuth verifies the bearer credential against the identity
// provider and stores the subject on the context. Every credential
// problem — missing token, rejected token, provider unreachable — is
// surfaced as the same 401 so callers cannot distinguish provider-down
// from invalid-token.
func FirebaseAuth(verifier identity.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			token := BearerToken(c.Request())
			if token == "" {
				log.Warn("Missing or malformed authorization header")
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
			}

			user := verifier.Verify(c.Request().Context(), token)
			if user == nil {
				log.Warn("Bearer token verification failed")
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
			}

			c.Set(AuthUIDKey, user.UID)
			c.Set(AuthEmailKey, user.Email)

			return next(c)
		}
	}
}

// AuthUID returns the verified subject id set by FirebaseAuth.
func AuthUID(c echo.Context) (string, bool) {
	uid, ok := c.Get(AuthUIDKey).(string)
	return uid, ok && uid != ""
}

// AuthEmail returns the verified email set by FirebaseAuth.
func AuthEmail(c echo.Context) string {
	email, _ := c.Get(AuthEmailKey).(string)
	return email
}
