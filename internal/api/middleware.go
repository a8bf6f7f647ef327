package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ptcoach/pt-manager/internal/guard"
	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/service"
)

// Constants for context keys
const (
	ContextClaimsKey  = "claims"
	ContextSessionKey = "session"
)

// AccessLogger is gin's request logger with the access_token query value
// masked, so stream URLs do not leak bearer tokens into the log.
func AccessLogger(out io.Writer) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Output: out,
		Formatter: func(p gin.LogFormatterParams) string {
			return fmt.Sprintf("[GIN] %v | %3d | %13v | %15s | %-7s %#v\n%s",
				p.TimeStamp.Format("2006/01/02 - 15:04:05"),
				p.StatusCode,
				p.Latency,
				p.ClientIP,
				p.Method,
				redactToken(p.Path),
				p.ErrorMessage,
			)
		},
	})
}

func redactToken(path string) string {
	i := strings.IndexByte(path, '?')
	if i < 0 {
		return path
	}
	q, err := url.ParseQuery(path[i+1:])
	if err != nil {
		return path[:i]
	}
	if !q.Has("access_token") {
		return path
	}
	q.Set("access_token", "REDACTED")
	return path[:i] + "?" + q.Encode()
}

// AuthMiddleware validates the bearer token. EventSource clients cannot set
// headers, so the token may also come from the access_token query parameter.
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			abortWithRedirect(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}", guard.RouteLogin)
			return
		}

		claims, err := authService.ParseToken(tokenString)
		if err != nil {
			abortWithRedirect(c, http.StatusUnauthorized, err.Error(), guard.RouteLogin)
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		t := c.Query("access_token")
		return t, t != ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// SessionGate resolves the signed-in identity against its backing record
// and puts the resulting session on the request context.
// Must run AFTER AuthMiddleware.
func SessionGate(authService service.AuthService, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := getClaims(c)
		if err != nil {
			abortWithError(c, http.StatusInternalServerError, err.Error())
			return
		}

		ctx := c.Request.Context()
		sess, forced, err := authService.ResolveSession(ctx, claims)
		if err != nil {
			log.Error(ctx, "session lookup failed", "userId", claims.UserID, "error", err)
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "Session could not be verified, try again",
				"state": guard.StateLoading,
			})
			return
		}
		if forced {
			abortWithRedirect(c, http.StatusUnauthorized, "Session role does not match this account, signed out", guard.RouteLogin)
			return
		}
		if sess.State == guard.StateUnauthenticated {
			abortWithRedirect(c, http.StatusUnauthorized, "Account no longer exists", guard.RouteLogin)
			return
		}

		c.Set(ContextSessionKey, sess)
		c.Request = c.Request.WithContext(guard.WithSession(ctx, sess))
		c.Next()
	}
}

// RequirePartition rejects sessions that may not reach the route partition
// and points them at their own default screen. Must run AFTER SessionGate.
func RequirePartition(p guard.Partition) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := getSession(c)
		if err != nil {
			abortWithError(c, http.StatusInternalServerError, err.Error())
			return
		}
		if !guard.Reachable(sess.State, p) {
			abortWithRedirect(c, http.StatusForbidden, "Access denied for this role", guard.DefaultRoute(sess.State, sess.FirstLogin))
			return
		}
		c.Next()
	}
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

func abortWithRedirect(c *gin.Context, code int, message, redirect string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message, "redirect": redirect})
}

func getClaims(c *gin.Context) (*service.Claims, error) {
	raw, exists := c.Get(ContextClaimsKey)
	if !exists {
		return nil, errors.New("token claims not found in context")
	}
	claims, ok := raw.(*service.Claims)
	if !ok {
		return nil, errors.New("invalid claims type in context")
	}
	return claims, nil
}

// getSession reads the session placed by SessionGate.
func getSession(c *gin.Context) (*guard.Session, error) {
	sess, ok := guard.FromContext(c.Request.Context())
	if !ok {
		return nil, errors.New("session not found in context")
	}
	return sess, nil
}

// sessionIdentity returns the signed-in identity id, aborting the request
// when it is missing or malformed.
func sessionIdentity(c *gin.Context) (primitive.ObjectID, *guard.Session, bool) {
	sess, err := getSession(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return primitive.NilObjectID, nil, false
	}
	id, err := primitive.ObjectIDFromHex(sess.IdentityID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid user ID format in token.")
		return primitive.NilObjectID, nil, false
	}
	return id, sess, true
}

// pathObjectID parses an ObjectID path parameter, aborting with 400.
func pathObjectID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid "+name+" format.")
		return primitive.NilObjectID, false
	}
	return id, true
}
