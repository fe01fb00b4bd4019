package middleware

import (
	"net/http"
	"strings"

	"product-catalog/pkg/api"
	"product-catalog/pkg/auth"

	"go.uber.org/zap"
)

// API Gateway authorizer headers.
const (
	HeaderGatewayAuthorized = "X-API-Gateway-Authorized"
	HeaderUserID            = "X-User-ID"
	HeaderUserGroups        = "X-User-Groups"
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Authenticate resolves the caller identity. Requests without credentials pass
// through anonymously so public routes keep working; the catalog operations
// decide what an anonymous caller may do. A bad token is rejected with 401.
//
// When trustGateway is set, requests marked as pre-authorized by the API
// Gateway authorizer are trusted on their X-User-ID and X-User-Groups headers.
func Authenticate(validator TokenValidator, trustGateway bool, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if trustGateway && r.Header.Get(HeaderGatewayAuthorized) == "true" {
				userID := r.Header.Get(HeaderUserID)
				if userID == "" {
					api.Error(w, http.StatusUnauthorized, "Missing user context from API Gateway")
					return
				}
				identity := auth.Identity{UserID: userID, Groups: splitGroups(r.Header.Get(HeaderUserGroups))}
				next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
				return
			}

			token := extractToken(r)
			if token == "" || validator == nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Warn("Invalid token",
					zap.Error(err),
					zap.String("path", r.URL.Path),
				)
				switch err {
				case auth.ErrExpiredToken:
					api.Error(w, http.StatusUnauthorized, "Token has expired")
				case auth.ErrInvalidSignature:
					api.Error(w, http.StatusUnauthorized, "Invalid token signature")
				default:
					api.Error(w, http.StatusUnauthorized, "Invalid token")
				}
				return
			}

			identity := auth.Identity{UserID: claims.Subject, Groups: claims.AllGroups()}
			logger.Debug("Request authenticated",
				zap.String("user_id", identity.UserID),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

// extractToken reads the bearer token from the Authorization header.
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(header)
}

func splitGroups(header string) []string {
	var groups []string
	for _, g := range strings.Split(header, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}
