package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/afp/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	// AdminSubjectKey holds the token subject of an authenticated admin
	AdminSubjectKey = "admin_subject"
	bearerPrefix    = "Bearer "
	adminRole       = "admin"
)

// AdminClaims are the claims an admin token must carry
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuthConfig configures AdminAuth
type AdminAuthConfig struct {
	// Secret is the HS256 signing key. An empty secret disables the check.
	Secret string
	// Issuer, when set, must match the token's iss claim
	Issuer string
	Logger *zap.Logger
}

// AdminAuth requires an HS256 bearer token with role=admin
func AdminAuth(cfg AdminAuthConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Secret == "" {
		log.Warn("Admin authentication disabled: no JWT secret configured")
		return func(c *gin.Context) { c.Next() }
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)
	key := []byte(cfg.Secret)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			abortAuth(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Missing bearer token")
			return
		}

		var claims AdminClaims
		_, err := parser.ParseWithClaims(strings.TrimPrefix(header, bearerPrefix), &claims, func(*jwt.Token) (any, error) {
			return key, nil
		})
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Token expired"
			}
			log.Debug("Admin token rejected", zap.Error(err))
			abortAuth(c, http.StatusUnauthorized, dto.ErrCodeTokenInvalid, msg)
			return
		}
		if claims.Role != adminRole {
			abortAuth(c, http.StatusForbidden, dto.ErrCodeForbidden, "Admin role required")
			return
		}

		c.Set(AdminSubjectKey, claims.Subject)
		c.Next()
	}
}

func abortAuth(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(code, message, GetRequestID(c)))
}
