package middleware

import (
	"context"
	"strings"
	"time"

	"importer_server/pkg/apperr"
	"importer_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locals keys set by JWTAuth.
const (
	LocalUserID      = "user_id"
	LocalAccessToken = "access_token"
)

const tokenBlacklistPrefix = "token:blacklist:"

// TokenBlacklist holds revoked token ids in Redis.
type TokenBlacklist struct {
	redis redis.Cmdable
}

// NewTokenBlacklist returns nil when client is nil, which disables revocation checks.
func NewTokenBlacklist(client redis.Cmdable) *TokenBlacklist {
	if client == nil {
		return nil
	}
	return &TokenBlacklist{redis: client}
}

// Revoke blacklists a token id until expiry.
func (b *TokenBlacklist) Revoke(ctx context.Context, tokenID string, expiry time.Duration) error {
	return b.redis.Set(ctx, tokenBlacklistPrefix+tokenID, "1", expiry).Err()
}

// IsRevoked reports whether a token id is blacklisted. Redis errors fail open.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, tokenID string) bool {
	if b == nil {
		return false
	}
	n, err := b.redis.Exists(ctx, tokenBlacklistPrefix+tokenID).Result()
	if err != nil {
		logger.WithError(err).Warn("token blacklist lookup failed")
		return false
	}
	return n > 0
}

// JWTAuth validates HS256 bearer tokens and stores the subject as user_id.
func JWTAuth(secret string, blacklist *TokenBlacklist) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(time.Minute),
	)

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		tokenString := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenString == "" {
			return apperr.Unauthorized("missing authorization")
		}
		if secret == "" {
			return apperr.ConfigError("JWT secret not configured")
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			logger.WithError(err).Warn("JWT validation failed")
			return apperr.Unauthorized("invalid token")
		}

		if jti, ok := claims["jti"].(string); ok && jti != "" && blacklist.IsRevoked(c.Context(), jti) {
			return apperr.Unauthorized("token has been revoked")
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			return apperr.Unauthorized("missing user id in token")
		}
		userID, err := uuid.Parse(sub)
		if err != nil {
			return apperr.Unauthorized("invalid user id format")
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalAccessToken, tokenString)
		return c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
