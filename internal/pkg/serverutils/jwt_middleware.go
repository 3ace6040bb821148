package serverutils

import (
	"crypto/subtle"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	localUserId = "user_id"
	localRole   = "role"
	roleAdmin   = "admin"
)

func parseBearer(ctx *fiber.Ctx, secret string) (jwt.MapClaims, error) {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Missing token")
	}
	tokenStr := authHeader[7:]

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid claims")
	}
	return claims, nil
}

// JwtMiddleware resolves the bearer token to an owner id stored in Locals("user_id").
func JwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		claims, err := parseBearer(ctx, secret)
		if err != nil {
			return err
		}
		userId, ok := claims["user_id"].(string)
		if !ok || userId == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid claims")
		}

		ctx.Locals(localUserId, userId)
		if role, ok := claims["role"].(string); ok {
			ctx.Locals(localRole, role)
		}
		return ctx.Next()
	}
}

// OperatorMiddleware admits an admin JWT or the shared cron secret in X-Cron-Secret.
func OperatorMiddleware(secret, cronSecret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if header := ctx.Get("X-Cron-Secret"); cronSecret != "" && header != "" {
			if subtle.ConstantTimeCompare([]byte(header), []byte(cronSecret)) == 1 {
				return ctx.Next()
			}
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid cron secret")
		}

		claims, err := parseBearer(ctx, secret)
		if err != nil {
			return err
		}
		if role, _ := claims["role"].(string); role != roleAdmin {
			return fiber.NewError(fiber.StatusForbidden, "Operator access required")
		}
		return ctx.Next()
	}
}

// GetUserId returns the owner id resolved by JwtMiddleware.
func GetUserId(ctx *fiber.Ctx) (uuid.UUID, error) {
	raw, ok := ctx.Locals(localUserId).(string)
	if !ok {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Missing user")
	}
	userId, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid user id")
	}
	return userId, nil
}

// ParamUUID parses a path parameter, failing with 400.
func ParamUUID(ctx *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}
