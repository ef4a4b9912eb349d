package serverutils

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const LocalUserID = "user_id"

// JwtMiddleware verifies the bearer token with secret and exposes the caller id
// (the "user_id" claim, else "sub") as ctx.Locals("user_id").
func JwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get(fiber.HeaderAuthorization)
		if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}
		tokenStr := authHeader[7:]

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || !token.Valid {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid claims"))
		}

		subject, _ := claims["user_id"].(string)
		if subject == "" {
			subject, _ = claims.GetSubject()
		}
		if subject == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid claims"))
		}

		ctx.Locals(LocalUserID, subject)
		return ctx.Next()
	}
}

// CallerID returns the authenticated caller set by JwtMiddleware.
func CallerID(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals(LocalUserID).(string)
	return id
}
