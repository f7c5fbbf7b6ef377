package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-skills-api/internal/utils"
)

var errMissingSubject = errors.New("token has no subject")

// JWTProtected validates HMAC bearer tokens and stores the caller's id and role in locals.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))

	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return utils.SendErrorCode(c, fiber.StatusUnauthorized, "unauthorized", "missing or malformed bearer token")
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendErrorCode(c, fiber.StatusUnauthorized, "unauthorized", "invalid token")
		}

		userID, err := subjectFromClaims(claims)
		if err != nil {
			return utils.SendErrorCode(c, fiber.StatusUnauthorized, "unauthorized", err.Error())
		}

		c.Locals("user_id", userID)
		if role := roleFromClaims(claims); role != "" {
			c.Locals("user_role", role)
		}

		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func subjectFromClaims(claims jwt.MapClaims) (uint, error) {
	for _, key := range []string{"sub", "user_id", "id"} {
		value, ok := claims[key]
		if !ok {
			continue
		}
		if id, err := normalizeUserID(value); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, errMissingSubject
}

func normalizeUserID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported subject type %T", value)
	}
}

func roleFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"role", "roles"} {
		switch v := claims[key].(type) {
		case string:
			if role := normalizeRoleValue(v); role != "" {
				return role
			}
		case []interface{}:
			for _, item := range v {
				if role := normalizeRoleValue(item); role != "" {
					return role
				}
			}
		}
	}
	return ""
}
