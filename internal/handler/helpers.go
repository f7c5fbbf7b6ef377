package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-skills-api/internal/service"
)

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := strings.TrimSpace(c.Params(name))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid " + name)
	}
	return uint(parsed), nil
}

func parseIntParam(c *fiber.Ctx, name string) (int, error) {
	parsed, err := strconv.Atoi(strings.TrimSpace(c.Params(name)))
	if err != nil {
		return 0, errors.New("invalid " + name)
	}
	return parsed, nil
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func userIDFromContext(c *fiber.Ctx) uint {
	switch id := c.Locals("user_id").(type) {
	case uint:
		return id
	case int:
		if id < 0 {
			return 0
		}
		return uint(id)
	default:
		return 0
	}
}

func userRoleFromContext(c *fiber.Ctx) string {
	if role, ok := c.Locals("user_role").(string); ok {
		return role
	}
	return ""
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}
