package service

import "strings"

// Roles recognised by the skill course flows.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Actor represents the authenticated user performing an operation.
type Actor struct {
	ID   uint
	Role string
}

// IsFaculty reports whether the actor may author courses and review projects.
func (a Actor) IsFaculty() bool {
	switch normalizeRole(a.Role) {
	case RoleTeacher, RoleAdmin:
		return true
	default:
		return false
	}
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
