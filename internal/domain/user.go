package domain

import (
	"fmt"
	"strings"
)

// Role enumerates the access classes known to the system.
type Role string

const (
	RoleClient  Role = "Client"
	RoleSupport Role = "Support"
)

// ParseRole accepts role names case-insensitively; legacy rows store "support".
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "client":
		return RoleClient, nil
	case "support":
		return RoleSupport, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// User is a credential record.
type User struct {
	Username     string
	PasswordHash string
	Role         Role
}
