package domain

import "slices"

// Roles granted by the gateway
const (
	RoleJudge = "judge"
	RoleAdmin = "admin"
)

// Caller is an identity verified by the gateway or a trusted producer
type Caller struct {
	ID    string
	Roles []string
}

// HasRole reports whether the caller holds role
func (c Caller) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}
