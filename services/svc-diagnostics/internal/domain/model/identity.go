package model

import "slices"

const RoleAdmin = "admin"

// Identity is the verified caller attached to a request by the authentication layer.
type Identity struct {
	Subject string
	Roles   []string
}

func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

func (i Identity) IsAdmin() bool {
	return i.HasRole(RoleAdmin)
}
