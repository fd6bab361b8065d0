package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAPIUser        Role = "API_User"
	RoleAPIAdmin       Role = "API_Admin"
	RoleSystemOperator Role = "System_Operator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAPIUser, RoleAPIAdmin, RoleSystemOperator:
		return true
	}
	return false
}

// ParseRole aceita o nome do papel sem diferenciar maiúsculas.
func ParseRole(s string) (Role, bool) {
	for _, r := range []Role{RoleAPIUser, RoleAPIAdmin, RoleSystemOperator} {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, true
		}
	}
	return "", false
}

type User struct {
	ID             string
	Username       string
	Email          string
	HashedPassword string
	Role           Role
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserUpdate carries the optional fields of a partial update.
type UserUpdate struct {
	Username *string
	Email    *string
	Role     *Role
}

func (u UserUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil && u.Role == nil
}
