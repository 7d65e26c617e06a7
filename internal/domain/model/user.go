package model

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleVIP   Role = "vip"
	RoleAdmin Role = "admin"
)

// User mirrors the storefront profile row. AuthID is the id issued by the
// external auth provider and carried as the JWT subject.
type User struct {
	ID           int64
	AuthID       string
	Email        string
	Role         Role
	VIPExpiresAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsVIP is evaluated lazily at read time: a stale vip role whose expiry has
// passed does not count.
func (u *User) IsVIP(now time.Time) bool {
	if u == nil || u.Role != RoleVIP {
		return false
	}
	return u.VIPExpiresAt == nil || u.VIPExpiresAt.After(now)
}
