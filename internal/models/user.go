package models

import (
	"time"
)

type User struct {
	ID             int64
	CreatedAt      time.Time
	Username       string
	Email          string
	HashedPassword string
	IsActive       bool
	IsSuperuser    bool
}

// Admin-managed user flags. Nil means keep as is
type UserFlags struct {
	IsActive    *bool
	IsSuperuser *bool
}
