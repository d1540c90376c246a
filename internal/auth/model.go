package auth

import "time"

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        *string
	Phone        *string
	Role         Role
	RealName     *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
