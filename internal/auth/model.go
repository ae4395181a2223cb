package auth

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RolePatient Role = "PATIENT"
)

type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	Phone        *string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
