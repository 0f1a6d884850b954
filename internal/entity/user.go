package entity

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors the `users` table. Credentials are managed by the external
// auth service and never loaded here.
type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	CreatedAt time.Time
}
