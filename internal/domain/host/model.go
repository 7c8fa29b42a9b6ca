package host

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a host id is unknown.
var ErrNotFound = errors.New("host not found")

// ErrAlreadyExists is returned when registering an id that is already taken.
var ErrAlreadyExists = errors.New("host already registered")

// ErrInvalidCredentials is returned when a check-in secret does not match.
var ErrInvalidCredentials = errors.New("invalid host credentials")

// Host is a remote machine that checks in with the hub.
type Host struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	IsPaused      bool       `json:"is_paused"`
	SecretHash    string     `json:"-"`
	LastCheckInAt *time.Time `json:"last_check_in_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
