package dto

import "time"

// HostDTO represents a registered host
type HostDTO struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	IsPaused      bool       `json:"is_paused"`
	LastCheckInAt *time.Time `json:"last_check_in_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// RegisterHostRequest enrolls a host with its check-in secret.
type RegisterHostRequest struct {
	ID     string `json:"id" validate:"required,hostid"`
	Name   string `json:"name,omitempty" validate:"max=255"`
	Secret string `json:"secret" validate:"required,min=16,max=128"`
}

// MaintenanceRequest pauses or resumes auto-approval for a host.
type MaintenanceRequest struct {
	Paused *bool `json:"paused" validate:"required"`
}
