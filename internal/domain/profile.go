package domain

import (
	"strings"
	"time"
)

// Profile represents the public part of a user account
type Profile struct {
	UserID             string     `json:"user_id"`
	Username           string     `json:"username,omitempty"`
	DisplayName        string     `json:"display_name,omitempty"`
	AvatarURL          string     `json:"avatar_url,omitempty"`
	ProfileCompletedAt *time.Time `json:"profile_completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Complete reports whether every public field is filled in.
func (p *Profile) Complete() bool {
	return strings.TrimSpace(p.Username) != "" &&
		strings.TrimSpace(p.DisplayName) != "" &&
		strings.TrimSpace(p.AvatarURL) != ""
}

// ProfileUpdate is the body of a profile update request
type ProfileUpdate struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// Apply copies the update onto p.
func (u ProfileUpdate) Apply(p *Profile, now time.Time) {
	p.Username = strings.TrimSpace(u.Username)
	p.DisplayName = strings.TrimSpace(u.DisplayName)
	p.AvatarURL = strings.TrimSpace(u.AvatarURL)
	p.UpdatedAt = now
}

// RoleAdmin is the role required for the admin API.
const RoleAdmin = "admin"
