package session

import "strings"

type Role string

const (
	RoleDirector  Role = "DIRECTOR"
	RoleTeacher   Role = "TEACHER"
	RoleParent    Role = "PARENT"
	RoleStudent   Role = "STUDENT"
	RoleTransport Role = "TRANSPORT_STAFF"
)

// CurrentUser is the serialized "current user" object kept on the device.
type CurrentUser struct {
	ID       string `json:"id"`
	SchoolID string `json:"schoolId"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role,omitempty"`
}

// HasIdentity reports whether both identifiers needed for attendance are known.
func (u CurrentUser) HasIdentity() bool {
	return strings.TrimSpace(u.ID) != "" && strings.TrimSpace(u.SchoolID) != ""
}

// Session is the persisted pair read at mount time.
type Session struct {
	User  CurrentUser `json:"user"`
	Token string      `json:"-"`
}
