package domain

import "time"

// PlatformRole is the role the chat platform asserts for the acting user.
type PlatformRole string

const (
	RoleRequester PlatformRole = "REQUESTER"
	RoleAdmin     PlatformRole = "ADMIN"
)

// Token represents issued platform token metadata.
type Token struct {
	ID        string
	SubjectID string
	Role      PlatformRole
	ExpiresAt time.Time
	IssuedAt  time.Time
}
