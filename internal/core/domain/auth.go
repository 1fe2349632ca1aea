package domain

// Role defines caller permission level
type Role string

const (
	RoleAdmin   Role = "admin"   // Manage team settings
	RoleMember  Role = "member"  // Search and chat
	RoleService Role = "service" // Host system: lifecycle events and direct indexing
)

// IsValid returns true if this is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleService:
		return true
	default:
		return false
	}
}

// AuthContext contains the authenticated caller for request context.
// TeamID scopes every read and write the caller makes.
type AuthContext struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	TeamID string `json:"team_id"`
}

// IsAdmin checks if the caller is an admin
func (a *AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	UserID    string `json:"user_id"`
	Role      Role   `json:"role"`
	TeamID    string `json:"team_id"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
