package users

type Role string

const (
	RolePlayer Role = "player"
	RoleAdmin  Role = "admin"
)

// User is the caller as asserted by a verified bearer token. IDs are opaque strings (Discord snowflakes).
type User struct {
	ID   string
	Role Role
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
