package auth

type Credentials struct {
	Username string        `json:"username"`
	Password string        `json:"password"`
	Options  *LoginOptions `json:"options,omitempty"`
}

type LoginOptions struct {
	ForceQRCodeRegeneration bool `json:"forceQRCodeRegeneration"`
}

// UserDTO is the user snapshot embedded in login responses. The role's
// permission set is what clients check; "ADMIN" grants everything.
type UserDTO struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Active   bool     `json:"active"`
	Role     *RoleDTO `json:"role,omitempty"`
}

type RoleDTO struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}
