package directory

import "fmt"

// Role determines the privilege tier of a principal.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Principal is a known account capable of authenticating.
type Principal struct {
	ID       int64  `yaml:"id" json:"id"`
	Username string `yaml:"username" json:"username"`
	Email    string `yaml:"email" json:"email"`
	Secret   string `yaml:"secret" json:"-"`
	Role     Role   `yaml:"role" json:"role"`
	Name     string `yaml:"name" json:"name"`
	Phone    string `yaml:"phone" json:"phone,omitempty"`
}

// String never includes the secret.
func (p Principal) String() string {
	return fmt.Sprintf("%s (id=%d, role=%s)", p.Username, p.ID, p.Role)
}

// Redacted returns a copy of p with the secret removed.
func (p Principal) Redacted() Principal {
	p.Secret = ""
	return p
}
