package users

import "time"

// Role enumerates directory roles.
type Role string

const (
	RoleSeller   Role = "seller"
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User is the directory view the sales engine consumes: identity, role and
// active flag. Credentials are out of scope here.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName prefers the full name, falling back to the username.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
