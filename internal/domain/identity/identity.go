package identity

import "errors"

var (
	ErrForbidden    = errors.New("identity: forbidden")
	ErrInvalidRole  = errors.New("identity: unrecognized role")
	ErrUserNotFound = errors.New("identity: user not found")
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleStaff, RoleCustomer:
		return Role(s), nil
	default:
		return "", ErrInvalidRole
	}
}

// Actor is the authenticated principal attached to every request.
// Credentials are validated upstream; the service trusts the pair as-is.
type Actor struct {
	UserID string
	Role   Role
}

// Privileged reports whether the actor may perform staff-only mutations.
func (a Actor) Privileged() bool {
	return a.Role == RoleAdmin || a.Role == RoleStaff
}

// User mirrors the auth collaborator's registry; kept locally for
// customer-existence checks and display population on order reads.
type User struct {
	ID   string
	Name string
	Role Role
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}
