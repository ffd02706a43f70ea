package auth

// Role is an admin back-office role. Roles form a total order used by the
// access gate: admin > manager > user.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

var roleRanks = map[Role]int{
	RoleAdmin:   3,
	RoleManager: 2,
	RoleUser:    1,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// rank returns the role's position in the hierarchy; unknown roles rank 0,
// below every real role.
func (r Role) rank() int {
	return roleRanks[r]
}

// Satisfies reports whether a holder of r may perform actions requiring
// required. The boundary is inclusive: manager satisfies manager.
func (r Role) Satisfies(required Role) bool {
	return r.rank() >= required.rank()
}

// Authorize checks a session against a required role. A nil session is
// ErrNotAuthenticated (callers redirect to login); a live session with an
// insufficient role is ErrUnauthorized (callers render access denied).
// The two must stay distinct.
func Authorize(session *Session, required Role) (*SessionUser, error) {
	if session == nil {
		return nil, ErrNotAuthenticated
	}
	if !session.User.Role.Satisfies(required) {
		return nil, ErrUnauthorized
	}
	return &session.User, nil
}
