package metadata

// Principal is the authenticated actor, set by the auth middleware.
type Principal struct {
	ID            int64  `json:"id"`
	Admin         bool   `json:"admin"`
	EmailVerified bool   `json:"email_verified"`
	TokenID       string `json:"-"`
}

// IsAdmin checks whether the principal has the admin flag.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Admin
}

// LocalsKey is the fiber locals key the auth middleware stores the
// *Principal under.
const LocalsKey = "principal"
