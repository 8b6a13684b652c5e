package domain

// Identity is the authenticated principal exposed by the identity provider.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	Roles       []string
	Anonymous   bool
}

// HasRole reports whether the identity carries role.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Clone returns a copy safe to hand to other goroutines.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	cp := *i
	cp.Roles = append([]string(nil), i.Roles...)
	return &cp
}

// IdentityState is the reactive view over the current identity. Before the first auth
// transition IsLoading is true and Identity is nil.
type IdentityState struct {
	Identity  *Identity
	IsLoading bool
	Err       error
}
