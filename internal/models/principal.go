package models

// Principal is the authenticated identity behind a session: either the
// statically configured administrator or a business account.
type Principal interface {
	isPrincipal()
	DisplayName() string
}

type AdminPrincipal struct {
	Email string
}

func (AdminPrincipal) isPrincipal() {}

func (a AdminPrincipal) DisplayName() string { return a.Email }

type BusinessPrincipal struct {
	User User
}

func (BusinessPrincipal) isPrincipal() {}

func (b BusinessPrincipal) DisplayName() string {
	if b.User.BusinessName != "" {
		return b.User.BusinessName
	}
	return b.User.Email
}
