package model

// Credentials holds the values posted to the controller's login endpoint.
// The JSON field names are the ones the controller expects.
type Credentials struct {
	// Domain is the login domain (for example "local" or a RADIUS/LDAP domain).
	Domain string `json:"domain"`

	// Username is the controller account name.
	Username string `json:"userName"`

	// Password is the account password. It is only ever sent in the login body.
	Password string `json:"userPasswd"`
}

// String returns the credentials without the password.
func (c Credentials) String() string {
	return c.Username + "@" + c.Domain
}
