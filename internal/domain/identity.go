package domain

// Role is the role a connection resolved to.
type Role string

const (
	RoleHost Role = "host"
	RoleUser Role = "user"
)

// Identity is the resolved role of a connection. It is a closed set:
// HostIdentity and UserIdentity are the only implementations.
type Identity interface {
	JamID() string
	Role() Role
	identity()
}

// HostIdentity is a connection authenticated as the host of jam Jam.
type HostIdentity struct {
	ID  string
	Jam string
}

// UserIdentity is a connection authenticated as user ID of jam Jam.
type UserIdentity struct {
	ID  string
	Jam string
}

func (h HostIdentity) JamID() string { return h.Jam }
func (h HostIdentity) Role() Role    { return RoleHost }
func (HostIdentity) identity()       {}

func (u UserIdentity) JamID() string { return u.Jam }
func (u UserIdentity) Role() Role    { return RoleUser }
func (UserIdentity) identity()       {}
