package enums

// UserRole identifies which side of a deal a user acts on. User accounts
// are managed by the identity service; this core only reads them.
type UserRole string

const (
	UserRoleBuyer  UserRole = "buyer"
	UserRoleSeller UserRole = "seller"
	UserRoleAgent  UserRole = "agent"
)

// IsValid checks whether the given role matches the canonical enum.
func (u UserRole) IsValid() bool {
	switch u {
	case UserRoleBuyer, UserRoleSeller, UserRoleAgent:
		return true
	}
	return false
}
