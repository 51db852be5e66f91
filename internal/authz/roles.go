package authz

const (
	RoleUser   = "user"
	RoleFarmer = "farmer"
	RoleAdmin  = "admin"
)

// DefaultRole выдаётся каждому новому пользователю, вошедшему по OTP.
const DefaultRole = RoleUser

func IsKnown(role string) bool {
	switch role {
	case RoleUser, RoleFarmer, RoleAdmin:
		return true
	}
	return false
}
