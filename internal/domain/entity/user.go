package entity

import "time"

// Role is the authorization role assigned to a user. The account service never
// checks it; every credential-provisioned user starts as RoleRegular.
type Role string

const (
	RoleRegular Role = "REGULAR"
	RoleAdmin   Role = "ADMIN"
)

// AuthMethod records how the account was provisioned.
type AuthMethod string

const (
	MethodCredentials AuthMethod = "CREDENTIALS"
)

// User is the aggregate root for the identity domain.
// Password holds an argon2id hash, never the raw secret.
type User struct {
	ID                 string
	Name               string
	Email              string
	Password           string
	Avatar             string
	Role               Role
	Method             AuthMethod
	IsVerified         bool
	IsTwoFactorEnabled bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Profile is the caller-safe projection of a User. It has no password field at
// all, so a hash can never leak through serialization.
type Profile struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Avatar             string    `json:"avatar"`
	Role               Role      `json:"role"`
	IsVerified         bool      `json:"isVerified"`
	IsTwoFactorEnabled bool      `json:"isTwoFactorEnabled"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Profile projects the user into its caller-safe form.
func (u *User) Profile() Profile {
	return Profile{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Avatar:             u.Avatar,
		Role:               u.Role,
		IsVerified:         u.IsVerified,
		IsTwoFactorEnabled: u.IsTwoFactorEnabled,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}
