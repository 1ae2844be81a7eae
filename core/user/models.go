package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/learntube/backend/core"
)

// Roles
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
)

var Roles = []string{RoleStudent, RoleInstructor}

type User struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) HasRole(role string) bool { return u.Role == role }
func (u *User) IsInstructor() bool       { return u.HasRole(RoleInstructor) }
func (u *User) IsStudent() bool          { return u.HasRole(RoleStudent) }

// NewUser contains information needed to register a new User.
type NewUser struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,role"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	return validate.Struct(nu)
}

type LoginCredentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (lc *LoginCredentials) Validate(validate *validator.Validate) error {
	lc.Email = core.CleanString(lc.Email, true /* lower */)
	return validate.Struct(lc)
}

// PasswordChange is a new password for an existing User. It follows the same policy as NewUser.
type PasswordChange struct {
	Password string `json:"password" validate:"required"`

	name, email string
}

func NewPasswordChange(usr User, pwd string) PasswordChange {
	return PasswordChange{Password: pwd, name: usr.Name, email: usr.Email}
}

func (pc *PasswordChange) Validate(validate *validator.Validate) error {
	return validate.Struct(pc)
}

// GetFilter selects a single User. Set fields are ANDed.
type GetFilter struct {
	ID    string
	Email string
}
