package user

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soko/core"
)

// Roles
const (
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
	RoleUser    = "USER"
)

var (
	AllRoles = []string{RoleAdmin, RoleManager, RoleUser}

	Roles = []Role{
		{Name: "Administrator", Value: RoleAdmin},
		{Name: "Manager", Value: RoleManager},
		{Name: "User", Value: RoleUser},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u User) IsManager() bool { return u.Role == RoleManager }

// CanViewAll reports whether the user sees every record instead of only their own.
func (u User) CanViewAll() bool {
	return u.IsAdmin() || u.IsManager()
}

// DisplayName is "First Last", falling back to the username.
func (u User) DisplayName() string {
	name := core.CleanString(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username" validate:"required,min=3"`
	Email     string `json:"email" validate:"required,email"`
	Role      string `json:"role" validate:"required,role"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	if nu.Role == "" {
		nu.Role = RoleUser
	}
	return validate.Struct(nu)
}

type GetFilter struct {
	ID    string
	Email string
}

type QueryFilter struct {
	IsActive *bool
	Roles    []string
}
