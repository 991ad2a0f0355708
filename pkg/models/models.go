package models

import "time"

// Role is the part a principal plays in the marketplace.
type Role string

const (
	RoleNone    Role = ""
	RoleUser    Role = "user"
	RoleCompany Role = "company"
)

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleCompany
}

// Identity is an authenticated principal as reported by the identity service.
// Role is only set when the identity carries an authoritative role claim.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role,omitempty"`
}

// Principal is an identity whose role has been resolved. It is passed
// explicitly to every component that needs to know who is acting.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// UserProfile is stored under the identity ID in the users collection.
type UserProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Mobile    string    `json:"mobile"`
	Email     string    `json:"email"`
	EcoPoints int64     `json:"eco_points"`
	UserType  Role      `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// CompanyProfile is stored under the identity ID in the companies collection.
type CompanyProfile struct {
	ID          string    `json:"id"`
	CompanyName string    `json:"company_name"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Certificate string    `json:"certificate,omitempty"`
	UserType    Role      `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// CompanyUpdate carries the editable company profile fields. Nil fields are
// left untouched.
type CompanyUpdate struct {
	CompanyName *string `json:"company_name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Certificate *string `json:"certificate,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u CompanyUpdate) Empty() bool {
	return u.CompanyName == nil && u.Phone == nil && u.Certificate == nil
}
