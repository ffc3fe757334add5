package model

import "time"

// Role is the account role used for permission decisions.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleAdmin     Role = "admin"
	RoleFounder   Role = "founder"
)

// RolePolicy is one row of the role decision table.
type RolePolicy struct {
	// AdminAccess grants the admin API.
	AdminAccess bool
	// AlwaysPermitted means the account may sit the exam regardless of its
	// stored exam_permission flag.
	AlwaysPermitted bool
	// RevokeOnFinish means finishing a session clears the account's
	// exam_permission flag.
	RevokeOnFinish bool
}

var rolePolicies = map[Role]RolePolicy{
	RoleCandidate: {AdminAccess: false, AlwaysPermitted: false, RevokeOnFinish: true},
	RoleAdmin:     {AdminAccess: true, AlwaysPermitted: true, RevokeOnFinish: false},
	RoleFounder:   {AdminAccess: true, AlwaysPermitted: true, RevokeOnFinish: false},
}

// Policy returns the decision-table row for r. Unknown roles get the
// candidate policy.
func (r Role) Policy() RolePolicy {
	if p, ok := rolePolicies[r]; ok {
		return p
	}
	return rolePolicies[RoleCandidate]
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := rolePolicies[r]
	return ok
}

// User is the account record the engine consults for exam permission.
type User struct {
	ID             int64     `json:"id"`
	PersonalID     string    `json:"personal_id,omitempty"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Code           string    `json:"code,omitempty"`
	Role           Role      `json:"role"`
	ExamPermission bool      `json:"exam_permission"`
	CreatedAt      time.Time `json:"created_at"`
}

// CanSitExam applies the role table on top of the stored permission flag.
func (u *User) CanSitExam() bool {
	return u.Role.Policy().AlwaysPermitted || u.ExamPermission
}

// ShouldRevokePermission reports whether finishing an exam must clear the
// user's exam permission.
func (u *User) ShouldRevokePermission() bool {
	return u.Role.Policy().RevokeOnFinish && u.ExamPermission
}
