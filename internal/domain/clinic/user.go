// Package clinic holds the records exchanged with the consultation backend:
// accounts and their permissions, consultations, staff, organizations and
// analysis reports.
package clinic

// ActionManage grants every action on its subject.
const ActionManage = "manage"

// Ability is a single (action, subject) permission granted to a user.
type Ability struct {
	Action  string `json:"action" yaml:"action"`
	Subject string `json:"subject" yaml:"subject"`
}

// User is the signed-in account as returned in the backend's userData
// envelope.
type User struct {
	ID       int64     `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	Email    string    `json:"email" yaml:"email"`
	UserType UserType  `json:"user_type,omitempty" yaml:"user_type,omitempty"`
	IsAdmin  bool      `json:"is_admin" yaml:"is_admin"`
	Ability  []Ability `json:"ability" yaml:"ability"`
}

// HasPermission reports whether u may perform action on subject. A manage
// ability on the subject grants every action.
func (u *User) HasPermission(action, subject string) bool {
	if u == nil {
		return false
	}
	for _, a := range u.Ability {
		if a.Subject != subject {
			continue
		}
		if a.Action == action || a.Action == ActionManage {
			return true
		}
	}
	return false
}

// Admin reports whether u carries the administrator flag.
func (u *User) Admin() bool { return u != nil && u.IsAdmin }

// UserType distinguishes doctor and counselor accounts.
type UserType string

const (
	UserTypeDoctor    UserType = "doctor"
	UserTypeCounselor UserType = "counselor"
)

// OrDefault returns t, or UserTypeDoctor when t is empty.
func (t UserType) OrDefault() UserType {
	if t == "" {
		return UserTypeDoctor
	}
	return t
}

// Well-known permission subjects.
const (
	SubjectConsultation = "Consultation"
	SubjectPreSurgery   = "PreSurgery"
	SubjectOrthoK       = "OrthoK"
	SubjectDoctor       = "Doctor"
	SubjectAuth         = "Auth"
)
