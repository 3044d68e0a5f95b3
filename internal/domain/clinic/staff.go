package clinic

// DoctorRole is a selectable doctor role.
type DoctorRole struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Doctor is a doctor account.
type Doctor struct {
	ID            int64             `json:"id" yaml:"id"`
	Name          string            `json:"name" yaml:"name"`
	Email         string            `json:"email" yaml:"email"`
	DoctorRoleID  int64             `json:"doctor_role_id" yaml:"doctor_role_id"`
	DoctorRole    *DoctorRole       `json:"doctor_role,omitempty" yaml:"doctor_role,omitempty"`
	Organization  *OrganizationRef  `json:"organization,omitempty" yaml:"organization,omitempty"`
	Organizations []OrganizationRef `json:"organizations,omitempty" yaml:"organizations,omitempty"`
	IsActive      bool              `json:"is_active" yaml:"is_active"`
	IsAdmin       bool              `json:"is_admin" yaml:"is_admin"`
	UserType      UserType          `json:"user_type,omitempty" yaml:"user_type,omitempty"`
	CreatedAt     string            `json:"created_at" yaml:"created_at"`
}

// RoleName returns the doctor's role label, defaulting to "doctor".
func (d Doctor) RoleName() string {
	if d.DoctorRole != nil && d.DoctorRole.Name != "" {
		return d.DoctorRole.Name
	}
	return "doctor"
}

// Deletable reports whether the account may be deleted. Administrator
// accounts are protected.
func (d Doctor) Deletable() bool { return !d.IsAdmin }

// DoctorInput creates a doctor, or updates one when ID is set.
type DoctorInput struct {
	ID                   int64   `json:"id,omitempty"`
	DoctorRoleID         int64   `json:"doctor_role_id" validate:"required,gt=0"`
	Name                 string  `json:"name" validate:"required,max=50"`
	Email                string  `json:"email" validate:"required,email"`
	Password             string  `json:"password,omitempty" validate:"required_without=ID,omitempty,min=6"`
	PasswordConfirmation string  `json:"password_confirmation,omitempty" validate:"required_with=Password,omitempty,eqfield=Password"`
	OrgIDs               []int64 `json:"org_ids" validate:"required,min=1,dive,gt=0"`
	IsActive             bool    `json:"is_active"`
}

// Counselor is a counselor account.
type Counselor struct {
	ID            int64             `json:"id" yaml:"id"`
	Name          string            `json:"name" yaml:"name"`
	Email         string            `json:"email" yaml:"email"`
	Organizations []OrganizationRef `json:"organizations,omitempty" yaml:"organizations,omitempty"`
	IsActive      bool              `json:"is_active" yaml:"is_active"`
	CreatedAt     string            `json:"created_at" yaml:"created_at"`
}

// CounselorInput creates a counselor, or updates one when ID is set.
type CounselorInput struct {
	ID                   int64   `json:"id,omitempty"`
	Name                 string  `json:"name" validate:"required,max=50"`
	Email                string  `json:"email" validate:"required,email"`
	Password             string  `json:"password,omitempty" validate:"required_without=ID,omitempty,min=6"`
	PasswordConfirmation string  `json:"password_confirmation,omitempty" validate:"required_with=Password,omitempty,eqfield=Password"`
	OrgIDs               []int64 `json:"org_ids" validate:"required,min=1,dive,gt=0"`
	IsActive             bool    `json:"is_active"`
}

// StaffQuery narrows doctor and counselor listings.
type StaffQuery struct {
	Page    int    `validate:"gte=0"`
	PerPage int    `validate:"gte=0,lte=100"`
	Search  string `validate:"max=100"`
}
