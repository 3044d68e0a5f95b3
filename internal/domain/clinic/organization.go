package clinic

// OrganizationType classifies an organization.
type OrganizationType int

const (
	OrganizationClinic   OrganizationType = 1
	OrganizationHospital OrganizationType = 2
	OrganizationChain    OrganizationType = 3
)

// String returns the display name of the type.
func (t OrganizationType) String() string {
	switch t {
	case OrganizationClinic:
		return "clinic"
	case OrganizationHospital:
		return "hospital"
	case OrganizationChain:
		return "chain"
	default:
		return "unknown"
	}
}

// OrganizationRef is the organization summary embedded in other records.
// The backend mixes capitalized and lower-case keys for it; JSON decoding
// matches either.
type OrganizationRef struct {
	ID       int64            `json:"id" yaml:"id"`
	Name     string           `json:"name" yaml:"name"`
	Type     OrganizationType `json:"type,omitempty" yaml:"type,omitempty"`
	TypeText string           `json:"TypeText,omitempty" yaml:"type_text,omitempty"`
}

// TypeName returns the server-provided type label, falling back to the local
// type mapping.
func (o OrganizationRef) TypeName() string {
	if o.TypeText != "" {
		return o.TypeText
	}
	return o.Type.String()
}

// Organization is an entry of the organization directory.
type Organization = OrganizationRef

// OrganizationQuery narrows the organization directory listing. Type
// defaults to hospitals.
type OrganizationQuery struct {
	Type           OrganizationType
	MaxResultCount int `validate:"gte=0"`
}
