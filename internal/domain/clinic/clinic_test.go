package clinic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_HasPermission(t *testing.T) {
	user := &User{
		Ability: []Ability{
			{Action: "read", Subject: SubjectConsultation},
			{Action: ActionManage, Subject: SubjectDoctor},
		},
	}

	tests := []struct {
		name    string
		user    *User
		action  string
		subject string
		want    bool
	}{
		{name: "exact match", user: user, action: "read", subject: SubjectConsultation, want: true},
		{name: "other action same subject", user: user, action: "update", subject: SubjectConsultation, want: false},
		{name: "manage implies read", user: user, action: "read", subject: SubjectDoctor, want: true},
		{name: "manage implies delete", user: user, action: "delete", subject: SubjectDoctor, want: true},
		{name: "manage does not cross subjects", user: user, action: "read", subject: SubjectOrthoK, want: false},
		{name: "nil user", user: nil, action: "read", subject: SubjectConsultation, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.HasPermission(tt.action, tt.subject))
		})
	}
}

func TestUser_Decode(t *testing.T) {
	raw := `{"id":3,"name":"Dr. Li","email":"li@example.com","is_admin":true,
		"ability":[{"action":"manage","subject":"Doctor"}]}`

	var u User
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	assert.True(t, u.Admin())
	assert.Equal(t, UserTypeDoctor, u.UserType.OrDefault())
	assert.True(t, u.HasPermission("create", SubjectDoctor))
}

func TestConsultation_Decode(t *testing.T) {
	raw := `{"id":12,"patient_id":"P-7","patient":{"Name":"Wang","PhoneNumber":"138","ChannelSource":"wechat"},
		"organization":{"Id":4,"Name":"Eye Hospital","Type":2},"status":"generated","report_url":"https://x/r.pdf"}`

	var c Consultation
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	assert.Equal(t, "Wang", c.PatientLabel())
	assert.True(t, c.HasReport())
	assert.True(t, c.Status.Valid())
	require.NotNil(t, c.Organization)
	assert.Equal(t, int64(4), c.Organization.ID)
	assert.Equal(t, "hospital", c.Organization.TypeName())
	assert.Equal(t, "consultation_report_Wang_12.pdf", c.ReportFileName())
}

func TestConsultation_PatientLabelFallback(t *testing.T) {
	c := Consultation{ID: 1, PatientID: "P-1"}
	assert.Equal(t, "P-1", c.PatientLabel())
	assert.False(t, c.HasReport())
}

func TestConsultationFilter_Values(t *testing.T) {
	f := ConsultationFilter{
		Page:           2,
		PerPage:        15,
		Search:         "wang",
		Status:         ConsultationPending,
		OrganizationID: 9,
		StartDate:      "2024-01-01",
	}

	v := f.Values()
	assert.Equal(t, "2", v.Get("page"))
	assert.Equal(t, "15", v.Get("per_page"))
	assert.Equal(t, "wang", v.Get("search"))
	assert.Equal(t, "pending", v.Get("status"))
	assert.Equal(t, "9", v.Get("organization_id"))
	assert.Equal(t, "2024-01-01", v.Get("start_date"))
	assert.False(t, v.Has("end_date"))

	assert.Empty(t, ConsultationFilter{}.Values())
}

func TestStatistics_Rates(t *testing.T) {
	s := Statistics{TotalConsultations: 200, CompletedConsultations: 150, FailedConsultations: 10}
	assert.InDelta(t, 75.0, s.CompletionRate(), 0.001)
	assert.InDelta(t, 95.0, s.SuccessRate(), 0.001)

	assert.Zero(t, Statistics{}.CompletionRate())
	assert.Zero(t, Statistics{}.SuccessRate())
}

func TestOrganizationRef_TypeName(t *testing.T) {
	assert.Equal(t, "clinic", OrganizationRef{Type: OrganizationClinic}.TypeName())
	assert.Equal(t, "chain", OrganizationRef{Type: OrganizationChain}.TypeName())
	assert.Equal(t, "unknown", OrganizationRef{}.TypeName())
	assert.Equal(t, "Private", OrganizationRef{Type: OrganizationClinic, TypeText: "Private"}.TypeName())
}

func TestParseAnalysisKind(t *testing.T) {
	k, err := ParseAnalysisKind("orthok")
	require.NoError(t, err)
	assert.Equal(t, AnalysisOrthoK, k)
	assert.Equal(t, SubjectOrthoK, k.Subject())
	assert.Equal(t, SubjectPreSurgery, AnalysisPreSurgery.Subject())

	_, err = ParseAnalysisKind("cataract")
	assert.ErrorIs(t, err, ErrUnknownAnalysisKind)
}

func TestDoctor_RoleAndDeletable(t *testing.T) {
	assert.Equal(t, "doctor", Doctor{}.RoleName())
	assert.Equal(t, "Chief", Doctor{DoctorRole: &DoctorRole{Name: "Chief"}}.RoleName())
	assert.False(t, Doctor{IsAdmin: true}.Deletable())
	assert.True(t, Doctor{}.Deletable())
}

func TestAnalysisStatus_Confirmable(t *testing.T) {
	assert.True(t, AnalysisCompleted.Confirmable())
	assert.False(t, AnalysisGenerating.Confirmable())
	assert.False(t, AnalysisConfirmed.Confirmable())
}
